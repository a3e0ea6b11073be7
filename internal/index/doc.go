// Package index implements the durable duplicate index. The core primitive
// is the atomic claim: workers that hash identical bytes race to insert the
// canonical record, and the database's partial unique index decides the
// winner. Everything else (sessions, statistics, reset) is bookkeeping
// around that one invariant.
package index
