// Package pipeline orchestrates a full ingestion run: one scan goroutine
// feeding a fixed worker pool, each worker carrying a file through date
// resolution, hashing, the duplicate claim, and physical placement.
package pipeline
