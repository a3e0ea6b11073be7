package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mediasort/internal/classify"
	"mediasort/internal/config"
	"mediasort/internal/dates"
	"mediasort/internal/hasher"
	"mediasort/internal/index"
	"mediasort/internal/logging"
	"mediasort/internal/media"
	"mediasort/internal/placer"
	"mediasort/internal/scanner"
	"mediasort/internal/services"
)

// Pipeline wires the scanner, resolver, hasher, index, and placer into one
// concurrent run. A single scan goroutine feeds a fixed pool of workers;
// each worker carries a file from candidate to recorded outcome on its own.
type Pipeline struct {
	cfg      *config.Config
	idx      index.Index
	scan     *scanner.Scanner
	resolver dates.Resolver
	hash     *hasher.Hasher
	place    *placer.Placer
	logger   *slog.Logger
	timeout  time.Duration
	dryRun   bool
}

// Result summarizes a completed (or cooperatively stopped) run.
type Result struct {
	SessionID string
	Counters  index.Counters
	Scan      scanner.Summary
	Partial   bool
	Elapsed   time.Duration
}

// New builds a pipeline over the given index. Dry runs pair a MemoryIndex
// with a non-writing placer so outcomes are computed without side effects.
func New(cfg *config.Config, idx index.Index, logger *slog.Logger, dryRun bool) *Pipeline {
	registry := media.NewRegistry(cfg.Extensions.Photo, cfg.Extensions.Video)
	return &Pipeline{
		cfg: cfg,
		idx: idx,
		scan: scanner.New(
			cfg.Paths.Source,
			registry,
			cfg.Scanner.ExcludeHidden,
			cfg.Scanner.ExcludePatterns,
			logger,
		),
		resolver: dates.NewResolver(logger),
		hash:     hasher.New(cfg.HashBufferSize()),
		place: placer.New(placer.Options{
			Root:       cfg.Paths.Destination,
			CopySource: cfg.Placement.CopySource,
			DryRun:     dryRun,
			Logger:     logger,
		}),
		logger:  logging.NewComponentLogger(logger, "pipeline"),
		timeout: time.Duration(cfg.Workers.FileTimeoutSeconds) * time.Second,
		dryRun:  dryRun,
	}
}

// counters accumulates outcomes across workers without a lock.
type counters struct {
	seen       atomic.Int64
	organized  atomic.Int64
	duplicates atomic.Int64
	review     atomic.Int64
	errors     atomic.Int64
}

func (c *counters) snapshot() index.Counters {
	return index.Counters{
		Seen:       c.seen.Load(),
		Organized:  c.organized.Load(),
		Duplicates: c.duplicates.Load(),
		Review:     c.review.Load(),
		Errors:     c.errors.Load(),
	}
}

// Run executes a full pass over the source tree. Per-file failures are
// recorded and counted, never fatal; cancellation drains in-flight work and
// finalizes the session as partial.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	session := &index.Session{
		ID:             uuid.NewString(),
		StartedAt:      started.UTC(),
		ConfigSnapshot: p.cfg.Snapshot(),
	}
	if err := p.idx.StartSession(ctx, session); err != nil {
		return nil, err
	}

	workerCount := p.cfg.WorkerCount()
	p.logger.Info("run started",
		logging.String("session", session.ID),
		logging.String("source", p.cfg.Paths.Source),
		logging.String("destination", p.cfg.Paths.Destination),
		logging.Int("workers", workerCount),
		logging.Bool("dry_run", p.dryRun))

	var totals counters
	candidates := make(chan media.Candidate, workerCount*2)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range candidates {
				p.process(ctx, cand, session.ID, &totals)
			}
		}()
	}

	summary, scanErr := p.scan.Walk(ctx, func(cand media.Candidate) bool {
		select {
		case candidates <- cand:
			return true
		case <-ctx.Done():
			return false
		}
	})
	close(candidates)
	wg.Wait()

	totals.errors.Add(int64(summary.ScanErrors))
	partial := ctx.Err() != nil
	result := &Result{
		SessionID: session.ID,
		Counters:  totals.snapshot(),
		Scan:      summary,
		Partial:   partial,
		Elapsed:   time.Since(started),
	}

	// Finalize with a fresh context so a canceled run still records its
	// session totals.
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.idx.FinishSession(finishCtx, session.ID, result.Counters, partial); err != nil {
		return result, err
	}

	p.logger.Info("run finished",
		logging.String("session", session.ID),
		logging.Int64("seen", result.Counters.Seen),
		logging.Int64("organized", result.Counters.Organized),
		logging.Int64("duplicates", result.Counters.Duplicates),
		logging.Int64("review", result.Counters.Review),
		logging.Int64("errors", result.Counters.Errors),
		logging.Bool("partial", partial),
		logging.Duration("elapsed", result.Elapsed))

	if scanErr != nil && !partial {
		return result, scanErr
	}
	return result, nil
}

// process carries one candidate through resolve, hash, claim, and place.
func (p *Pipeline) process(ctx context.Context, cand media.Candidate, sessionID string, totals *counters) {
	totals.seen.Add(1)

	fileCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		fileCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	basename := filepath.Base(cand.Path)
	date, dated := p.resolver.Resolve(cand.Path, cand.Type)

	hash, err := p.hash.Sum(fileCtx, cand.Path)
	if err != nil {
		p.recordError(cand, "", sessionID, "hash", err, totals)
		return
	}

	placement := classify.Canonical(cand.Type, date, dated, basename)
	dest, err := p.place.Plan(placement.RelPath, hash)
	if err != nil {
		p.recordError(cand, hash, sessionID, "plan", err, totals)
		return
	}

	rec := &index.FileRecord{
		Hash:       hash,
		SourcePath: cand.Path,
		DestPath:   dest,
		MediaType:  cand.Type,
		Year:       date.Year,
		Month:      int(date.Month),
		Status:     placement.Status,
		SessionID:  sessionID,
	}
	if !dated {
		rec.Year, rec.Month = 0, 0
	}

	claim, err := p.idx.Claim(fileCtx, rec)
	if err != nil {
		// Claim failures are index contention or infrastructure trouble,
		// never a verdict on the file itself.
		wrapped := services.Wrap(services.ErrTransient, "pipeline", "claim", basename, err)
		p.recordError(cand, hash, sessionID, "claim", wrapped, totals)
		return
	}

	if claim.Won {
		p.placeCanonical(fileCtx, cand, rec, totals)
		return
	}
	p.placeDuplicate(fileCtx, cand, hash, claim.ExistingPath, sessionID, totals)
}

func (p *Pipeline) placeCanonical(ctx context.Context, cand media.Candidate, rec *index.FileRecord, totals *counters) {
	if err := p.place.Place(ctx, cand.Path, rec.DestPath); err != nil {
		// The claim names a destination that was never written; release it
		// so the bytes stay claimable, then record the failure.
		if releaseErr := p.idx.Release(context.Background(), rec.Hash); releaseErr != nil {
			p.logger.Error("release after failed placement",
				logging.String("path", cand.Path), logging.Error(releaseErr))
		}
		p.recordError(cand, rec.Hash, rec.SessionID, "place", err, totals)
		return
	}

	switch rec.Status {
	case index.StatusReview:
		totals.review.Add(1)
		p.logger.Info("file needs review",
			logging.String("path", cand.Path),
			logging.String("destination", rec.DestPath))
	default:
		totals.organized.Add(1)
		p.logger.Debug("file organized",
			logging.String("path", cand.Path),
			logging.String("destination", rec.DestPath))
	}
}

func (p *Pipeline) placeDuplicate(ctx context.Context, cand media.Candidate, hash, winnerPath, sessionID string, totals *counters) {
	placement := classify.Duplicate(cand.Type, filepath.Base(cand.Path))
	dest, err := p.place.Plan(placement.RelPath, hash)
	if err != nil {
		p.recordError(cand, hash, sessionID, "plan duplicate", err, totals)
		return
	}
	if err := p.place.Place(ctx, cand.Path, dest); err != nil {
		p.recordError(cand, hash, sessionID, "place duplicate", err, totals)
		return
	}

	rec := &index.FileRecord{
		Hash:       hash,
		SourcePath: cand.Path,
		DestPath:   dest,
		RefPath:    winnerPath,
		MediaType:  cand.Type,
		Status:     index.StatusDuplicate,
		SessionID:  sessionID,
	}
	if err := p.idx.Record(ctx, rec); err != nil {
		p.recordError(cand, hash, sessionID, "record duplicate", err, totals)
		return
	}

	totals.duplicates.Add(1)
	p.logger.Debug("duplicate detected",
		logging.String("path", cand.Path),
		logging.String("winner", winnerPath),
		logging.String("destination", dest))
}

func (p *Pipeline) recordError(cand media.Candidate, hash, sessionID, stage string, cause error, totals *counters) {
	status, recordable := services.RecordStatus(cause)
	if !recordable {
		p.logger.Debug("file interrupted, left for next run",
			logging.String("path", cand.Path),
			logging.String("stage", stage))
		return
	}

	totals.errors.Add(1)
	p.logger.Warn("file failed, continuing",
		logging.String("path", cand.Path),
		logging.String("stage", stage),
		logging.Error(cause))

	rec := &index.FileRecord{
		Hash:       hash,
		SourcePath: cand.Path,
		MediaType:  cand.Type,
		Status:     status,
		SessionID:  sessionID,
	}
	// Error rows use a background context: they document the failure and
	// must outlive a canceled or timed-out file context.
	if err := p.idx.Record(context.Background(), rec); err != nil {
		p.logger.Error("record error row",
			logging.String("path", cand.Path), logging.Error(err))
	}
}
