package engine

import (
	"context"
	"time"

	"github.com/parkcheck/conditions-engine/internal/domain"
)

// SubmissionSource yields one raw submission at a time, blocking until a
// message arrives or the context is cancelled.
type SubmissionSource interface {
	Fetch(ctx context.Context) (domain.RawSubmission, error)
}

// Run executes the ingestion loop until the context is cancelled. Offsets
// are committed only after the submission is fully applied; terminal
// rejections are committed too, since retrying them can never succeed.
func (e *Engine) Run(ctx context.Context, source SubmissionSource) error {
	e.logger.Info("engine started")
	e.metrics.EngineRunning.Set(1)
	defer e.metrics.EngineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !e.processOne(ctx, source, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processOne fetches and applies one submission. Returns false if the loop
// should stop.
func (e *Engine) processOne(ctx context.Context, source SubmissionSource, backoff *time.Duration, maxBackoff time.Duration) bool {
	raw, err := source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		e.logger.Error("fetch submission failed", "error", err)
		return e.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if err := e.Ingest(ctx, raw); err != nil {
		if domain.IsTerminal(err) {
			// Rejected for content: retrying replays the same rejection, so
			// the offset moves forward.
			e.logger.Warn("submission rejected",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			e.commitOffset(ctx, raw)
			*backoff = 200 * time.Millisecond
			return true
		}
		// Retryable: leave the offset uncommitted so the message redelivers.
		e.logger.Error("ingest failed, will retry", "error", err, "offset", raw.Offset)
		return e.backoffOrStop(ctx, backoff, maxBackoff)
	}

	e.commitOffset(ctx, raw)
	*backoff = 200 * time.Millisecond
	return true
}

// RunScheduler drives the periodic jobs: weather refresh and the lifecycle
// sweep. One refresh runs immediately at startup so estimates exist before
// the first tick.
func (e *Engine) RunScheduler(ctx context.Context, refreshEvery, sweepEvery time.Duration) error {
	if err := e.RefreshWeather(ctx); err != nil {
		e.logger.Error("initial weather refresh failed", "error", err)
	}

	refresh := e.clock.NewTicker(refreshEvery)
	defer refresh.Stop()
	sweep := e.clock.NewTicker(sweepEvery)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-refresh.Chan():
			if err := e.RefreshWeather(ctx); err != nil {
				e.logger.Error("weather refresh failed", "error", err)
			}
		case <-sweep.Chan():
			if err := e.Sweep(ctx); err != nil {
				e.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances it. Returns false if the loop should stop.
func (e *Engine) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (e *Engine) commitOffset(ctx context.Context, raw domain.RawSubmission) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		e.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
