// Package engine orchestrates the conditions pipeline: validated reports
// flow into per-site aggregation records, reputation effects land on the
// ledger, and periodic jobs age reports out and refresh dry-out estimates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/parkcheck/conditions-engine/internal/domain"
	"github.com/parkcheck/conditions-engine/internal/observability"
	"github.com/parkcheck/conditions-engine/internal/store"
)

// Storage is the persistence surface the engine needs. *store.Store
// implements it; tests substitute an in-memory fake.
type Storage interface {
	HasSite(ctx context.Context, slug string) (bool, error)
	ListSites(ctx context.Context) ([]domain.Site, error)
	GetConditions(ctx context.Context, slug string) (*domain.SiteConditions, error)
	PutConditions(ctx context.Context, cond *domain.SiteConditions) error
	GetLedger(ctx context.Context) (*domain.StatsLedger, error)
	PutLedger(ctx context.Context, ledger *domain.StatsLedger) error
	GetWeather(ctx context.Context) (*domain.WeatherSnapshot, error)
	PutWeather(ctx context.Context, snap *domain.WeatherSnapshot) error
	GetEstimates(ctx context.Context) (*domain.DryEstimates, error)
	PutEstimates(ctx context.Context, est *domain.DryEstimates) error
	AppendArchive(ctx context.Context, site string, reports []domain.Report) error
}

// Publisher emits condition events for the notification collaborator.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.ConditionEvent) error
}

// WeatherFetcher retrieves a fresh snapshot from the upstream provider. The
// previous snapshot is passed in so last-rain bookkeeping can carry forward.
type WeatherFetcher interface {
	Fetch(ctx context.Context, prev *domain.WeatherSnapshot) (*domain.WeatherSnapshot, error)
}

// Engine ties storage, event publishing, and the weather fetcher together.
// Per-site mutexes serialize writers of the same conditions record; a single
// ledger mutex serializes reputation updates.
type Engine struct {
	store   Storage
	events  Publisher
	fetcher WeatherFetcher
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	maxReportsPerDay int

	ready atomic.Bool

	mu        sync.Mutex
	siteLocks map[string]*sync.Mutex
	ledgerMu  sync.Mutex
}

// New creates an Engine. Pass a nil fetcher to disable weather refresh
// cycles; pass a nil events publisher to drop events.
func New(st Storage, events Publisher, fetcher WeatherFetcher, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, maxReportsPerDay int) *Engine {
	return &Engine{
		store:            st,
		events:           events,
		fetcher:          fetcher,
		logger:           logger,
		metrics:          metrics,
		clock:            clock,
		maxReportsPerDay: maxReportsPerDay,
		siteLocks:        map[string]*sync.Mutex{},
	}
}

// CheckReadiness returns nil once the engine has completed at least one unit
// of work (an ingested submission or a finished sweep).
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("engine has not processed any work yet")
	}
	return nil
}

// Ingest runs one submission through validate, quota, insert, reputation,
// and recompute, then persists the results. Terminal errors (validation,
// rate limit) carry no side effects and must not be retried; any other
// error leaves storage untouched for this submission and is retryable.
// A replayed submission (duplicate report id) returns nil without effect.
func (e *Engine) Ingest(ctx context.Context, raw domain.RawSubmission) error {
	start := e.clock.Now()

	sub, err := domain.ParseRawSubmission(raw)
	if err != nil {
		e.metrics.ReportsRejected.WithLabelValues("validation").Inc()
		return fmt.Errorf("%w: %v", domain.ErrValidationRejected, err)
	}
	// A failed site lookup must stay retryable: only a definitive "no such
	// slug" answer may become a terminal rejection.
	var lookupErr error
	report, err := domain.ValidateSubmission(sub, func(slug string) bool {
		known, herr := e.store.HasSite(ctx, slug)
		if herr != nil {
			lookupErr = herr
		}
		return known
	})
	if lookupErr != nil {
		return fmt.Errorf("check site: %w", lookupErr)
	}
	if err != nil {
		e.metrics.ReportsRejected.WithLabelValues("validation").Inc()
		return err
	}
	slug := strings.TrimSpace(sub.Park)

	unlock := e.lockSite(slug)
	defer unlock()
	e.ledgerMu.Lock()
	defer e.ledgerMu.Unlock()

	now := e.clock.Now().UTC()

	ledger, err := e.store.GetLedger(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if err := domain.CheckDailyQuota(ledger, report.ReporterID, now, e.maxReportsPerDay); err != nil {
		e.metrics.ReportsRejected.WithLabelValues("rate_limit").Inc()
		return err
	}

	cond, err := e.store.GetConditions(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		cond = domain.NewSiteConditions(slug)
	} else if err != nil {
		return fmt.Errorf("load conditions %s: %w", slug, err)
	}

	// Weather is consulted only for the first-after-rain bonus; an absent
	// snapshot degrades to no bonus rather than failing the submission.
	weather, err := e.store.GetWeather(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("weather unavailable during ingest", "error", err)
		weather = nil
	}

	if !domain.InsertReport(cond, report) {
		e.metrics.ReportsRejected.WithLabelValues("duplicate").Inc()
		e.logger.Debug("duplicate report replayed", "site", slug, "report_id", report.ID)
		return nil
	}

	domain.RecordReport(ledger, report, weather, cond, now)

	var prevStatus *domain.Status
	if cond.CompositeStatus != nil {
		s := *cond.CompositeStatus
		prevStatus = &s
	}
	domain.RecomputeComposite(cond, now, func(id string) float64 {
		return domain.WeightOf(ledger, id)
	})
	cond.UpdatedAt = now

	if err := e.store.PutConditions(ctx, cond); err != nil {
		return fmt.Errorf("persist conditions %s: %w", slug, err)
	}
	if err := e.store.PutLedger(ctx, ledger); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}

	if statusChanged(prevStatus, cond.CompositeStatus) {
		e.metrics.CompositeChanges.Inc()
		e.publish(ctx, domain.ConditionEvent{
			Kind:       domain.EventStatusChanged,
			Site:       slug,
			Status:     cond.CompositeStatus,
			OccurredAt: now,
		})
	}

	e.metrics.ReportsAccepted.Inc()
	e.metrics.IngestDuration.Observe(e.clock.Since(start).Seconds())
	e.ready.Store(true)

	e.logger.Info("report ingested",
		"site", slug,
		"report_id", report.ID,
		"reporter", report.ReporterID,
		"composite", statusString(cond.CompositeStatus),
	)
	return nil
}

// Sweep ages every site's reports: stale marking, archival, and composite
// recompute. Safe to run at any cadence; a second pass with no new reports
// changes nothing.
func (e *Engine) Sweep(ctx context.Context) error {
	start := e.clock.Now()
	now := start.UTC()

	ledger, err := e.store.GetLedger(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	weigh := func(id string) float64 { return domain.WeightOf(ledger, id) }

	sites, err := e.store.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}

	var staled, archived int
	for _, site := range sites {
		n, a, err := e.sweepOne(ctx, site.Slug, now, weigh)
		if err != nil {
			e.logger.Error("sweep site failed", "site", site.Slug, "error", err)
			continue
		}
		staled += n
		archived += a
	}

	e.metrics.ReportsStaled.Add(float64(staled))
	e.metrics.ReportsArchived.Add(float64(archived))
	e.metrics.SweepDuration.Observe(e.clock.Since(start).Seconds())
	e.ready.Store(true)

	if staled > 0 || archived > 0 {
		e.logger.Info("sweep complete", "sites", len(sites), "staled", staled, "archived", archived)
	}
	return nil
}

func (e *Engine) sweepOne(ctx context.Context, slug string, now time.Time, weigh domain.WeighFunc) (staled, archived int, err error) {
	unlock := e.lockSite(slug)
	defer unlock()

	cond, err := e.store.GetConditions(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}

	prevStatus := cond.CompositeStatus
	prevSurface := cond.AvgSurface
	prevCrowd := cond.AvgCrowd

	res := domain.SweepSite(cond, now, weigh)

	// A reporter's weight tier can shift between sweeps, moving the
	// composite even when no report aged out; persist that too.
	derivedMoved := statusChanged(prevStatus, cond.CompositeStatus) ||
		floatChanged(prevSurface, cond.AvgSurface) ||
		floatChanged(prevCrowd, cond.AvgCrowd)
	if res.Staled == 0 && len(res.Archived) == 0 && !derivedMoved {
		return 0, 0, nil
	}

	// Archive before dropping: a failed archive write must not lose reports,
	// so the trimmed record is only persisted after archival succeeds.
	if len(res.Archived) > 0 {
		if err := e.store.AppendArchive(ctx, slug, res.Archived); err != nil {
			return 0, 0, fmt.Errorf("archive reports: %w", err)
		}
	}

	cond.UpdatedAt = now
	if err := e.store.PutConditions(ctx, cond); err != nil {
		return 0, 0, fmt.Errorf("persist conditions: %w", err)
	}
	return res.Staled, len(res.Archived), nil
}

// publish emits events best-effort: delivery failure is logged, never
// propagated, because aggregation output is already persisted.
func (e *Engine) publish(ctx context.Context, events ...domain.ConditionEvent) {
	if e.events == nil || len(events) == 0 {
		return
	}
	if err := e.events.Publish(ctx, events...); err != nil {
		e.logger.Warn("publish condition events failed", "error", err, "count", len(events))
		return
	}
	for _, ev := range events {
		e.metrics.EventsPublished.WithLabelValues(ev.Kind).Inc()
	}
}

func (e *Engine) lockSite(slug string) func() {
	e.mu.Lock()
	m, ok := e.siteLocks[slug]
	if !ok {
		m = &sync.Mutex{}
		e.siteLocks[slug] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func statusChanged(prev, cur *domain.Status) bool {
	if prev == nil && cur == nil {
		return false
	}
	if prev == nil || cur == nil {
		return true
	}
	return *prev != *cur
}

func floatChanged(prev, cur *float64) bool {
	if prev == nil || cur == nil {
		return prev != cur
	}
	return *prev != *cur
}

func statusString(s *domain.Status) string {
	if s == nil {
		return "null"
	}
	return string(*s)
}
