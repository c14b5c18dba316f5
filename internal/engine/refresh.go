package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parkcheck/conditions-engine/internal/domain"
	"github.com/parkcheck/conditions-engine/internal/store"
)

// RefreshWeather runs one weather cycle: fetch a snapshot, detect the
// rain-stopped transition and reset site composites, recompute the dry-out
// estimate for every site, and emit the resulting events. A fetch failure
// skips the cycle and keeps the previous snapshot and estimates in place.
func (e *Engine) RefreshWeather(ctx context.Context) error {
	if e.fetcher == nil {
		e.metrics.WeatherRefreshes.WithLabelValues("skipped").Inc()
		return nil
	}

	prev, err := e.store.GetWeather(ctx)
	if errors.Is(err, store.ErrNotFound) {
		prev = nil
	} else if err != nil {
		return fmt.Errorf("load previous weather: %w", err)
	}

	snap, err := e.fetcher.Fetch(ctx, prev)
	if err != nil {
		e.metrics.WeatherRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: fetch weather: %v", domain.ErrUpstreamUnavailable, err)
	}
	if err := e.store.PutWeather(ctx, snap); err != nil {
		return fmt.Errorf("persist weather: %w", err)
	}

	now := e.clock.Now().UTC()

	if domain.RainStopped(prev, snap) {
		if err := e.rainReset(ctx, now); err != nil {
			e.logger.Error("rain reset failed", "error", err)
		} else {
			e.publish(ctx, domain.ConditionEvent{Kind: domain.EventRainReset, OccurredAt: now})
		}
	}

	if err := e.recomputeEstimates(ctx, snap, now); err != nil {
		return err
	}

	if domain.RainIncoming(snap) && !domain.RainIncoming(prev) {
		e.publish(ctx, domain.ConditionEvent{Kind: domain.EventRainIncoming, OccurredAt: now})
	}

	e.metrics.WeatherRefreshes.WithLabelValues("success").Inc()
	e.logger.Info("weather refreshed",
		"conditions", snap.Current.Conditions,
		"precip_1h", snap.Current.PrecipLast1h,
		"recent_rain", snap.Current.RecentRain,
	)
	return nil
}

// rainReset invalidates every site's composite status after system-wide rain
// stops, so the next composite is built from post-rain reports only.
func (e *Engine) rainReset(ctx context.Context, now time.Time) error {
	sites, err := e.store.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}

	reset := 0
	for _, site := range sites {
		unlock := e.lockSite(site.Slug)
		cond, err := e.store.GetConditions(ctx, site.Slug)
		if errors.Is(err, store.ErrNotFound) {
			unlock()
			continue
		}
		if err != nil {
			unlock()
			return fmt.Errorf("load conditions %s: %w", site.Slug, err)
		}
		domain.RainReset(cond, now)
		cond.UpdatedAt = now
		err = e.store.PutConditions(ctx, cond)
		unlock()
		if err != nil {
			return fmt.Errorf("persist conditions %s: %w", site.Slug, err)
		}
		reset++
	}

	e.metrics.RainResets.Add(float64(reset))
	e.logger.Info("rain stopped, site composites reset", "sites", reset)
	return nil
}

// recomputeEstimates rebuilds the dry-out output document for every site and
// emits a site_dried event for each site that transitioned to dry since the
// previous cycle.
func (e *Engine) recomputeEstimates(ctx context.Context, snap *domain.WeatherSnapshot, now time.Time) error {
	sites, err := e.store.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}

	prevEst, err := e.store.GetEstimates(ctx)
	if errors.Is(err, store.ErrNotFound) {
		prevEst = nil
	} else if err != nil {
		return fmt.Errorf("load previous estimates: %w", err)
	}

	est := &domain.DryEstimates{
		ComputedAt:      now,
		LastRainEndedAt: snap.Current.LastRainAt,
		Estimates:       make(map[string]domain.DryEstimate, len(sites)),
	}

	dry := 0
	for _, site := range sites {
		de := domain.EstimateDry(site, *snap, now)
		est.Estimates[site.Slug] = de
		e.metrics.EstimatesComputed.Inc()
		if de.IsDry {
			dry++
		}
		if prevEst != nil {
			if p, ok := prevEst.Estimates[site.Slug]; ok && !p.IsDry && de.IsDry {
				e.publish(ctx, domain.ConditionEvent{
					Kind:       domain.EventSiteDried,
					Site:       site.Slug,
					OccurredAt: now,
				})
			}
		}
	}

	if err := e.store.PutEstimates(ctx, est); err != nil {
		return fmt.Errorf("persist estimates: %w", err)
	}
	e.metrics.SitesDry.Set(float64(dry))
	return nil
}
