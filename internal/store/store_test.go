package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkcheck/conditions-engine/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	site := domain.Site{
		Slug:        "riverside",
		Name:        "Riverside Park",
		SurfaceType: "smooth_concrete",
		SunExposure: "full_sun",
		Drainage:    "excellent",
		CoveredPct:  10,
	}
	require.NoError(t, s.PutSite(ctx, site))

	t.Run("round trip", func(t *testing.T) {
		got, err := s.GetSite(ctx, "riverside")
		require.NoError(t, err)
		assert.Equal(t, site, got)
	})

	t.Run("has site", func(t *testing.T) {
		known, err := s.HasSite(ctx, "riverside")
		require.NoError(t, err)
		assert.True(t, known)

		known, err = s.HasSite(ctx, "nowhere")
		require.NoError(t, err)
		assert.False(t, known)
	})

	t.Run("missing site", func(t *testing.T) {
		_, err := s.GetSite(ctx, "nowhere")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		updated := site
		updated.Drainage = "poor"
		require.NoError(t, s.PutSite(ctx, updated))

		got, err := s.GetSite(ctx, "riverside")
		require.NoError(t, err)
		assert.Equal(t, "poor", got.Drainage)
	})

	t.Run("list ordered by slug", func(t *testing.T) {
		require.NoError(t, s.PutSite(ctx, domain.Site{Slug: "astoria"}))

		sites, err := s.ListSites(ctx)
		require.NoError(t, err)
		require.Len(t, sites, 2)
		assert.Equal(t, "astoria", sites[0].Slug)
		assert.Equal(t, "riverside", sites[1].Slug)
	})
}

func TestHasSiteLookupFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutSite(ctx, domain.Site{Slug: "riverside"}))
	require.NoError(t, s.Close())

	// A broken store must not masquerade as "slug does not exist".
	_, err := s.HasSite(ctx, "riverside")
	assert.Error(t, err)
}

func TestConditionsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 14, 15, 0, 0, 0, time.UTC)

	status := domain.StatusWet
	cond := domain.NewSiteConditions("riverside")
	cond.CompositeStatus = &status
	cond.ReportCount = 7
	cond.UpdatedAt = now
	cond.Reports = []domain.Report{
		{ID: "r1", ReporterID: "a", CreatedAt: now, Status: &status},
	}

	require.NoError(t, s.PutConditions(ctx, cond))

	got, err := s.GetConditions(ctx, "riverside")
	require.NoError(t, err)
	assert.Equal(t, cond.Slug, got.Slug)
	require.NotNil(t, got.CompositeStatus)
	assert.Equal(t, domain.StatusWet, *got.CompositeStatus)
	assert.Equal(t, 7, got.ReportCount)
	require.Len(t, got.Reports, 1)
	assert.Equal(t, "r1", got.Reports[0].ID)

	t.Run("missing conditions", func(t *testing.T) {
		_, err := s.GetConditions(ctx, "nowhere")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConditionsSanitizedOnRead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Write a record with an out-of-range surface score directly, simulating
	// a corrupted document from an earlier version.
	bad := 9
	cond := domain.NewSiteConditions("riverside")
	cond.Reports = []domain.Report{{ID: "r1", ReporterID: "a", Surface: &bad}}
	require.NoError(t, s.PutConditions(ctx, cond))

	got, err := s.GetConditions(ctx, "riverside")
	require.NoError(t, err)
	assert.Nil(t, got.Reports[0].Surface)
}

func TestLedgerRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	t.Run("empty ledger before first write", func(t *testing.T) {
		ledger, err := s.GetLedger(ctx)
		require.NoError(t, err)
		assert.Empty(t, ledger.Reporters)
	})

	t.Run("round trip", func(t *testing.T) {
		now := time.Date(2025, 5, 14, 15, 0, 0, 0, time.UTC)
		ledger := &domain.StatsLedger{
			UpdatedAt: &now,
			Reporters: []*domain.ReporterProfile{
				{ID: "kickflip_kid", Reputation: 150, Level: domain.LevelRegular, Parks: []string{"riverside"}},
			},
		}
		require.NoError(t, s.PutLedger(ctx, ledger))

		got, err := s.GetLedger(ctx)
		require.NoError(t, err)
		require.Len(t, got.Reporters, 1)
		assert.Equal(t, 150, got.Reporters[0].Reputation)
		assert.Equal(t, domain.LevelRegular, got.Reporters[0].Level)
	})
}

func TestWeatherAndEstimates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 14, 15, 0, 0, 0, time.UTC)

	t.Run("weather not found before first fetch", func(t *testing.T) {
		_, err := s.GetWeather(ctx)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("weather singleton replaced on write", func(t *testing.T) {
		first := &domain.WeatherSnapshot{FetchedAt: now, Current: domain.CurrentWeather{Temp: 60}}
		require.NoError(t, s.PutWeather(ctx, first))
		second := &domain.WeatherSnapshot{FetchedAt: now.Add(time.Hour), Current: domain.CurrentWeather{Temp: 65}}
		require.NoError(t, s.PutWeather(ctx, second))

		got, err := s.GetWeather(ctx)
		require.NoError(t, err)
		assert.Equal(t, 65, got.Current.Temp)
	})

	t.Run("estimates round trip", func(t *testing.T) {
		est := &domain.DryEstimates{
			ComputedAt: now,
			Estimates: map[string]domain.DryEstimate{
				"riverside": {IsDry: true},
			},
		}
		require.NoError(t, s.PutEstimates(ctx, est))

		got, err := s.GetEstimates(ctx)
		require.NoError(t, err)
		assert.True(t, got.Estimates["riverside"].IsDry)
	})
}

func TestArchiveAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 5, 13, 8, 0, 0, 0, time.UTC)

	first := domain.Report{ID: "r1", ReporterID: "a", CreatedAt: created}
	require.NoError(t, s.AppendArchive(ctx, "riverside", []domain.Report{first}))

	t.Run("accumulates across runs", func(t *testing.T) {
		second := domain.Report{ID: "r2", ReporterID: "b", CreatedAt: created.Add(time.Hour)}
		require.NoError(t, s.AppendArchive(ctx, "riverside", []domain.Report{second}))

		reports, err := s.ArchivedDay(ctx, "2025/05/13")
		require.NoError(t, err)
		assert.Len(t, reports, 2)
	})

	t.Run("re-archiving never overwrites", func(t *testing.T) {
		mutated := first
		mutated.Notes = "should not clobber the archived copy"
		require.NoError(t, s.AppendArchive(ctx, "riverside", []domain.Report{mutated}))

		reports, err := s.ArchivedDay(ctx, "2025/05/13")
		require.NoError(t, err)
		require.Len(t, reports, 2)
		for _, r := range reports {
			if r.ID == "r1" {
				assert.Empty(t, r.Notes)
			}
		}
	})

	t.Run("keyed by report timestamp day", func(t *testing.T) {
		other := domain.Report{ID: "r3", ReporterID: "c", CreatedAt: created.AddDate(0, 0, 1)}
		require.NoError(t, s.AppendArchive(ctx, "riverside", []domain.Report{other}))

		reports, err := s.ArchivedDay(ctx, "2025/05/14")
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, "r3", reports[0].ID)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		assert.NoError(t, s.AppendArchive(ctx, "riverside", nil))
	})
}
