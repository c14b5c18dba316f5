package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedWeights builds a WeighFunc from a map, defaulting to 1.0.
func fixedWeights(m map[string]float64) WeighFunc {
	return func(id string) float64 {
		if w, ok := m[id]; ok {
			return w
		}
		return 1.0
	}
}

func unitWeights(string) float64 { return 1.0 }

func reportAt(id, reporter string, status *Status, age time.Duration, now time.Time) Report {
	return Report{
		ID:         id,
		ReporterID: reporter,
		CreatedAt:  now.Add(-age),
		Status:     status,
	}
}

func TestInsertReport(t *testing.T) {
	now := testTime()

	t.Run("inserts at head and bumps lifetime count", func(t *testing.T) {
		cond := NewSiteConditions("riverside")
		first := reportAt("r1", "a", statusPtr(StatusDry), time.Hour, now)
		second := reportAt("r2", "b", statusPtr(StatusWet), 0, now)

		require.True(t, InsertReport(cond, first))
		require.True(t, InsertReport(cond, second))

		assert.Equal(t, "r2", cond.Reports[0].ID)
		assert.Equal(t, "r1", cond.Reports[1].ID)
		assert.Equal(t, 2, cond.ReportCount)
		require.NotNil(t, cond.LastReportAt)
		assert.Equal(t, second.CreatedAt, *cond.LastReportAt)
	})

	t.Run("replay of identical report is a no-op", func(t *testing.T) {
		cond := NewSiteConditions("riverside")
		report := reportAt("r1", "a", statusPtr(StatusDry), 0, now)

		require.True(t, InsertReport(cond, report))
		assert.False(t, InsertReport(cond, report))

		assert.Len(t, cond.Reports, 1)
		assert.Equal(t, 1, cond.ReportCount)
	})

	t.Run("truncates to cap by recency, count untouched", func(t *testing.T) {
		cond := NewSiteConditions("riverside")
		for i := 0; i < MaxStoredReports+5; i++ {
			r := reportAt(fmt.Sprintf("r%d", i), "a", statusPtr(StatusDry), time.Duration(i)*time.Minute, now)
			require.True(t, InsertReport(cond, r))
		}

		assert.Len(t, cond.Reports, MaxStoredReports)
		assert.Equal(t, MaxStoredReports+5, cond.ReportCount)
	})
}

func TestRecomputeComposite(t *testing.T) {
	now := testTime()

	t.Run("weighted plurality vote", func(t *testing.T) {
		// Weights 1.0 "dry", 2.0 "wet", 1.0 "wet" -> dry=1.0, wet=3.0.
		cond := NewSiteConditions("riverside")
		cond.Reports = []Report{
			reportAt("r1", "rookie1", statusPtr(StatusDry), 30*time.Minute, now),
			reportAt("r2", "local1", statusPtr(StatusWet), 40*time.Minute, now),
			reportAt("r3", "rookie2", statusPtr(StatusWet), 50*time.Minute, now),
		}

		RecomputeComposite(cond, now, fixedWeights(map[string]float64{"local1": 2.0}))

		require.NotNil(t, cond.CompositeStatus)
		assert.Equal(t, StatusWet, *cond.CompositeStatus)
	})

	t.Run("tie breaks to first-encountered status", func(t *testing.T) {
		cond := NewSiteConditions("riverside")
		cond.Reports = []Report{
			reportAt("r1", "a", statusPtr(StatusPartiallyWet), 10*time.Minute, now),
			reportAt("r2", "b", statusPtr(StatusDry), 20*time.Minute, now),
		}

		// Equal weights: partially_wet is encountered first walking
		// newest-first, so the stable sort keeps it on top.
		RecomputeComposite(cond, now, unitWeights)

		require.NotNil(t, cond.CompositeStatus)
		assert.Equal(t, StatusPartiallyWet, *cond.CompositeStatus)
	})

	t.Run("reports outside window do not participate", func(t *testing.T) {
		cond := NewSiteConditions("riverside")
		cond.Reports = []Report{
			reportAt("r1", "a", statusPtr(StatusDry), time.Hour, now),
			reportAt("r2", "b", statusPtr(StatusWet), 5*time.Hour, now),
			reportAt("r3", "c", statusPtr(StatusWet), 6*time.Hour, now),
		}

		RecomputeComposite(cond, now, unitWeights)

		require.NotNil(t, cond.CompositeStatus)
		assert.Equal(t, StatusDry, *cond.CompositeStatus)
	})

	t.Run("all derived fields null when nothing is fresh", func(t *testing.T) {
		cond := NewSiteConditions("riverside")
		stale := reportAt("r1", "a", statusPtr(StatusWet), 5*time.Hour, now)
		stale.Surface = intPtr(4)
		stale.Hazards = []string{"glass"}
		cond.Reports = []Report{stale}

		RecomputeComposite(cond, now, unitWeights)

		assert.Nil(t, cond.CompositeStatus)
		assert.Nil(t, cond.AvgSurface)
		assert.Nil(t, cond.AvgCrowd)
		assert.Empty(t, cond.ActiveHazards)
	})

	t.Run("status null when fresh reports carry no status", func(t *testing.T) {
		cond := NewSiteConditions("riverside")
		r := reportAt("r1", "a", nil, 10*time.Minute, now)
		r.Surface = intPtr(4)
		cond.Reports = []Report{r}

		RecomputeComposite(cond, now, unitWeights)

		assert.Nil(t, cond.CompositeStatus)
		require.NotNil(t, cond.AvgSurface)
		assert.Equal(t, 4.0, *cond.AvgSurface)
	})

	t.Run("weighted averages rounded to one decimal", func(t *testing.T) {
		cond := NewSiteConditions("riverside")
		r1 := reportAt("r1", "local1", nil, 10*time.Minute, now)
		r1.Surface = intPtr(5)
		r1.Crowd = intPtr(2)
		r2 := reportAt("r2", "rookie1", nil, 20*time.Minute, now)
		r2.Surface = intPtr(2)
		cond.Reports = []Report{r1, r2}

		RecomputeComposite(cond, now, fixedWeights(map[string]float64{"local1": 2.0}))

		// surface: (5*2 + 2*1) / 3 = 4.0; crowd: only r1 -> 2.0
		require.NotNil(t, cond.AvgSurface)
		assert.Equal(t, 4.0, *cond.AvgSurface)
		require.NotNil(t, cond.AvgCrowd)
		assert.Equal(t, 2.0, *cond.AvgCrowd)
	})

	t.Run("hazard union unweighted", func(t *testing.T) {
		cond := NewSiteConditions("riverside")
		r1 := reportAt("r1", "a", nil, 10*time.Minute, now)
		r1.Hazards = []string{"glass", "puddles"}
		r2 := reportAt("r2", "b", nil, 20*time.Minute, now)
		r2.Hazards = []string{"puddles", "debris"}
		cond.Reports = []Report{r1, r2}

		RecomputeComposite(cond, now, unitWeights)

		assert.Equal(t, []string{"glass", "puddles", "debris"}, cond.ActiveHazards)
	})

	t.Run("deterministic across repeated runs", func(t *testing.T) {
		cond := NewSiteConditions("riverside")
		cond.Reports = []Report{
			reportAt("r1", "a", statusPtr(StatusWet), 10*time.Minute, now),
			reportAt("r2", "b", statusPtr(StatusDry), 20*time.Minute, now),
			reportAt("r3", "c", statusPtr(StatusClosed), 30*time.Minute, now),
		}

		RecomputeComposite(cond, now, unitWeights)
		first := *cond.CompositeStatus
		for i := 0; i < 50; i++ {
			RecomputeComposite(cond, now, unitWeights)
			assert.Equal(t, first, *cond.CompositeStatus)
		}
	})
}

func TestRoundTenth(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{3.14, 3.1},
		{3.15, 3.2},
		{3.0, 3.0},
		{2.666666, 2.7},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.input), func(t *testing.T) {
			assert.Equal(t, tt.expected, RoundTenth(tt.input))
		})
	}
}
