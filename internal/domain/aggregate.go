package domain

import (
	"math"
	"sort"
	"time"
)

const (
	// FreshnessWindow is the trailing interval within which a report
	// participates in composite computation.
	FreshnessWindow = 4 * time.Hour

	// MaxStoredReports caps the active report list per site. Truncation is
	// purely by recency; older entries are archived by the sweeper, never
	// silently dropped. Lifetime reportCount is unaffected.
	MaxStoredReports = 20
)

// WeighFunc returns the vote weight for a reporter id.
type WeighFunc func(reporterID string) float64

// InsertReport adds a report at the head of the site's list (newest first),
// truncates to MaxStoredReports, and bumps the lifetime count. A report whose
// ID is already present is a replay: the record is returned unchanged and the
// second return value is false.
func InsertReport(cond *SiteConditions, report Report) bool {
	for _, r := range cond.Reports {
		if r.ID == report.ID {
			return false
		}
	}
	cond.Reports = append([]Report{report}, cond.Reports...)
	if len(cond.Reports) > MaxStoredReports {
		cond.Reports = cond.Reports[:MaxStoredReports]
	}
	cond.ReportCount++
	t := report.CreatedAt
	cond.LastReportAt = &t
	return true
}

// RecomputeComposite rebuilds compositeStatus, the weighted averages, and the
// active hazard set from the reports inside the freshness window at the given
// instant. Derived fields are null, never stale leftovers, when no report is
// fresh. The caller owns UpdatedAt.
func RecomputeComposite(cond *SiteConditions, now time.Time, weigh WeighFunc) {
	fresh := make([]Report, 0, len(cond.Reports))
	for _, r := range cond.Reports {
		if now.Sub(r.CreatedAt) < FreshnessWindow {
			fresh = append(fresh, r)
		}
	}

	cond.CompositeStatus = voteStatus(fresh, weigh)
	cond.AvgSurface = weightedAverage(fresh, weigh, func(r Report) *int { return r.Surface })
	cond.AvgCrowd = weightedAverage(fresh, weigh, func(r Report) *int { return r.Crowd })
	cond.ActiveHazards = hazardUnion(fresh)
}

// voteStatus runs the weighted plurality vote. Tallies accumulate in
// first-encountered order walking the list newest-first; the descending sort
// is stable, so an exact tie goes to the status seen first. Returns nil when
// no fresh report carries a status.
func voteStatus(fresh []Report, weigh WeighFunc) *Status {
	type tally struct {
		status Status
		weight float64
	}
	var tallies []tally
	index := map[Status]int{}

	for _, r := range fresh {
		if r.Status == nil {
			continue
		}
		w := weigh(r.ReporterID)
		if i, ok := index[*r.Status]; ok {
			tallies[i].weight += w
		} else {
			index[*r.Status] = len(tallies)
			tallies = append(tallies, tally{status: *r.Status, weight: w})
		}
	}
	if len(tallies) == 0 {
		return nil
	}

	sort.SliceStable(tallies, func(i, j int) bool { return tallies[i].weight > tallies[j].weight })
	winner := tallies[0].status
	return &winner
}

// weightedAverage computes Σ(value×weight)/Σ(weight) over fresh reports with
// a non-null value, rounded to one decimal place. Nil when no report
// supplies the field.
func weightedAverage(fresh []Report, weigh WeighFunc, field func(Report) *int) *float64 {
	var sumW, sumV float64
	for _, r := range fresh {
		v := field(r)
		if v == nil {
			continue
		}
		w := weigh(r.ReporterID)
		sumW += w
		sumV += float64(*v) * w
	}
	if sumW == 0 {
		return nil
	}
	avg := RoundTenth(sumV / sumW)
	return &avg
}

// hazardUnion collects every hazard tag across fresh reports, unweighted,
// first-encountered order.
func hazardUnion(fresh []Report) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, r := range fresh {
		for _, h := range r.Hazards {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}

// RoundTenth rounds to one decimal place.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
