package domain

import "time"

// Report lifecycle age thresholds.
const (
	// StaleAfter marks a report stale in place; it stays in the active list
	// but no longer matches the freshness window.
	StaleAfter = 4 * time.Hour

	// ArchiveAfter moves a report to permanent per-day archival storage.
	ArchiveAfter = 12 * time.Hour
)

// SweepResult summarizes one sweep pass over a site.
type SweepResult struct {
	Staled   int
	Archived []Report
}

// SweepSite ages the site's reports at the given instant: age > 12h is
// removed for archival, 4h < age <= 12h is marked stale in place, age <= 4h
// is untouched. Afterwards the composite is recomputed from the surviving
// non-stale reports, which matches the 4h freshness rule exactly: running
// the sweep twice in a row with no new reports is a no-op apart from
// UpdatedAt, which the caller owns.
func SweepSite(cond *SiteConditions, now time.Time, weigh WeighFunc) SweepResult {
	var res SweepResult
	remaining := make([]Report, 0, len(cond.Reports))

	for _, r := range cond.Reports {
		age := now.Sub(r.CreatedAt)
		switch {
		case age > ArchiveAfter:
			res.Archived = append(res.Archived, r)
		case age > StaleAfter:
			if !r.Stale {
				r.Stale = true
				res.Staled++
			}
			remaining = append(remaining, r)
		default:
			remaining = append(remaining, r)
		}
	}

	cond.Reports = remaining
	RecomputeComposite(cond, now, weigh)
	return res
}

// ArchiveDay returns the UTC year/month/day archive key for a report,
// derived from the report's own timestamp, formatted YYYY/MM/DD.
func ArchiveDay(r Report) string {
	return r.CreatedAt.UTC().Format("2006/01/02")
}

// RainReset forcibly clears a site's composite status after system-wide rain
// has stopped, so the next composite is rebuilt from post-rain reports.
// Active reports stay in place; only the derived status is invalidated.
func RainReset(cond *SiteConditions, now time.Time) {
	cond.CompositeStatus = nil
	t := now
	cond.RainResetAt = &t
}
