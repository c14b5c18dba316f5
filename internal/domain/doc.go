// Package domain models crowd-sourced park condition reports and the
// aggregation rules that turn them into a single trustworthy status per site.
//
// # Data Source
//
// Condition reports originate from the parkcheck submission front door (a
// free-text parser running upstream), which publishes each report as flat
// JSON to the submissions topic. A report carries the park slug, an optional
// condition status, optional 1-5 surface and crowd scores, hazard tags, and
// the reporter's pseudonymous nickname or verified identity.
//
// # Composite Status
//
// A site's composite status is a reputation-weighted plurality vote over the
// reports inside the 4-hour freshness window. Each fresh report with a status
// adds the reporter's weight to that status's tally; the highest tally wins.
// Ties break in favor of the status first encountered while walking the
// report list newest-first (the tally sort is stable), so the outcome is
// deterministic for a fixed report list. Surface and crowd averages are
// weighted means over the same window, rounded to one decimal place. All
// derived fields are null, never stale leftovers, when no report is fresh.
//
// # Reputation
//
// Reporter trust is a step function of accumulated points:
//
//	>= 2000  legend   weight 3.0
//	>=  500  local    weight 2.0
//	>=  100  regular  weight 1.5
//	else     rookie   weight 1.0
//
// Anonymous reporters weigh 0.5; a nickname never seen before weighs 0.7.
// Each accepted report earns 10 points, +20 for being first at a site within
// six hours of system-wide rain, +5 on the verified channel when a photo is
// attached. Streaks count consecutive UTC report-days.
//
// # Dry-Out Model
//
// The dry-out estimator is a pure function of the latest weather snapshot and
// a site's static attributes. A base drying time derived from 3-hour
// precipitation (2/4/6/10 hours) is scaled by four independent multiplicative
// modifiers: surface material, sun exposure (time-of-day and cloud-cover
// aware), drainage, and wind. The intermediate factors are retained in the
// output so estimates can be audited and pinned by golden tests.
//
// # Lifecycle
//
// Reports age through three states: untouched (<= 4h), stale (4-12h, marked
// in place), archived (> 12h, moved to per-UTC-day archive storage keyed by
// the report's own timestamp). A system-wide rain-to-clear transition forces
// every site's composite status back to null so the next composite is built
// from post-rain reports only.
//
// # ID Generation
//
// Report IDs are deterministic SHA-256 hashes of the submission's content
// fields. Upstream delivery is at-least-once; content-based IDs make replays
// of the same submission a no-op during aggregation. See [reportID].
//
// All functions in this package are pure: the evaluation instant is always an
// explicit argument, never the wall clock.
package domain
