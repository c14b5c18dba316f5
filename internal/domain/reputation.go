package domain

import (
	"sort"
	"time"
)

// Level is a reporter's reputation tier.
type Level string

const (
	LevelRookie  Level = "rookie"
	LevelRegular Level = "regular"
	LevelLocal   Level = "local"
	LevelLegend  Level = "legend"
)

// LevelInfo describes one reputation tier. Levels and vote weights share the
// same point thresholds; both are load-bearing business rules pinned by tests.
type LevelInfo struct {
	Level     Level
	MinPoints int
	Weight    float64
}

// Levels lists the reputation tiers, highest first.
var Levels = []LevelInfo{
	{Level: LevelLegend, MinPoints: 2000, Weight: 3.0},
	{Level: LevelLocal, MinPoints: 500, Weight: 2.0},
	{Level: LevelRegular, MinPoints: 100, Weight: 1.5},
	{Level: LevelRookie, MinPoints: 0, Weight: 1.0},
}

// Reputation point awards.
const (
	PointsBase          = 10 // every accepted report
	PointsFirstParkWet  = 20 // first to report at a site within 6h of rain
	PointsVerifiedPhoto = 5  // verified channel, at least one photo attached
)

// Weights for reporters outside the tier table.
const (
	WeightAnonymous = 0.5 // no nickname, or explicitly anonymous
	WeightUnseen    = 0.7 // nickname with no ledger entry yet
)

// rainBonusWindow is the lookback for the first-after-rain bonus. It is
// deliberately wider than the 4h aggregation freshness window.
const rainBonusWindow = 6 * time.Hour

// LevelFor returns the tier a reputation score falls into.
func LevelFor(reputation int) Level {
	for _, l := range Levels {
		if reputation >= l.MinPoints {
			return l.Level
		}
	}
	return LevelRookie
}

// WeightOf returns the vote weight for a reporter. A nil ledger (upstream
// unavailable) treats every reporter as unseen rather than failing.
func WeightOf(ledger *StatsLedger, reporterID string) float64 {
	if reporterID == "" || reporterID == AnonymousReporter {
		return WeightAnonymous
	}
	if ledger == nil {
		return WeightUnseen
	}
	profile := ledger.Find(reporterID)
	if profile == nil {
		return WeightUnseen
	}
	for _, l := range Levels {
		if profile.Reputation >= l.MinPoints {
			return l.Weight
		}
	}
	return WeightUnseen
}

// CheckDailyQuota rejects when the reporter has already had maxPerDay reports
// accepted in the current UTC day. Anonymous reporters are not tracked and
// never rate-limited here.
func CheckDailyQuota(ledger *StatsLedger, reporterID string, now time.Time, maxPerDay int) error {
	if ledger == nil || maxPerDay <= 0 || reporterID == "" || reporterID == AnonymousReporter {
		return nil
	}
	profile := ledger.Find(reporterID)
	if profile == nil {
		return nil
	}
	if profile.LastReportAt == nil || !sameUTCDay(*profile.LastReportAt, now) {
		return nil // counter resets on the next recorded report
	}
	if profile.TodayReportCount >= maxPerDay {
		return RateLimitRejection("daily report limit reached (%d/day)", maxPerDay)
	}
	return nil
}

// RecordReport applies an accepted report's reputation effects to the ledger:
// points, level, streak, park set, and today-counter. It consults the current
// weather snapshot and the site's pre-insertion report history for the
// first-after-rain bonus. Reputation and level are recomputed synchronously;
// there is no batch recompute. Anonymous reporters leave the ledger untouched
// and return nil.
func RecordReport(ledger *StatsLedger, report Report, weather *WeatherSnapshot, cond *SiteConditions, now time.Time) *ReporterProfile {
	if report.ReporterID == "" || report.ReporterID == AnonymousReporter {
		return nil
	}

	profile := ledger.Find(report.ReporterID)
	if profile == nil {
		profile = &ReporterProfile{
			ID:       report.ReporterID,
			Level:    LevelRookie,
			Parks:    []string{},
			JoinedAt: now,
		}
		ledger.Reporters = append(ledger.Reporters, profile)
	}

	points := PointsBase
	if firstAfterRain(report, weather, cond, now) {
		points += PointsFirstParkWet
	}
	if report.Verified && len(report.Photos) > 0 {
		points += PointsVerifiedPhoto
	}

	// Streak and today-counter depend on the previous lastReportAt, so they
	// are computed before the timestamp moves forward.
	profile.Streak = nextStreak(profile, now)
	if profile.LastReportAt == nil || !sameUTCDay(*profile.LastReportAt, now) {
		profile.TodayReportCount = 0
	}
	profile.TodayReportCount++

	profile.ReportCount++
	profile.Reputation += points
	profile.Level = LevelFor(profile.Reputation)
	t := now
	profile.LastReportAt = &t

	if cond != nil && !containsString(profile.Parks, cond.Slug) {
		profile.Parks = append(profile.Parks, cond.Slug)
	}

	u := now
	ledger.UpdatedAt = &u
	return profile
}

// firstAfterRain reports whether this report earns the rain bonus: rain was
// recently detected system-wide and nobody else reported at the site within
// the 6h lookback. The per-site report history guarantees the bonus is paid
// at most once per site and rain event.
func firstAfterRain(report Report, weather *WeatherSnapshot, cond *SiteConditions, now time.Time) bool {
	if weather == nil || !weather.Current.RecentRain || cond == nil {
		return false
	}
	for _, r := range cond.Reports {
		if r.ReporterID != report.ReporterID && now.Sub(r.CreatedAt) < rainBonusWindow {
			return false
		}
	}
	return true
}

// nextStreak computes the consecutive-report-day streak: last report
// yesterday extends it, last report today leaves it unchanged, anything else
// resets to 1.
func nextStreak(profile *ReporterProfile, now time.Time) int {
	if profile.LastReportAt == nil {
		return 1
	}
	last := *profile.LastReportAt
	switch {
	case sameUTCDay(last, now):
		return profile.Streak
	case sameUTCDay(last, now.AddDate(0, 0, -1)):
		return profile.Streak + 1
	default:
		return 1
	}
}

// Leaderboard returns the ledger's reporters ordered by reputation,
// optionally limited to those active within the trailing period ("week",
// "month", or "" for all time). Ties keep ledger order.
func Leaderboard(ledger *StatsLedger, period string, now time.Time) []*ReporterProfile {
	if ledger == nil {
		return nil
	}
	var cutoff time.Duration
	switch period {
	case "week":
		cutoff = 7 * 24 * time.Hour
	case "month":
		cutoff = 30 * 24 * time.Hour
	}

	out := make([]*ReporterProfile, 0, len(ledger.Reporters))
	for _, r := range ledger.Reporters {
		if cutoff > 0 && (r.LastReportAt == nil || now.Sub(*r.LastReportAt) >= cutoff) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Reputation > out[j].Reputation })
	return out
}

// LevelProgress reports how far a reputation score is toward the next tier:
// the current tier, the next one (nil at the top), and a 0-100 percentage.
func LevelProgress(reputation int) (current LevelInfo, next *LevelInfo, pct int) {
	idx := len(Levels) - 1
	for i, l := range Levels {
		if reputation >= l.MinPoints {
			idx = i
			break
		}
	}
	current = Levels[idx]
	if idx == 0 {
		return current, nil, 100
	}
	n := Levels[idx-1]
	span := n.MinPoints - current.MinPoints
	progress := reputation - current.MinPoints
	pct = progress * 100 / span
	if pct > 100 {
		pct = 100
	}
	return current, &n, pct
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
