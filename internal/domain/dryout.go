package domain

import (
	"fmt"
	"time"
)

// Drying-model constants. These tables are exact contracts: the estimate is a
// pure, deterministic function of observable state, so golden tests can pin
// the numeric output.

// dryHistoryWindow: rain older than this means the site is simply dry.
const dryHistoryWindow = 24 * time.Hour

// surfaceModifiers scales drying time by surface material.
var surfaceModifiers = map[string]float64{
	"smooth_concrete": 1.0,
	"rough_concrete":  1.3,
	"asphalt":         0.9,
	"coated":          0.8,
}

// drainageModifiers scales drying time by how well the site sheds water.
var drainageModifiers = map[string]float64{
	"excellent": 0.6,
	"average":   1.0,
	"poor":      1.5,
}

// coveredNotePct: sites with more covered area than this get a partial-use
// advisory attached to their estimate.
const coveredNotePct = 30

// baseDryHours maps 3-hour precipitation (mm) to a base drying time.
func baseDryHours(precipMM float64) float64 {
	switch {
	case precipMM < 2:
		return 2
	case precipMM < 10:
		return 4
	case precipMM < 25:
		return 6
	default:
		return 10
	}
}

// sunModifier depends on exposure, time of day, and cloud cover fraction.
// Daylight is hour in [7,18) at the evaluation instant. More cloud means a
// sunny spot dries slower; full shade is always slowest.
func sunModifier(exposure string, now time.Time, cloudFrac float64) float64 {
	hour := now.Hour()
	daylight := hour >= 7 && hour < 18
	switch exposure {
	case "full_sun":
		if daylight {
			return 0.5 + 0.4*cloudFrac
		}
		return 1.2
	case "partial_shade":
		if daylight {
			return 0.7 + 0.3*cloudFrac
		}
		return 1.2
	case "full_shade":
		return 1.4
	default:
		return 1.0
	}
}

func windModifier(windSpeed int) float64 {
	switch {
	case windSpeed > 20:
		return 0.6
	case windSpeed > 10:
		return 0.8
	default:
		return 1.0
	}
}

func tableModifier(table map[string]float64, key string) float64 {
	if m, ok := table[key]; ok {
		return m
	}
	return 1.0
}

// dryConfidence grades the estimate by the precipitation magnitude it was
// computed from: light rain dries predictably, heavy rain does not.
func dryConfidence(precipMM float64) Confidence {
	switch {
	case precipMM < 5:
		return ConfidenceHigh
	case precipMM < 15:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// EstimateDry converts the latest weather snapshot plus a site's static
// attributes into a dry-out estimate at the given instant. Pure function:
// identical arguments yield identical output, including Factors.
func EstimateDry(site Site, weather WeatherSnapshot, now time.Time) DryEstimate {
	lastRainAt := weather.Current.LastRainAt
	if lastRainAt == nil || now.Sub(*lastRainAt) > dryHistoryWindow {
		return DryEstimate{IsDry: true}
	}

	if weather.Current.PrecipLast1h > 0 {
		return DryEstimate{
			IsDry:      false,
			Confidence: ConfidenceLow,
			Note:       "Currently raining; estimate available after rain stops",
		}
	}

	precip := weather.Current.PrecipLast3h
	if precip == 0 {
		precip = weather.Current.PrecipLast1h
	}

	base := baseDryHours(precip)
	surfMod := tableModifier(surfaceModifiers, site.SurfaceType)
	sunMod := sunModifier(site.SunExposure, now, float64(weather.Current.CloudCover)/100)
	drainMod := tableModifier(drainageModifiers, site.Drainage)
	windMod := windModifier(weather.Current.WindSpeed)

	totalDryHours := base * surfMod * sunMod * drainMod * windMod
	dryAt := lastRainAt.Add(time.Duration(totalDryHours * float64(time.Hour)))

	est := DryEstimate{
		IsDry:          now.After(dryAt),
		EstimatedDryAt: &dryAt,
		Confidence:     dryConfidence(precip),
		Factors: &DryFactors{
			BaseDryHours:     base,
			SurfaceModifier:  surfMod,
			SunModifier:      sunMod,
			DrainageModifier: drainMod,
			WindModifier:     windMod,
			TotalDryHours:    RoundTenth(totalDryHours),
		},
	}
	if site.CoveredPct > coveredNotePct {
		est.Note = coveredNote(site.CoveredPct)
	}
	return est
}

func coveredNote(pct int) string {
	return fmt.Sprintf("~%d%% covered area likely dry", pct)
}

// RainStopped is the rain-reset predicate: true exactly on the system-wide
// transition from raining to not raining between two consecutive snapshots.
func RainStopped(prev, cur *WeatherSnapshot) bool {
	if prev == nil || cur == nil {
		return false
	}
	return prev.Current.PrecipLast1h > 0 && cur.Current.PrecipLast1h == 0
}

// RainIncoming reports whether either of the next two forecast hours carries
// a rain probability above 60%.
func RainIncoming(weather *WeatherSnapshot) bool {
	if weather == nil {
		return false
	}
	n := len(weather.Hourly)
	if n > 2 {
		n = 2
	}
	for _, h := range weather.Hourly[:n] {
		if h.Pop > 0.6 {
			return true
		}
	}
	return false
}
