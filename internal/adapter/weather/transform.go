package weather

import (
	"math"
	"strings"
	"time"

	"github.com/parkcheck/conditions-engine/internal/domain"
)

// recentRainWindow marks how long after rain the system still considers it
// "recent" for the first-after-rain bonus.
const recentRainWindow = 6 * time.Hour

// hourlyHistoryDepth bounds how far back the hourly entries are scanned for
// the most recent rain observation.
const hourlyHistoryDepth = 24

// maxHourlyKept caps the forecast entries carried in the snapshot.
const maxHourlyKept = 48

// transform maps a raw One Call payload into a snapshot at the given
// instant. lastRainAt resolution order: currently raining wins, then the
// newest rainy hourly entry in the past, then the previous snapshot's value.
func transform(raw oneCallResponse, prev *domain.WeatherSnapshot, now time.Time) *domain.WeatherSnapshot {
	rain1h := raw.Current.Rain["1h"]
	rain3h := raw.Current.Rain["3h"]
	if rain3h == 0 {
		rain3h = rain1h
	}

	var lastRainAt *time.Time
	if rain1h > 0 {
		t := now
		lastRainAt = &t
	} else {
		lastRainAt = lastRainFromHourly(raw.Hourly, now)
	}
	if lastRainAt == nil && prev != nil {
		lastRainAt = prev.Current.LastRainAt
	}

	cur := domain.CurrentWeather{
		Temp:         round(raw.Current.Temp),
		FeelsLike:    round(raw.Current.FeelsLike),
		Humidity:     raw.Current.Humidity,
		WindSpeed:    round(raw.Current.WindSpeed),
		WindGust:     round(raw.Current.WindGust),
		CloudCover:   raw.Current.Clouds,
		Visibility:   raw.Current.Visibility,
		LastRainAt:   lastRainAt,
		PrecipLast1h: rain1h,
		PrecipLast3h: rain3h,
		RecentRain:   lastRainAt != nil && now.Sub(*lastRainAt) < recentRainWindow,
	}
	if cur.WindGust == 0 {
		cur.WindGust = cur.WindSpeed
	}
	if len(raw.Current.Weather) > 0 {
		w := raw.Current.Weather[0]
		cur.Conditions = strings.ToLower(w.Main)
		cur.Description = w.Description
		cur.Icon = w.Icon
	} else {
		cur.Conditions = "unknown"
	}

	snap := &domain.WeatherSnapshot{
		FetchedAt: now,
		Current:   cur,
		Hourly:    transformHourly(raw.Hourly),
		Alerts:    transformAlerts(raw.Alerts),
	}
	return snap
}

// lastRainFromHourly returns the newest hourly entry in the past that
// recorded rain, or nil.
func lastRainFromHourly(hourly []oneCallHourly, now time.Time) *time.Time {
	var last *time.Time
	n := len(hourly)
	if n > hourlyHistoryDepth {
		n = hourlyHistoryDepth
	}
	for _, h := range hourly[:n] {
		at := time.Unix(h.Dt, 0).UTC()
		if h.Rain["1h"] > 0 && at.Before(now) {
			if last == nil || at.After(*last) {
				t := at
				last = &t
			}
		}
	}
	return last
}

func transformHourly(hourly []oneCallHourly) []domain.HourlyForecast {
	n := len(hourly)
	if n > maxHourlyKept {
		n = maxHourlyKept
	}
	out := make([]domain.HourlyForecast, 0, n)
	for _, h := range hourly[:n] {
		f := domain.HourlyForecast{
			Dt:         time.Unix(h.Dt, 0).UTC(),
			Temp:       round(h.Temp),
			Pop:        h.Pop,
			Rain1h:     h.Rain["1h"],
			CloudCover: h.Clouds,
			WindSpeed:  round(h.WindSpeed),
		}
		if len(h.Weather) > 0 {
			f.Conditions = strings.ToLower(h.Weather[0].Main)
			f.Icon = h.Weather[0].Icon
		} else {
			f.Conditions = "unknown"
		}
		out = append(out, f)
	}
	return out
}

func transformAlerts(alerts []oneCallAlert) []domain.WeatherAlert {
	if len(alerts) == 0 {
		return nil
	}
	out := make([]domain.WeatherAlert, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, domain.WeatherAlert{
			Event:       a.Event,
			Sender:      a.SenderName,
			Start:       time.Unix(a.Start, 0).UTC(),
			End:         time.Unix(a.End, 0).UTC(),
			Description: a.Description,
		})
	}
	return out
}

func round(v float64) int {
	return int(math.Round(v))
}
