package domain

import (
	"context"
	"time"
)

// Status is a reported park surface condition.
type Status string

// The four valid condition statuses. Nothing else may ever be persisted.
const (
	StatusDry          Status = "dry"
	StatusPartiallyWet Status = "partially_wet"
	StatusWet          Status = "wet"
	StatusClosed       Status = "closed"
)

// ValidStatus reports whether s is one of the four enumerated statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDry, StatusPartiallyWet, StatusWet, StatusClosed:
		return true
	}
	return false
}

// Submission is the flat JSON structure produced by the upstream front door.
// Surface and crowd are 0 when the reporter left them blank.
type Submission struct {
	Park       string    `json:"park"`
	Status     string    `json:"status"`
	Surface    int       `json:"surface,omitempty"`
	Crowd      int       `json:"crowd,omitempty"`
	ReporterID string    `json:"reporterId"`
	Verified   bool      `json:"verified,omitempty"`
	Hazards    []string  `json:"hazards,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Photos     []string  `json:"photos,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RawSubmission represents an unprocessed message from the submissions topic.
type RawSubmission struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Report is one validated observation of a site's condition. Status, surface,
// and crowd are nil when the reporter did not supply them. Stale is set only
// by the lifecycle sweeper, never at ingestion.
type Report struct {
	ID         string    `json:"id"`
	ReporterID string    `json:"reporterId"`
	Verified   bool      `json:"verified,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Status     *Status   `json:"status"`
	Surface    *int      `json:"surface"`
	Crowd      *int      `json:"crowd"`
	Hazards    []string  `json:"hazards,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Photos     []string  `json:"photos,omitempty"`
	Stale      bool      `json:"stale,omitempty"`
}

// SiteConditions is the per-site aggregation record. Reports are ordered
// newest first and capped at MaxStoredReports; ReportCount is the lifetime
// total and never decreases.
type SiteConditions struct {
	Slug            string     `json:"slug"`
	CompositeStatus *Status    `json:"compositeStatus"`
	AvgSurface      *float64   `json:"avgSurface"`
	AvgCrowd        *float64   `json:"avgCrowd"`
	ActiveHazards   []string   `json:"activeHazards"`
	ReportCount     int        `json:"reportCount"`
	LastReportAt    *time.Time `json:"lastReportAt"`
	RainResetAt     *time.Time `json:"rainResetAt,omitempty"`
	Reports         []Report   `json:"reports"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewSiteConditions returns an empty conditions record for a site.
func NewSiteConditions(slug string) *SiteConditions {
	return &SiteConditions{Slug: slug, ActiveHazards: []string{}, Reports: []Report{}}
}

// Site holds a park's static physical attributes. The drying-model fields
// (SurfaceType, SunExposure, Drainage) may be empty, in which case the
// corresponding modifier defaults to 1.0.
type Site struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Borough     string `json:"borough,omitempty"`
	SurfaceType string `json:"surfaceType,omitempty"`
	SunExposure string `json:"sunExposure,omitempty"`
	Drainage    string `json:"drainage,omitempty"`
	CoveredPct  int    `json:"coveredPct,omitempty"`
}

// ReporterProfile is one reputation ledger entry. Reputation only increases.
type ReporterProfile struct {
	ID               string     `json:"id"`
	ReportCount      int        `json:"reportCount"`
	Reputation       int        `json:"reputation"`
	Level            Level      `json:"level"`
	Streak           int        `json:"streak"`
	Parks            []string   `json:"parks"`
	JoinedAt         time.Time  `json:"joinedAt"`
	LastReportAt     *time.Time `json:"lastReportAt"`
	TodayReportCount int        `json:"todayReportCount"`
}

// StatsLedger is the global reporter reputation ledger.
type StatsLedger struct {
	UpdatedAt *time.Time         `json:"updatedAt"`
	Reporters []*ReporterProfile `json:"reporters"`
}

// Find returns the profile for a reporter id, or nil if never seen.
func (l *StatsLedger) Find(reporterID string) *ReporterProfile {
	for _, r := range l.Reporters {
		if r.ID == reporterID {
			return r
		}
	}
	return nil
}

// WeatherSnapshot is an immutable fact per fetch cycle, produced by the
// weather adapter. The core never mutates it.
type WeatherSnapshot struct {
	FetchedAt time.Time        `json:"fetchedAt"`
	Current   CurrentWeather   `json:"current"`
	Hourly    []HourlyForecast `json:"hourly"`
	Alerts    []WeatherAlert   `json:"alerts,omitempty"`
}

// CurrentWeather holds the observed conditions at fetch time. CloudCover is a
// percentage (0-100); precipitation is in millimeters.
type CurrentWeather struct {
	Temp         int        `json:"temp"`
	FeelsLike    int        `json:"feelsLike"`
	Humidity     int        `json:"humidity"`
	WindSpeed    int        `json:"windSpeed"`
	WindGust     int        `json:"windGust,omitempty"`
	Conditions   string     `json:"conditions,omitempty"`
	Description  string     `json:"description,omitempty"`
	Icon         string     `json:"icon,omitempty"`
	CloudCover   int        `json:"cloudCover"`
	Visibility   int        `json:"visibility,omitempty"`
	LastRainAt   *time.Time `json:"lastRainAt"`
	PrecipLast1h float64    `json:"precipLast1h"`
	PrecipLast3h float64    `json:"precipLast3h"`
	RecentRain   bool       `json:"recentRain"`
}

// HourlyForecast is one entry of the hourly forecast sequence.
type HourlyForecast struct {
	Dt         time.Time `json:"dt"`
	Temp       int       `json:"temp"`
	Pop        float64   `json:"pop"`
	Rain1h     float64   `json:"rain1h"`
	Conditions string    `json:"conditions,omitempty"`
	Icon       string    `json:"icon,omitempty"`
	CloudCover int       `json:"cloudCover"`
	WindSpeed  int       `json:"windSpeed"`
}

// WeatherAlert is an active government weather alert.
type WeatherAlert struct {
	Event       string    `json:"event"`
	Sender      string    `json:"sender,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description,omitempty"`
}

// Confidence grades a dry-out estimate.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// DryEstimate is the dry-out model output for one site. Factors is nil when
// no estimate was computed (already dry, or currently raining).
type DryEstimate struct {
	IsDry          bool        `json:"isDry"`
	EstimatedDryAt *time.Time  `json:"estimatedDryAt"`
	Confidence     Confidence  `json:"confidence,omitempty"`
	Note           string      `json:"note,omitempty"`
	Factors        *DryFactors `json:"factors"`
}

// DryFactors records the intermediate values of the drying model so the
// output can be audited and pinned by golden tests.
type DryFactors struct {
	BaseDryHours     float64 `json:"baseDryHours"`
	SurfaceModifier  float64 `json:"surfaceModifier"`
	SunModifier      float64 `json:"sunModifier"`
	DrainageModifier float64 `json:"drainageModifier"`
	WindModifier     float64 `json:"windModifier"`
	TotalDryHours    float64 `json:"totalDryHours"`
}

// DryEstimates is the per-cycle dry-out output document, keyed by site slug.
type DryEstimates struct {
	ComputedAt      time.Time              `json:"computedAt"`
	LastRainEndedAt *time.Time             `json:"lastRainEndedAt"`
	Estimates       map[string]DryEstimate `json:"estimates"`
}

// Condition event kinds published to the events topic for the notification
// collaborator.
const (
	EventStatusChanged = "status_changed"
	EventSiteDried     = "site_dried"
	EventRainIncoming  = "rain_incoming"
	EventRainReset     = "rain_reset"
)

// ConditionEvent signals a detected change worth notifying about. Transport
// and delivery are out of scope; the core only emits the record.
type ConditionEvent struct {
	Kind       string    `json:"kind"`
	Site       string    `json:"site,omitempty"`
	Status     *Status   `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
