package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AnonymousReporter is the reporter id used by submissions with no nickname.
const AnonymousReporter = "anonymous"

// ParseRawSubmission deserializes a raw message's value into a Submission.
// A submission with a zero timestamp inherits the message timestamp.
func ParseRawSubmission(raw RawSubmission) (Submission, error) {
	var sub Submission
	if err := json.Unmarshal(raw.Value, &sub); err != nil {
		return Submission{}, fmt.Errorf("parse raw submission: %w", err)
	}
	if sub.Timestamp.IsZero() {
		sub.Timestamp = raw.Timestamp
	}
	return sub, nil
}

// ValidateSubmission normalizes a submission into a Report or rejects it with
// no side effects. knownSite answers whether a park slug exists; a nil
// knownSite accepts every slug (used by fixture tooling).
//
// Rejection cases: missing park slug, unknown park, or a non-empty status
// outside the four-value enum. An empty status is allowed and becomes null,
// since a report may carry only surface/crowd scores.
func ValidateSubmission(sub Submission, knownSite func(slug string) bool) (Report, error) {
	slug := strings.TrimSpace(sub.Park)
	if slug == "" {
		return Report{}, rejected("missing park slug")
	}
	if knownSite != nil && !knownSite(slug) {
		return Report{}, rejected("unknown park: %s", slug)
	}

	var status *Status
	if raw := strings.ToLower(strings.TrimSpace(sub.Status)); raw != "" {
		s := Status(raw)
		if !ValidStatus(s) {
			return Report{}, rejected("invalid status: %s", sub.Status)
		}
		status = &s
	}

	reporter := strings.TrimSpace(sub.ReporterID)
	if reporter == "" {
		reporter = AnonymousReporter
	}

	report := Report{
		ID:         reportID(slug, reporter, sub),
		ReporterID: reporter,
		Verified:   sub.Verified,
		CreatedAt:  sub.Timestamp.UTC(),
		Status:     status,
		Surface:    clampScore(sub.Surface),
		Crowd:      clampScore(sub.Crowd),
		Hazards:    normalizeHazards(sub.Hazards),
		Notes:      sub.Notes,
		Photos:     sub.Photos,
	}
	return report, nil
}

// clampScore maps a raw 1-5 score into its persisted form: nil for the
// zero value (field left blank), otherwise clamped into [1,5].
func clampScore(v int) *int {
	if v == 0 {
		return nil
	}
	if v < 1 {
		v = 1
	}
	if v > 5 {
		v = 5
	}
	return &v
}

// SanitizeReport re-applies the field invariants to a report read back
// from storage. Out-of-range values found on read are an internal
// inconsistency: the offending field is nulled rather than propagated.
// Returns the cleaned report and whether anything was repaired.
func SanitizeReport(r Report) (Report, bool) {
	repaired := false
	if r.Status != nil && !ValidStatus(*r.Status) {
		r.Status = nil
		repaired = true
	}
	if r.Surface != nil && (*r.Surface < 1 || *r.Surface > 5) {
		r.Surface = nil
		repaired = true
	}
	if r.Crowd != nil && (*r.Crowd < 1 || *r.Crowd > 5) {
		r.Crowd = nil
		repaired = true
	}
	return r, repaired
}

// normalizeHazards trims, lowercases, and de-duplicates hazard tags,
// preserving first-encountered order.
func normalizeHazards(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// reportID produces a deterministic ID from the submission's content fields.
// Upstream delivery is at-least-once; a replayed submission hashes to the
// same ID, which the aggregator treats as a no-op.
func reportID(slug, reporter string, sub Submission) string {
	input := fmt.Sprintf("%s|%s|%s|%d|%d|%s",
		slug, reporter, strings.ToLower(strings.TrimSpace(sub.Status)),
		sub.Surface, sub.Crowd, sub.Timestamp.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return "rpt-" + hex.EncodeToString(hash[:8])
}
