package incident

import (
	"time"

	"github.com/tourguard/safety-band/internal/domain/alert"
	"github.com/tourguard/safety-band/internal/domain/tourist"
)

// Record is the immutable archival copy of a terminated alert.
// It is never mutated after it is appended to the log.
type Record struct {
	// AlertID is the identifier of the terminated alert, e.g. "SOS-2024-001".
	AlertID string `json:"alert_id"`
	// UVID is the visit the alert belonged to.
	UVID string `json:"uvid"`
	// BandID is the device that raised the alert.
	BandID string `json:"band_id"`
	// Zone is the zone captured on the alert at resolution.
	Zone string `json:"zone"`
	// Level is the escalation tier the alert reached.
	Level alert.Level `json:"level"`
	// Priority is the derived priority the alert carried.
	Priority alert.Priority `json:"priority"`
	// Location is the coordinates snapshot from the alert.
	Location tourist.Coordinates `json:"location"`
	// Resolution is the operator-provided narrative, e.g. "false alarm".
	Resolution string `json:"resolution"`
	// CreatedAt is when the alert was raised.
	CreatedAt time.Time `json:"created_at"`
	// ResolvedAt is when the alert reached its terminal state.
	ResolvedAt time.Time `json:"resolved_at"`
	// ResponseTime is ResolvedAt minus CreatedAt.
	ResponseTime time.Duration `json:"response_time"`
}

// FromAlert builds the archival record for a resolved alert.
func FromAlert(a *alert.Alert, resolution string, resolvedAt time.Time) Record {
	return Record{
		AlertID:      a.ID,
		UVID:         a.UVID,
		BandID:       a.BandID,
		Zone:         a.Zone,
		Level:        a.Level,
		Priority:     a.Priority,
		Location:     a.Location,
		Resolution:   resolution,
		CreatedAt:    a.CreatedAt,
		ResolvedAt:   resolvedAt,
		ResponseTime: resolvedAt.Sub(a.CreatedAt),
	}
}

// Filter selects records in Query. Zero fields match everything.
type Filter struct {
	// UVID restricts results to one visit when non-empty.
	UVID string
	// Zone restricts results to one zone when non-empty.
	Zone string
	// Level restricts results to one escalation tier when non-zero.
	Level alert.Level
	// From excludes records resolved before it when non-zero.
	From time.Time
	// To excludes records resolved at or after it when non-zero.
	To time.Time
}

// matches reports whether the record passes the filter.
func (f Filter) matches(r Record) bool {
	if f.UVID != "" && r.UVID != f.UVID {
		return false
	}

	if f.Zone != "" && r.Zone != f.Zone {
		return false
	}

	if f.Level != 0 && r.Level != f.Level {
		return false
	}

	if !f.From.IsZero() && r.ResolvedAt.Before(f.From) {
		return false
	}

	if !f.To.IsZero() && !r.ResolvedAt.Before(f.To) {
		return false
	}

	return true
}
