package alert

import (
	"time"

	"github.com/tourguard/safety-band/internal/domain/tourist"
)

// Level is the SOS escalation tier.
type Level int

const (
	// Level1 notifies the duty manager only.
	Level1 Level = 1
	// Level2 notifies both the manager and the police.
	Level2 Level = 2
)

// Status is the lifecycle state of one alert.
type Status string

const (
	// StatusOpen means the alert awaits resolution.
	StatusOpen Status = "Open"
	// StatusResolved is terminal; no further transition is ever accepted.
	StatusResolved Status = "Resolved"
)

// Priority is derived from the alert level and zone context.
type Priority string

const (
	// PriorityLow marks alerts from low-risk zones at level 1.
	PriorityLow Priority = "Low"
	// PriorityMedium is the default level 1 priority.
	PriorityMedium Priority = "Medium"
	// PriorityHigh marks level 2 alerts and level 1 alerts in high-risk zones.
	PriorityHigh Priority = "High"
)

// Alert is one SOS escalation lifecycle instance,
// owned exclusively by the state machine engine.
type Alert struct {
	// ID uniquely identifies the alert, e.g. "SOS-2024-001".
	ID string `json:"id"`
	// UVID is the visit the alert belongs to.
	UVID string `json:"uvid"`
	// BandID is the device that raised the alert.
	BandID string `json:"band_id"`
	// Zone is the zone name captured at creation and refreshed on updates.
	Zone string `json:"zone"`
	// Level is the current escalation tier.
	Level Level `json:"level"`
	// Priority is derived from level and zone risk.
	Priority Priority `json:"priority"`
	// Status is Open or Resolved.
	Status Status `json:"status"`
	// Responder is the assigned responder, empty until assignment.
	Responder string `json:"responder,omitempty"`
	// Location is the coordinates snapshot from the triggering event.
	Location tourist.Coordinates `json:"location"`
	// CreatedAt is when the alert entered Level1Open.
	CreatedAt time.Time `json:"created_at"`
	// EscalatedAt is when the alert entered Level2Open; zero if it never did.
	EscalatedAt time.Time `json:"escalated_at,omitempty"`
}

// Clone returns a copy of the alert to avoid leaking internal references.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// IsOpen reports whether the alert still awaits resolution.
func (a *Alert) IsOpen() bool {
	return a != nil && a.Status == StatusOpen
}

// CanEscalate reports whether the level 1 to level 2 transition is legal.
// Escalation is only valid while the alert is open at level 1.
func (a *Alert) CanEscalate() bool {
	return a.IsOpen() && a.Level == Level1
}

// DerivePriority computes the alert priority from the escalation level and
// the risk label of the zone the alert was raised in. Level 2 is always High;
// level 1 follows the zone risk and defaults to Medium.
func DerivePriority(level Level, zoneRisk string) Priority {
	if level == Level2 {
		return PriorityHigh
	}

	switch zoneRisk {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}
