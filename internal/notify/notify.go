package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/tourguard/safety-band/internal/domain/alert"
)

// Kind selects the audience of a notification.
type Kind string

const (
	// KindManager notifies the duty manager only.
	KindManager Kind = "manager"
	// KindManagerPolice notifies both the manager and the police.
	KindManagerPolice Kind = "manager+police"
)

// Notification is one outbound dispatch request. The ID makes redeliveries
// under at-least-once semantics identifiable downstream.
type Notification struct {
	// ID uniquely identifies this dispatch attempt chain.
	ID string
	// Kind is the audience.
	Kind Kind
	// AlertID is the alert the notification concerns.
	AlertID string
	// UVID is the visit the alert belongs to.
	UVID string
	// Zone is the zone captured on the alert at dispatch time.
	Zone string
	// Level is the alert level at dispatch time.
	Level alert.Level
	// Priority is the derived alert priority at dispatch time.
	Priority alert.Priority
	// CreatedAt is when the notification was enqueued.
	CreatedAt time.Time
}

// New builds a notification for the given alert snapshot.
func New(kind Kind, a *alert.Alert, now time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		AlertID:   a.ID,
		UVID:      a.UVID,
		Zone:      a.Zone,
		Level:     a.Level,
		Priority:  a.Priority,
		CreatedAt: now,
	}
}
