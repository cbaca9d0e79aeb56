package tourist

import "time"

// SessionStatus is the lifecycle state of one visit.
type SessionStatus string

const (
	// SessionActive means the visitor is inside the monitored area
	// with a band bound to the session.
	SessionActive SessionStatus = "Active"
	// SessionExited means the visit ended; the session is read-only forever.
	SessionExited SessionStatus = "Exited"
)

// Coordinates is a raw location sample in decimal degrees.
type Coordinates struct {
	// Lat is the latitude in decimal degrees.
	Lat float64 `json:"lat"`
	// Lon is the longitude in decimal degrees.
	Lon float64 `json:"lon"`
}

// Tourist is the identity record created at registration.
// It is immutable once created except for contact-info correction.
type Tourist struct {
	// UVID is the globally unique visit identifier, e.g. "UV-2024-001".
	UVID string `json:"uvid"`
	// Name is the visitor's legal name.
	Name string `json:"name"`
	// Email is the visitor's contact email.
	Email string `json:"email"`
	// Phone is the visitor's contact phone number.
	Phone string `json:"phone"`
	// Nationality is the visitor's country, optional.
	Nationality string `json:"nationality,omitempty"`
	// RegisteredAt is when the tourist record was created.
	RegisteredAt time.Time `json:"registered_at"`
}

// Clone returns a copy of the tourist record.
func (t *Tourist) Clone() *Tourist {
	if t == nil {
		return nil
	}

	cloned := *t

	return &cloned
}

// Session represents one visit of a tourist.
type Session struct {
	// UVID links the session to its tourist.
	UVID string `json:"uvid"`
	// BandID is the wearable device bound to this session, e.g. "SB-001".
	BandID string `json:"band_id"`
	// EntryTime is when the visit started.
	EntryTime time.Time `json:"entry_time"`
	// ExitTime is when the visit ended; zero while the session is active.
	ExitTime time.Time `json:"exit_time,omitempty"`
	// Zone is the name of the zone the last location sample resolved to.
	Zone string `json:"zone,omitempty"`
	// LastSeen is the timestamp of the newest accepted location sample.
	LastSeen time.Time `json:"last_seen,omitempty"`
	// LastLocation is the newest accepted location sample.
	LastLocation Coordinates `json:"last_location"`
	// Status is Active or Exited.
	Status SessionStatus `json:"status"`
}

// Clone returns a copy of the session to avoid leaking internal references.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// IsActive reports whether the session still has a band bound to it.
func (s *Session) IsActive() bool {
	return s != nil && s.Status == SessionActive
}
