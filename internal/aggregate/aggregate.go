package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/tourguard/safety-band/internal/clock"
	"github.com/tourguard/safety-band/internal/domain/alert"
	"github.com/tourguard/safety-band/internal/domain/tourist"
	"github.com/tourguard/safety-band/internal/incident"
)

// DefaultWindow is the reporting window used when the caller does not
// supply one.
const DefaultWindow = 24 * time.Hour

// SessionSource exposes the active session set. Implemented by the registry.
type SessionSource interface {
	ActiveSessions() []*tourist.Session
}

// AlertSource exposes the open alert set. Implemented by the engine.
type AlertSource interface {
	OpenAlerts() []*alert.Alert
}

// Summary is a point-in-time operational snapshot for the dashboard.
type Summary struct {
	// GeneratedAt is when the snapshot was computed.
	GeneratedAt time.Time `json:"generated_at"`
	// Window is the incident lookback interval.
	Window time.Duration `json:"window"`
	// ActiveSessions counts tourists currently inside the monitored area.
	ActiveSessions int `json:"active_sessions"`
	// SessionsByZone counts active sessions per resolved zone. Sessions
	// outside every zone are counted under "unzoned".
	SessionsByZone map[string]int `json:"sessions_by_zone"`
	// OpenAlerts counts alerts awaiting resolution.
	OpenAlerts int `json:"open_alerts"`
	// OpenByLevel counts open alerts per escalation tier.
	OpenByLevel map[string]int `json:"open_by_level"`
	// ResolvedInWindow counts incidents resolved within the window.
	ResolvedInWindow int `json:"resolved_in_window"`
	// AverageResponseTime is the mean creation-to-resolution duration of
	// incidents in the window, zero when there are none.
	AverageResponseTime time.Duration `json:"average_response_time"`
	// IncidentsByZone counts windowed incidents per zone.
	IncidentsByZone map[string]int `json:"incidents_by_zone"`
	// EscalatedToPolice counts windowed incidents that reached level 2.
	EscalatedToPolice int `json:"escalated_to_police"`
}

// Aggregator computes summaries on demand. It holds no state of its own, so
// every summary reflects the sources at call time.
type Aggregator struct {
	clk      clock.Clock
	sessions SessionSource
	alerts   AlertSource
	store    incident.Store
}

// New creates an aggregator over the given sources.
func New(clk clock.Clock, sessions SessionSource, alerts AlertSource, store incident.Store) *Aggregator {
	return &Aggregator{
		clk:      clk,
		sessions: sessions,
		alerts:   alerts,
		store:    store,
	}
}

// Summary computes the operational snapshot for the given lookback window.
// A non-positive window falls back to DefaultWindow.
func (a *Aggregator) Summary(ctx context.Context, window time.Duration) (*Summary, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	now := a.clk.Now()

	s := &Summary{
		GeneratedAt:     now,
		Window:          window,
		SessionsByZone:  make(map[string]int),
		OpenByLevel:     make(map[string]int),
		IncidentsByZone: make(map[string]int),
	}

	for _, session := range a.sessions.ActiveSessions() {
		s.ActiveSessions++

		zoneName := session.Zone
		if zoneName == "" {
			zoneName = "unzoned"
		}

		s.SessionsByZone[zoneName]++
	}

	for _, open := range a.alerts.OpenAlerts() {
		s.OpenAlerts++
		s.OpenByLevel[fmt.Sprintf("level%d", open.Level)]++
	}

	records, err := a.store.Query(ctx, incident.Filter{From: now.Add(-window)})
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}

	var total time.Duration

	for _, r := range records {
		s.ResolvedInWindow++
		total += r.ResponseTime

		zoneName := r.Zone
		if zoneName == "" {
			zoneName = "unzoned"
		}

		s.IncidentsByZone[zoneName]++

		if r.Level == alert.Level2 {
			s.EscalatedToPolice++
		}
	}

	if s.ResolvedInWindow > 0 {
		s.AverageResponseTime = total / time.Duration(s.ResolvedInWindow)
	}

	return s, nil
}
