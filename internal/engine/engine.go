package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tourguard/safety-band/internal/clock"
	"github.com/tourguard/safety-band/internal/domain/alert"
	"github.com/tourguard/safety-band/internal/incident"
	"github.com/tourguard/safety-band/internal/logger"
	"github.com/tourguard/safety-band/internal/metrics"
	"github.com/tourguard/safety-band/internal/notify"
	"github.com/tourguard/safety-band/internal/registry"
	"github.com/tourguard/safety-band/internal/zone"
)

// ErrInvalidTransition is returned for operations attempted on an alert in a
// state that forbids them, including operations on unknown alert IDs. No
// mutation is applied when it is returned.
var ErrInvalidTransition = errors.New("invalid alert transition")

// DefaultCommitRetryInterval is the delay between incident append retries.
const DefaultCommitRetryInterval = 5 * time.Second

// Notifier enqueues notifications without blocking. Implemented by the
// notify dispatcher.
type Notifier interface {
	Enqueue(ctx context.Context, n notify.Notification)
}

// Engine is the SOS escalation state machine. It owns all live alerts and is
// the only component that mutates them. Operations on one alert are
// linearized behind a per-alert lock; different alerts never contend.
type Engine struct {
	// clk supplies timestamps and escalation timers.
	clk clock.Clock
	// resolver provides zone risk labels for priority derivation.
	resolver *zone.Resolver
	// store is the append-only incident log.
	store incident.Store
	// notifier dispatches manager and police notifications.
	notifier Notifier
	// mets records observability counters. Optional.
	mets *metrics.Metrics
	// autoEscalateAfter arms a level 1 timeout when positive; zero disables
	// timer-based escalation entirely.
	autoEscalateAfter time.Duration
	// commitRetryInterval is the delay between incident append retries.
	commitRetryInterval time.Duration

	// mu guards the maps and the ID sequence below. It is never held while
	// acquiring an existing entry's lock.
	mu sync.Mutex
	// alerts indexes live alerts (open or pending commit) by alert ID.
	alerts map[string]*alertEntry
	// byBand indexes open alerts by band ID, enforcing at most one live
	// alert per band.
	byBand map[string]*alertEntry
	// seq is the last issued alert sequence for year.
	seq int
	// year is the allocation year for seq.
	year int
}

// alertEntry pairs an alert with its serialization lock and timer state.
type alertEntry struct {
	// mu linearizes all operations on this alert.
	mu sync.Mutex
	// a is the owned alert record.
	a *alert.Alert
	// escalateTimer is the armed auto-escalation timer, if any.
	escalateTimer clock.Timer
	// pending is the archival record awaiting a successful append, non-nil
	// only after a storage fault during resolution.
	pending *incident.Record
}

// Option configures optional engine collaborators and behavior.
type Option func(*Engine)

// WithMetrics wires observability counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.mets = m }
}

// WithAutoEscalate enables timer-based level 1 to level 2 escalation after d.
func WithAutoEscalate(d time.Duration) Option {
	return func(e *Engine) { e.autoEscalateAfter = d }
}

// WithStartSequence seeds the alert ID sequence for the current year, used
// after restarts so archived alert IDs are never reissued.
func WithStartSequence(seq int) Option {
	return func(e *Engine) { e.seq = seq }
}

// WithCommitRetryInterval overrides the incident append retry delay.
func WithCommitRetryInterval(d time.Duration) Option {
	return func(e *Engine) { e.commitRetryInterval = d }
}

// New creates the escalation engine.
func New(clk clock.Clock, resolver *zone.Resolver, store incident.Store, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		clk:                 clk,
		resolver:            resolver,
		store:               store,
		notifier:            notifier,
		commitRetryInterval: DefaultCommitRetryInterval,
		alerts:              make(map[string]*alertEntry),
		byBand:              make(map[string]*alertEntry),
		year:                clk.Now().Year(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// HandleButtonHold advances the state machine for a qualifying button hold:
// no open alert creates one at level 1, an open level 1 alert escalates to
// level 2, and an open level 2 alert is a no-op warning. Matching is by
// visit, not just by band: an open alert left behind by a previous binding
// of the same band belongs to its own UVID and never absorbs holds from the
// band's new visit.
func (e *Engine) HandleButtonHold(ctx context.Context, ev registry.HoldEvent) error {
	for {
		e.mu.Lock()

		entry, open := e.byBand[ev.BandID]
		if !open {
			e.create(ctx, ev)
			e.mu.Unlock()

			return nil
		}

		e.mu.Unlock()

		entry.mu.Lock()

		if !entry.a.IsOpen() {
			// The alert resolved between the index lookup and taking the
			// entry lock. Drop the stale index entry and start over.
			entry.mu.Unlock()
			e.dropBandIndex(ev.BandID, entry)

			continue
		}

		if entry.a.UVID != ev.UVID {
			// The band was released and reassigned to a new visit while the
			// previous visit's alert is still open. That alert stays owned by
			// its own UVID; this hold starts a fresh lifecycle for the new
			// visit instead of escalating someone else's emergency.
			logger.WarnKV(ctx, "Band reassigned with an open alert from a previous visit",
				"band_id", ev.BandID, "alert_id", entry.a.ID,
				"alert_uvid", entry.a.UVID, "event_uvid", ev.UVID)

			entry.mu.Unlock()
			e.dropBandIndex(ev.BandID, entry)

			continue
		}

		defer entry.mu.Unlock()

		if entry.a.Level == alert.Level2 {
			logger.WarnKV(ctx, "Button hold on level 2 alert ignored",
				"alert_id", entry.a.ID, "band_id", ev.BandID)

			return nil
		}

		// Continued or repeated hold while level 1 is the device-side
		// escalation path.
		entry.a.Zone = ev.Zone
		entry.a.Location = ev.Location
		e.escalateLocked(ctx, entry, "button hold")

		return nil
	}
}

// Escalate moves an open level 1 alert to level 2 on explicit operator
// request. Valid only while the alert is open at level 1.
func (e *Engine) Escalate(ctx context.Context, alertID string) error {
	entry, err := e.entry(alertID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.a.CanEscalate() {
		return fmt.Errorf("%w: escalate %s in level %d status %s",
			ErrInvalidTransition, alertID, entry.a.Level, entry.a.Status)
	}

	e.escalateLocked(ctx, entry, "operator")

	return nil
}

// Resolve terminates an open alert with the operator's resolution note,
// computes the response time and appends the archival record to the incident
// log. On a storage fault the alert stays in memory pending commit and the
// append is retried on a timer; the terminal state transition itself is
// never rolled back.
func (e *Engine) Resolve(ctx context.Context, alertID, note string) error {
	entry, err := e.entry(alertID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.a.IsOpen() {
		return fmt.Errorf("%w: resolve %s status %s", ErrInvalidTransition, alertID, entry.a.Status)
	}

	if entry.escalateTimer != nil {
		entry.escalateTimer.Stop()
		entry.escalateTimer = nil
	}

	resolvedAt := e.clk.Now()
	entry.a.Status = alert.StatusResolved

	record := incident.FromAlert(entry.a, note, resolvedAt)

	e.dropBandIndex(entry.a.BandID, entry)

	e.mets.IncAlertTransition("resolved")
	e.mets.ObserveResponseTime(record.ResponseTime)

	logger.InfoKV(ctx, "Alert resolved",
		"alert_id", alertID, "uvid", entry.a.UVID, "level", entry.a.Level,
		"response_time", record.ResponseTime, "resolution", note)

	return e.commitLocked(ctx, entry, record)
}

// OpenAlerts returns clones of all open alerts, ordered by creation time.
func (e *Engine) OpenAlerts() []*alert.Alert {
	e.mu.Lock()

	entries := make([]*alertEntry, 0, len(e.alerts))
	for _, entry := range e.alerts {
		entries = append(entries, entry)
	}

	e.mu.Unlock()

	result := make([]*alert.Alert, 0, len(entries))

	for _, entry := range entries {
		entry.mu.Lock()

		if entry.a.IsOpen() {
			result = append(result, entry.a.Clone())
		}

		entry.mu.Unlock()
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result
}

// AssignResponder records the responder handling an open alert.
func (e *Engine) AssignResponder(ctx context.Context, alertID, responder string) error {
	entry, err := e.entry(alertID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.a.IsOpen() {
		return fmt.Errorf("%w: assign responder to %s status %s",
			ErrInvalidTransition, alertID, entry.a.Status)
	}

	entry.a.Responder = responder

	logger.InfoKV(ctx, "Responder assigned", "alert_id", alertID, "responder", responder)

	return nil
}

// create builds a new level 1 alert for the hold event. Caller holds the
// engine lock; the fresh entry cannot be contended yet.
func (e *Engine) create(ctx context.Context, ev registry.HoldEvent) {
	now := e.clk.Now()

	entry := &alertEntry{a: &alert.Alert{
		ID:        e.allocateID(now),
		UVID:      ev.UVID,
		BandID:    ev.BandID,
		Zone:      ev.Zone,
		Level:     alert.Level1,
		Priority:  alert.DerivePriority(alert.Level1, e.resolver.Risk(ev.Zone)),
		Status:    alert.StatusOpen,
		Location:  ev.Location,
		CreatedAt: now,
	}}

	e.alerts[entry.a.ID] = entry
	e.byBand[ev.BandID] = entry

	if e.autoEscalateAfter > 0 {
		alertID := entry.a.ID
		entry.escalateTimer = e.clk.Schedule(e.autoEscalateAfter, func() {
			e.autoEscalate(alertID)
		})
	}

	e.mets.IncAlertTransition("created")

	logger.InfoKV(ctx, "Alert created",
		"alert_id", entry.a.ID, "uvid", ev.UVID, "band_id", ev.BandID,
		"zone", ev.Zone, "priority", entry.a.Priority)

	e.dispatch(ctx, notify.KindManager, entry.a)
}

// escalateLocked performs the level 1 to level 2 transition.
// Caller holds the entry lock and has verified the transition is legal.
func (e *Engine) escalateLocked(ctx context.Context, entry *alertEntry, cause string) {
	if entry.escalateTimer != nil {
		entry.escalateTimer.Stop()
		entry.escalateTimer = nil
	}

	entry.a.Level = alert.Level2
	entry.a.Priority = alert.DerivePriority(alert.Level2, e.resolver.Risk(entry.a.Zone))
	entry.a.EscalatedAt = e.clk.Now()

	e.mets.IncAlertTransition("escalated")

	logger.InfoKV(ctx, "Alert escalated to level 2",
		"alert_id", entry.a.ID, "uvid", entry.a.UVID, "cause", cause)

	e.dispatch(ctx, notify.KindManagerPolice, entry.a)
}

// autoEscalate is the timer callback for the optional level 1 timeout.
// It loses gracefully to a concurrent resolve or hold-driven escalation.
func (e *Engine) autoEscalate(alertID string) {
	ctx := logger.WithName(context.Background(), "engine")

	entry, err := e.entry(alertID)
	if err != nil {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.a.CanEscalate() {
		logger.DebugKV(ctx, "Auto-escalation lost to a concurrent transition", "alert_id", alertID)

		return
	}

	e.escalateLocked(ctx, entry, "timeout")
}

// commitLocked appends the archival record and drops the alert from the live
// set on success. On failure the record stays pending and a retry is
// scheduled. Caller holds the entry lock.
func (e *Engine) commitLocked(ctx context.Context, entry *alertEntry, record incident.Record) error {
	if err := e.store.Append(ctx, record); err != nil {
		entry.pending = &record

		logger.ErrorKV(ctx, "Incident append failed, holding record pending retry",
			"alert_id", record.AlertID, "error", err)

		alertID := record.AlertID
		e.clk.Schedule(e.commitRetryInterval, func() {
			e.retryCommit(alertID)
		})

		return err
	}

	entry.pending = nil
	e.dropAlert(record.AlertID, entry)

	return nil
}

// retryCommit re-attempts a pending incident append.
func (e *Engine) retryCommit(alertID string) {
	ctx := logger.WithName(context.Background(), "engine")

	entry, err := e.entry(alertID)
	if err != nil {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.pending == nil {
		return
	}

	//nolint:errcheck // commitLocked logs and reschedules on failure.
	_ = e.commitLocked(ctx, entry, *entry.pending)
}

// dispatch enqueues a notification for the alert's current state.
func (e *Engine) dispatch(ctx context.Context, kind notify.Kind, a *alert.Alert) {
	if e.notifier == nil {
		return
	}

	e.notifier.Enqueue(ctx, notify.New(kind, a, e.clk.Now()))
	e.mets.IncNotification(string(kind))
}

// entry finds a live alert by ID.
func (e *Engine) entry(alertID string) (*alertEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown alert %s", ErrInvalidTransition, alertID)
	}

	return entry, nil
}

// dropBandIndex removes the band index entry if it still points at entry.
func (e *Engine) dropBandIndex(bandID string, entry *alertEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.byBand[bandID] == entry {
		delete(e.byBand, bandID)
	}
}

// dropAlert removes a committed alert from the live set.
func (e *Engine) dropAlert(alertID string, entry *alertEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.alerts[alertID] == entry {
		delete(e.alerts, alertID)
	}
}

// allocateID issues the next alert ID, e.g. "SOS-2024-001".
// Caller holds the engine lock.
func (e *Engine) allocateID(now time.Time) string {
	if now.Year() != e.year {
		e.year = now.Year()
		e.seq = 0
	}

	e.seq++

	return fmt.Sprintf("SOS-%d-%03d", e.year, e.seq)
}
