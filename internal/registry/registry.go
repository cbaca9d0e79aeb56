package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tourguard/safety-band/internal/clock"
	"github.com/tourguard/safety-band/internal/domain/tourist"
	"github.com/tourguard/safety-band/internal/logger"
	"github.com/tourguard/safety-band/internal/metrics"
	"github.com/tourguard/safety-band/internal/repository/snapshot"
	"github.com/tourguard/safety-band/internal/zone"
)

var (
	// ErrValidation is returned when registration input is missing
	// required fields. Nothing is mutated on validation failure.
	ErrValidation = errors.New("invalid registration input")
	// ErrUnknownBand is returned for events on a band with no active session.
	ErrUnknownBand = errors.New("no active session for band")
	// ErrStaleEvent is returned for location samples older than the last
	// recorded one. Time never moves backward for a session.
	ErrStaleEvent = errors.New("stale location event")
	// ErrUnknownTourist is returned by Lookup for a UVID that was never issued.
	ErrUnknownTourist = errors.New("unknown tourist")
)

// Info is the registration input for a new visitor.
type Info struct {
	// Name is the visitor's legal name. Required.
	Name string
	// Email is the visitor's contact email. Required.
	Email string
	// Phone is the visitor's contact phone. Required.
	Phone string
	// Nationality is the visitor's country. Optional.
	Nationality string
}

// HoldEvent is a qualifying button hold forwarded to the alert engine,
// enriched with the session context the engine needs.
type HoldEvent struct {
	// UVID is the visit the band is bound to.
	UVID string
	// BandID is the device that reported the hold.
	BandID string
	// Zone is the zone resolved from the event coordinates.
	Zone string
	// Location is the coordinates snapshot from the event.
	Location tourist.Coordinates
	// Timestamp is when the hold completed.
	Timestamp time.Time
}

// AlertSink consumes qualifying button holds. Implemented by the alert engine.
type AlertSink interface {
	HandleButtonHold(ctx context.Context, ev HoldEvent) error
}

// ZoneChange describes one zone transition of an active session.
type ZoneChange struct {
	// UVID is the visit that moved.
	UVID string
	// BandID is the device that reported the move.
	BandID string
	// From is the previous zone name, possibly empty.
	From string
	// To is the new zone name, possibly zone.Unresolved.
	To string
	// At is the sample timestamp.
	At time.Time
}

// Registry owns tourists, sessions and band bindings. Mutations on a given
// session are serialized per band; UVID and band allocation use a narrow
// global critical section that never blocks location processing for
// unrelated bands.
type Registry struct {
	// clk supplies timestamps.
	clk clock.Clock
	// resolver maps location samples to zones.
	resolver *zone.Resolver
	// mets records observability counters. Optional.
	mets *metrics.Metrics
	// snapshots persists registry state across restarts. Optional.
	snapshots snapshot.Repository
	// sink receives qualifying button holds. Optional until wired.
	sink AlertSink
	// qualifyingHold is the minimum hold duration that triggers an SOS.
	qualifyingHold time.Duration
	// zoneHook observes zone transitions. Optional.
	zoneHook func(ZoneChange)

	// mu guards the maps and allocation counters below.
	mu sync.RWMutex
	// tourists indexes identity records by UVID.
	tourists map[string]*tourist.Tourist
	// sessions holds each tourist's sessions ordered by entry time.
	sessions map[string][]*sessionEntry
	// active indexes the single active session per band ID.
	active map[string]*sessionEntry
	// uvidSeq tracks the last issued UVID sequence per year.
	uvidSeq map[int]int
	// issuedUVIDs is the full historical UVID index for collision checks.
	issuedUVIDs map[string]struct{}
	// bandSeq is the highest band sequence ever issued.
	bandSeq int
	// freeBands are band IDs released by exits, reused before new ones.
	freeBands []string
}

// sessionEntry pairs a session with its serialization lock.
// The entry lock is always taken after the registry lock, never before.
type sessionEntry struct {
	// mu serializes mutations of this session.
	mu sync.Mutex
	// s is the owned session record.
	s *tourist.Session
}

// Option configures optional registry collaborators.
type Option func(*Registry)

// WithMetrics wires observability counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.mets = m }
}

// WithSnapshots wires snapshot persistence.
func WithSnapshots(repo snapshot.Repository) Option {
	return func(r *Registry) { r.snapshots = repo }
}

// WithZoneChangeHook wires a zone transition observer. The hook runs on the
// sample's goroutine with the session lock held, so transitions for one band
// arrive in order; it must be fast and must not call back into the registry.
func WithZoneChangeHook(hook func(ZoneChange)) Option {
	return func(r *Registry) { r.zoneHook = hook }
}

// New creates a registry, restoring persisted state when a snapshot
// repository is wired and has a snapshot.
func New(ctx context.Context, clk clock.Clock, resolver *zone.Resolver, qualifyingHold time.Duration, opts ...Option) (*Registry, error) {
	r := &Registry{
		clk:            clk,
		resolver:       resolver,
		qualifyingHold: qualifyingHold,
		tourists:       make(map[string]*tourist.Tourist),
		sessions:       make(map[string][]*sessionEntry),
		active:         make(map[string]*sessionEntry),
		uvidSeq:        make(map[int]int),
		issuedUVIDs:    make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.snapshots == nil {
		return r, nil
	}

	state, err := r.snapshots.Load(ctx)
	switch {
	case err == nil:
		r.restore(state)
		logger.InfoKV(ctx, "Registry state restored",
			"tourists", len(r.tourists), "active_sessions", len(r.active))
	case errors.Is(err, snapshot.ErrNotFound):
		// Fresh start.
	default:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	return r, nil
}

// SetAlertSink wires the alert engine. Must be called before band events flow.
func (r *Registry) SetAlertSink(sink AlertSink) {
	r.sink = sink
}

// Register validates the input, issues a UVID and a band ID, and creates the
// tourist with an active session. Fails with ErrValidation before any
// mutation if required fields are missing.
func (r *Registry) Register(ctx context.Context, info Info) (string, string, error) {
	if err := validate(info); err != nil {
		return "", "", err
	}

	now := r.clk.Now()

	r.mu.Lock()

	uvid := r.allocateUVID(now.Year())
	bandID := r.allocateBand()

	t := &tourist.Tourist{
		UVID:         uvid,
		Name:         strings.TrimSpace(info.Name),
		Email:        strings.TrimSpace(info.Email),
		Phone:        strings.TrimSpace(info.Phone),
		Nationality:  strings.TrimSpace(info.Nationality),
		RegisteredAt: now,
	}

	entry := &sessionEntry{s: &tourist.Session{
		UVID:      uvid,
		BandID:    bandID,
		EntryTime: now,
		Status:    tourist.SessionActive,
	}}

	r.tourists[uvid] = t
	r.sessions[uvid] = append(r.sessions[uvid], entry)
	r.active[bandID] = entry
	activeCount := len(r.active)

	r.mu.Unlock()

	r.mets.IncRegistration()
	r.mets.SetActiveSessions(activeCount)

	logger.InfoKV(ctx, "Tourist registered", "uvid", uvid, "band_id", bandID, "name", t.Name)

	r.saveSnapshot(ctx)

	return uvid, bandID, nil
}

// ContactUpdate carries a contact-info correction. Empty fields keep the
// stored value.
type ContactUpdate struct {
	// Email is the corrected contact email. Optional.
	Email string
	// Phone is the corrected contact phone. Optional.
	Phone string
}

// UpdateContact corrects a tourist's contact info. Identity fields stay
// immutable after registration; only email and phone can change.
func (r *Registry) UpdateContact(ctx context.Context, uvid string, upd ContactUpdate) error {
	email := strings.TrimSpace(upd.Email)
	phone := strings.TrimSpace(upd.Phone)

	if email == "" && phone == "" {
		return fmt.Errorf("%w: at least one of email or phone must be provided", ErrValidation)
	}

	r.mu.Lock()

	t, ok := r.tourists[uvid]
	if !ok {
		r.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrUnknownTourist, uvid)
	}

	if email != "" {
		t.Email = email
	}

	if phone != "" {
		t.Phone = phone
	}

	r.mu.Unlock()

	logger.InfoKV(ctx, "Tourist contact updated", "uvid", uvid)

	r.saveSnapshot(ctx)

	return nil
}

// RecordLocation applies one location sample to the band's active session.
// It reports whether the sample moved the session into a different zone.
func (r *Registry) RecordLocation(ctx context.Context, bandID string, coords tourist.Coordinates, ts time.Time) (bool, error) {
	entry, err := r.activeEntry(bandID)
	if err != nil {
		return false, err
	}

	entry.mu.Lock()

	s := entry.s
	if s.Status != tourist.SessionActive {
		entry.mu.Unlock()

		return false, fmt.Errorf("%w: %s", ErrUnknownBand, bandID)
	}

	if !s.LastSeen.IsZero() && ts.Before(s.LastSeen) {
		entry.mu.Unlock()

		return false, fmt.Errorf("%w: band %s: sample at %s is older than %s",
			ErrStaleEvent, bandID, ts.Format(time.RFC3339), s.LastSeen.Format(time.RFC3339))
	}

	newZone := r.resolver.Resolve(coords)
	oldZone := s.Zone

	s.LastSeen = ts
	s.LastLocation = coords
	changed := newZone != oldZone

	if changed {
		s.Zone = newZone

		// Emitted while the session lock is held so observers see this
		// band's transitions in the order they actually happened.
		r.mets.IncZoneTransition(newZone)

		if r.zoneHook != nil {
			r.zoneHook(ZoneChange{
				UVID:   s.UVID,
				BandID: bandID,
				From:   oldZone,
				To:     newZone,
				At:     ts,
			})
		}

		logger.DebugKV(ctx, "Zone transition",
			"uvid", s.UVID, "band_id", bandID, "from", oldZone, "to", newZone)
	}

	entry.mu.Unlock()

	return changed, nil
}

// RecordButtonHold processes an emergency button hold. Holds shorter than the
// qualifying duration are ignored; qualifying holds are forwarded to the
// alert engine with the session context attached. It reports whether the
// hold was forwarded.
func (r *Registry) RecordButtonHold(ctx context.Context, bandID string, coords tourist.Coordinates, held time.Duration, ts time.Time) (bool, error) {
	if held < r.qualifyingHold {
		logger.DebugKV(ctx, "Button hold below qualifying duration",
			"band_id", bandID, "held", held, "qualifying", r.qualifyingHold)

		return false, nil
	}

	entry, err := r.activeEntry(bandID)
	if err != nil {
		return false, err
	}

	entry.mu.Lock()

	s := entry.s
	if s.Status != tourist.SessionActive {
		entry.mu.Unlock()

		return false, fmt.Errorf("%w: %s", ErrUnknownBand, bandID)
	}

	ev := HoldEvent{
		UVID:      s.UVID,
		BandID:    bandID,
		Zone:      r.resolver.Resolve(coords),
		Location:  coords,
		Timestamp: ts,
	}

	entry.mu.Unlock()

	if r.sink == nil {
		logger.Warn(ctx, "Button hold dropped: no alert sink wired")

		return false, nil
	}

	if err := r.sink.HandleButtonHold(ctx, ev); err != nil {
		return false, fmt.Errorf("forward button hold: %w", err)
	}

	return true, nil
}

// RecordExit ends the band's active session and releases the band ID for
// reassignment. Exit is a one-shot transition: a second call for the same
// band fails with ErrUnknownBand.
func (r *Registry) RecordExit(ctx context.Context, bandID string) (string, error) {
	r.mu.Lock()

	entry, ok := r.active[bandID]
	if !ok {
		r.mu.Unlock()

		return "", fmt.Errorf("%w: %s", ErrUnknownBand, bandID)
	}

	entry.mu.Lock()
	entry.s.Status = tourist.SessionExited
	entry.s.ExitTime = r.clk.Now()
	uvid := entry.s.UVID
	entry.mu.Unlock()

	delete(r.active, bandID)
	r.freeBands = append(r.freeBands, bandID)
	activeCount := len(r.active)

	r.mu.Unlock()

	r.mets.SetActiveSessions(activeCount)

	logger.InfoKV(ctx, "Tourist exit recorded", "uvid", uvid, "band_id", bandID)

	r.saveSnapshot(ctx)

	return uvid, nil
}

// Lookup returns the tourist record and the full session history for a UVID,
// ordered by entry time ascending.
func (r *Registry) Lookup(uvid string) (*tourist.Tourist, []*tourist.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tourists[uvid]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTourist, uvid)
	}

	entries := r.sessions[uvid]

	history := make([]*tourist.Session, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		history = append(history, entry.s.Clone())
		entry.mu.Unlock()
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].EntryTime.Before(history[j].EntryTime)
	})

	return t.Clone(), history, nil
}

// ActiveSessions returns clones of all active sessions, ordered by band ID.
func (r *Registry) ActiveSessions() []*tourist.Session {
	r.mu.RLock()

	result := make([]*tourist.Session, 0, len(r.active))
	for _, entry := range r.active {
		entry.mu.Lock()
		result = append(result, entry.s.Clone())
		entry.mu.Unlock()
	}

	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].BandID < result[j].BandID
	})

	return result
}

// activeEntry finds the active session entry for a band under a read lock.
func (r *Registry) activeEntry(bandID string) (*sessionEntry, error) {
	r.mu.RLock()
	entry, ok := r.active[bandID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBand, bandID)
	}

	return entry, nil
}

// allocateUVID issues the next UVID for the year, collision-checked against
// the full historical index. Caller holds the registry lock.
func (r *Registry) allocateUVID(year int) string {
	for {
		r.uvidSeq[year]++

		uvid := fmt.Sprintf("UV-%d-%03d", year, r.uvidSeq[year])
		if _, taken := r.issuedUVIDs[uvid]; !taken {
			r.issuedUVIDs[uvid] = struct{}{}

			return uvid
		}
	}
}

// allocateBand reuses a released band ID when available, otherwise issues the
// next sequence number. Caller holds the registry lock.
func (r *Registry) allocateBand() string {
	for len(r.freeBands) > 0 {
		bandID := r.freeBands[len(r.freeBands)-1]
		r.freeBands = r.freeBands[:len(r.freeBands)-1]

		if _, bound := r.active[bandID]; !bound {
			return bandID
		}
	}

	for {
		r.bandSeq++

		bandID := fmt.Sprintf("SB-%03d", r.bandSeq)
		if _, bound := r.active[bandID]; !bound {
			return bandID
		}
	}
}

// validate checks required registration fields.
func validate(info Info) error {
	var missing []string

	if strings.TrimSpace(info.Name) == "" {
		missing = append(missing, "name")
	}

	if strings.TrimSpace(info.Email) == "" {
		missing = append(missing, "email")
	}

	if strings.TrimSpace(info.Phone) == "" {
		missing = append(missing, "phone")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}

	return nil
}

// restore rebuilds the in-memory indexes from a snapshot.
func (r *Registry) restore(state *snapshot.State) {
	for _, t := range state.Tourists {
		r.tourists[t.UVID] = t
		r.issuedUVIDs[t.UVID] = struct{}{}
	}

	for _, s := range state.Sessions {
		entry := &sessionEntry{s: s}
		r.sessions[s.UVID] = append(r.sessions[s.UVID], entry)

		if s.Status == tourist.SessionActive {
			r.active[s.BandID] = entry
		}
	}

	for year, seq := range state.UVIDSeq {
		r.uvidSeq[year] = seq
	}

	r.bandSeq = state.BandSeq
	r.freeBands = append(r.freeBands, state.FreeBands...)
}

// saveSnapshot persists the current state when a repository is wired.
// Persistence failures are logged, not propagated: losing a snapshot must
// never fail the registration or exit that triggered it.
func (r *Registry) saveSnapshot(ctx context.Context) {
	if r.snapshots == nil {
		return
	}

	r.mu.RLock()

	state := &snapshot.State{
		Tourists:  make([]*tourist.Tourist, 0, len(r.tourists)),
		Sessions:  make([]*tourist.Session, 0),
		UVIDSeq:   make(map[int]int, len(r.uvidSeq)),
		BandSeq:   r.bandSeq,
		FreeBands: append([]string(nil), r.freeBands...),
	}

	for _, t := range r.tourists {
		state.Tourists = append(state.Tourists, t.Clone())
	}

	for _, entries := range r.sessions {
		for _, entry := range entries {
			entry.mu.Lock()
			state.Sessions = append(state.Sessions, entry.s.Clone())
			entry.mu.Unlock()
		}
	}

	for year, seq := range r.uvidSeq {
		state.UVIDSeq[year] = seq
	}

	r.mu.RUnlock()

	if err := r.snapshots.Save(ctx, state); err != nil {
		logger.ErrorKV(ctx, "Failed to persist registry snapshot", "error", err)
	}
}
