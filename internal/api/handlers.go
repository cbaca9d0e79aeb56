package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tourguard/safety-band/internal/aggregate"
	"github.com/tourguard/safety-band/internal/domain/alert"
	"github.com/tourguard/safety-band/internal/domain/tourist"
	"github.com/tourguard/safety-band/internal/incident"
	"github.com/tourguard/safety-band/internal/registry"
)

type registerRequest struct {
	// Name is the visitor's legal name.
	Name string `json:"name"`
	// Email is the visitor's contact email.
	Email string `json:"email"`
	// Phone is the visitor's contact phone number.
	Phone string `json:"phone"`
	// Nationality is the visitor's nationality. Optional.
	Nationality string `json:"nationality,omitempty"`
}

type registerResponse struct {
	// UVID is the issued unique visit identifier.
	UVID string `json:"uvid"`
	// BandID is the band bound to the visit.
	BandID string `json:"band_id"`
}

type coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type locationEvent struct {
	// BandID identifies the reporting device.
	BandID string `json:"band_id"`
	// Location is the sampled position.
	Location coordinates `json:"location"`
	// Timestamp is when the device took the sample.
	Timestamp time.Time `json:"timestamp"`
}

type buttonEvent struct {
	// BandID identifies the reporting device.
	BandID string `json:"band_id"`
	// Location is the position at hold completion.
	Location coordinates `json:"location"`
	// HeldMs is the hold duration in milliseconds.
	HeldMs int64 `json:"held_ms"`
	// Timestamp is when the hold completed.
	Timestamp time.Time `json:"timestamp"`
}

type exitEvent struct {
	// BandID identifies the device being returned.
	BandID string `json:"band_id"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)

		return
	}

	uvid, bandID, err := a.registry.Register(r.Context(), registry.Info{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Nationality: req.Nationality,
	})
	if err != nil {
		respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusCreated, registerResponse{UVID: uvid, BandID: bandID})
}

func (a *API) handleLocation(w http.ResponseWriter, r *http.Request) {
	var ev locationEvent
	if err := decodeBody(r, &ev); err != nil {
		respondError(w, r, err)

		return
	}

	if ev.BandID == "" || ev.Timestamp.IsZero() {
		respondError(w, r, fmt.Errorf("%w: band_id and timestamp are required", registry.ErrValidation))

		return
	}

	changed, err := a.registry.RecordLocation(r.Context(), ev.BandID,
		tourist.Coordinates{Lat: ev.Location.Lat, Lon: ev.Location.Lon}, ev.Timestamp)
	if err != nil {
		respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"zone_changed": changed})
}

func (a *API) handleButton(w http.ResponseWriter, r *http.Request) {
	var ev buttonEvent
	if err := decodeBody(r, &ev); err != nil {
		respondError(w, r, err)

		return
	}

	if ev.BandID == "" || ev.Timestamp.IsZero() {
		respondError(w, r, fmt.Errorf("%w: band_id and timestamp are required", registry.ErrValidation))

		return
	}

	qualified, err := a.registry.RecordButtonHold(r.Context(), ev.BandID,
		tourist.Coordinates{Lat: ev.Location.Lat, Lon: ev.Location.Lon},
		time.Duration(ev.HeldMs)*time.Millisecond, ev.Timestamp)
	if err != nil {
		respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusAccepted, map[string]bool{"qualified": qualified})
}

func (a *API) handleExit(w http.ResponseWriter, r *http.Request) {
	var ev exitEvent
	if err := decodeBody(r, &ev); err != nil {
		respondError(w, r, err)

		return
	}

	uvid, err := a.registry.RecordExit(r.Context(), ev.BandID)
	if err != nil {
		respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"uvid": uvid})
}

type contactUpdateRequest struct {
	// Email is the corrected contact email. Optional.
	Email string `json:"email,omitempty"`
	// Phone is the corrected contact phone. Optional.
	Phone string `json:"phone,omitempty"`
}

func (a *API) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	var req contactUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)

		return
	}

	err := a.registry.UpdateContact(r.Context(), chi.URLParam(r, "uvid"),
		registry.ContactUpdate{Email: req.Email, Phone: req.Phone})
	if err != nil {
		respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

type touristResponse struct {
	Tourist  touristDTO   `json:"tourist"`
	Sessions []sessionDTO `json:"sessions"`
}

func (a *API) handleLookup(w http.ResponseWriter, r *http.Request) {
	uvid := chi.URLParam(r, "uvid")

	t, sessions, err := a.registry.Lookup(uvid)
	if err != nil {
		respondError(w, r, err)

		return
	}

	resp := touristResponse{
		Tourist:  newTouristDTO(t),
		Sessions: make([]sessionDTO, 0, len(sessions)),
	}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, newSessionDTO(s))
	}

	respondJSON(w, http.StatusOK, resp)
}

type sessionListResponse struct {
	Sessions []sessionDTO `json:"sessions"`
	Count    int          `json:"count"`
}

func (a *API) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions := a.registry.ActiveSessions()

	resp := sessionListResponse{
		Sessions: make([]sessionDTO, 0, len(sessions)),
		Count:    len(sessions),
	}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, newSessionDTO(s))
	}

	respondJSON(w, http.StatusOK, resp)
}

type alertListResponse struct {
	Alerts []alertDTO `json:"alerts"`
	Count  int        `json:"count"`
}

func (a *API) handleOpenAlerts(w http.ResponseWriter, r *http.Request) {
	open := a.engine.OpenAlerts()

	resp := alertListResponse{
		Alerts: make([]alertDTO, 0, len(open)),
		Count:  len(open),
	}
	for _, al := range open {
		resp.Alerts = append(resp.Alerts, newAlertDTO(al))
	}

	respondJSON(w, http.StatusOK, resp)
}

type resolveRequest struct {
	// Resolution is the operator's free-form outcome note.
	Resolution string `json:"resolution"`
}

func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)

		return
	}

	if err := a.engine.Resolve(r.Context(), chi.URLParam(r, "id"), req.Resolution); err != nil {
		respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleEscalate(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Escalate(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

type responderRequest struct {
	// Responder identifies the manager or unit handling the alert.
	Responder string `json:"responder"`
}

func (a *API) handleAssignResponder(w http.ResponseWriter, r *http.Request) {
	var req responderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)

		return
	}

	if err := a.engine.AssignResponder(r.Context(), chi.URLParam(r, "id"), req.Responder); err != nil {
		respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

type incidentListResponse struct {
	Incidents []incidentDTO `json:"incidents"`
	Count     int           `json:"count"`
}

func (a *API) handleIncidents(w http.ResponseWriter, r *http.Request) {
	filter, err := incidentFilter(r)
	if err != nil {
		respondError(w, r, err)

		return
	}

	records, err := a.store.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)

		return
	}

	resp := incidentListResponse{
		Incidents: make([]incidentDTO, 0, len(records)),
		Count:     len(records),
	}
	for _, rec := range records {
		resp.Incidents = append(resp.Incidents, newIncidentDTO(rec))
	}

	respondJSON(w, http.StatusOK, resp)
}

// incidentFilter parses the incident query parameters: uvid, zone, level,
// from and to (RFC 3339).
func incidentFilter(r *http.Request) (incident.Filter, error) {
	q := r.URL.Query()

	filter := incident.Filter{
		UVID: q.Get("uvid"),
		Zone: q.Get("zone"),
	}

	if raw := q.Get("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil || (level != int(alert.Level1) && level != int(alert.Level2)) {
			return incident.Filter{}, fmt.Errorf("%w: level must be 1 or 2", registry.ErrValidation)
		}

		filter.Level = alert.Level(level)
	}

	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return incident.Filter{}, fmt.Errorf("%w: invalid from timestamp: %v", registry.ErrValidation, err)
		}

		filter.From = from
	}

	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return incident.Filter{}, fmt.Errorf("%w: invalid to timestamp: %v", registry.ErrValidation, err)
		}

		filter.To = to
	}

	return filter, nil
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	var window time.Duration

	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			respondError(w, r, fmt.Errorf("%w: invalid window %q", registry.ErrValidation, raw))

			return
		}

		window = parsed
	}

	summary, err := a.agg.Summary(r.Context(), window)
	if err != nil {
		respondError(w, r, err)

		return
	}

	respondJSON(w, http.StatusOK, newSummaryDTO(summary))
}

type touristDTO struct {
	UVID         string    `json:"uvid"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Nationality  string    `json:"nationality,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

func newTouristDTO(t *tourist.Tourist) touristDTO {
	return touristDTO{
		UVID:         t.UVID,
		Name:         t.Name,
		Email:        t.Email,
		Phone:        t.Phone,
		Nationality:  t.Nationality,
		RegisteredAt: t.RegisteredAt,
	}
}

type sessionDTO struct {
	UVID         string      `json:"uvid"`
	BandID       string      `json:"band_id"`
	EntryTime    time.Time   `json:"entry_time"`
	ExitTime     *time.Time  `json:"exit_time,omitempty"`
	Zone         string      `json:"zone,omitempty"`
	LastSeen     *time.Time  `json:"last_seen,omitempty"`
	LastLocation coordinates `json:"last_location"`
	Status       string      `json:"status"`
}

func newSessionDTO(s *tourist.Session) sessionDTO {
	dto := sessionDTO{
		UVID:         s.UVID,
		BandID:       s.BandID,
		EntryTime:    s.EntryTime,
		Zone:         s.Zone,
		LastLocation: coordinates{Lat: s.LastLocation.Lat, Lon: s.LastLocation.Lon},
		Status:       string(s.Status),
	}

	if !s.ExitTime.IsZero() {
		t := s.ExitTime
		dto.ExitTime = &t
	}

	if !s.LastSeen.IsZero() {
		t := s.LastSeen
		dto.LastSeen = &t
	}

	return dto
}

type alertDTO struct {
	ID          string      `json:"id"`
	UVID        string      `json:"uvid"`
	BandID      string      `json:"band_id"`
	Zone        string      `json:"zone,omitempty"`
	Level       int         `json:"level"`
	Priority    string      `json:"priority"`
	Status      string      `json:"status"`
	Responder   string      `json:"responder,omitempty"`
	Location    coordinates `json:"location"`
	CreatedAt   time.Time   `json:"created_at"`
	EscalatedAt *time.Time  `json:"escalated_at,omitempty"`
}

func newAlertDTO(a *alert.Alert) alertDTO {
	dto := alertDTO{
		ID:        a.ID,
		UVID:      a.UVID,
		BandID:    a.BandID,
		Zone:      a.Zone,
		Level:     int(a.Level),
		Priority:  string(a.Priority),
		Status:    string(a.Status),
		Responder: a.Responder,
		Location:  coordinates{Lat: a.Location.Lat, Lon: a.Location.Lon},
		CreatedAt: a.CreatedAt,
	}

	if !a.EscalatedAt.IsZero() {
		t := a.EscalatedAt
		dto.EscalatedAt = &t
	}

	return dto
}

type incidentDTO struct {
	AlertID             string      `json:"alert_id"`
	UVID                string      `json:"uvid"`
	BandID              string      `json:"band_id"`
	Zone                string      `json:"zone,omitempty"`
	Level               int         `json:"level"`
	Priority            string      `json:"priority"`
	Location            coordinates `json:"location"`
	Resolution          string      `json:"resolution"`
	CreatedAt           time.Time   `json:"created_at"`
	ResolvedAt          time.Time   `json:"resolved_at"`
	ResponseTimeSeconds float64     `json:"response_time_seconds"`
}

func newIncidentDTO(r incident.Record) incidentDTO {
	return incidentDTO{
		AlertID:             r.AlertID,
		UVID:                r.UVID,
		BandID:              r.BandID,
		Zone:                r.Zone,
		Level:               int(r.Level),
		Priority:            string(r.Priority),
		Location:            coordinates{Lat: r.Location.Lat, Lon: r.Location.Lon},
		Resolution:          r.Resolution,
		CreatedAt:           r.CreatedAt,
		ResolvedAt:          r.ResolvedAt,
		ResponseTimeSeconds: r.ResponseTime.Seconds(),
	}
}

type summaryDTO struct {
	GeneratedAt                time.Time      `json:"generated_at"`
	WindowSeconds              float64        `json:"window_seconds"`
	ActiveSessions             int            `json:"active_sessions"`
	SessionsByZone             map[string]int `json:"sessions_by_zone"`
	OpenAlerts                 int            `json:"open_alerts"`
	OpenByLevel                map[string]int `json:"open_by_level"`
	ResolvedInWindow           int            `json:"resolved_in_window"`
	AverageResponseTimeSeconds float64        `json:"average_response_time_seconds"`
	IncidentsByZone            map[string]int `json:"incidents_by_zone"`
	EscalatedToPolice          int            `json:"escalated_to_police"`
}

func newSummaryDTO(s *aggregate.Summary) summaryDTO {
	return summaryDTO{
		GeneratedAt:                s.GeneratedAt,
		WindowSeconds:              s.Window.Seconds(),
		ActiveSessions:             s.ActiveSessions,
		SessionsByZone:             s.SessionsByZone,
		OpenAlerts:                 s.OpenAlerts,
		OpenByLevel:                s.OpenByLevel,
		ResolvedInWindow:           s.ResolvedInWindow,
		AverageResponseTimeSeconds: s.AverageResponseTime.Seconds(),
		IncidentsByZone:            s.IncidentsByZone,
		EscalatedToPolice:          s.EscalatedToPolice,
	}
}
