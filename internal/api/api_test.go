package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tourguard/safety-band/internal/aggregate"
	"github.com/tourguard/safety-band/internal/api"
	"github.com/tourguard/safety-band/internal/clock"
	"github.com/tourguard/safety-band/internal/config"
	"github.com/tourguard/safety-band/internal/engine"
	"github.com/tourguard/safety-band/internal/incident"
	"github.com/tourguard/safety-band/internal/registry"
	"github.com/tourguard/safety-band/internal/zone"
)

var apiStart = time.Date(2024, time.July, 14, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *clock.Fake) {
	t.Helper()

	clk := clock.NewFake(apiStart)
	resolver := zone.NewResolver([]config.Zone{
		{
			Name: "cliffs",
			Risk: "high",
			Polygon: []config.Vertex{
				{Lat: 10, Lon: 10}, {Lat: 10, Lon: 20}, {Lat: 20, Lon: 20}, {Lat: 20, Lon: 10},
			},
		},
		{
			Name: "beach",
			Polygon: []config.Vertex{
				{Lat: 50, Lon: 50}, {Lat: 50, Lon: 60}, {Lat: 60, Lon: 60}, {Lat: 60, Lon: 50},
			},
		},
	})
	store := incident.NewMemoryStore()

	reg, err := registry.New(context.Background(), clk, resolver, 5*time.Second)
	require.NoError(t, err)

	eng := engine.New(clk, resolver, store, nil)
	reg.SetAlertSink(eng)

	agg := aggregate.New(clk, reg, eng, store)

	srv := httptest.NewServer(api.New(reg, eng, store, agg).Router())
	t.Cleanup(srv.Close)

	return srv, clk
}

func doJSON(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func registerTourist(t *testing.T, base string) (string, string) {
	t.Helper()

	status, body := doJSON(t, http.MethodPost, base+"/api/v1/tourists", map[string]string{
		"name":        "Ada Laurent",
		"email":       "ada@example.com",
		"phone":       "+33-600-000-001",
		"nationality": "FR",
	})
	require.Equal(t, http.StatusCreated, status)

	var resp struct {
		UVID   string `json:"uvid"`
		BandID string `json:"band_id"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.UVID)
	require.NotEmpty(t, resp.BandID)

	return resp.UVID, resp.BandID
}

func sendButtonHold(t *testing.T, base, bandID string, heldMs int64, at time.Time) (int, []byte) {
	t.Helper()

	return doJSON(t, http.MethodPost, base+"/api/v1/events/button", map[string]any{
		"band_id":   bandID,
		"location":  map[string]float64{"lat": 15, "lon": 15},
		"held_ms":   heldMs,
		"timestamp": at.Format(time.RFC3339),
	})
}

func TestRegisterAndLookup(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	uvid, bandID := registerTourist(t, srv.URL)
	require.Equal(t, "UV-2024-001", uvid)
	require.Equal(t, "SB-001", bandID)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/tourists/"+uvid, nil)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Tourist struct {
			UVID string `json:"uvid"`
			Name string `json:"name"`
		} `json:"tourist"`
		Sessions []struct {
			BandID string `json:"band_id"`
			Status string `json:"status"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, uvid, resp.Tourist.UVID)
	require.Equal(t, "Ada Laurent", resp.Tourist.Name)
	require.Len(t, resp.Sessions, 1)
	require.Equal(t, bandID, resp.Sessions[0].BandID)
	require.Equal(t, "Active", resp.Sessions[0].Status)
}

func TestUpdateContact(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	uvid, _ := registerTourist(t, srv.URL)

	status, _ := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/tourists/"+uvid,
		map[string]string{"phone": "+33-600-000-099"})
	require.Equal(t, http.StatusNoContent, status)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/tourists/"+uvid, nil)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Tourist struct {
			Email string `json:"email"`
			Phone string `json:"phone"`
		} `json:"tourist"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, "ada@example.com", resp.Tourist.Email)
	require.Equal(t, "+33-600-000-099", resp.Tourist.Phone)

	status, _ = doJSON(t, http.MethodPatch, srv.URL+"/api/v1/tourists/"+uvid,
		map[string]string{})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPatch, srv.URL+"/api/v1/tourists/UV-2024-999",
		map[string]string{"email": "x@example.com"})
	require.Equal(t, http.StatusNotFound, status)
}

func TestLookupUnknownTourist(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	status, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/tourists/UV-2024-999", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tourists", map[string]string{
		"name": "No Contact",
	})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestLocationEvents(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	_, bandID := registerTourist(t, srv.URL)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/events/location", map[string]any{
		"band_id":   bandID,
		"location":  map[string]float64{"lat": 15, "lon": 15},
		"timestamp": apiStart.Add(time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"zone_changed": true}`, string(body))

	// An older sample is rejected without mutating the session.
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/events/location", map[string]any{
		"band_id":   bandID,
		"location":  map[string]float64{"lat": 55, "lon": 55},
		"timestamp": apiStart.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusConflict, status)

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/events/location", map[string]any{
		"band_id":   "SB-999",
		"location":  map[string]float64{"lat": 15, "lon": 15},
		"timestamp": apiStart.Add(2 * time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusNotFound, status)
}

func TestButtonHoldLifecycle(t *testing.T) {
	t.Parallel()

	srv, clk := newTestServer(t)
	uvid, bandID := registerTourist(t, srv.URL)

	// A short press does not qualify.
	status, body := sendButtonHold(t, srv.URL, bandID, 1000, apiStart.Add(time.Minute))
	require.Equal(t, http.StatusAccepted, status)
	require.JSONEq(t, `{"qualified": false}`, string(body))

	status, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/alerts/", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = sendButtonHold(t, srv.URL, bandID, 6000, apiStart.Add(2*time.Minute))
	require.Equal(t, http.StatusAccepted, status)
	require.JSONEq(t, `{"qualified": true}`, string(body))

	status, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/alerts/", nil)
	require.Equal(t, http.StatusOK, status)

	var alerts struct {
		Alerts []struct {
			ID       string `json:"id"`
			UVID     string `json:"uvid"`
			Level    int    `json:"level"`
			Priority string `json:"priority"`
		} `json:"alerts"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &alerts))
	require.Equal(t, 1, alerts.Count)
	require.Equal(t, uvid, alerts.Alerts[0].UVID)
	require.Equal(t, 1, alerts.Alerts[0].Level)
	// The hold location is inside the high-risk cliffs zone.
	require.Equal(t, "High", alerts.Alerts[0].Priority)

	alertID := alerts.Alerts[0].ID

	status, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/alerts/%s/responder", srv.URL, alertID),
		map[string]string{"responder": "manager-1"})
	require.Equal(t, http.StatusNoContent, status)

	clk.Advance(10 * time.Minute)

	status, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/alerts/%s/resolve", srv.URL, alertID),
		map[string]string{"resolution": "false alarm - accidental press"})
	require.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/alerts/%s/resolve", srv.URL, alertID),
		map[string]string{"resolution": "again"})
	require.Equal(t, http.StatusConflict, status)

	status, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/incidents", nil)
	require.Equal(t, http.StatusOK, status)

	var incidents struct {
		Incidents []struct {
			AlertID             string  `json:"alert_id"`
			Resolution          string  `json:"resolution"`
			ResponseTimeSeconds float64 `json:"response_time_seconds"`
		} `json:"incidents"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &incidents))
	require.Equal(t, 1, incidents.Count)
	require.Equal(t, alertID, incidents.Incidents[0].AlertID)
	require.Equal(t, "false alarm - accidental press", incidents.Incidents[0].Resolution)
	require.InDelta(t, (10 * time.Minute).Seconds(), incidents.Incidents[0].ResponseTimeSeconds, 0.001)
}

func TestEscalateEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	_, bandID := registerTourist(t, srv.URL)

	status, _ := sendButtonHold(t, srv.URL, bandID, 6000, apiStart.Add(time.Minute))
	require.Equal(t, http.StatusAccepted, status)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/alerts/", nil)
	require.Equal(t, http.StatusOK, status)

	var alerts struct {
		Alerts []struct {
			ID    string `json:"id"`
			Level int    `json:"level"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(body, &alerts))
	require.Len(t, alerts.Alerts, 1)

	alertID := alerts.Alerts[0].ID

	status, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/alerts/%s/escalate", srv.URL, alertID), nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/alerts/%s/escalate", srv.URL, alertID), nil)
	require.Equal(t, http.StatusConflict, status)

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/alerts/", nil)
	require.NoError(t, json.Unmarshal(body, &alerts))
	require.Equal(t, 2, alerts.Alerts[0].Level)
}

func TestExitEvent(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	uvid, bandID := registerTourist(t, srv.URL)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/events/exit",
		map[string]string{"band_id": bandID})
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, fmt.Sprintf(`{"uvid": %q}`, uvid), string(body))

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/events/exit",
		map[string]string{"band_id": bandID})
	require.Equal(t, http.StatusNotFound, status)

	status, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/sessions/active", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"sessions": [], "count": 0}`, string(body))
}

func TestBandReuseWithOpenAlert(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	firstUVID, bandID := registerTourist(t, srv.URL)

	status, _ := sendButtonHold(t, srv.URL, bandID, 6000, apiStart.Add(time.Minute))
	require.Equal(t, http.StatusAccepted, status)

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/events/exit",
		map[string]string{"band_id": bandID})
	require.Equal(t, http.StatusOK, status)

	// The freed band goes to the next registration while the first visit's
	// alert is still open.
	secondUVID, reusedBand := registerTourist(t, srv.URL)
	require.Equal(t, bandID, reusedBand)
	require.NotEqual(t, firstUVID, secondUVID)

	status, _ = sendButtonHold(t, srv.URL, reusedBand, 6000, apiStart.Add(2*time.Minute))
	require.Equal(t, http.StatusAccepted, status)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/alerts/", nil)
	require.Equal(t, http.StatusOK, status)

	var alerts struct {
		Alerts []struct {
			UVID  string `json:"uvid"`
			Level int    `json:"level"`
		} `json:"alerts"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &alerts))

	// Each visit has its own level 1 alert; the reused band never escalated
	// the previous visit's emergency.
	require.Equal(t, 2, alerts.Count)

	byUVID := make(map[string]int, len(alerts.Alerts))
	for _, a := range alerts.Alerts {
		byUVID[a.UVID] = a.Level
	}

	require.Equal(t, map[string]int{firstUVID: 1, secondUVID: 1}, byUVID)
}

func TestIncidentFilterValidation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	status, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/incidents?level=3", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/incidents?from=not-a-time", nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestSummaryEndpoint(t *testing.T) {
	t.Parallel()

	srv, clk := newTestServer(t)
	_, bandID := registerTourist(t, srv.URL)

	status, _ := sendButtonHold(t, srv.URL, bandID, 6000, apiStart.Add(time.Minute))
	require.Equal(t, http.StatusAccepted, status)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/alerts/", nil)
	require.Equal(t, http.StatusOK, status)

	var alerts struct {
		Alerts []struct {
			ID string `json:"id"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(body, &alerts))
	require.Len(t, alerts.Alerts, 1)

	clk.Advance(5 * time.Minute)

	status, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/alerts/%s/resolve", srv.URL, alerts.Alerts[0].ID),
		map[string]string{"resolution": "assisted on site"})
	require.Equal(t, http.StatusNoContent, status)

	status, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/summary?window=1h", nil)
	require.Equal(t, http.StatusOK, status)

	var summary struct {
		ActiveSessions             int     `json:"active_sessions"`
		OpenAlerts                 int     `json:"open_alerts"`
		ResolvedInWindow           int     `json:"resolved_in_window"`
		AverageResponseTimeSeconds float64 `json:"average_response_time_seconds"`
	}
	require.NoError(t, json.Unmarshal(body, &summary))
	require.Equal(t, 1, summary.ActiveSessions)
	require.Zero(t, summary.OpenAlerts)
	require.Equal(t, 1, summary.ResolvedInWindow)
	require.InDelta(t, (5 * time.Minute).Seconds(), summary.AverageResponseTimeSeconds, 0.001)

	status, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/summary?window=banana", nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status": "ok"}`, string(body))
}
