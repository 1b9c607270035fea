package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"meetup-backend/internal/metrics"
	"meetup-backend/internal/models"
	"meetup-backend/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type stubHistory struct {
	mu      sync.Mutex
	records []*models.PairRecord
	err     error
	limit   int
}

func (s *stubHistory) ListByUserID(ctx context.Context, userID string, limit int) ([]*models.PairRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
	return s.records, s.err
}

func (s *stubHistory) lastLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

func (s *stubHistory) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func newTestServer(t *testing.T, history *stubHistory) *httptest.Server {
	t.Helper()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	matchmaking := services.NewMatchmakingService(services.Options{
		EnforceExpiry:   true,
		StrictDecisions: true,
		Metrics:         m,
	})
	metrics.RegisterStats(registry, matchmaking.Stats)

	deps := routerDeps{
		matchmaking: matchmaking,
		metrics:     m,
		gatherer:    registry,
		logger:      zerolog.Nop(),
	}
	if history != nil {
		deps.history = history
	}

	srv := httptest.NewServer(newRouter(deps))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, url, data, err)
		}
	}
	return resp.StatusCode, out
}

func TestPresenceValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing user", `{"lat": 1.2, "lng": 2.3}`},
		{"missing lat", `{"userId": "a", "lng": 2.3}`},
		{"null lng", `{"userId": "a", "lat": 1.2, "lng": null}`},
		{"zero lat", `{"userId": "a", "lat": 0, "lng": 2.3}`},
		{"string lat", `{"userId": "a", "lat": "1.2", "lng": 2.3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := doJSON(t, http.MethodPost, srv.URL+"/presence", tt.body)
			if code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
			if body["error"] != "Invalid payload" {
				t.Errorf("error = %v, want Invalid payload", body["error"])
			}
		})
	}
}

func TestMeetupFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	code, body := doJSON(t, http.MethodPost, srv.URL+"/presence", `{"userId": "A", "lat": 1.205, "lng": 2.309}`)
	if code != http.StatusOK || body["status"] != "WAITING" {
		t.Fatalf("A = %d %v, want 200 WAITING", code, body)
	}
	if _, ok := body["pairId"]; ok {
		t.Errorf("WAITING response carries pairId: %v", body)
	}

	code, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/presence", `{"userId": "B", "lat": 1.205, "lng": 2.309}`)
	if code != http.StatusOK || body["status"] != "PAIRED" {
		t.Fatalf("B = %d %v, want 200 PAIRED", code, body)
	}
	pairID, _ := body["pairId"].(string)
	if pairID == "" {
		t.Fatalf("B response missing pairId: %v", body)
	}

	_, body = doJSON(t, http.MethodGet, srv.URL+"/pairs/"+pairID, "")
	if body["status"] != "PENDING" {
		t.Fatalf("pair status = %v, want PENDING", body)
	}

	_, body = doJSON(t, http.MethodPost, srv.URL+"/decision",
		`{"pairId": "`+pairID+`", "userId": "A", "decision": "ACCEPT"}`)
	if body["status"] != "WAITING_OTHER" {
		t.Fatalf("A accept = %v, want status WAITING_OTHER", body)
	}

	_, body = doJSON(t, http.MethodPost, srv.URL+"/decision",
		`{"pairId": "`+pairID+`", "userId": "B", "decision": "ACCEPT"}`)
	if body["result"] != "MATCH_CONFIRMED" {
		t.Fatalf("B accept = %v, want result MATCH_CONFIRMED", body)
	}
	if _, ok := body["status"]; ok {
		t.Errorf("terminal response carries status: %v", body)
	}

	_, body = doJSON(t, http.MethodPost, srv.URL+"/decision",
		`{"pairId": "`+pairID+`", "userId": "B", "decision": "ACCEPT"}`)
	if body["status"] != "EXPIRED" {
		t.Errorf("decision after confirmation = %v, want status EXPIRED", body)
	}

	_, body = doJSON(t, http.MethodGet, srv.URL+"/pairs/"+pairID, "")
	if body["status"] != "EXPIRED" {
		t.Errorf("resolved pair status = %v, want EXPIRED", body)
	}
}

func TestDecisionRejections(t *testing.T) {
	srv := newTestServer(t, nil)

	doJSON(t, http.MethodPost, srv.URL+"/presence", `{"userId": "A", "lat": 5.5, "lng": 5.5}`)
	_, body := doJSON(t, http.MethodPost, srv.URL+"/presence", `{"userId": "B", "lat": 5.5, "lng": 5.5}`)
	pairID := body["pairId"].(string)

	code, _ := doJSON(t, http.MethodPost, srv.URL+"/decision",
		`{"pairId": "`+pairID+`", "userId": "Z", "decision": "DECLINE"}`)
	if code != http.StatusForbidden {
		t.Errorf("outsider status = %d, want 403", code)
	}

	code, _ = doJSON(t, http.MethodPost, srv.URL+"/decision",
		`{"pairId": "`+pairID+`", "userId": "A", "decision": "MAYBE"}`)
	if code != http.StatusBadRequest {
		t.Errorf("invalid decision status = %d, want 400", code)
	}

	code, _ = doJSON(t, http.MethodPost, srv.URL+"/decision", `not json`)
	if code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", code)
	}

	code, body = doJSON(t, http.MethodPost, srv.URL+"/decision",
		`{"pairId": "nope", "userId": "A", "decision": "ACCEPT"}`)
	if code != http.StatusOK || body["status"] != "EXPIRED" {
		t.Errorf("unknown pair = %d %v, want 200 EXPIRED", code, body)
	}
}

func TestLeaveEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	_, body := doJSON(t, http.MethodDelete, srv.URL+"/presence/ghost", "")
	if body["status"] != "NOT_FOUND" {
		t.Errorf("unknown user leave = %v, want NOT_FOUND", body)
	}

	doJSON(t, http.MethodPost, srv.URL+"/presence", `{"userId": "A", "lat": 5.5, "lng": 5.5}`)
	_, body = doJSON(t, http.MethodPost, srv.URL+"/presence", `{"userId": "B", "lat": 5.5, "lng": 5.5}`)
	pairID := body["pairId"].(string)

	_, body = doJSON(t, http.MethodDelete, srv.URL+"/presence/A", "")
	if body["status"] != "LEFT" || body["result"] != "CANCELLED" || body["pairId"] != pairID {
		t.Fatalf("leave = %v, want LEFT with cancelled pair", body)
	}

	_, body = doJSON(t, http.MethodPost, srv.URL+"/presence", `{"userId": "B", "lat": 5.5, "lng": 5.5}`)
	if body["status"] != "WAITING" {
		t.Errorf("B after partner left = %v, want WAITING", body)
	}
}

func TestHistoryRoute(t *testing.T) {
	srv := newTestServer(t, nil)
	code, _ := doJSON(t, http.MethodGet, srv.URL+"/users/A/pairs", "")
	if code != http.StatusNotFound {
		t.Errorf("history without database = %d, want 404", code)
	}

	history := &stubHistory{records: []*models.PairRecord{{ID: "p1", UserAID: "A", UserBID: "B"}}}
	srv = newTestServer(t, history)

	code, body := doJSON(t, http.MethodGet, srv.URL+"/users/A/pairs?limit=500", "")
	if code != http.StatusOK {
		t.Fatalf("history = %d, want 200", code)
	}
	pairs, _ := body["pairs"].([]any)
	if len(pairs) != 1 {
		t.Errorf("pairs = %v, want one record", body["pairs"])
	}
	if got := history.lastLimit(); got != 100 {
		t.Errorf("limit passed to store = %d, want clamped 100", got)
	}

	history.fail(errors.New("db down"))
	code, _ = doJSON(t, http.MethodGet, srv.URL+"/users/A/pairs", "")
	if code != http.StatusInternalServerError {
		t.Errorf("history with failing store = %d, want 500", code)
	}
}

func TestHealthCORSAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	code, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz = %d %v", code, body)
	}

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/presence", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %q", resp.StatusCode, resp.Header.Get("Access-Control-Allow-Origin"))
	}

	doJSON(t, http.MethodPost, srv.URL+"/presence", `{"userId": "A", "lat": 5.5, "lng": 5.5}`)

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	text := string(data)

	for _, want := range []string{
		`meetup_presence_reports_total{status="WAITING"} 1`,
		`meetup_users_waiting 1`,
		`meetup_http_request_duration_seconds_count{code="200",method="POST",route="/presence"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
