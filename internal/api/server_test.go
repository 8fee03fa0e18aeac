package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/loginlens-project/loginlens/internal/core"
	"github.com/loginlens-project/loginlens/internal/report"
)

const sampleCSV = `user,time,lat,lng,device,ip
alice,2025-03-01 10:00:00,40.7128,-74.0060,laptop-1,1.1.1.1
alice,2025-03-01 10:15:00,35.6762,139.6503,laptop-1,1.1.1.1
bob,2025-03-01 03:00:00,51.5074,-0.1278,phone-2,2.2.2.2
`

func newTestServer(t *testing.T, keys []string) *Server {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Server.APIKeys = keys
	return NewServer(cfg, zerolog.Nop(), nil)
}

func do(t *testing.T, s *Server, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// ─── Auth ───────────────────────────────────────────────────────────────────

func TestAuthRejectsBadKey(t *testing.T) {
	s := newTestServer(t, []string{"secret"})

	rec := do(t, s, http.MethodPost, "/api/v1/detect", "{}", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status %d, want 401", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/detect", "{}", map[string]string{"X-API-Key": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad key: status %d, want 401", rec.Code)
	}
}

func TestAuthSkipsHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, []string{"secret"})
	for _, path := range []string{"/health", "/metrics"} {
		rec := do(t, s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d, want 200 without a key", path, rec.Code)
		}
	}
}

func TestAuthOpenWhenNoKeysConfigured(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/v1/report", "", nil)
	if rec.Code == http.StatusUnauthorized {
		t.Fatal("keyless server should not demand an API key")
	}
}

// ─── Pipeline ───────────────────────────────────────────────────────────────

func TestIngestDetectReportFlow(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/datasets?format=csv", sampleCSV, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/v1/detect", "{}", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detect: status %d, body %s", rec.Code, rec.Body.String())
	}
	var bundle report.Bundle
	if err := json.NewDecoder(rec.Body).Decode(&bundle); err != nil {
		t.Fatal(err)
	}
	if bundle.Summary.TotalEvents != 3 {
		t.Errorf("total events = %d, want 3", bundle.Summary.TotalEvents)
	}
	if bundle.Summary.UniqueUsers != 2 {
		t.Errorf("unique users = %d, want 2", bundle.Summary.UniqueUsers)
	}
	if len(bundle.Alerts) != 3 {
		t.Errorf("alerts = %d, want one per event", len(bundle.Alerts))
	}

	rec = do(t, s, http.MethodGet, "/api/v1/report", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: status %d", rec.Code)
	}
	var reported report.Bundle
	if err := json.NewDecoder(rec.Body).Decode(&reported); err != nil {
		t.Fatal(err)
	}
	if reported.RunID != bundle.RunID {
		t.Errorf("report returned a different run: %s vs %s", reported.RunID, bundle.RunID)
	}
}

func TestDetectWithoutDataset(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/v1/detect", "{}", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
}

func TestDatasetsRejectsUnmappableInput(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/v1/datasets?format=csv", "foo,bar\n1,2\n", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("required columns")) {
		t.Errorf("error body should name the missing columns: %s", rec.Body.String())
	}
}

func TestSettingsRederivesWithoutRescoring(t *testing.T) {
	s := newTestServer(t, nil)

	do(t, s, http.MethodPost, "/api/v1/datasets?format=csv", sampleCSV, nil)
	rec := do(t, s, http.MethodPost, "/api/v1/detect", "{}", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detect: status %d", rec.Code)
	}
	var first report.Bundle
	if err := json.NewDecoder(rec.Body).Decode(&first); err != nil {
		t.Fatal(err)
	}

	// Drop the thresholds so every score crosses the warning bar.
	tightened := core.DefaultSettings()
	tightened.WarningScore = 1
	tightened.CriticalScore = 30
	body, _ := json.Marshal(tightened)

	rec = do(t, s, http.MethodPost, "/api/v1/settings", string(body), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("settings: status %d, body %s", rec.Code, rec.Body.String())
	}
	var rederived report.Bundle
	if err := json.NewDecoder(rec.Body).Decode(&rederived); err != nil {
		t.Fatal(err)
	}

	if len(rederived.Risks) != len(first.Risks) {
		t.Fatalf("re-derivation changed event count: %d vs %d", len(rederived.Risks), len(first.Risks))
	}
	for i, r := range rederived.Risks {
		if r.Score != first.Risks[i].Score {
			t.Errorf("event %d score changed on re-derivation: %d vs %d", i, r.Score, first.Risks[i].Score)
		}
		want := core.LevelForScore(r.Score, tightened)
		if r.Level != want {
			t.Errorf("event %d level = %s, want %s under new thresholds", i, r.Level, want)
		}
	}
	if rederived.Summary.LowCount != 0 {
		t.Errorf("with warning=1 nothing stays low, got %d", rederived.Summary.LowCount)
	}
}

func TestSettingsWithoutPriorRun(t *testing.T) {
	s := newTestServer(t, nil)
	body, _ := json.Marshal(core.DefaultSettings())
	rec := do(t, s, http.MethodPost, "/api/v1/settings", string(body), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
}

func TestSettingsRejectsInvalidThresholds(t *testing.T) {
	s := newTestServer(t, nil)
	bad := core.DefaultSettings()
	bad.WarningScore = 90
	bad.CriticalScore = 50
	body, _ := json.Marshal(bad)
	rec := do(t, s, http.MethodPost, "/api/v1/settings", string(body), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestReportLiveWidensTopEntities(t *testing.T) {
	s := newTestServer(t, nil)

	// Ten subjects, one event each, so the default ranking caps at eight.
	var b strings.Builder
	b.WriteString("user,time\n")
	for i := 0; i < 10; i++ {
		b.WriteString(string(rune('a'+i)) + ",2025-03-01 10:00:00\n")
	}
	do(t, s, http.MethodPost, "/api/v1/datasets?format=csv", b.String(), nil)
	rec := do(t, s, http.MethodPost, "/api/v1/detect", "{}", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detect: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/v1/report", "", nil)
	var capped report.Bundle
	if err := json.NewDecoder(rec.Body).Decode(&capped); err != nil {
		t.Fatal(err)
	}
	if len(capped.TopEntities) != report.TopEntityLimit {
		t.Errorf("default ranking = %d entities, want %d", len(capped.TopEntities), report.TopEntityLimit)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/report?top=live", "", nil)
	var live report.Bundle
	if err := json.NewDecoder(rec.Body).Decode(&live); err != nil {
		t.Fatal(err)
	}
	if len(live.TopEntities) != 10 {
		t.Errorf("live ranking = %d entities, want all 10", len(live.TopEntities))
	}
}

func TestMethodGuards(t *testing.T) {
	s := newTestServer(t, nil)
	cases := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/datasets"},
		{http.MethodGet, "/api/v1/detect"},
		{http.MethodGet, "/api/v1/settings"},
		{http.MethodPost, "/api/v1/report"},
	}
	for _, tc := range cases {
		rec := do(t, s, tc.method, tc.path, "", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status %d, want 405", tc.method, tc.path, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Server.CORSOrigins = []string{"*"}
	s := NewServer(cfg, zerolog.Nop(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/report", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("missing CORS allow-origin header")
	}
}
