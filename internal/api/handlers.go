package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/loginlens-project/loginlens/internal/core"
	"github.com/loginlens-project/loginlens/internal/detect"
	"github.com/loginlens-project/loginlens/internal/ingest"
	"github.com/loginlens-project/loginlens/internal/report"
)

const maxUploadBytes = 64 << 20 // 64MB

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleDatasets ingests raw bytes under a format hint (?format=csv|json|
// text|auto) and returns the canonical events, raw headers, and resolved
// schema mapping. The events are retained as the current dataset.
func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	format, err := ingest.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty request body")
		return
	}

	ds, err := ingest.Parse(data, format)
	if err != nil {
		// Schema and format errors travel to the caller verbatim; they
		// contain what a human needs to fix the source data.
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	s.lastEvents = ds.Events
	s.lastBundle = nil
	s.mu.Unlock()

	datasetsIngested.Inc()
	s.logger.Info().Int("events", len(ds.Events)).Str("format", format.String()).Msg("dataset ingested")
	writeJSON(w, http.StatusOK, ds)
}

type detectRequest struct {
	Events   []core.CanonicalEvent   `json:"events,omitempty"`
	Settings *core.DetectionSettings `json:"settings,omitempty"`
}

// handleDetect runs the scoring engine plus derivation over the supplied
// events (or the current dataset when none are supplied) and returns the
// result bundle.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req detectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "decoding request: "+err.Error())
		return
	}

	settings := s.cfg.Detection
	if req.Settings != nil {
		settings = *req.Settings
	}
	if err := settings.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events := req.Events
	if len(events) == 0 {
		s.mu.RLock()
		events = s.lastEvents
		s.mu.RUnlock()
	}
	if len(events) == 0 {
		writeError(w, http.StatusConflict, "no dataset to score: ingest one or include events in the request")
		return
	}

	start := time.Now()
	risks, err := detect.NewEngine(s.logger, settings).Run(events)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	bundle := report.Derive(risks, settings)
	detectDuration.Observe(time.Since(start).Seconds())
	eventsScored.Add(float64(len(events)))
	countAlerts(bundle)

	s.mu.Lock()
	s.lastEvents = events
	s.lastSettings = settings
	s.lastBundle = bundle
	s.mu.Unlock()

	s.publish(bundle)
	writeJSON(w, http.StatusOK, bundle)
}

// handleSettings re-derives the last bundle under new thresholds without
// rescoring — the live re-derivation path.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var settings core.DetectionSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "decoding settings: "+err.Error())
		return
	}
	if err := settings.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	prev := s.lastBundle
	if prev == nil {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "no prior detection run to re-derive")
		return
	}
	bundle := report.Rederive(prev, settings)
	s.lastSettings = settings
	s.lastBundle = bundle
	s.mu.Unlock()

	countAlerts(bundle)
	s.publish(bundle)
	writeJSON(w, http.StatusOK, bundle)
}

// handleReport returns the last derived bundle, with ?top=N widening the
// entity ranking for interactive views.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	s.mu.RLock()
	bundle := s.lastBundle
	s.mu.RUnlock()
	if bundle == nil {
		writeError(w, http.StatusNotFound, "no detection run yet")
		return
	}
	if r.URL.Query().Get("top") == "live" {
		widened := *bundle
		widened.TopEntities = report.TopEntities(bundle.Risks, report.LiveTopEntityLimit)
		writeJSON(w, http.StatusOK, &widened)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) publish(bundle *report.Bundle) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishBundle(bundle); err != nil {
		s.logger.Error().Err(err).Str("run_id", bundle.RunID).Msg("publishing bundle")
	}
}

func countAlerts(bundle *report.Bundle) {
	for _, a := range bundle.Alerts {
		alertsRaised.WithLabelValues(a.Severity.String()).Inc()
	}
}
