// Package detect implements the behavioral risk scoring engine. It consumes
// a complete, already-normalized event sequence and produces one EventRisk
// per event using per-subject sequential comparison plus dataset-wide
// statistical baselines. Scoring is deterministic given input and settings
// and never fails on malformed per-event data — bad data becomes signal.
package detect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/loginlens-project/loginlens/internal/core"
	"github.com/loginlens-project/loginlens/internal/schema"
)

// Rule point deltas. Additive on top of the baseline, clamped to [0,100].
const (
	baselineScore = 5

	deltaOffHours        = 10
	deltaMissingDevice   = 20
	deltaInvalidGeo      = 35
	deltaFailedStatus    = 18
	deltaDeviceSwitch    = 22
	deltaImpossibleTrip  = 30
	deltaIPShift         = 12
	deltaBurst           = 18
	deltaAnomalyFlag     = 15
	deltaSensitiveFlag   = 10
	deltaMFADisabled     = 12
	deltaFailedLoginHigh = 18
	deltaFailedLoginMed  = 10
	deltaIncidents       = 14
	deltaResets          = 12
	deltaFailedTx        = 12
	deltaDeviceConsist   = 10
	deltaLocConsist      = 10
	deltaLoginConsist    = 8
)

// Fixed rule constants. Absolute behavioral thresholds are tunable fallbacks
// for zero-variance fields, not statistically derived.
const (
	offHoursLastHour   = 4
	minTravelKM        = 350
	ipShiftWindow      = 15 * time.Minute
	zScoreLimit        = 1.5
	incidentsThreshold = 4
	resetsThreshold    = 3
	failedTxThreshold  = 3
)

// Engine scores an ordered batch of canonical events.
type Engine struct {
	logger   zerolog.Logger
	settings core.DetectionSettings
}

// NewEngine creates a scoring engine bound to one settings object.
func NewEngine(logger zerolog.Logger, settings core.DetectionSettings) *Engine {
	return &Engine{
		logger:   logger.With().Str("component", "detect_engine").Logger(),
		settings: settings,
	}
}

// timedEvent pairs an event with its parsed timestamp and original input
// position. Unparseable timestamps carry the zero time and sort first;
// stable sorting keeps their relative input order.
type timedEvent struct {
	ev   core.CanonicalEvent
	when time.Time
	ok   bool
	pos  int
}

// featureSet records which rule families the dataset can support at all.
// A dataset that never populates a field must not be penalized for it.
type featureSet struct {
	geo        bool
	device     bool
	time       bool
	behavioral bool
}

func detectFeatures(events []core.CanonicalEvent) featureSet {
	var f featureSet
	f.behavioral = len(events[0].Extras) > 0
	for _, ev := range events {
		if !zeroCoords(ev.Lat, ev.Long) {
			f.geo = true
		}
		if dev := normalizeDevice(ev.DeviceID); dev != "" {
			f.device = true
		}
		if _, ok := core.ParseWhen(ev.Timestamp); ok {
			f.time = true
		}
	}
	return f
}

// normalizeDevice treats blank and "unknown" device values as absent.
func normalizeDevice(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "unknown" {
		return ""
	}
	return s
}

// Run scores the full event sequence. The output is indexed by the input
// order; risk levels reflect the engine's settings but are derivable from
// score alone.
func (e *Engine) Run(events []core.CanonicalEvent) ([]core.EventRisk, error) {
	if len(events) == 0 {
		return nil, errors.New("no events to score")
	}

	features := detectFeatures(events)

	sorted := make([]timedEvent, len(events))
	for i, ev := range events {
		when, ok := core.ParseWhen(ev.Timestamp)
		sorted[i] = timedEvent{ev: ev, when: when, ok: ok, pos: i}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].when.Before(sorted[j].when)
	})

	// One contiguous index slice per subject, in chronological order.
	perUser := make(map[string][]int)
	for i, te := range sorted {
		perUser[te.ev.UserID] = append(perUser[te.ev.UserID], i)
	}

	var baselines map[string]fieldBaseline
	if features.behavioral {
		baselines = map[string]fieldBaseline{
			schema.SignalIncidentReports:    behavioralBaseline(events, schema.SignalIncidentReports),
			schema.SignalPasswordResets:     behavioralBaseline(events, schema.SignalPasswordResets),
			schema.SignalFailedTransactions: behavioralBaseline(events, schema.SignalFailedTransactions),
		}
	}

	risks := make([]core.EventRisk, len(events))
	for _, indices := range perUser {
		windowStart := 0
		for seq, si := range indices {
			te := sorted[si]
			var prev *timedEvent
			if seq > 0 {
				prev = &sorted[indices[seq-1]]
			}

			score := baselineScore
			var reasons []string
			add := func(delta int, reason string) {
				score += delta
				reasons = append(reasons, reason)
			}

			e.scoreEvent(te, prev, features, add)

			// Login burst: sliding window over this subject's chronology.
			if features.time && te.ok {
				windowLen := time.Duration(e.settings.BurstWindowMin * float64(time.Minute))
				cutoff := te.when.Add(-windowLen)
				for windowStart < seq {
					earlier := sorted[indices[windowStart]]
					if earlier.ok && !earlier.when.Before(cutoff) {
						break
					}
					windowStart++
				}
				if count := seq - windowStart + 1; count >= e.settings.BurstCount {
					add(deltaBurst, fmt.Sprintf("login burst: %d logins within %.0f minutes", count, e.settings.BurstWindowMin))
				}
			}

			if features.behavioral {
				e.scoreBehavioral(te.ev, baselines, add)
			}

			if score > 100 {
				score = 100
			} else if score < 0 {
				score = 0
			}
			risks[te.pos] = core.EventRisk{
				Row:       te.ev.Row,
				UserID:    te.ev.UserID,
				Timestamp: te.ev.Timestamp,
				Score:     score,
				Level:     core.LevelForScore(score, e.settings),
				Reasons:   reasons,
			}
		}
	}

	e.logger.Debug().
		Int("events", len(events)).
		Bool("geo", features.geo).
		Bool("device", features.device).
		Bool("time", features.time).
		Bool("behavioral", features.behavioral).
		Msg("scoring run complete")
	return risks, nil
}

// scoreEvent applies the deterministic per-event and sequential rules.
func (e *Engine) scoreEvent(te timedEvent, prev *timedEvent, features featureSet, add func(int, string)) {
	if features.time && te.ok && te.when.Hour() <= offHoursLastHour {
		add(deltaOffHours, fmt.Sprintf("login during off-hours (%02d:00)", te.when.Hour()))
	}

	if features.device && normalizeDevice(te.ev.DeviceID) == "" {
		add(deltaMissingDevice, "missing device identifier")
	}

	if features.geo && !validCoords(te.ev.Lat, te.ev.Long) {
		add(deltaInvalidGeo, fmt.Sprintf("geolocation out of valid range (%.4f, %.4f)", te.ev.Lat, te.ev.Long))
	}

	if strings.EqualFold(strings.TrimSpace(te.ev.Status), "failed") {
		add(deltaFailedStatus, "failed login status")
	}

	if prev == nil || !te.ok || !prev.ok {
		return
	}
	gap := te.when.Sub(prev.when)

	if features.device {
		dev, prevDev := normalizeDevice(te.ev.DeviceID), normalizeDevice(prev.ev.DeviceID)
		switchWindow := time.Duration(e.settings.DeviceSwitchWindowMin * float64(time.Minute))
		if dev != "" && prevDev != "" && dev != prevDev && gap <= switchWindow {
			add(deltaDeviceSwitch, fmt.Sprintf("device changed within %.0f minutes of previous login", gap.Minutes()))
		}
	}

	if features.geo &&
		validCoords(te.ev.Lat, te.ev.Long) && validCoords(prev.ev.Lat, prev.ev.Long) &&
		!zeroCoords(te.ev.Lat, te.ev.Long) && !zeroCoords(prev.ev.Lat, prev.ev.Long) {
		dist := haversineKM(prev.ev.Lat, prev.ev.Long, te.ev.Lat, te.ev.Long)
		elapsedHours := gap.Minutes() / 60
		// Zero or negative elapsed time cannot establish a speed.
		if dist > minTravelKM && elapsedHours > 0 {
			speed := dist / elapsedHours
			if speed > e.settings.ImpossibleSpeedKMH {
				add(deltaImpossibleTrip, fmt.Sprintf("impossible travel: %.0f km in %.0f minutes (%.0f km/h)", dist, gap.Minutes(), speed))
			}
		}
	}

	if prev.ev.IPAddress != "" && te.ev.IPAddress != "" &&
		prev.ev.IPAddress != te.ev.IPAddress && gap <= ipShiftWindow {
		add(deltaIPShift, fmt.Sprintf("IP address changed within %.0f minutes of previous login", gap.Minutes()))
	}
}

// scoreBehavioral applies the indicator-column rules against the event's
// preserved original columns.
func (e *Engine) scoreBehavioral(ev core.CanonicalEvent, baselines map[string]fieldBaseline, add func(int, string)) {
	if v, ok := schema.BehavioralValue(ev.Extras, schema.SignalAnomaly); ok && v == 1 {
		add(deltaAnomalyFlag, "anomaly flag set in source data")
	}
	if v, ok := schema.BehavioralValue(ev.Extras, schema.SignalSensitiveAccess); ok && v == 1 {
		add(deltaSensitiveFlag, "sensitive data access flagged")
	}
	if v, ok := schema.BehavioralValue(ev.Extras, schema.SignalMFA); ok && v == 0 {
		add(deltaMFADisabled, "multi-factor authentication disabled")
	}

	failed, _ := schema.BehavioralValue(ev.Extras, schema.SignalFailedLogins)
	switch {
	case failed >= 5:
		add(deltaFailedLoginHigh, fmt.Sprintf("high failed-login count (%.0f)", failed))
	case failed >= 3:
		add(deltaFailedLoginMed, fmt.Sprintf("elevated failed-login count (%.0f)", failed))
	}

	if v, _ := schema.BehavioralValue(ev.Extras, schema.SignalIncidentReports); baselines[schema.SignalIncidentReports].exceeds(v, zScoreLimit, incidentsThreshold) {
		add(deltaIncidents, fmt.Sprintf("incident reports above dataset baseline (%.0f)", v))
	}
	if v, _ := schema.BehavioralValue(ev.Extras, schema.SignalPasswordResets); baselines[schema.SignalPasswordResets].exceeds(v, zScoreLimit, resetsThreshold) {
		add(deltaResets, fmt.Sprintf("password resets above dataset baseline (%.0f)", v))
	}
	if v, _ := schema.BehavioralValue(ev.Extras, schema.SignalFailedTransactions); baselines[schema.SignalFailedTransactions].exceeds(v, zScoreLimit, failedTxThreshold) {
		add(deltaFailedTx, fmt.Sprintf("failed transactions above dataset baseline (%.0f)", v))
	}

	if v, ok := schema.BehavioralValue(ev.Extras, schema.SignalDeviceConsistency); ok && v == 0 {
		add(deltaDeviceConsist, "login from inconsistent device")
	}
	if v, ok := schema.BehavioralValue(ev.Extras, schema.SignalLocationConsistency); ok && v == 0 {
		add(deltaLocConsist, "login from inconsistent location")
	}
	if v, ok := schema.BehavioralValue(ev.Extras, schema.SignalLoginConsistency); ok && v <= 2 {
		add(deltaLoginConsist, fmt.Sprintf("low login-consistency score (%.0f/10)", v))
	}
}
