package detect

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/loginlens-project/loginlens/internal/core"
)

func testEngine() *Engine {
	return NewEngine(zerolog.Nop(), core.DefaultSettings())
}

func mkEvent(row int, user, ts string, lat, long float64, device, ip, status string) core.CanonicalEvent {
	return core.CanonicalEvent{
		Row: row, UserID: user, Timestamp: ts,
		Lat: lat, Long: long,
		DeviceID: device, IPAddress: ip, Status: status,
	}
}

func hasReason(r core.EventRisk, substr string) bool {
	for _, reason := range r.Reasons {
		if strings.Contains(reason, substr) {
			return true
		}
	}
	return false
}

// ─── Empty input ────────────────────────────────────────────────────────────

func TestRunEmptyInput(t *testing.T) {
	if _, err := testEngine().Run(nil); err == nil {
		t.Fatal("expected an error for an empty event list")
	}
}

// ─── Impossible travel ──────────────────────────────────────────────────────

func TestRunImpossibleTravel(t *testing.T) {
	events := []core.CanonicalEvent{
		mkEvent(0, "alice", "2025-03-01 10:00:00", 40.7128, -74.0060, "laptop-1", "", "success"),
		mkEvent(1, "alice", "2025-03-01 10:15:00", 35.6762, 139.6503, "laptop-1", "", "success"),
	}
	risks, err := testEngine().Run(events)
	if err != nil {
		t.Fatal(err)
	}
	if risks[0].Score != 5 {
		t.Errorf("first event score = %d, want baseline 5", risks[0].Score)
	}
	if risks[1].Score != 35 {
		t.Errorf("second event score = %d, want 35 (baseline + travel)", risks[1].Score)
	}
	if !hasReason(risks[1], "impossible travel") {
		t.Errorf("second event reasons = %v, want impossible travel", risks[1].Reasons)
	}
}

func TestRunTravelNeedsNonZeroCoordsOnBothEnds(t *testing.T) {
	// A (0,0) point is a missing location, not the Gulf of Guinea.
	events := []core.CanonicalEvent{
		mkEvent(0, "alice", "2025-03-01 10:00:00", 0, 0, "laptop-1", "", "success"),
		mkEvent(1, "alice", "2025-03-01 10:15:00", 35.6762, 139.6503, "laptop-1", "", "success"),
	}
	risks, err := testEngine().Run(events)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range risks {
		if hasReason(r, "impossible travel") {
			t.Errorf("event %d flagged travel from a zeroed origin: %v", i, r.Reasons)
		}
	}
}

// ─── Off-hours boundary ─────────────────────────────────────────────────────

func TestRunOffHoursBoundary(t *testing.T) {
	events := []core.CanonicalEvent{
		mkEvent(0, "alice", "2025-03-01 04:59:00", 0, 0, "laptop-1", "", "success"),
		mkEvent(1, "bob", "2025-03-01 05:00:00", 0, 0, "laptop-1", "", "success"),
	}
	risks, err := testEngine().Run(events)
	if err != nil {
		t.Fatal(err)
	}
	if risks[0].Score != 15 || !hasReason(risks[0], "off-hours") {
		t.Errorf("04:59 event: score=%d reasons=%v, want 15 with off-hours", risks[0].Score, risks[0].Reasons)
	}
	if risks[1].Score != 5 {
		t.Errorf("05:00 event: score=%d, want baseline 5", risks[1].Score)
	}
}

// ─── Login burst ────────────────────────────────────────────────────────────

func TestRunBurstWindow(t *testing.T) {
	// Six logins two minutes apart. With the default window (30 min) and
	// count (4), the fourth and later events sit in a qualifying window.
	events := make([]core.CanonicalEvent, 6)
	for i := range events {
		ts := fmt.Sprintf("2025-03-01 10:%02d:00", i*2)
		events[i] = mkEvent(i, "alice", ts, 0, 0, "laptop-1", "", "success")
	}
	risks, err := testEngine().Run(events)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range risks {
		burst := hasReason(r, "login burst")
		wantBurst := i >= 3
		if burst != wantBurst {
			t.Errorf("event %d: burst=%v, want %v (reasons %v)", i, burst, wantBurst, r.Reasons)
		}
	}
	if risks[5].Score != 23 {
		t.Errorf("final burst event score = %d, want 23", risks[5].Score)
	}
}

func TestRunBurstWindowSlides(t *testing.T) {
	// Three quick logins, a long gap, then three more. Neither run reaches
	// the default count of four.
	times := []string{
		"2025-03-01 10:00:00", "2025-03-01 10:02:00", "2025-03-01 10:04:00",
		"2025-03-01 14:00:00", "2025-03-01 14:02:00", "2025-03-01 14:04:00",
	}
	events := make([]core.CanonicalEvent, len(times))
	for i, ts := range times {
		events[i] = mkEvent(i, "alice", ts, 0, 0, "laptop-1", "", "success")
	}
	risks, err := testEngine().Run(events)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range risks {
		if hasReason(r, "login burst") {
			t.Errorf("event %d flagged a burst across the gap: %v", i, r.Reasons)
		}
	}
}

// ─── Clamping ───────────────────────────────────────────────────────────────

func TestRunScoreClampsAtHundred(t *testing.T) {
	ev1 := mkEvent(0, "alice", "2025-03-01 03:00:00", 40.7128, -74.0060, "laptop-1", "1.1.1.1", "success")
	ev1.Extras = map[string]string{"isanomalous": "0"}
	ev2 := mkEvent(1, "alice", "2025-03-01 03:10:00", 35.6762, 139.6503, "phone-9", "2.2.2.2", "failed")
	ev2.Extras = map[string]string{"isanomalous": "1"}

	risks, err := testEngine().Run([]core.CanonicalEvent{ev1, ev2})
	if err != nil {
		t.Fatal(err)
	}
	// Raw total for the second event is 112; the clamp holds it at 100.
	if risks[1].Score != 100 {
		t.Errorf("stacked event score = %d, want 100", risks[1].Score)
	}
	if risks[1].Level != core.RiskHigh {
		t.Errorf("stacked event level = %s, want high", risks[1].Level)
	}
	if risks[0].Score != 15 {
		t.Errorf("first event score = %d, want 15 (baseline + off-hours)", risks[0].Score)
	}
}

// ─── Feature gating ─────────────────────────────────────────────────────────

func TestRunGeoGating(t *testing.T) {
	// All-zero coordinates: the dataset carries no geo signal, so nothing
	// is penalized for location.
	quiet := []core.CanonicalEvent{
		mkEvent(0, "alice", "2025-03-01 10:00:00", 0, 0, "laptop-1", "", "success"),
		mkEvent(1, "bob", "2025-03-01 11:00:00", 0, 0, "laptop-1", "", "success"),
	}
	risks, err := testEngine().Run(quiet)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range risks {
		if r.Score != 5 {
			t.Errorf("geo-less event %d score = %d, want 5", i, r.Score)
		}
	}

	// One real coordinate turns the geo family on; an out-of-range value
	// elsewhere then scores as invalid.
	mixed := []core.CanonicalEvent{
		mkEvent(0, "alice", "2025-03-01 10:00:00", 40.7128, -74.0060, "laptop-1", "", "success"),
		mkEvent(1, "bob", "2025-03-01 11:00:00", 200, 10, "laptop-1", "", "success"),
	}
	risks, err = testEngine().Run(mixed)
	if err != nil {
		t.Fatal(err)
	}
	if risks[1].Score != 40 || !hasReason(risks[1], "out of valid range") {
		t.Errorf("invalid-geo event: score=%d reasons=%v, want 40", risks[1].Score, risks[1].Reasons)
	}
}

func TestRunDeviceGating(t *testing.T) {
	// Every device unknown: no device signal, no missing-device penalty.
	quiet := []core.CanonicalEvent{
		mkEvent(0, "alice", "2025-03-01 10:00:00", 0, 0, "unknown", "", "success"),
		mkEvent(1, "bob", "2025-03-01 11:00:00", 0, 0, "", "", "success"),
	}
	risks, err := testEngine().Run(quiet)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range risks {
		if r.Score != 5 {
			t.Errorf("device-less event %d score = %d, want 5", i, r.Score)
		}
	}

	// One populated device turns the family on; "unknown" then reads as
	// a missing identifier.
	mixed := []core.CanonicalEvent{
		mkEvent(0, "alice", "2025-03-01 10:00:00", 0, 0, "laptop-1", "", "success"),
		mkEvent(1, "bob", "2025-03-01 11:00:00", 0, 0, "unknown", "", "success"),
	}
	risks, err = testEngine().Run(mixed)
	if err != nil {
		t.Fatal(err)
	}
	if risks[1].Score != 25 || !hasReason(risks[1], "missing device") {
		t.Errorf("unknown-device event: score=%d reasons=%v, want 25", risks[1].Score, risks[1].Reasons)
	}
}

func TestRunUnparseableTimestamps(t *testing.T) {
	events := []core.CanonicalEvent{
		mkEvent(0, "alice", "not a time", 0, 0, "laptop-1", "", "success"),
		mkEvent(1, "alice", "also not", 0, 0, "laptop-1", "", "success"),
	}
	risks, err := testEngine().Run(events)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range risks {
		if r.Score != 5 {
			t.Errorf("timeless event %d score = %d, want 5 (no time rules)", i, r.Score)
		}
	}
}

// ─── Behavioral signals ─────────────────────────────────────────────────────

func TestRunBehavioralZScore(t *testing.T) {
	// Incident counts 1,1,1,1,10: mean 2.8, std 3.6. Only the 10 has a
	// z-score above 1.5.
	counts := []string{"1", "1", "1", "1", "10"}
	events := make([]core.CanonicalEvent, len(counts))
	for i, c := range counts {
		ev := mkEvent(i, fmt.Sprintf("user-%d", i), fmt.Sprintf("2025-03-01 %02d:00:00", 10+i), 0, 0, "laptop-1", "", "success")
		ev.Extras = map[string]string{"incidentreports": c}
		events[i] = ev
	}
	risks, err := testEngine().Run(events)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range risks {
		flagged := hasReason(r, "incident reports above")
		wantFlag := i == 4
		if flagged != wantFlag {
			t.Errorf("event %d: incident flag=%v, want %v", i, flagged, wantFlag)
		}
	}
	if risks[4].Score != 19 {
		t.Errorf("outlier score = %d, want 19", risks[4].Score)
	}
}

func TestRunBehavioralZeroVarianceFallback(t *testing.T) {
	mk := func(resets string) []core.CanonicalEvent {
		events := make([]core.CanonicalEvent, 3)
		for i := range events {
			ev := mkEvent(i, fmt.Sprintf("user-%d", i), fmt.Sprintf("2025-03-01 %02d:00:00", 10+i), 0, 0, "laptop-1", "", "success")
			ev.Extras = map[string]string{"passwordresets": resets}
			events[i] = ev
		}
		return events
	}

	// All-identical values give zero variance; the absolute threshold (3)
	// takes over.
	risks, err := testEngine().Run(mk("5"))
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range risks {
		if !hasReason(r, "password resets above") {
			t.Errorf("event %d with 5 resets not flagged: %v", i, r.Reasons)
		}
	}

	risks, err = testEngine().Run(mk("2"))
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range risks {
		if hasReason(r, "password resets above") {
			t.Errorf("event %d with 2 resets flagged: %v", i, r.Reasons)
		}
	}
}

func TestRunMFAPresence(t *testing.T) {
	cases := []struct {
		extras map[string]string
		want   bool
	}{
		{map[string]string{"mfaenabled": "0"}, true},
		{map[string]string{"mfaenabled": "1"}, false},
		{map[string]string{"other": "x"}, false}, // absent column never fires
	}
	for i, tc := range cases {
		ev := mkEvent(0, "alice", "2025-03-01 10:00:00", 0, 0, "laptop-1", "", "success")
		ev.Extras = tc.extras
		risks, err := testEngine().Run([]core.CanonicalEvent{ev})
		if err != nil {
			t.Fatal(err)
		}
		if got := hasReason(risks[0], "multi-factor"); got != tc.want {
			t.Errorf("case %d: mfa flag=%v, want %v (reasons %v)", i, got, tc.want, risks[0].Reasons)
		}
	}
}

// ─── Output ordering ────────────────────────────────────────────────────────

func TestRunOutputIndexedByInputOrder(t *testing.T) {
	// Events arrive out of chronological order; risks must come back in
	// input order regardless.
	events := []core.CanonicalEvent{
		mkEvent(0, "alice", "2025-03-01 12:00:00", 0, 0, "laptop-1", "", "success"),
		mkEvent(1, "alice", "2025-03-01 03:00:00", 0, 0, "laptop-1", "", "success"),
	}
	risks, err := testEngine().Run(events)
	if err != nil {
		t.Fatal(err)
	}
	if risks[0].Row != 0 || risks[1].Row != 1 {
		t.Fatalf("rows out of order: %d, %d", risks[0].Row, risks[1].Row)
	}
	if !hasReason(risks[1], "off-hours") {
		t.Errorf("03:00 event (input index 1) missing off-hours: %v", risks[1].Reasons)
	}
	if hasReason(risks[0], "off-hours") {
		t.Errorf("12:00 event wrongly flagged off-hours: %v", risks[0].Reasons)
	}
}
