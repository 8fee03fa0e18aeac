package core

import (
	"encoding/json"
	"strings"
	"time"
)

// RiskLevel classifies a scored login event against the configured thresholds.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch strings.ToLower(str) {
	case "medium":
		*l = RiskMedium
	case "high":
		*l = RiskHigh
	default:
		*l = RiskLow
	}
	return nil
}

// CanonicalEvent is one login record after schema mapping and normalization.
// All ingestion paths converge on this shape. Row is the stable index of the
// record within its source dataset. Extras preserves every original column,
// keyed by the lower-cased alphanumeric form of its header, so behavioral
// columns the mapper never claimed remain available to the scoring engine.
type CanonicalEvent struct {
	Row       int               `json:"row"`
	UserID    string            `json:"user_id"`
	Timestamp string            `json:"timestamp"`
	Lat       float64           `json:"lat"`
	Long      float64           `json:"long"`
	DeviceID  string            `json:"device_id"`
	IPAddress string            `json:"ip_address,omitempty"`
	Status    string            `json:"status,omitempty"`
	Extras    map[string]string `json:"extras,omitempty"`
}

// EventRisk is the scoring engine's verdict on a single event. Score is the
// raw additive score clamped to [0,100]. Level is derived from Score and the
// thresholds in effect and can be recomputed without re-running the rules.
// Reasons lists every triggered signal in evaluation order.
type EventRisk struct {
	Row       int       `json:"row"`
	UserID    string    `json:"user_id"`
	Timestamp string    `json:"timestamp"`
	Score     int       `json:"score"`
	Level     RiskLevel `json:"level"`
	Reasons   []string  `json:"reasons,omitempty"`
}

// timeLayouts are tried in order when parsing event timestamps. Real-world
// login exports rarely agree on a format.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
}

// ParseWhen parses an event timestamp, trying each known layout. The second
// return value is false when no layout matches; callers treat such events as
// having no usable time rather than failing.
func ParseWhen(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
