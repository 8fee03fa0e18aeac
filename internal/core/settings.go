package core

import "fmt"

// DetectionSettings holds the tunable thresholds the scoring engine and the
// report deriver operate against. The engine never mutates a settings value;
// changing thresholds means re-deriving, not rescoring.
type DetectionSettings struct {
	WarningScore          int     `yaml:"warning_score" json:"warning_score"`
	CriticalScore         int     `yaml:"critical_score" json:"critical_score"`
	ImpossibleSpeedKMH    float64 `yaml:"impossible_speed_kmh" json:"impossible_speed_kmh"`
	DeviceSwitchWindowMin float64 `yaml:"device_switch_window_min" json:"device_switch_window_min"`
	BurstWindowMin        float64 `yaml:"burst_window_min" json:"burst_window_min"`
	BurstCount            int     `yaml:"burst_count" json:"burst_count"`
}

// DefaultSettings returns the stock detection thresholds.
func DefaultSettings() DetectionSettings {
	return DetectionSettings{
		WarningScore:          55,
		CriticalScore:         80,
		ImpossibleSpeedKMH:    850,
		DeviceSwitchWindowMin: 20,
		BurstWindowMin:        30,
		BurstCount:            4,
	}
}

// Validate checks settings at the caller boundary. The engine itself assumes
// settings are already sane.
func (s DetectionSettings) Validate() error {
	if s.WarningScore >= s.CriticalScore {
		return fmt.Errorf("warning score (%d) must be below critical score (%d)", s.WarningScore, s.CriticalScore)
	}
	if s.WarningScore < 0 || s.CriticalScore > 100 {
		return fmt.Errorf("score thresholds must stay within [0,100], got warning=%d critical=%d", s.WarningScore, s.CriticalScore)
	}
	if s.ImpossibleSpeedKMH <= 0 {
		return fmt.Errorf("impossible-travel speed must be positive, got %.1f", s.ImpossibleSpeedKMH)
	}
	if s.DeviceSwitchWindowMin <= 0 || s.BurstWindowMin <= 0 {
		return fmt.Errorf("detection windows must be positive, got device=%.1f burst=%.1f", s.DeviceSwitchWindowMin, s.BurstWindowMin)
	}
	if s.BurstCount < 2 {
		return fmt.Errorf("burst count must be at least 2, got %d", s.BurstCount)
	}
	return nil
}

// LevelForScore maps a raw score to a risk level under the given thresholds.
// This is the only place classification happens; live re-derivation depends
// on it never needing anything beyond the score and the two thresholds.
func LevelForScore(score int, s DetectionSettings) RiskLevel {
	switch {
	case score >= s.CriticalScore:
		return RiskHigh
	case score >= s.WarningScore:
		return RiskMedium
	default:
		return RiskLow
	}
}
