// Package report turns per-event risk into alerts, summary counts,
// time-bucketed trends, and top-risk-entity rankings. Derive is the single
// pure classification path: running it after a full scoring pass and running
// it again with only new thresholds are the same computation, which makes
// live re-derivation equivalent to a full rerun by construction.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/loginlens-project/loginlens/internal/core"
)

// TopEntityLimit is the ranking cap used in the primary summary.
// LiveTopEntityLimit is the larger cap for interactive views.
const (
	TopEntityLimit     = 8
	LiveTopEntityLimit = 20
)

// dailyTrendLimit caps the daily series to the most recent populated dates.
const dailyTrendLimit = 7

// Alert is the per-event alert derived 1:1 from an EventRisk. IDs are
// positional (rank by descending score), so they are not stable across
// re-derivations — an accepted property.
type Alert struct {
	ID          string         `json:"id"`
	Severity    core.RiskLevel `json:"severity"`
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Timestamp   string         `json:"timestamp"`
	Score       int            `json:"score"`
}

// Summary holds the dataset-wide tallies.
type Summary struct {
	TotalEvents int     `json:"total_events"`
	UniqueUsers int     `json:"unique_users"`
	HighCount   int     `json:"high_count"`
	MediumCount int     `json:"medium_count"`
	LowCount    int     `json:"low_count"`
	MeanScore   float64 `json:"mean_score"`
}

// TrendPoint is one labeled bucket in a trend series.
type TrendPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// TopRiskEntity ranks a subject by the maximum score across their events.
type TopRiskEntity struct {
	UserID     string `json:"user_id"`
	MaxScore   int    `json:"max_score"`
	AlertCount int    `json:"alert_count"`
}

// Bundle is the full result of one derivation.
type Bundle struct {
	RunID       string                 `json:"run_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Settings    core.DetectionSettings `json:"settings"`
	Risks       []core.EventRisk       `json:"risks"`
	Alerts      []Alert                `json:"alerts"`
	Summary     Summary                `json:"summary"`
	HourlyTrend []TrendPoint           `json:"hourly_trend"`
	DailyTrend  []TrendPoint           `json:"daily_trend"`
	TopEntities []TopRiskEntity        `json:"top_entities"`
}

// Derive builds a result bundle from raw per-event scores under the given
// thresholds. Levels on incoming risks are recomputed, never trusted, so the
// same function serves both a fresh scoring run and a pure threshold change.
func Derive(risks []core.EventRisk, settings core.DetectionSettings) *Bundle {
	leveled := make([]core.EventRisk, len(risks))
	for i, r := range risks {
		r.Level = core.LevelForScore(r.Score, settings)
		leveled[i] = r
	}

	return &Bundle{
		RunID:       uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Settings:    settings,
		Risks:       leveled,
		Alerts:      deriveAlerts(leveled),
		Summary:     deriveSummary(leveled),
		HourlyTrend: hourlyTrend(leveled),
		DailyTrend:  dailyTrend(leveled),
		TopEntities: TopEntities(leveled, TopEntityLimit),
	}
}

// Rederive reclassifies an existing bundle under new thresholds without
// rescoring. It is a pure optimization over rerunning the scoring engine and
// must produce numerically identical results.
func Rederive(prev *Bundle, settings core.DetectionSettings) *Bundle {
	return Derive(prev.Risks, settings)
}

func deriveAlerts(risks []core.EventRisk) []Alert {
	ranked := make([]core.EventRisk, len(risks))
	copy(ranked, risks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	alerts := make([]Alert, len(ranked))
	for i, r := range ranked {
		desc := "No individual risk factors; baseline activity"
		if len(r.Reasons) > 0 {
			desc = r.Reasons[0]
		}
		alerts[i] = Alert{
			ID:          fmt.Sprintf("ALT-%04d", i+1),
			Severity:    r.Level,
			UserID:      r.UserID,
			Title:       alertTitle(r.Level),
			Description: desc,
			Timestamp:   r.Timestamp,
			Score:       r.Score,
		}
	}
	return alerts
}

func alertTitle(level core.RiskLevel) string {
	switch level {
	case core.RiskHigh:
		return "High-risk login detected"
	case core.RiskMedium:
		return "Suspicious login activity"
	default:
		return "Routine login activity"
	}
}

func deriveSummary(risks []core.EventRisk) Summary {
	s := Summary{TotalEvents: len(risks)}
	users := make(map[string]bool)
	total := 0
	for _, r := range risks {
		users[r.UserID] = true
		total += r.Score
		switch r.Level {
		case core.RiskHigh:
			s.HighCount++
		case core.RiskMedium:
			s.MediumCount++
		default:
			s.LowCount++
		}
	}
	s.UniqueUsers = len(users)
	if len(risks) > 0 {
		s.MeanScore = round1(float64(total) / float64(len(risks)))
	}
	return s
}

// hourlyTrend emits all 24 hour-of-day buckets, zero-filled, with the mean
// score of the events landing in each bucket.
func hourlyTrend(risks []core.EventRisk) []TrendPoint {
	sums := make([]int, 24)
	counts := make([]int, 24)
	for _, r := range risks {
		if when, ok := core.ParseWhen(r.Timestamp); ok {
			h := when.Hour()
			sums[h] += r.Score
			counts[h]++
		}
	}
	points := make([]TrendPoint, 24)
	for h := 0; h < 24; h++ {
		p := TrendPoint{Label: fmt.Sprintf("%02d:00", h)}
		if counts[h] > 0 {
			p.Value = round1(float64(sums[h]) / float64(counts[h]))
		}
		points[h] = p
	}
	return points
}

// dailyTrend emits alert counts for populated calendar dates only, sorted
// ascending and capped to the most recent seven.
func dailyTrend(risks []core.EventRisk) []TrendPoint {
	counts := make(map[string]int)
	for _, r := range risks {
		if when, ok := core.ParseWhen(r.Timestamp); ok {
			counts[when.Format("2006-01-02")]++
		}
	}
	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > dailyTrendLimit {
		dates = dates[len(dates)-dailyTrendLimit:]
	}
	points := make([]TrendPoint, len(dates))
	for i, d := range dates {
		points[i] = TrendPoint{Label: d, Value: float64(counts[d])}
	}
	return points
}

// TopEntities ranks subjects by their maximum event score, ties broken by
// first encounter order, capped at n.
func TopEntities(risks []core.EventRisk, n int) []TopRiskEntity {
	order := make(map[string]int)
	byUser := make(map[string]*TopRiskEntity)
	var users []string
	for _, r := range risks {
		ent, ok := byUser[r.UserID]
		if !ok {
			order[r.UserID] = len(users)
			users = append(users, r.UserID)
			ent = &TopRiskEntity{UserID: r.UserID}
			byUser[r.UserID] = ent
		}
		ent.AlertCount++
		if r.Score > ent.MaxScore {
			ent.MaxScore = r.Score
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		a, b := byUser[users[i]], byUser[users[j]]
		if a.MaxScore != b.MaxScore {
			return a.MaxScore > b.MaxScore
		}
		return order[a.UserID] < order[b.UserID]
	})
	if len(users) > n {
		users = users[:n]
	}
	out := make([]TopRiskEntity, len(users))
	for i, u := range users {
		out[i] = *byUser[u]
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
