package detect

import (
	"math"

	"github.com/loginlens-project/loginlens/internal/core"
	"github.com/loginlens-project/loginlens/internal/schema"
)

// fieldBaseline holds the dataset-wide population mean and standard
// deviation for one behavioral count field. Zero is a valid observation, so
// every event contributes a value (missing columns coerce to 0).
type fieldBaseline struct {
	mean float64
	std  float64
}

func behavioralBaseline(events []core.CanonicalEvent, signal string) fieldBaseline {
	if len(events) == 0 {
		return fieldBaseline{}
	}
	sum := 0.0
	values := make([]float64, len(events))
	for i, ev := range events {
		v, _ := schema.BehavioralValue(ev.Extras, signal)
		values[i] = v
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return fieldBaseline{mean: mean, std: math.Sqrt(variance)}
}

// exceeds reports whether a value is an outlier against the baseline. With
// real variance present it is a z-score test; an all-identical field has
// zero variance and falls back to an absolute threshold. The absolute
// thresholds are tunable constants, not derived from the statistics.
func (b fieldBaseline) exceeds(v, zLimit, absThreshold float64) bool {
	if b.std > 0 {
		return (v-b.mean)/b.std > zLimit
	}
	return v >= absThreshold
}
