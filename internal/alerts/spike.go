// Package alerts implements C16 (threshold-crossing alerts) and C17
// (mention-count spike detection).
package alerts

import "github.com/stdin/venezuelawatch/internal/domain"

// MentionStat is one (event, date) mention-count observation against its
// rolling baseline, the input row shape C17 consumes.
type MentionStat struct {
	EventID       string
	SpikeDate     string
	MentionCount  float64
	RollingAvg    *float64 // nil skips the row
	RollingStdDev *float64 // nil skips the row
}

// DetectSpikes computes z = (count - avg) / stddev for every row with
// both baseline fields present, classifies it into a confidence band,
// and returns only rows clearing the z >= 2.0 floor. Order is preserved
// from the input, matching the original's row-by-row scan, grounded
// exactly on test_spike_detection.py's thresholds and edge cases:
// stddev == 0 forces z = 0 (filtered out), and negative z (a decline,
// not a spike) is always filtered out regardless of magnitude.
func DetectSpikes(stats []MentionStat) []domain.MentionSpike {
	var spikes []domain.MentionSpike
	for _, s := range stats {
		if s.RollingAvg == nil || s.RollingStdDev == nil {
			continue
		}

		var z float64
		if *s.RollingStdDev != 0 {
			z = (s.MentionCount - *s.RollingAvg) / *s.RollingStdDev
		}

		confidence, ok := classifyZScore(z)
		if !ok {
			continue
		}

		spikes = append(spikes, domain.MentionSpike{
			EventID:      s.EventID,
			MentionCount: s.MentionCount,
			BaselineAvg:  *s.RollingAvg,
			BaselineStd:  *s.RollingStdDev,
			ZScore:       z,
			Confidence:   confidence,
		})
	}
	return spikes
}

// classifyZScore bands a z-score: z>=3.0 CRITICAL,
// 2.5<=z<3.0 HIGH, 2.0<=z<2.5 MEDIUM, z<2.0 filtered out (ok=false).
func classifyZScore(z float64) (domain.SpikeConfidence, bool) {
	switch {
	case z >= 3.0:
		return domain.SpikeCritical, true
	case z >= 2.5:
		return domain.SpikeHigh, true
	case z >= 2.0:
		return domain.SpikeMedium, true
	default:
		return "", false
	}
}
