package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(x float64) *float64 { return &x }

// S1 — Spike at z=5. Input {count=50, avg=10, stddev=8} -> z=5.0, CRITICAL.
func TestDetectSpikes_S1CriticalAtZFive(t *testing.T) {
	spikes := DetectSpikes([]MentionStat{
		{EventID: "1283174855", MentionCount: 50, RollingAvg: f(10), RollingStdDev: f(8)},
	})
	require.Len(t, spikes, 1)
	assert.Equal(t, 5.0, spikes[0].ZScore)
	assert.Equal(t, "CRITICAL", string(spikes[0].Confidence))
}

// S2 — Spike at boundary. {count=22.5, avg=10, stddev=5} -> z=2.5, HIGH.
func TestDetectSpikes_S2HighAtBoundary(t *testing.T) {
	spikes := DetectSpikes([]MentionStat{
		{EventID: "456", MentionCount: 22.5, RollingAvg: f(10), RollingStdDev: f(5)},
	})
	require.Len(t, spikes, 1)
	assert.Equal(t, 2.5, spikes[0].ZScore)
	assert.Equal(t, "HIGH", string(spikes[0].Confidence))
}

func TestDetectSpikes_CriticalBoundaryInclusive(t *testing.T) {
	spikes := DetectSpikes([]MentionStat{
		{EventID: "123", MentionCount: 25, RollingAvg: f(10), RollingStdDev: f(5)},
	})
	require.Len(t, spikes, 1)
	assert.Equal(t, "CRITICAL", string(spikes[0].Confidence))
}

func TestDetectSpikes_MediumBoundaryInclusive(t *testing.T) {
	spikes := DetectSpikes([]MentionStat{
		{EventID: "789", MentionCount: 20, RollingAvg: f(10), RollingStdDev: f(5)},
	})
	require.Len(t, spikes, 1)
	assert.Equal(t, "MEDIUM", string(spikes[0].Confidence))
}

func TestDetectSpikes_BelowThresholdFiltered(t *testing.T) {
	spikes := DetectSpikes([]MentionStat{
		{EventID: "101", MentionCount: 15, RollingAvg: f(10), RollingStdDev: f(5)},
	})
	assert.Empty(t, spikes)
}

func TestDetectSpikes_ZeroStdDevFiltered(t *testing.T) {
	spikes := DetectSpikes([]MentionStat{
		{EventID: "202", MentionCount: 10, RollingAvg: f(10), RollingStdDev: f(0)},
	})
	assert.Empty(t, spikes)
}

func TestDetectSpikes_MissingBaselineSkipped(t *testing.T) {
	spikes := DetectSpikes([]MentionStat{
		{EventID: "303", MentionCount: 50, RollingAvg: nil, RollingStdDev: f(8)},
		{EventID: "404", MentionCount: 50, RollingAvg: f(10), RollingStdDev: nil},
	})
	assert.Empty(t, spikes)
}

func TestDetectSpikes_NegativeZScoreFiltered(t *testing.T) {
	spikes := DetectSpikes([]MentionStat{
		{EventID: "505", MentionCount: 5, RollingAvg: f(10), RollingStdDev: f(3)},
	})
	assert.Empty(t, spikes)
}

func TestDetectSpikes_MultipleMixedConfidence(t *testing.T) {
	spikes := DetectSpikes([]MentionStat{
		{EventID: "601", MentionCount: 50, RollingAvg: f(10), RollingStdDev: f(8)},
		{EventID: "602", MentionCount: 22.5, RollingAvg: f(10), RollingStdDev: f(5)},
		{EventID: "603", MentionCount: 15, RollingAvg: f(10), RollingStdDev: f(5)},
	})
	require.Len(t, spikes, 2)
	assert.Equal(t, "CRITICAL", string(spikes[0].Confidence))
	assert.Equal(t, "HIGH", string(spikes[1].Confidence))
}
