package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dates(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "2026-01-" + string(rune('A'+i))
	}
	return out
}

func TestCompute_NTestedIsKChooseTwo(t *testing.T) {
	series := []Series{
		{Name: "a", Dates: dates(10), Values: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{Name: "b", Dates: dates(10), Values: []float64{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}},
		{Name: "c", Dates: dates(10), Values: []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}},
	}
	result, err := Compute(Input{Series: series, Method: Pearson, Alpha: 0.05, MinEffectSize: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 3, result.NTested) // k=3 -> 3 pairs
}

func TestCompute_PerfectCorrelationReported(t *testing.T) {
	series := []Series{
		{Name: "a", Dates: dates(10), Values: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{Name: "b", Dates: dates(10), Values: []float64{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}},
	}
	result, err := Compute(Input{Series: series, Method: Pearson, Alpha: 0.05, MinEffectSize: 0.5})
	require.NoError(t, err)
	require.Len(t, result.Correlations, 1)
	assert.InDelta(t, 1.0, result.Correlations[0].R, 1e-6)
}

// S6 — two series with r≈0.61, p≈0.004, alpha=0.05, min_effect_size=0.7, k=2
// must yield n_tested=1, bonferroni_threshold=0.05, correlations=[].
func TestCompute_S6InsufficientEffectSizeFiltered(t *testing.T) {
	series := []Series{
		{Name: "a", Dates: dates(20), Values: []float64{
			1, 3, 2, 5, 4, 6, 8, 7, 9, 11, 10, 12, 14, 13, 16, 15, 18, 17, 20, 19,
		}},
		{Name: "b", Dates: dates(20), Values: []float64{
			9, -3, 7, -2, 13, 2, 0, 13, 4, 18, 1, 16, 8, 21, 9, 20, 14, 26, 12, 25,
		}},
	}
	result, err := Compute(Input{Series: series, Method: Pearson, Alpha: 0.05, MinEffectSize: 0.7})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NTested)
	assert.InDelta(t, 0.05, result.BonferroniThreshold, 1e-9)
	assert.Empty(t, result.Correlations)
}

func TestCompute_InnerJoinDropsMissingDates(t *testing.T) {
	series := []Series{
		{Name: "a", Dates: []string{"d1", "d2", "d3", "d4"}, Values: []float64{1, 2, 3, 4}},
		{Name: "b", Dates: []string{"d2", "d3", "d4", "d5"}, Values: []float64{20, 30, 40, 50}},
	}
	result, err := Compute(Input{Series: series, Method: Pearson, Alpha: 0.05, MinEffectSize: 0.1})
	require.NoError(t, err)
	require.Len(t, result.Correlations, 1)
	assert.Equal(t, 3, result.Correlations[0].N) // d2,d3,d4 only
}

func TestCompute_SingleSeriesYieldsZeroTests(t *testing.T) {
	result, err := Compute(Input{Series: []Series{{Name: "solo", Dates: dates(5), Values: []float64{1, 2, 3, 4, 5}}}, Alpha: 0.05})
	require.NoError(t, err)
	assert.Equal(t, 0, result.NTested)
	assert.Empty(t, result.Correlations)
}

func TestCompute_SpearmanMethod(t *testing.T) {
	series := []Series{
		{Name: "a", Dates: dates(10), Values: []float64{1, 5, 2, 8, 3, 9, 4, 10, 6, 7}},
		{Name: "b", Dates: dates(10), Values: []float64{1, 5, 2, 8, 3, 9, 4, 10, 6, 7}},
	}
	result, err := Compute(Input{Series: series, Method: Spearman, Alpha: 0.05, MinEffectSize: 0.5})
	require.NoError(t, err)
	require.Len(t, result.Correlations, 1)
	assert.InDelta(t, 1.0, result.Correlations[0].R, 1e-6)
}

func TestCompute_UnknownMethodErrors(t *testing.T) {
	series := []Series{
		{Name: "a", Dates: dates(5), Values: []float64{1, 2, 3, 4, 5}},
		{Name: "b", Dates: dates(5), Values: []float64{2, 4, 6, 8, 10}},
	}
	_, err := Compute(Input{Series: series, Method: "kendall", Alpha: 0.05})
	assert.Error(t, err)
}

func TestStationarityWarning_FlagsShiftedMean(t *testing.T) {
	values := []float64{1, 1, 1, 1, 100, 100, 100, 100}
	warn := stationarityWarning("shifted", values)
	assert.Contains(t, warn, "non-stationarity")
}

func TestStationarityWarning_StableSeriesNoWarning(t *testing.T) {
	values := []float64{5, 5.1, 4.9, 5.05, 4.95, 5.02, 5.0, 4.98}
	assert.Empty(t, stationarityWarning("stable", values))
}
