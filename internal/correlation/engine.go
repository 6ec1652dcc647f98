// Package correlation implements C15: pairwise correlation between named
// dated series with Bonferroni-corrected significance filtering.
package correlation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Method selects which correlation coefficient is computed.
type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
)

// Series is one named, dated input to the engine: entity risk history,
// a macro indicator, or an event-type daily count.
type Series struct {
	Name   string
	Dates  []string // RFC3339 date keys; parallel to Values
	Values []float64
}

// Input is one call to Compute.
type Input struct {
	Series        []Series
	Method        Method
	Alpha         float64
	MinEffectSize float64
}

// Pair is one reported correlation above both the Bonferroni-corrected
// significance threshold and the minimum effect size.
type Pair struct {
	VariableA string   `json:"variable_a"`
	VariableB string   `json:"variable_b"`
	R         float64  `json:"r"`
	P         float64  `json:"p"`
	N         int      `json:"n"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Result is the engine's full response.
type Result struct {
	Correlations         []Pair  `json:"correlations"`
	NTested              int     `json:"n_tested"`
	NSignificant         int     `json:"n_significant"`
	BonferroniThreshold  float64 `json:"bonferroni_threshold"`
	Method               Method  `json:"method"`
}

// Compute runs the pairwise correlation analysis: every
// series is inner-joined pairwise on date, k(k-1)/2 unordered pairs are
// tested, and only pairs clearing both the Bonferroni-corrected alpha
// and the minimum effect size are reported.
func Compute(in Input) (Result, error) {
	k := len(in.Series)
	nTests := k * (k - 1) / 2
	result := Result{
		NTested: nTests,
		Method:  in.Method,
	}
	if nTests == 0 {
		result.BonferroniThreshold = in.Alpha
		return result, nil
	}
	result.BonferroniThreshold = in.Alpha / float64(nTests)

	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			pair, err := correlatePair(in.Series[i], in.Series[j], in.Method)
			if err != nil {
				return Result{}, err
			}
			if pair.P <= result.BonferroniThreshold && math.Abs(pair.R) >= in.MinEffectSize {
				result.Correlations = append(result.Correlations, pair)
			}
		}
	}
	result.NSignificant = len(result.Correlations)
	return result, nil
}

func correlatePair(a, b Series, method Method) (Pair, error) {
	x, y := innerJoin(a, b)
	pair := Pair{VariableA: a.Name, VariableB: b.Name, N: len(x)}

	if len(x) < 3 {
		pair.Warnings = append(pair.Warnings, "insufficient overlapping observations for significance testing")
		return pair, nil
	}

	switch method {
	case Spearman:
		pair.R = spearman(x, y)
	case Pearson, "":
		pair.R = stat.Correlation(x, y, nil)
	default:
		return Pair{}, fmt.Errorf("correlation: unknown method %q", method)
	}

	pair.P = pValueForCorrelation(pair.R, len(x))

	if warn := stationarityWarning(a.Name, x); warn != "" {
		pair.Warnings = append(pair.Warnings, warn)
	}
	if warn := stationarityWarning(b.Name, y); warn != "" {
		pair.Warnings = append(pair.Warnings, warn)
	}

	return pair, nil
}

// innerJoin aligns two series on their date keys, dropping dates absent
// from either side.
func innerJoin(a, b Series) ([]float64, []float64) {
	bIndex := make(map[string]float64, len(b.Dates))
	for i, d := range b.Dates {
		bIndex[d] = b.Values[i]
	}

	var x, y []float64
	for i, d := range a.Dates {
		if v, ok := bIndex[d]; ok {
			x = append(x, a.Values[i])
			y = append(y, v)
		}
	}
	return x, y
}

// spearman computes Spearman's rank correlation by rank-transforming
// both series then applying Pearson's formula, the standard reduction.
func spearman(x, y []float64) float64 {
	return stat.Correlation(rank(x), rank(y), nil)
}

func rank(data []float64) []float64 {
	type indexed struct {
		value float64
		index int
	}
	sorted := make([]indexed, len(data))
	for i, v := range data {
		sorted[i] = indexed{v, i}
	}
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j].value > key.value {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	ranks := make([]float64, len(data))
	i := 0
	for i < len(sorted) {
		j := i
		for j < len(sorted) && sorted[j].value == sorted[i].value {
			j++
		}
		avgRank := float64(i+j+1) / 2.0 // 1-indexed, averaged over ties
		for m := i; m < j; m++ {
			ranks[sorted[m].index] = avgRank
		}
		i = j
	}
	return ranks
}

// pValueForCorrelation derives a two-tailed p-value for a Pearson (or
// rank-transformed Spearman) coefficient via the standard t-distributed
// test statistic t = r*sqrt((n-2)/(1-r^2)), using gonum's StudentsT CDF
// for the tail probability.
func pValueForCorrelation(r float64, n int) float64 {
	if n <= 2 {
		return 1.0
	}
	if math.Abs(r) >= 1.0 {
		return 0.0
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return 2 * (1 - dist.CDF(math.Abs(t)))
}

// stationarityWarning flags a series whose later half's mean differs
// from its earlier half's mean by more than one pooled standard
// deviation, a cheap split-sample proxy for flagging a non-stationary
// series.
func stationarityWarning(name string, values []float64) string {
	if len(values) < 6 {
		return ""
	}
	mid := len(values) / 2
	firstMean, firstStd := meanStd(values[:mid])
	secondMean, secondStd := meanStd(values[mid:])
	pooledStd := (firstStd + secondStd) / 2
	if math.Abs(firstMean-secondMean) > pooledStd {
		return fmt.Sprintf("%s: possible non-stationarity (split-sample mean shift)", name)
	}
	return ""
}

func meanStd(values []float64) (float64, float64) {
	return stat.Mean(values, nil), stat.StdDev(values, nil)
}
