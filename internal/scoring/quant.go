// Package scoring implements the quantitative and hybrid risk engine:
// C7 (pure structured-signal scorer), C9 (hybrid blend + severity),
// C10 (multi-dimensional aggregator), and C11 (category sub-scores +
// daily composite).
package scoring

import (
	"strings"

	"github.com/stdin/venezuelawatch/internal/domain"
)

// SourceMetadata is the structured-signal input to the quantitative
// scorer (C7): a directed-tone (e.g. Goldstein scale), average
// sentiment tone, risk-taxonomy themes present, and a mention count
// used as an intensity proxy.
type SourceMetadata struct {
	GoldsteinScale *float64 // typically [-10,10]
	AvgTone        *float64 // typically [-100,100]
	Themes         []string
	NumMentions    *int
}

// riskThemes is the small taxonomy of themes C7 treats as risk signals
// when counting "presence of risk-taxonomy themes".
var riskThemes = map[string]bool{
	"CRISIS":                   true,
	"PROTEST":                  true,
	"EPU_POLICY_UNCERTAINTY":   true,
	"TAX_FNCACT":               true,
	"WB_678_CONFLICT_AND_VIOLENCE": true,
	"SANCTIONS":                true,
	"ARREST":                   true,
}

// QuantWeights are C7's default signal weights; they must sum to 1.0.
type QuantWeights struct {
	Negativity float64
	Sentiment  float64
	ThemeCount float64
	Intensity  float64
}

// DefaultQuantWeights is the default weight table for QuantScore.
var DefaultQuantWeights = QuantWeights{
	Negativity: 0.35,
	Sentiment:  0.25,
	ThemeCount: 0.25,
	Intensity:  0.15,
}

// Sum is used by the renormalization check shared across C7/C9/C10/C11.
func (w QuantWeights) Sum() float64 {
	return w.Negativity + w.Sentiment + w.ThemeCount + w.Intensity
}

// QuantScore computes C7: a pure function from source metadata to a
// score in [0,100]. A missing signal defaults to neutral 50 on that
// signal so absence never reads as maximum risk.
func QuantScore(meta SourceMetadata, weights QuantWeights, warn func(string)) float64 {
	weights = normalizeQuantWeights(weights, warn)

	negativity := 50.0
	if meta.GoldsteinScale != nil {
		negativity = domain.Clamp100((10 - *meta.GoldsteinScale) / 20 * 100)
	}

	sentiment := 50.0
	if meta.AvgTone != nil {
		sentiment = domain.Clamp100((-*meta.AvgTone + 100) / 200 * 100)
	}

	themeCount := 50.0
	if meta.Themes != nil {
		themeCount = themeCountScore(countRiskThemes(meta.Themes))
	}

	intensity := 50.0
	if meta.NumMentions != nil {
		intensity = intensityScore(*meta.NumMentions)
	}

	score := weights.Negativity*negativity + weights.Sentiment*sentiment +
		weights.ThemeCount*themeCount + weights.Intensity*intensity

	return domain.Clamp100(score)
}

func countRiskThemes(themes []string) int {
	n := 0
	for _, t := range themes {
		if riskThemes[t] {
			n++
		}
	}
	return n
}

func themeCountScore(n int) float64 {
	switch {
	case n == 0:
		return 20
	case n == 1:
		return 60
	case n == 2:
		return 80
	default:
		return 100
	}
}

func intensityScore(mentions int) float64 {
	switch {
	case mentions == 0:
		return 20
	case mentions >= 1 && mentions <= 2:
		return 50
	case mentions >= 3 && mentions <= 5:
		return 75
	default:
		return 100
	}
}

// normalizeQuantWeights renormalizes w if it doesn't sum to 1.0 within
// tolerance, invoking warn with a log message describing the
// renormalization.
func normalizeQuantWeights(w QuantWeights, warn func(string)) QuantWeights {
	const tolerance = 1e-3
	sum := w.Sum()
	if sum == 0 {
		return DefaultQuantWeights
	}
	if absf(sum-1.0) <= tolerance {
		return w
	}
	if warn != nil {
		warn("quantitative scorer weights do not sum to 1.0; renormalizing")
	}
	return QuantWeights{
		Negativity: w.Negativity / sum,
		Sentiment:  w.Sentiment / sum,
		ThemeCount: w.ThemeCount / sum,
		Intensity:  w.Intensity / sum,
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
