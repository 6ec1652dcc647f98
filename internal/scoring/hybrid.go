package scoring

import "github.com/stdin/venezuelawatch/internal/domain"

// HybridWeights blends C7's quantitative score with C8's LLM risk
// score.
type HybridWeights struct {
	Quantitative float64 // w_g
	LLM          float64 // w_l
}

// DefaultHybridWeights is the default quantitative/LLM blend.
var DefaultHybridWeights = HybridWeights{Quantitative: 0.3, LLM: 0.7}

// HybridResult is C9's output: the blended score, its severity band,
// and which method produced it.
type HybridResult struct {
	Score  float64
	Band   domain.SeverityBand
	Method domain.ScoringMethod
}

// Hybrid computes C9: if quantScore is present, blend it with llmRisk
// (already [0,1]) under weights; otherwise fall back to llm-only. A nil
// quantScore models both "no source metadata" and "C7 threw", since
// both fall back the same way.
func Hybrid(quantScore *float64, llmRisk float64, weights HybridWeights) HybridResult {
	var h float64
	var method domain.ScoringMethod

	if quantScore != nil {
		h = weights.Quantitative**quantScore + weights.LLM*(llmRisk*100)
		method = domain.ScoringHybrid
	} else {
		h = llmRisk * 100
		method = domain.ScoringLLMOnly
	}
	h = domain.Clamp100(h)

	return HybridResult{Score: h, Band: severityBand(h), Method: method}
}

// severityBand maps H to SEV1-SEV5. Bounds are
// inclusive on the lower side of each band.
func severityBand(h float64) domain.SeverityBand {
	switch {
	case h < 20:
		return domain.SEV1
	case h < 40:
		return domain.SEV2
	case h < 60:
		return domain.SEV3
	case h < 80:
		return domain.SEV4
	default:
		return domain.SEV5
	}
}
