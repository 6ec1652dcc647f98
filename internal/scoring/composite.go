package scoring

import (
	"math"

	"github.com/stdin/venezuelawatch/internal/domain"
)

// CategoryAverage holds the per-category risk-score mean and stddev the
// 5-component composite's velocity term compares against, over a
// rolling window. Missing entries default to avg=0.5, std=0.2 -- an
// empty map is acceptable and simply falls back to these defaults.
type CategoryAverage struct {
	Avg float64
	Std float64
}

// CompositeInput is the 5-component composite risk scorer's per-event
// input (C11's per-event half — see DailyComposite for the per-category
// daily roll-up).
type CompositeInput struct {
	MagnitudeNorm      float64
	ToneNorm           float64
	NumSources         int
	PersistenceDays    int
	SourceCredibility  float64
	Corroboration      float64 // [0,1], defaults to 0.5 absent cross-source analysis
	Category           domain.Category
	Severity           domain.Severity
	RollingCategoryAvg map[domain.Category]CategoryAverage
}

// CompositeBreakdown is the explainable output of the 5-component
// composite scorer, mirroring composite_risk_scorer.py's return shape.
type CompositeBreakdown struct {
	RiskScore          float64
	MagnitudeContrib   float64
	ToneContrib        float64
	VelocityContrib    float64
	AttentionContrib   float64
	PersistenceContrib float64
	ConfidenceMod      float64
	BaseScore          float64
}

const (
	magnitudeWeight   = 0.30
	toneWeight        = 0.20
	velocityWeight    = 0.20
	attentionWeight   = 0.15
	persistenceWeight = 0.15

	p1MinimumScore = 70.0
	p2MinimumScore = 50.0
)

// Composite computes the 5-component composite risk score (magnitude/
// tone/velocity/attention/persistence) with a confidence modifier and
// severity floors, carried exactly from composite_risk_scorer.py (see
// DESIGN.md).
func Composite(in CompositeInput) CompositeBreakdown {
	categoryAvg, categoryStd := 0.5, 0.2
	if in.RollingCategoryAvg != nil {
		if stats, ok := in.RollingCategoryAvg[in.Category]; ok {
			categoryAvg, categoryStd = stats.Avg, stats.Std
		}
	}

	velocityNorm := 0.5
	if categoryStd > 0 {
		z := (in.MagnitudeNorm - categoryAvg) / categoryStd
		velocityNorm = sigmoid(z, 1.0)
	}

	numSources := in.NumSources
	if numSources == 0 {
		numSources = 1
	}
	attentionNorm := math.Min(float64(numSources)/10.0, 1.0)

	persistenceDays := in.PersistenceDays
	if persistenceDays == 0 {
		persistenceDays = 1
	}
	persistenceNorm := math.Min(float64(persistenceDays)/7.0, 1.0)

	baseScore := (magnitudeWeight*in.MagnitudeNorm +
		toneWeight*in.ToneNorm +
		velocityWeight*velocityNorm +
		attentionWeight*attentionNorm +
		persistenceWeight*persistenceNorm) * 100

	sourceDiversity := math.Min(float64(numSources)/5.0, 1.0)
	sourceCredibility := in.SourceCredibility
	if sourceCredibility == 0 {
		sourceCredibility = 0.7
	}
	corroboration := in.Corroboration
	if corroboration == 0 {
		corroboration = 0.5
	}

	confidenceMod := 0.5 + 0.5*(0.4*sourceDiversity+0.3*sourceCredibility+0.3*corroboration)

	riskScore := baseScore * confidenceMod

	switch in.Severity {
	case domain.P1:
		riskScore = math.Max(riskScore, p1MinimumScore)
	case domain.P2:
		riskScore = math.Max(riskScore, p2MinimumScore)
	}

	return CompositeBreakdown{
		RiskScore:          round1(riskScore),
		MagnitudeContrib:   round1(in.MagnitudeNorm * magnitudeWeight * 100),
		ToneContrib:        round1(in.ToneNorm * toneWeight * 100),
		VelocityContrib:    round1(velocityNorm * velocityWeight * 100),
		AttentionContrib:   round1(attentionNorm * attentionWeight * 100),
		PersistenceContrib: round1(persistenceNorm * persistenceWeight * 100),
		ConfidenceMod:      round3(confidenceMod),
		BaseScore:          round1(baseScore),
	}
}

func sigmoid(x, k float64) float64 {
	return 1.0 / (1.0 + math.Exp(-k*x))
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
func round3(x float64) float64 { return math.Round(x*1000) / 1000 }

// DefaultCategoryWeights is C11's daily-composite weight vector over the
// 10 categories: weighted toward ENERGY and REGULATORY (Venezuela's
// dominant risk dimensions — oil exports and sanctions regimes), summing
// to exactly 1.00. It is a configuration point, not a fixed constant.
var DefaultCategoryWeights = map[domain.Category]float64{
	domain.CategoryPolitical:      0.14,
	domain.CategoryConflict:       0.10,
	domain.CategoryEconomic:       0.13,
	domain.CategoryTrade:          0.08,
	domain.CategoryRegulatory:     0.16,
	domain.CategoryInfrastructure: 0.06,
	domain.CategoryHealthcare:     0.05,
	domain.CategorySocial:         0.08,
	domain.CategoryEnvironmental:  0.04,
	domain.CategoryEnergy:         0.16,
}

// CategoryEvent is one scored event within a category for a reporting
// window, the input to CategorySubScore.
type CategoryEvent struct {
	RiskScore float64
	Severity  domain.Severity
}

// CategorySubScore computes one category's sub-score:
// a severity-weighted average of risk scores, boosted by event count up
// to 20% at n>=10, clamped to 100.
func CategorySubScore(events []CategoryEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var weightedSum, weightSum float64
	for _, e := range events {
		w := domain.SeverityWeight[e.Severity]
		if w == 0 {
			w = 1
		}
		weightedSum += e.RiskScore * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	avg := weightedSum / weightSum
	boosted := avg * (1 + 0.2*math.Min(float64(len(events))/10.0, 1.0))
	return math.Min(boosted, 100)
}

// DailyComposite computes C11's domain-tuned daily composite over
// per-category sub-scores, applying the P1 boost: if p1Count > 0, the
// composite floors at 70 and scales up to 1.25x (5% per P1, capped at
// 5), then clips to [0,100].
func DailyComposite(subScores map[domain.Category]float64, weights map[domain.Category]float64, p1Count int) float64 {
	if weights == nil {
		weights = DefaultCategoryWeights
	}
	var composite float64
	for cat, w := range weights {
		composite += w * subScores[cat]
	}
	if p1Count > 0 {
		composite = math.Max(composite, 70)
		composite *= 1 + 0.05*math.Min(float64(p1Count), 5)
	}
	return domain.Clamp100(composite)
}
