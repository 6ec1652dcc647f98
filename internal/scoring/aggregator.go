package scoring

import "strings"

// DimensionWeights are C10's five per-event-type risk dimension weights;
// each profile must sum to 1.0. Values are carried from
// original_source/backend/data_pipeline/services/risk_aggregator.py
// (see DESIGN.md), the more precise source for these exact numbers
// than any abstract weight table.
type DimensionWeights struct {
	LLMBaseRisk float64
	Sanctions   float64
	Sentiment   float64
	Urgency     float64
	SupplyChain float64
}

func (w DimensionWeights) sum() float64 {
	return w.LLMBaseRisk + w.Sanctions + w.Sentiment + w.Urgency + w.SupplyChain
}

// DefaultAggregatorWeights is the "default" profile.
var DefaultAggregatorWeights = DimensionWeights{
	LLMBaseRisk: 0.25, Sanctions: 0.30, Sentiment: 0.20, Urgency: 0.15, SupplyChain: 0.10,
}

// EventTypeAggregatorWeights are the named per-event-type overrides.
var EventTypeAggregatorWeights = map[string]DimensionWeights{
	"TRADE": {
		LLMBaseRisk: 0.20, Sanctions: 0.35, Sentiment: 0.15, Urgency: 0.05, SupplyChain: 0.25,
	},
	"POLITICAL": {
		LLMBaseRisk: 0.30, Sanctions: 0.40, Sentiment: 0.20, Urgency: 0.10, SupplyChain: 0.00,
	},
	"HUMANITARIAN": {
		LLMBaseRisk: 0.25, Sanctions: 0.15, Sentiment: 0.25, Urgency: 0.30, SupplyChain: 0.05,
	},
	"ECONOMIC": {
		LLMBaseRisk: 0.30, Sanctions: 0.25, Sentiment: 0.15, Urgency: 0.05, SupplyChain: 0.25,
	},
	"CRISIS": {
		LLMBaseRisk: 0.30, Sanctions: 0.10, Sentiment: 0.20, Urgency: 0.35, SupplyChain: 0.05,
	},
}

// weightsFor resolves the dimension weight profile for eventType,
// falling back to the default profile for unrecognized types.
func weightsFor(eventType string) DimensionWeights {
	if w, ok := EventTypeAggregatorWeights[eventType]; ok {
		return w
	}
	return DefaultAggregatorWeights
}

// urgencyRisk maps the closed urgency vocabulary to a [0,1] risk score.
var urgencyRisk = map[string]float64{
	"low":       0.2,
	"medium":    0.5,
	"high":      0.8,
	"immediate": 1.0,
}

// supplyChainKeywords flags substrings indicating supply-chain exposure.
// Themes arrive as LLM-generated compound phrases (e.g.
// "political_instability", "oil_export_disruption"), never as bare
// keywords, so matching is substring-based rather than an exact lookup.
var supplyChainKeywords = []string{
	"oil", "export", "import", "trade",
	"supply", "sanctions", "commodity", "shipping",
	"port", "refinery", "embargo", "energy",
	"petroleum", "imports", "logistics", "disruption",
	"blockade",
}

// SupplyChainRisk counts supply-chain keyword hits across themes and
// steps the result through the fixed 0/1/2/3+ → 0.0/0.4/0.6/0.8 table.
func SupplyChainRisk(themes []string) float64 {
	joined := strings.ToLower(strings.Join(themes, " "))
	n := 0
	for _, kw := range supplyChainKeywords {
		if strings.Contains(joined, kw) {
			n++
		}
	}
	switch {
	case n == 0:
		return 0.0
	case n == 1:
		return 0.4
	case n == 2:
		return 0.6
	default:
		return 0.8
	}
}

// SentimentRisk inverts sentiment ([-1,1], positive=good) into a risk
// reading in [0,1] where negative sentiment is higher risk.
func SentimentRisk(sentiment float64) float64 {
	risk := 0.5 - 0.5*sentiment
	if risk < 0 {
		return 0
	}
	if risk > 1 {
		return 1
	}
	return risk
}

// UrgencyRisk maps an urgency label to its [0,1] risk reading, defaulting
// to medium (0.5) for unrecognized/empty labels.
func UrgencyRisk(urgency string) float64 {
	if r, ok := urgencyRisk[strings.ToLower(urgency)]; ok {
		return r
	}
	return 0.5
}

// AggregateInput is C10's five normalized [0,1] dimensions.
type AggregateInput struct {
	LLMBaseRisk float64
	Sanctions   float64 // 0 or 1
	Sentiment   float64 // already risk-inverted, see SentimentRisk
	Urgency     float64 // already mapped, see UrgencyRisk
	SupplyChain float64 // already mapped, see SupplyChainRisk
	EventType   string
}

// Aggregate computes C10: a [0,100] composite risk score from the five
// input dimensions under the event-type's weight profile. If the
// resolved profile doesn't sum to 1.0, it is renormalized and warn is
// invoked.
func Aggregate(in AggregateInput, warn func(string)) float64 {
	w := weightsFor(in.EventType)
	w = normalizeDimensionWeights(w, warn)

	composite := w.LLMBaseRisk*clamp01(in.LLMBaseRisk) +
		w.Sanctions*clamp01(in.Sanctions) +
		w.Sentiment*clamp01(in.Sentiment) +
		w.Urgency*clamp01(in.Urgency) +
		w.SupplyChain*clamp01(in.SupplyChain)

	composite = clamp01(composite) * 100
	if composite < 0 {
		return 0
	}
	if composite > 100 {
		return 100
	}
	return composite
}

func normalizeDimensionWeights(w DimensionWeights, warn func(string)) DimensionWeights {
	const tolerance = 1e-3
	sum := w.sum()
	if sum == 0 {
		return DefaultAggregatorWeights
	}
	if absf(sum-1.0) <= tolerance {
		return w
	}
	if warn != nil {
		warn("risk aggregator weights do not sum to 1.0; renormalizing")
	}
	return DimensionWeights{
		LLMBaseRisk: w.LLMBaseRisk / sum,
		Sanctions:   w.Sanctions / sum,
		Sentiment:   w.Sentiment / sum,
		Urgency:     w.Urgency / sum,
		SupplyChain: w.SupplyChain / sum,
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
