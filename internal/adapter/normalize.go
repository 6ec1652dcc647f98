package adapter

import (
	"math"

	"github.com/stdin/venezuelawatch/internal/domain"
)

// deadBand is the magnitude-near-zero window that resolves to NEUTRAL
// rather than a sign-derived direction: ties under a small dead-band
// (|x| <= epsilon) resolve to NEUTRAL.
const deadBand = 0.05

// NormalizeGoldstein maps a GDELT-style Goldstein scale value (-10..+10)
// to [0,1], grounded verbatim on gdelt_adapter.py's
// `(goldstein + 10) / 20`.
func NormalizeGoldstein(goldstein float64) float64 {
	return domain.ClampUnit((goldstein + 10) / 20)
}

// NormalizePercentChange maps a percent-change magnitude to [0,1] by
// the `min(|x|/50, 1)` rule world_bank_adapter.py
// uses (a 50% move saturates the scale).
func NormalizePercentChange(pctChange float64) float64 {
	return domain.ClampUnit(math.Abs(pctChange) / 50)
}

// NormalizeInterestScore maps a 0-100 interest/popularity score (Google
// Trends' rank/score) to [0,1].
func NormalizeInterestScore(score float64) float64 {
	return domain.ClampUnit(score / 100)
}

// NormalizeFatalities maps a fatality count to [0,1] via a monotone
// saturating map: fatality counts pass through unnormalized and their
// adapters set magnitude_norm by this map; 20 fatalities saturates the scale, in line
// with internal/severity's own fatality-threshold ordering of magnitude.
func NormalizeFatalities(fatalities float64) float64 {
	return domain.ClampUnit(fatalities / 20)
}

// NormalizeUSD maps a USD magnitude to [0,1] via a log-scaled
// saturating map: $1B marks the top of the scale, matching the
// dollar-denominated events (sanctions, nationalizations) this system
// tracks.
func NormalizeUSD(usd float64) float64 {
	if usd <= 0 {
		return 0
	}
	const billion = 1_000_000_000.0
	return domain.ClampUnit(math.Log1p(usd) / math.Log1p(billion))
}

// NormalizeTone maps a GDELT-style AvgTone (-100..+100, negative is
// worse) to [0,1] with 1 meaning worst tone, grounded on
// gdelt_adapter.py's `min(max((avg_tone * -1 + 10) / 20, 0), 1)`.
func NormalizeTone(avgTone float64) float64 {
	return domain.ClampUnit((avgTone*-1 + 10) / 20)
}

// DirectionFromGoldstein derives Direction from a Goldstein-scaled
// magnitude, grounded on gdelt_adapter.py's threshold rule
// (goldstein < -2 -> NEGATIVE, > 2 -> POSITIVE, else NEUTRAL).
func DirectionFromGoldstein(goldstein float64) domain.Direction {
	switch {
	case goldstein < -2:
		return domain.DirectionNegative
	case goldstein > 2:
		return domain.DirectionPositive
	default:
		return domain.DirectionNeutral
	}
}

// DirectionFromSignedChange derives Direction from a signed magnitude
// where badWhenUp controls whether a positive change is bad (e.g.
// inflation, unemployment) or good (e.g. GDP, exports). Values inside
// the dead-band resolve to NEUTRAL regardless of sign.
func DirectionFromSignedChange(change float64, badWhenUp bool) domain.Direction {
	if math.Abs(change) <= deadBand {
		return domain.DirectionNeutral
	}
	up := change > 0
	if badWhenUp {
		if up {
			return domain.DirectionNegative
		}
		return domain.DirectionPositive
	}
	if up {
		return domain.DirectionPositive
	}
	return domain.DirectionNegative
}

// Confidence combines source multiplicity and source credibility into
// [0,1], grounded verbatim on gdelt_adapter.py's
// `min(num_sources / 10, 1.0) * source_credibility`.
func Confidence(numSources int, sourceCredibility float64) float64 {
	return domain.ClampUnit(math.Min(float64(numSources)/10, 1.0) * sourceCredibility)
}
