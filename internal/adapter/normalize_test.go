package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stdin/venezuelawatch/internal/domain"
)

func TestNormalizeGoldstein_ClampsToUnitInterval(t *testing.T) {
	assert.InDelta(t, 0.5, NormalizeGoldstein(0), 1e-9)
	assert.InDelta(t, 1.0, NormalizeGoldstein(10), 1e-9)
	assert.InDelta(t, 0.0, NormalizeGoldstein(-10), 1e-9)
	assert.InDelta(t, 1.0, NormalizeGoldstein(50), 1e-9) // out-of-range clips
}

func TestNormalizePercentChange_FiftyPercentSaturates(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizePercentChange(50), 1e-9)
	assert.InDelta(t, 1.0, NormalizePercentChange(-200), 1e-9)
	assert.InDelta(t, 0.2, NormalizePercentChange(10), 1e-9)
}

func TestNormalizeInterestScore_DividesByHundred(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizeInterestScore(100), 1e-9)
	assert.InDelta(t, 0.42, NormalizeInterestScore(42), 1e-9)
}

func TestNormalizeTone_WorstToneIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizeTone(-10), 1e-9)
	assert.InDelta(t, 0.5, NormalizeTone(0), 1e-9)
	assert.InDelta(t, 0.0, NormalizeTone(10), 1e-9)
}

func TestDirectionFromGoldstein_ThresholdsAtPlusMinusTwo(t *testing.T) {
	assert.Equal(t, domain.DirectionNegative, DirectionFromGoldstein(-3))
	assert.Equal(t, domain.DirectionPositive, DirectionFromGoldstein(3))
	assert.Equal(t, domain.DirectionNeutral, DirectionFromGoldstein(0))
	assert.Equal(t, domain.DirectionNeutral, DirectionFromGoldstein(2))
}

func TestDirectionFromSignedChange_BadWhenUpInvertsSign(t *testing.T) {
	assert.Equal(t, domain.DirectionNegative, DirectionFromSignedChange(5, true))  // inflation rising is bad
	assert.Equal(t, domain.DirectionPositive, DirectionFromSignedChange(-5, true)) // inflation falling is good
	assert.Equal(t, domain.DirectionPositive, DirectionFromSignedChange(5, false)) // GDP rising is good
}

func TestDirectionFromSignedChange_DeadBandResolvesNeutral(t *testing.T) {
	assert.Equal(t, domain.DirectionNeutral, DirectionFromSignedChange(0.01, true))
	assert.Equal(t, domain.DirectionNeutral, DirectionFromSignedChange(-0.01, false))
}

func TestConfidence_CapsAtSourceCredibility(t *testing.T) {
	assert.InDelta(t, 0.7, Confidence(100, 0.7), 1e-9) // many sources, capped at 1.0 * credibility
	assert.InDelta(t, 0.07, Confidence(1, 0.7), 1e-9)
}

func TestNormalizeUSD_ZeroIsZero(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeUSD(0))
	assert.Equal(t, 0.0, NormalizeUSD(-5))
	assert.True(t, NormalizeUSD(1_000_000_000) > NormalizeUSD(1_000_000))
}
