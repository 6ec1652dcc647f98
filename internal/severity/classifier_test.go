package severity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stdin/venezuelawatch/internal/domain"
)

func TestAssign_S3CoupAutoTrigger(t *testing.T) {
	e := &domain.Event{EventType: "COUP", MagnitudeNorm: 0.2}
	sev, reason := Assign(e)
	assert.Equal(t, domain.P1, sev)
	assert.Equal(t, "Auto-trigger: COUP", reason)
}

func TestAssign_FatalityThreshold(t *testing.T) {
	raw := 10.0
	e := &domain.Event{MagnitudeUnit: domain.UnitFatalities, MagnitudeRaw: &raw}
	sev, _ := Assign(e)
	assert.Equal(t, domain.P1, sev)
}

func TestAssign_P2Fatalities(t *testing.T) {
	raw := 5.0
	e := &domain.Event{MagnitudeUnit: domain.UnitFatalities, MagnitudeRaw: &raw}
	sev, _ := Assign(e)
	assert.Equal(t, domain.P2, sev)
}

func TestAssign_P4Default(t *testing.T) {
	e := &domain.Event{Category: domain.CategorySocial, MagnitudeNorm: 0.1, Direction: domain.DirectionPositive}
	sev, reason := Assign(e)
	assert.Equal(t, domain.P4, sev)
	assert.Equal(t, "Low impact / informational", reason)
}

func TestAssign_KeywordAutoTrigger(t *testing.T) {
	e := &domain.Event{Title: "Military stages coup attempt against president"}
	sev, _ := Assign(e)
	assert.Equal(t, domain.P1, sev)
}
