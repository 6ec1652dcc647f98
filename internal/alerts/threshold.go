package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/stdin/venezuelawatch/internal/domain"
)

// Indicator carries one series' crossing configuration and rule-table
// lookup key. ThresholdLow/ThresholdHigh are nil when that side is
// unconfigured — only a configured side can ever fire.
type Indicator struct {
	SeriesID     string
	CountryCode  string
	ThresholdLow  *float64
	ThresholdHigh *float64
	RuleKey       string // selects a row in the severity rule table
}

// severityRule maps a small, fixed set of indicator rule-table keys to
// the severity an alert fires at. Indicators outside this table default
// to P3, a conservative middle ground.
var severityRule = map[string]domain.Severity{
	"fx_reserves":       domain.P1,
	"oil_production":    domain.P2,
	"inflation_index":   domain.P2,
	"sanctions_count":   domain.P1,
	"protest_frequency": domain.P3,
	"trade_balance":     domain.P3,
}

func severityFor(ruleKey string) domain.Severity {
	if sev, ok := severityRule[ruleKey]; ok {
		return sev
	}
	return domain.P3
}

// Publisher is the narrow port C16 emits synthetic alert events through;
// the concrete implementation is the ingest topic of internal/bus.
type Publisher interface {
	PublishIngest(ctx context.Context, e domain.Event) error
}

// CrossingState tracks, per series, which side of its thresholds the
// last observed value was on, so repeat excursions beyond a threshold
// don't re-fire every observation. State is process-local; a restart
// re-establishes it from the first observation after restart (a
// crossing cannot be detected without a known prior side).
type CrossingState struct {
	lastSide map[string]side
}

type side int

const (
	sideUnknown side = iota
	sideBelowLow
	sideBetween
	sideAboveHigh
)

// NewCrossingState builds an empty tracker.
func NewCrossingState() *CrossingState {
	return &CrossingState{lastSide: map[string]side{}}
}

// Observe evaluates one new value for an indicator and, if it just
// crossed a configured threshold from the other side, emits a synthetic
// canonical alert event via pub. Returns whether an alert fired.
func (cs *CrossingState) Observe(ctx context.Context, ind Indicator, value float64, observedAt time.Time, pub Publisher) (bool, error) {
	current := sideOf(ind, value)
	previous, known := cs.lastSide[ind.SeriesID]
	cs.lastSide[ind.SeriesID] = current

	if !known || current == previous {
		return false, nil
	}

	var crossedHigh, crossedLow bool
	if current == sideAboveHigh && previous != sideAboveHigh {
		crossedHigh = true
	}
	if current == sideBelowLow && previous != sideBelowLow {
		crossedLow = true
	}
	if !crossedHigh && !crossedLow {
		return false, nil
	}

	direction := "above"
	threshold := ind.ThresholdHigh
	if crossedLow {
		direction = "below"
		threshold = ind.ThresholdLow
	}

	event := domain.Event{
		ID:             domain.NewID("alert", fmt.Sprintf("%s/%s/%d", ind.SeriesID, direction, observedAt.Unix())),
		Source:         domain.Source("alert"),
		SourceEventID:  fmt.Sprintf("%s-%s-%d", ind.SeriesID, direction, observedAt.Unix()),
		EventTimestamp: observedAt,
		IngestedAt:     observedAt,
		CreatedAt:      observedAt,
		Category:       domain.CategoryEconomic,
		EventType:      "THRESHOLD_CROSSING",
		Title:          fmt.Sprintf("%s crossed %s threshold", ind.SeriesID, direction),
		Content:        fmt.Sprintf("Series %s (%s) value %.4f crossed its %s threshold of %.4f", ind.SeriesID, ind.CountryCode, value, direction, derefOr(threshold, 0)),
		CountryCode:    ind.CountryCode,
		MagnitudeRaw:   &value,
		MagnitudeNorm:  domain.ClampUnit(value),
		NumSources:     1,
		Severity:       severityFor(ind.RuleKey),
	}

	if err := pub.PublishIngest(ctx, event); err != nil {
		return false, fmt.Errorf("alerts: publish threshold crossing: %w", err)
	}
	return true, nil
}

func sideOf(ind Indicator, value float64) side {
	if ind.ThresholdLow != nil && value < *ind.ThresholdLow {
		return sideBelowLow
	}
	if ind.ThresholdHigh != nil && value > *ind.ThresholdHigh {
		return sideAboveHigh
	}
	return sideBetween
}

func derefOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
