package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/stdin/venezuelawatch/internal/alerts"
	"github.com/stdin/venezuelawatch/internal/bus"
	"github.com/stdin/venezuelawatch/internal/domain"
	"github.com/stdin/venezuelawatch/internal/storage"
)

// watchedCategories are the daily volume series C16/C17 monitor. The
// platform has no dense per-series macro-indicator table (FRED/World
// Bank only persist sparse threshold-breach events, see
// internal/adapter/sources/fred.go) and no GDELT per-event mentions
// feed, so both alert jobs run against daily event-category counts
// instead -- the closest derived numeric series the column store
// actually carries, reusing internal/alerts' exact crossing-state and
// z-score primitives unchanged.
var watchedCategories = []domain.Category{
	domain.CategoryConflict,
	domain.CategoryEconomic,
	domain.CategorySocial,
	domain.CategoryRegulatory,
}

// categoryThresholds are the fixed daily-count boundaries C16 watches
// for a crossing. A category outside this map is skipped by
// runThresholdCheck.
var categoryThresholds = map[domain.Category]float64{
	domain.CategoryConflict:   20,
	domain.CategoryEconomic:   15,
	domain.CategorySocial:     25,
	domain.CategoryRegulatory: 10,
}

// spikeBaselineWindow is how many trailing days feed a day's rolling
// avg/stddev baseline for C17; spikeLookback is how far back the job
// scans for days worth classifying.
const (
	spikeBaselineWindow = 14 * 24 * time.Hour
	spikeLookback       = 3 * 24 * time.Hour
	alertPollInterval   = 6 * time.Hour
)

// runAlertJobs polls watchedCategories on a fixed interval, running
// C16's threshold-crossing check and C17's spike detector over each
// category's daily event volume until ctx is cancelled.
func runAlertJobs(ctx context.Context, events *storage.EventStore, mentions *storage.MentionStore, pub *bus.EventPublisher, log zerolog.Logger) {
	crossing := alerts.NewCrossingState()
	ticker := time.NewTicker(alertPollInterval)
	defer ticker.Stop()

	runOnce(ctx, events, mentions, pub, crossing, log)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, events, mentions, pub, crossing, log)
		}
	}
}

func runOnce(ctx context.Context, events *storage.EventStore, mentions *storage.MentionStore, pub *bus.EventPublisher, crossing *alerts.CrossingState, log zerolog.Logger) {
	now := time.Now().UTC()

	for _, cat := range watchedCategories {
		points, err := events.CategoryDailyCounts(ctx, cat, now.Add(-spikeBaselineWindow-spikeLookback), now)
		if err != nil {
			log.Warn().Err(err).Str("category", string(cat)).Msg("pulsed: alert job category lookup failed")
			continue
		}
		if len(points) == 0 {
			continue
		}

		runThresholdCheck(ctx, cat, points, pub, crossing, log)
		runSpikeCheck(ctx, cat, points, mentions, log)
	}
}

// runThresholdCheck feeds each category's latest daily count through
// C16's persistent crossing tracker, publishing a synthetic alert
// event via pub on a genuine crossing.
func runThresholdCheck(ctx context.Context, cat domain.Category, points []storage.DailyPoint, pub *bus.EventPublisher, crossing *alerts.CrossingState, log zerolog.Logger) {
	threshold, ok := categoryThresholds[cat]
	if !ok {
		return
	}
	latest := points[len(points)-1]

	ind := alerts.Indicator{
		SeriesID:      "category_volume:" + string(cat),
		CountryCode:   "VE",
		ThresholdHigh: &threshold,
		RuleKey:       categoryRuleKey(cat),
	}
	fired, err := crossing.Observe(ctx, ind, latest.Value, latest.Date, pub)
	if err != nil {
		log.Error().Err(err).Str("category", string(cat)).Msg("pulsed: threshold alert publish failed")
		return
	}
	if fired {
		log.Info().Str("category", string(cat)).Float64("value", latest.Value).Msg("pulsed: threshold crossing alert fired")
	}
}

// categoryRuleKey maps a watched category to one of severityRule's
// keys in internal/alerts/threshold.go; categories without a direct
// match fall through to that table's P3 default.
func categoryRuleKey(cat domain.Category) string {
	switch cat {
	case domain.CategoryConflict:
		return "protest_frequency"
	case domain.CategoryRegulatory:
		return "sanctions_count"
	default:
		return string(cat)
	}
}

// runSpikeCheck classifies the most recent day in points against a
// rolling baseline built from the preceding spikeBaselineWindow, and
// persists any spike clearing C17's z >= 2.0 floor.
func runSpikeCheck(ctx context.Context, cat domain.Category, points []storage.DailyPoint, mentions *storage.MentionStore, log zerolog.Logger) {
	if len(points) < 2 {
		return
	}
	latest := points[len(points)-1]
	baseline := points[:len(points)-1]
	if len(baseline) < 3 {
		return // too little history for a meaningful baseline
	}

	avg, stddev := rollingStats(baseline)
	stat := alerts.MentionStat{
		EventID:       fmt.Sprintf("category:%s", cat),
		SpikeDate:     latest.Date.Format("2006-01-02"),
		MentionCount:  latest.Value,
		RollingAvg:    &avg,
		RollingStdDev: &stddev,
	}

	spikes := alerts.DetectSpikes([]alerts.MentionStat{stat})
	for _, sp := range spikes {
		sp.SpikeDate = latest.Date
		if err := mentions.RecordSpike(ctx, sp); err != nil {
			log.Error().Err(err).Str("category", string(cat)).Msg("pulsed: spike record failed")
			continue
		}
		log.Info().Str("category", string(cat)).Float64("z_score", sp.ZScore).Str("confidence", string(sp.Confidence)).Msg("pulsed: mention spike detected")
	}
}

func rollingStats(points []storage.DailyPoint) (avg, stddev float64) {
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	avg = sum / float64(len(points))

	var variance float64
	for _, p := range points {
		d := p.Value - avg
		variance += d * d
	}
	variance /= float64(len(points))
	stddev = math.Sqrt(variance)
	return avg, stddev
}
