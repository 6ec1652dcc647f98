package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/category"
	"github.com/stdin/venezuelawatch/internal/domain"
	verrors "github.com/stdin/venezuelawatch/internal/errors"
)

// fredSourceCredibility reflects FRED's status as a federal statistical
// agency aggregator, higher than GDELT's event-wire credibility.
const fredSourceCredibility = 0.95

// fredSeries is one entry in the tracked Venezuela-relevant economic
// series registry, carried over from functions/fred/main.py's
// VENEZUELA_ECONOMIC_SERIES table.
type fredSeries struct {
	ID            string
	Name          string
	Category      string
	ThresholdLow  *float64
	ThresholdHigh *float64
}

var fredTrackedSeries = []fredSeries{
	{ID: "DCOILWTICO", Name: "WTI Crude Oil Price", Category: "oil_prices", ThresholdLow: ptr(50.0), ThresholdHigh: ptr(100.0)},
	{ID: "DCOILBRENTEU", Name: "Brent Crude Oil Price", Category: "oil_prices", ThresholdLow: ptr(55.0), ThresholdHigh: ptr(105.0)},
	{ID: "FPCPITOTLZGVEN", Name: "Venezuela CPI Inflation (YoY)", Category: "venezuela_macro", ThresholdHigh: ptr(100.0)},
	{ID: "NYGDPPCAPKDVEN", Name: "Venezuela GDP per Capita", Category: "venezuela_macro"},
	{ID: "DEXVZUS", Name: "Venezuela Bolivar / USD Exchange Rate", Category: "exchange_rates"},
	{ID: "TRESEGVEA634N", Name: "Venezuela Total Reserves", Category: "reserves", ThresholdLow: ptr(10000.0)},
}

// FREDAdapter fetches observations for the tracked Venezuela-relevant
// economic series from the FRED API and emits a canonical event only
// when an observation crosses a tracked threshold, matching
// functions/fred/main.py's detect_threshold_breach -- plain in-range
// observations are indicator data, not signal events.
type FREDAdapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	dupCheck   adapter.DuplicateChecker
}

// NewFREDAdapter builds the FRED adapter; baseURL defaults to the
// public FRED REST endpoint when empty.
func NewFREDAdapter(httpClient *http.Client, baseURL, apiKey string, dup adapter.DuplicateChecker) *FREDAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.stlouisfed.org/fred/series/observations"
	}
	return &FREDAdapter{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey, dupCheck: dup}
}

func (a *FREDAdapter) SourceName() domain.Source   { return domain.SourceFRED }
func (a *FREDAdapter) ScheduleFrequency() string    { return "0 7 * * *" }
func (a *FREDAdapter) DefaultLookbackMinutes() int  { return 10080 } // 7 days, matching main.py's default lookback_days=7

// Fetch pulls observations for every tracked series since start. A
// single discontinued series (FRED returns 400) is skipped rather than
// failing the whole run, matching main.py's per-series try/except.
func (a *FREDAdapter) Fetch(ctx context.Context, start, end time.Time, limit int) ([]adapter.RawRecord, error) {
	var raw []adapter.RawRecord

	for _, series := range fredTrackedSeries {
		url := fmt.Sprintf("%s?series_id=%s&api_key=%s&file_type=json&observation_start=%s",
			a.baseURL, series.ID, a.apiKey, start.UTC().Format("2006-01-02"))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, verrors.Wrap(verrors.Permanent, "adapter.fred.fetch", "build request", err)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, verrors.Wrap(verrors.Transient, "adapter.fred.fetch", "request failed for "+series.ID, err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, verrors.Wrap(verrors.Transient, "adapter.fred.fetch", "read body for "+series.ID, readErr)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, verrors.New(verrors.Transient, "adapter.fred.fetch", fmt.Sprintf("upstream status %d for %s", resp.StatusCode, series.ID))
		}
		if resp.StatusCode >= 400 {
			continue // series may be discontinued; don't abort the rest
		}

		for _, obs := range gjson.GetBytes(body, "observations").Array() {
			valueStr := obs.Get("value").String()
			if valueStr == "" || valueStr == "." {
				continue // FRED uses "." for missing observations
			}
			raw = append(raw, adapter.RawRecord{
				"series_id":   series.ID,
				"date":        obs.Get("date").String(),
				"value":       obs.Get("value").Float(),
			})
		}
	}

	return raw, nil
}

// Transform walks each series' observations in date order and emits
// one event per threshold crossing (current value breaches a bound
// the previous observation in the window did not), mirroring
// detect_threshold_breach's "current_below and not previous_below"
// edge-triggering. Series without tracked thresholds never emit events.
func (a *FREDAdapter) Transform(raw []adapter.RawRecord) ([]domain.Event, []adapter.TransformFailure) {
	bySeries := make(map[string][]adapter.RawRecord)
	for _, rec := range raw {
		seriesID, _ := rec["series_id"].(string)
		bySeries[seriesID] = append(bySeries[seriesID], rec)
	}

	var events []domain.Event
	var failures []adapter.TransformFailure

	for seriesID, obs := range bySeries {
		cfg := lookupFredSeries(seriesID)
		if cfg == nil {
			continue
		}
		sort.Slice(obs, func(i, j int) bool {
			di, _ := obs[i]["date"].(string)
			dj, _ := obs[j]["date"].(string)
			return di < dj
		})

		var previous *float64
		for _, rec := range obs {
			date, _ := rec["date"].(string)
			value, _ := rec["value"].(float64)
			if date == "" {
				failures = append(failures, adapter.TransformFailure{Record: rec, Reason: "missing date"})
				continue
			}

			breachType, breachValue, breached := detectThresholdBreach(value, previous, cfg)
			prevCopy := value
			previous = &prevCopy
			if !breached {
				continue
			}

			eventTimestamp, err := time.Parse("2006-01-02", date)
			if err != nil {
				failures = append(failures, adapter.TransformFailure{Record: rec, Reason: "unparseable date"})
				continue
			}

			cat, subcategory := category.Classify(domain.SourceFRED, map[string]any{"series_id": seriesID})
			eventID := fmt.Sprintf("fred-%s-%s-%s", seriesID, date, breachType)

			var title string
			if breachType == "low" {
				title = fmt.Sprintf("ALERT: %s falls below %.2f", cfg.Name, breachValue)
			} else {
				title = fmt.Sprintf("ALERT: %s exceeds %.2f", cfg.Name, breachValue)
			}

			events = append(events, domain.Event{
				ID:                domain.NewID(domain.SourceFRED, eventID),
				Source:            domain.SourceFRED,
				SourceEventID:     eventID,
				SourceURL:         "https://fred.stlouisfed.org/series/" + seriesID,
				EventTimestamp:    eventTimestamp,
				Category:          cat,
				Subcategory:       subcategory,
				EventType:         "economic_alert",
				Title:             title,
				Content:           fmt.Sprintf("Economic threshold breach: %s = %.4f", cfg.Name, value),
				CountryCode:       "VE",
				MagnitudeRaw:      ptr(value),
				MagnitudeUnit:     domain.UnitUSD,
				MagnitudeNorm:     adapter.NormalizeUSD(value),
				Direction:         domain.DirectionNegative, // threshold breaches are adverse by construction
				NumSources:        1,
				SourceCredibility: fredSourceCredibility,
				Confidence:        fredSourceCredibility,
				Metadata: map[string]any{
					"series_id":      seriesID,
					"series_name":    cfg.Name,
					"category":       cfg.Category,
					"current_value":  value,
					"threshold_type": breachType,
					"threshold_value": breachValue,
				},
			})
		}
	}

	return events, failures
}

// Validate checks required fields and duplicate detection by the
// composite series/date/threshold-type event id, which is already
// stable without needing a URL-window check.
func (a *FREDAdapter) Validate(ctx context.Context, e *domain.Event) (bool, string) {
	if e.ID == "" {
		return false, "missing id"
	}
	if e.EventTimestamp.IsZero() {
		return false, "missing event_timestamp"
	}

	if a.dupCheck != nil {
		seen, err := a.dupCheck.SeenWithinWindow(ctx, domain.SourceFRED, e.SourceEventID, e.SourceURL, 24*time.Hour)
		if err == nil && seen {
			return false, "duplicate"
		}
	}

	return true, ""
}

func lookupFredSeries(id string) *fredSeries {
	for i := range fredTrackedSeries {
		if fredTrackedSeries[i].ID == id {
			return &fredTrackedSeries[i]
		}
	}
	return nil
}

// detectThresholdBreach reports an edge-triggered crossing: the current
// value is beyond a tracked bound while the previous observation was
// not, matching main.py's detect_threshold_breach exactly. previous nil
// (first observation in the window) is treated as "not previously
// breached", so a series already beyond its threshold at window start
// alerts once on its first observation.
func detectThresholdBreach(current float64, previous *float64, cfg *fredSeries) (threshold string, value float64, breached bool) {
	if cfg.ThresholdLow != nil {
		currentBelow := current < *cfg.ThresholdLow
		previousBelow := previous != nil && *previous < *cfg.ThresholdLow
		if currentBelow && !previousBelow {
			return "low", *cfg.ThresholdLow, true
		}
	}
	if cfg.ThresholdHigh != nil {
		currentAbove := current > *cfg.ThresholdHigh
		previousAbove := previous != nil && *previous > *cfg.ThresholdHigh
		if currentAbove && !previousAbove {
			return "high", *cfg.ThresholdHigh, true
		}
	}
	return "", 0, false
}
