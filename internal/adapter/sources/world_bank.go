package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/category"
	"github.com/stdin/venezuelawatch/internal/domain"
	verrors "github.com/stdin/venezuelawatch/internal/errors"
)

// worldBankSourceCredibility matches world_bank_adapter.py's comment
// "World Bank is authoritative".
const worldBankSourceCredibility = 0.95

// WorldBankAdapter fetches Venezuela's World Development Indicators
// quarterly, grounded on world_bank_adapter.py field-for-field (stable
// wb-{country}-{code}-{year} event ids, percent_change magnitude,
// negative_is_bad direction rule).
type WorldBankAdapter struct {
	httpClient  *http.Client
	baseURL     string
	dupCheck    adapter.DuplicateChecker
	prevByKey   map[string]float64 // country-indicator -> last observed value, for pct_change across calls
}

// NewWorldBankAdapter builds the adapter. baseURL defaults to the
// public World Bank indicators API when empty.
func NewWorldBankAdapter(httpClient *http.Client, baseURL string, dup adapter.DuplicateChecker) *WorldBankAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.worldbank.org/v2/country/VEN/indicator"
	}
	return &WorldBankAdapter{httpClient: httpClient, baseURL: baseURL, dupCheck: dup, prevByKey: make(map[string]float64)}
}

func (a *WorldBankAdapter) SourceName() domain.Source  { return domain.SourceWorldBank }
func (a *WorldBankAdapter) ScheduleFrequency() string   { return "0 3 1 1,4,7,10 *" } // quarterly
func (a *WorldBankAdapter) DefaultLookbackMinutes() int { return 129600 }             // 90 days

// worldBankTrackedIndicators are the 5 key WDI indicator categories
// world_bank_adapter.py names (GDP, GNI, population, inflation, trade
// balance).
var worldBankTrackedIndicators = []string{
	"NY.GDP.MKTP.CD",  // GDP (current US$)
	"NY.GNP.MKTP.CD",  // GNI (current US$)
	"SP.POP.TOTL",     // Population, total
	"FP.CPI.TOTL.ZG",  // Inflation, consumer prices (annual %)
	"NE.RSB.GNFS.CD",  // External balance on goods and services
}

// Fetch queries the World Bank indicators API for each tracked
// indicator's recent years, matching the year-threshold-from-lookback
// logic world_bank_adapter.py's fetch() uses in place of precise date
// filtering (WDI data is annual/quarterly).
func (a *WorldBankAdapter) Fetch(ctx context.Context, start, end time.Time, limit int) ([]adapter.RawRecord, error) {
	var raw []adapter.RawRecord

	for _, code := range worldBankTrackedIndicators {
		url := fmt.Sprintf("%s/%s?format=json&per_page=%d&date=%d:%d",
			a.baseURL, code, limit, start.Year(), end.Year())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, verrors.Wrap(verrors.Permanent, "adapter.world_bank.fetch", "build request", err)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, verrors.Wrap(verrors.Transient, "adapter.world_bank.fetch", "request failed", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, verrors.Wrap(verrors.Transient, "adapter.world_bank.fetch", "read body", readErr)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, verrors.New(verrors.Transient, "adapter.world_bank.fetch", fmt.Sprintf("upstream status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			continue // mirrors the Python adapter's "log and return empty" fallback per indicator
		}

		// the World Bank API returns a [metadata, data] two-element array
		arr := gjson.ParseBytes(body).Array()
		if len(arr) < 2 {
			continue
		}
		for _, row := range arr[1].Array() {
			value := row.Get("value")
			if !value.Exists() || value.Type.String() == "Null" {
				continue // World Bank returns null for years without a reported value
			}
			raw = append(raw, adapter.RawRecord{
				"indicator_code": code,
				"indicator_name": row.Get("indicator.value").String(),
				"country_code":   row.Get("countryiso3code").String(),
				"country_name":   row.Get("country.value").String(),
				"year":           row.Get("date").String(),
				"value":          value.Float(),
			})
		}
	}

	return raw, nil
}

// Transform maps raw indicator observations to canonical events,
// grounded field-for-field on world_bank_adapter.py's transform().
func (a *WorldBankAdapter) Transform(raw []adapter.RawRecord) ([]domain.Event, []adapter.TransformFailure) {
	var events []domain.Event
	var failures []adapter.TransformFailure

	for _, rec := range raw {
		indicatorCode, _ := rec["indicator_code"].(string)
		year, _ := rec["year"].(string)
		value, hasValue := rec["value"].(float64)
		if indicatorCode == "" || year == "" || !hasValue {
			failures = append(failures, adapter.TransformFailure{Record: rec, Reason: "missing indicator_code, year, or value"})
			continue
		}

		countryCode, _ := rec["country_code"].(string)
		if countryCode == "" {
			countryCode = "VEN"
		}
		countryName, _ := rec["country_name"].(string)
		if countryName == "" {
			countryName = "Venezuela"
		}
		indicatorName, _ := rec["indicator_name"].(string)
		if indicatorName == "" {
			indicatorName = "Unknown Indicator"
		}

		prevKey := countryCode + "-" + indicatorCode
		prevValue, hadPrev := a.prevByKey[prevKey]
		if !hadPrev {
			prevValue = value
		}
		a.prevByKey[prevKey] = value

		var pctChange float64
		if prevValue != 0 {
			pctChange = ((value - prevValue) / prevValue) * 100
		}

		cat, subcategory := category.Classify(domain.SourceWorldBank, map[string]any{"indicator_code": indicatorCode})

		negativeIsBad := strings.HasPrefix(indicatorCode, "FP.CPI") ||
			strings.HasPrefix(indicatorCode, "SL.UEM") ||
			strings.Contains(indicatorCode, "DEBT") ||
			strings.Contains(indicatorCode, "DEFICIT")

		events = append(events, domain.Event{
			ID:             domain.NewID(domain.SourceWorldBank, fmt.Sprintf("wb-%s-%s-%s", countryCode, indicatorCode, year)),
			Source:         domain.SourceWorldBank,
			SourceEventID:  fmt.Sprintf("wb-%s-%s-%s", countryCode, indicatorCode, year),
			SourceURL:      fmt.Sprintf("https://data.worldbank.org/indicator/%s?locations=VE", indicatorCode),
			EventTimestamp: yearEnd(year),
			Category:       cat,
			Subcategory:    subcategory,
			EventType:      "INDICATOR_UPDATE",
			Title:          fmt.Sprintf("%s for %s (%s)", indicatorName, countryName, year),
			Content:        fmt.Sprintf("%s: %.4f (%+.1f%% change)", indicatorName, value, pctChange),
			CountryCode:    "VE",
			MagnitudeRaw:   ptr(pctChange),
			MagnitudeUnit:  domain.UnitPercentChange,
			MagnitudeNorm:  adapter.NormalizePercentChange(pctChange),
			Direction:      adapter.DirectionFromSignedChange(pctChange, negativeIsBad),
			ToneNorm:       0.5, // neutral for data, matching world_bank_adapter.py
			NumSources:     1,
			SourceCredibility: worldBankSourceCredibility,
			Confidence:     worldBankSourceCredibility,
			Metadata: map[string]any{
				"indicator_code": indicatorCode,
				"indicator_name": indicatorName,
				"year":           year,
				"value":          value,
				"prev_value":     prevValue,
				"pct_change":     pctChange,
				"country_code":   countryCode,
				"country_name":   countryName,
			},
		})
	}

	return events, failures
}

// Validate checks the wb-{country}-{code}-{year} id pattern plus
// required fields and metadata, matching world_bank_adapter.py's
// validate() field-for-field.
func (a *WorldBankAdapter) Validate(ctx context.Context, e *domain.Event) (bool, string) {
	if e.SourceEventID == "" {
		return false, "missing source_event_id"
	}
	if !strings.HasPrefix(e.SourceEventID, "wb-") {
		return false, "invalid event id pattern: expected wb-{country}-{code}-{year}"
	}
	if e.Title == "" {
		return false, "missing title"
	}
	if e.SourceURL == "" {
		return false, "missing source_url"
	}
	if e.EventTimestamp.IsZero() {
		return false, "missing event_timestamp"
	}
	if e.Metadata == nil {
		return false, "missing metadata"
	}
	for _, field := range []string{"indicator_code", "year", "value"} {
		if _, ok := e.Metadata[field]; !ok {
			return false, "missing metadata field: " + field
		}
	}

	if a.dupCheck != nil {
		seen, err := a.dupCheck.SeenWithinWindow(ctx, domain.SourceWorldBank, e.SourceEventID, e.SourceURL, 90*24*time.Hour)
		if err == nil && seen {
			return false, "duplicate"
		}
	}

	return true, ""
}

// yearEnd converts a WDI "year" string to that year's final instant,
// matching world_bank_adapter.py's `datetime(year, 12, 31, 23, 59)`.
func yearEnd(year string) time.Time {
	t, err := time.Parse("2006", year)
	if err != nil {
		return time.Time{}
	}
	return time.Date(t.Year(), 12, 31, 23, 59, 0, 0, time.UTC)
}
