package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/category"
	"github.com/stdin/venezuelawatch/internal/domain"
	verrors "github.com/stdin/venezuelawatch/internal/errors"
)

// googleTrendsSourceCredibility matches google_trends_adapter.py's
// "reliable but indirect signal" rating.
const googleTrendsSourceCredibility = 0.8

// googleTrendsBaselineInterest is the rank-based heuristic baseline
// spike detection compares against, carried verbatim from
// google_trends_adapter.py's `baseline_interest = 25`.
const googleTrendsBaselineInterest = 25.0

// GoogleTrendsAdapter fetches Venezuela's daily top search terms,
// grounded on google_trends_adapter.py field-for-field (spike-ratio
// tone, interest-score magnitude, gt-{date}-{term} stable event ids).
type GoogleTrendsAdapter struct {
	httpClient *http.Client
	apiURL     string
	dupCheck   adapter.DuplicateChecker
}

// NewGoogleTrendsAdapter builds the adapter. apiURL points at a JSON
// endpoint returning Venezuela's top terms for a given refresh date
// (the original queries a BigQuery public dataset directly; this
// adapter instead expects a JSON endpoint of that shape in front of the
// dataset, since no BigQuery client library appears anywhere in the
// example pack).
func NewGoogleTrendsAdapter(httpClient *http.Client, apiURL string, dup adapter.DuplicateChecker) *GoogleTrendsAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleTrendsAdapter{httpClient: httpClient, apiURL: apiURL, dupCheck: dup}
}

func (a *GoogleTrendsAdapter) SourceName() domain.Source  { return domain.SourceGoogleTrends }
func (a *GoogleTrendsAdapter) ScheduleFrequency() string   { return "0 2 * * *" } // daily, after Google refreshes
func (a *GoogleTrendsAdapter) DefaultLookbackMinutes() int { return 1440 }        // 24 hours

// Fetch pulls Venezuela's top search terms for the refresh date one
// day before end; start is not used, so the lookback window does not
// change which refresh date is requested.
func (a *GoogleTrendsAdapter) Fetch(ctx context.Context, start, end time.Time, limit int) ([]adapter.RawRecord, error) {
	refreshDate := end.AddDate(0, 0, -1).Format("2006-01-02")
	q := url.Values{}
	q.Set("country", "Venezuela")
	q.Set("refresh_date", refreshDate)
	q.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, verrors.Wrap(verrors.Permanent, "adapter.google_trends.fetch", "build request", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, verrors.Wrap(verrors.Transient, "adapter.google_trends.fetch", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, verrors.Wrap(verrors.Transient, "adapter.google_trends.fetch", "read body", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, verrors.New(verrors.Transient, "adapter.google_trends.fetch", fmt.Sprintf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, verrors.New(verrors.Permanent, "adapter.google_trends.fetch", fmt.Sprintf("upstream status %d", resp.StatusCode))
	}

	var raw []adapter.RawRecord
	for _, row := range gjson.GetBytes(body, "trends").Array() {
		raw = append(raw, adapter.RawRecord{
			"term":         row.Get("term").String(),
			"rank":         row.Get("rank").Int(),
			"score":        row.Get("score").Float(),
			"refresh_date": row.Get("refresh_date").String(),
			"country_name": row.Get("country_name").String(),
			"region_name":  row.Get("region_name").String(),
		})
	}
	return raw, nil
}

// Transform maps raw trend rows to canonical events, grounded
// field-for-field on google_trends_adapter.py's transform() (spike
// ratio against a fixed rank-based baseline, NEGATIVE direction since
// elevated search attention is treated as a concern signal).
func (a *GoogleTrendsAdapter) Transform(raw []adapter.RawRecord) ([]domain.Event, []adapter.TransformFailure) {
	var events []domain.Event
	var failures []adapter.TransformFailure

	for _, rec := range raw {
		term, _ := rec["term"].(string)
		if term == "" {
			failures = append(failures, adapter.TransformFailure{Record: rec, Reason: "missing term"})
			continue
		}

		rank, _ := rec["rank"].(int64)
		score, hasScore := rec["score"].(float64)
		if !hasScore {
			score = 50
		}
		refreshDate, _ := rec["refresh_date"].(string)
		regionName, _ := rec["region_name"].(string)
		countryName, _ := rec["country_name"].(string)
		if countryName == "" {
			countryName = "Venezuela"
		}

		cat, subcategory := category.Classify(domain.SourceGoogleTrends, map[string]any{"term": term})

		interest := score
		magnitudeNorm := adapter.NormalizeInterestScore(interest)
		spikeRatio := interest / googleTrendsBaselineInterest
		toneNorm := domain.ClampUnit(spikeRatio / 5)

		eventType := "SEARCH_LEVEL"
		if spikeRatio > 2 {
			eventType = "SEARCH_SPIKE"
		}

		commodities, sectors := extractTrendCommoditiesSectors(term)

		eventTimestamp, err := time.Parse("2006-01-02", refreshDate)
		if err != nil {
			eventTimestamp = time.Now().UTC()
		}

		termSlug := strings.NewReplacer(" ", "-", "/", "-").Replace(strings.ToLower(term))
		eventID := fmt.Sprintf("gt-%s-%s", refreshDate, termSlug)
		trendsURL := fmt.Sprintf("https://trends.google.com/trends/explore?q=%s&geo=VE", url.QueryEscape(term))

		content := fmt.Sprintf("Search interest rank #%d with score %.0f in Venezuela", rank, score)
		if regionName != "" {
			content += fmt.Sprintf(" (region: %s)", regionName)
		}

		var admin1 string
		if regionName != "" {
			admin1 = regionName
		}

		events = append(events, domain.Event{
			ID:             domain.NewID(domain.SourceGoogleTrends, eventID),
			Source:         domain.SourceGoogleTrends,
			SourceEventID:  eventID,
			SourceURL:      trendsURL,
			EventTimestamp: eventTimestamp,
			Category:       cat,
			Subcategory:    subcategory,
			EventType:      eventType,
			Title:          term,
			Content:        content,
			CountryCode:    "VE",
			Admin1:         admin1,
			MagnitudeRaw:   ptr(interest),
			MagnitudeUnit:  domain.UnitInterestScore,
			MagnitudeNorm:  magnitudeNorm,
			Direction:      domain.DirectionNegative,
			ToneNorm:       toneNorm,
			NumSources:     1,
			SourceCredibility: googleTrendsSourceCredibility,
			Confidence:     googleTrendsSourceCredibility,
			Commodities:    commodities,
			Sectors:        sectors,
			Metadata: map[string]any{
				"rank":              rank,
				"score":             score,
				"interest":          interest,
				"spike_ratio":       spikeRatio,
				"baseline_interest": googleTrendsBaselineInterest,
				"country":           countryName,
				"region":            regionName,
				"refresh_date":      refreshDate,
			},
		})
	}

	return events, failures
}

// Validate checks the gt-{date}-{term} id pattern plus required
// fields and metadata, matching google_trends_adapter.py's validate()
// field-for-field.
func (a *GoogleTrendsAdapter) Validate(ctx context.Context, e *domain.Event) (bool, string) {
	if e.SourceEventID == "" {
		return false, "missing source_event_id"
	}
	if !strings.HasPrefix(e.SourceEventID, "gt-") {
		return false, "invalid event id pattern: expected gt-YYYY-MM-DD-term"
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
	for _, field := range []string{"rank", "score"} {
		if _, ok := e.Metadata[field]; !ok {
			return false, "missing metadata field: " + field
		}
	}

	if a.dupCheck != nil {
		seen, err := a.dupCheck.SeenWithinWindow(ctx, domain.SourceGoogleTrends, e.SourceEventID, e.SourceURL, 24*time.Hour)
		if err == nil && seen {
			return false, "duplicate"
		}
	}

	return true, ""
}

// extractTrendCommoditiesSectors does simple keyword matching on a
// search term, grounded verbatim on
// google_trends_adapter.py's _extract_commodities_sectors.
func extractTrendCommoditiesSectors(term string) ([]string, []string) {
	var commodities, sectors []string
	lower := strings.ToLower(term)

	if strings.Contains(lower, "oil") || strings.Contains(lower, "petróleo") || strings.Contains(lower, "pdvsa") {
		commodities = append(commodities, "OIL")
		sectors = append(sectors, "ENERGY")
	}
	if strings.Contains(lower, "gold") || strings.Contains(lower, "oro") {
		commodities = append(commodities, "GOLD")
		sectors = append(sectors, "MINING")
	}
	if strings.Contains(lower, "gas") {
		commodities = append(commodities, "GAS")
		sectors = append(sectors, "ENERGY")
	}

	return commodities, sectors
}
