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

// reliefwebSourceCredibility reflects ReliefWeb's status as a
// UN OCHA-curated humanitarian reporting aggregator.
const reliefwebSourceCredibility = 0.8

// ReliefWebAdapter fetches Venezuela-tagged humanitarian reports from
// the ReliefWeb API, grounded on functions/reliefweb/main.py's
// query shape (country.iso3:VEN, date.created filter, the
// id/fields{title,body,url,country,source} response wrapper).
type ReliefWebAdapter struct {
	httpClient *http.Client
	apiURL     string
	dupCheck   adapter.DuplicateChecker
}

// NewReliefWebAdapter builds the ReliefWeb adapter. apiURL defaults to
// the public v1 endpoint when empty.
func NewReliefWebAdapter(httpClient *http.Client, apiURL string, dup adapter.DuplicateChecker) *ReliefWebAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if apiURL == "" {
		apiURL = "https://api.reliefweb.int/v1/reports"
	}
	return &ReliefWebAdapter{httpClient: httpClient, apiURL: apiURL, dupCheck: dup}
}

func (a *ReliefWebAdapter) SourceName() domain.Source  { return domain.SourceReliefWeb }
func (a *ReliefWebAdapter) ScheduleFrequency() string   { return "0 6 * * *" }
func (a *ReliefWebAdapter) DefaultLookbackMinutes() int { return 1440 }

func (a *ReliefWebAdapter) Fetch(ctx context.Context, start, end time.Time, limit int) ([]adapter.RawRecord, error) {
	q := url.Values{}
	q.Set("appname", "venezuelawatch")
	q.Set("query[value]", "country.iso3:VEN")
	q.Set("filter[field]", "date.created")
	q.Set("filter[value][from]", start.UTC().Format("2006-01-02"))
	q.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, verrors.Wrap(verrors.Permanent, "adapter.reliefweb.fetch", "build request", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, verrors.Wrap(verrors.Transient, "adapter.reliefweb.fetch", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, verrors.Wrap(verrors.Transient, "adapter.reliefweb.fetch", "read body", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, verrors.New(verrors.Transient, "adapter.reliefweb.fetch", fmt.Sprintf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, verrors.New(verrors.Permanent, "adapter.reliefweb.fetch", fmt.Sprintf("upstream status %d", resp.StatusCode))
	}

	parsed := gjson.ParseBytes(body)
	var raw []adapter.RawRecord
	for _, wrapper := range parsed.Get("data").Array() {
		rec := adapter.RawRecord{
			"id":      wrapper.Get("id").String(),
			"title":   wrapper.Get("fields.title").String(),
			"body":    wrapper.Get("fields.body").String(),
			"url":     wrapper.Get("fields.url").String(),
			"created": wrapper.Get("fields.date.created").String(),
		}
		var countries, sources []string
		for _, c := range wrapper.Get("fields.country").Array() {
			if n := c.Get("name").String(); n != "" {
				countries = append(countries, n)
			}
		}
		for _, s := range wrapper.Get("fields.source").Array() {
			if n := s.Get("name").String(); n != "" {
				sources = append(sources, n)
			}
		}
		rec["countries"] = countries
		rec["sources"] = sources
		raw = append(raw, rec)
	}
	return raw, nil
}

// Transform maps raw ReliefWeb reports to canonical events, grounded
// on functions/reliefweb/main.py's field mapping (event_type
// "humanitarian", location joined from country names).
func (a *ReliefWebAdapter) Transform(raw []adapter.RawRecord) ([]domain.Event, []adapter.TransformFailure) {
	var events []domain.Event
	var failures []adapter.TransformFailure

	for _, rec := range raw {
		reportID, _ := rec["id"].(string)
		sourceURL, _ := rec["url"].(string)
		if sourceURL == "" {
			failures = append(failures, adapter.TransformFailure{Record: rec, Reason: "missing url"})
			continue
		}

		created, _ := rec["created"].(string)
		eventTimestamp, err := time.Parse(time.RFC3339, created)
		if err != nil {
			eventTimestamp = time.Now().UTC()
		}

		title, _ := rec["title"].(string)
		title = truncate(title, 500)
		body, _ := rec["body"].(string)
		body = truncate(body, 1000)

		countries, _ := rec["countries"].([]string)
		sources, _ := rec["sources"].([]string)
		location := "Venezuela"
		if len(countries) > 0 {
			location = strings.Join(countries, ", ")
		}

		cat, subcategory := category.Classify(domain.SourceReliefWeb, map[string]any{})

		events = append(events, domain.Event{
			ID:             domain.NewID(domain.SourceReliefWeb, reportID),
			Source:         domain.SourceReliefWeb,
			SourceEventID:  reportID,
			SourceURL:      sourceURL,
			EventTimestamp: eventTimestamp,
			Category:       cat,
			Subcategory:    subcategory,
			EventType:      "humanitarian",
			Title:          title,
			Content:        body,
			CountryCode:    "VE",
			Direction:      domain.DirectionNegative, // humanitarian reports are inherently adverse signals
			ToneNorm:       0.6,
			NumSources:     maxInt(len(sources), 1),
			SourceCredibility: reliefwebSourceCredibility,
			Confidence:     adapter.Confidence(maxInt(len(sources), 1), reliefwebSourceCredibility),
			Metadata: map[string]any{
				"location": location,
				"sources":  sources,
				"report_id": reportID,
			},
		})
	}

	return events, failures
}

// Validate checks required fields and cross-source duplicate
// detection by URL within a 30-day window, matching
// functions/reliefweb/main.py's `check_duplicate_by_url(url, days=30)`.
func (a *ReliefWebAdapter) Validate(ctx context.Context, e *domain.Event) (bool, string) {
	if e.SourceURL == "" {
		return false, "missing source_url"
	}
	if e.EventTimestamp.IsZero() {
		return false, "missing event_timestamp"
	}
	if e.Title == "" {
		return false, "missing title"
	}

	if a.dupCheck != nil {
		seen, err := a.dupCheck.SeenWithinWindow(ctx, domain.SourceReliefWeb, e.SourceEventID, e.SourceURL, 30*24*time.Hour)
		if err == nil && seen {
			return false, "duplicate"
		}
	}

	return true, ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
