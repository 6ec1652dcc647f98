// Package sources holds one file per closed source tag (domain.Source),
// each exporting a New<Source>Adapter constructor matching the original
// platform's `<source>_adapter.py` / `<Source>Adapter` convention.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/category"
	"github.com/stdin/venezuelawatch/internal/domain"
	verrors "github.com/stdin/venezuelawatch/internal/errors"
)

// gdeltSourceCredibility is GDELT's baseline credibility score, carried
// verbatim from gdelt_adapter.py's `source_credibility = 0.7`.
const gdeltSourceCredibility = 0.7

// GDELTAdapter fetches Venezuela-tagged conflict/political events from
// the GDELT Doc/Events API, the most complete source adapter end to
// end (CAMEO classification, Goldstein magnitude, AvgTone, actor
// extraction).
type GDELTAdapter struct {
	httpClient *http.Client
	baseURL    string
	dupCheck   adapter.DuplicateChecker
}

// NewGDELTAdapter builds the GDELT adapter. baseURL points at a GDELT
// events endpoint returning a JSON array of raw event objects; dup is
// optional (nil disables validate-time duplicate detection).
func NewGDELTAdapter(httpClient *http.Client, baseURL string, dup adapter.DuplicateChecker) *GDELTAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GDELTAdapter{httpClient: httpClient, baseURL: baseURL, dupCheck: dup}
}

func (a *GDELTAdapter) SourceName() domain.Source      { return domain.SourceGDELT }
func (a *GDELTAdapter) ScheduleFrequency() string       { return "*/15 * * * *" }
func (a *GDELTAdapter) DefaultLookbackMinutes() int     { return 15 }

// Fetch queries the GDELT endpoint for events in [start, end), mirroring
// gdelt_adapter.py's Venezuela-filtered BigQuery query but over HTTP.
func (a *GDELTAdapter) Fetch(ctx context.Context, start, end time.Time, limit int) ([]adapter.RawRecord, error) {
	url := fmt.Sprintf("%s?country=VE&start=%s&end=%s&limit=%d",
		a.baseURL, start.UTC().Format("20060102150405"), end.UTC().Format("20060102150405"), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, verrors.Wrap(verrors.Permanent, "adapter.gdelt.fetch", "build request", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, verrors.Wrap(verrors.Transient, "adapter.gdelt.fetch", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, verrors.Wrap(verrors.Transient, "adapter.gdelt.fetch", "read body", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, verrors.New(verrors.Transient, "adapter.gdelt.fetch", fmt.Sprintf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, verrors.New(verrors.Permanent, "adapter.gdelt.fetch", fmt.Sprintf("upstream status %d", resp.StatusCode))
	}

	var raw []adapter.RawRecord
	for _, item := range gjson.ParseBytes(body).Array() {
		var rec adapter.RawRecord
		if err := json.Unmarshal([]byte(item.Raw), &rec); err != nil {
			continue
		}
		raw = append(raw, rec)
	}
	return raw, nil
}

// Transform maps raw GDELT events to canonical events, grounded
// field-for-field on gdelt_adapter.py's transform().
func (a *GDELTAdapter) Transform(raw []adapter.RawRecord) ([]domain.Event, []adapter.TransformFailure) {
	var events []domain.Event
	var failures []adapter.TransformFailure

	for _, rec := range raw {
		globalEventID, _ := rec["GLOBALEVENTID"].(string)
		if globalEventID == "" {
			failures = append(failures, adapter.TransformFailure{Record: rec, Reason: "missing GLOBALEVENTID"})
			continue
		}

		eventCode, _ := rec["EventCode"].(string)
		goldstein := toFloat(rec["GoldsteinScale"])
		avgTone := toFloat(rec["AvgTone"])
		numSources := int(toFloat(rec["NumSources"]))
		if numSources == 0 {
			numSources = 1
		}
		sourceURL, _ := rec["SOURCEURL"].(string)
		actor1Name, _ := rec["Actor1Name"].(string)
		actor2Name, _ := rec["Actor2Name"].(string)
		actor1Code, _ := rec["Actor1Code"].(string)
		actor2Code, _ := rec["Actor2Code"].(string)
		admin1, _ := rec["ActionGeo_ADM1Code"].(string)
		admin2, _ := rec["ActionGeo_ADM2Code"].(string)

		eventDate, err := parseDateAdded(rec["DATEADDED"])
		if err != nil {
			failures = append(failures, adapter.TransformFailure{Record: rec, Reason: "unparseable DATEADDED"})
			continue
		}

		cat, subcategory := category.Classify(domain.SourceGDELT, map[string]any{"event_code": eventCode})

		title := fmt.Sprintf("%s - %s (%s)", orDefault(actor1Name, "Unknown"), orDefault(actor2Name, "Event"), eventCode)

		events = append(events, domain.Event{
			ID:             domain.NewID(domain.SourceGDELT, globalEventID),
			Source:         domain.SourceGDELT,
			SourceEventID:  globalEventID,
			SourceURL:      sourceURL,
			EventTimestamp: eventDate,
			Category:       cat,
			Subcategory:    subcategory,
			EventType:      eventCode,
			Title:          title,
			Content:        fmt.Sprintf("GDELT Event: %s - Tone: %.2f", eventCode, avgTone),
			CountryCode:    "VE",
			Admin1:         admin1,
			Admin2:         admin2,
			MagnitudeRaw:   ptr(goldstein),
			MagnitudeUnit:  domain.UnitGoldstein,
			MagnitudeNorm:  adapter.NormalizeGoldstein(goldstein),
			Direction:      adapter.DirectionFromGoldstein(goldstein),
			ToneRaw:        ptr(avgTone),
			ToneNorm:       adapter.NormalizeTone(avgTone),
			NumSources:     numSources,
			SourceCredibility: gdeltSourceCredibility,
			Confidence:     adapter.Confidence(numSources, gdeltSourceCredibility),
			Actor1:         actorOrNil(actor1Name, classifyActorType(actor1Code)),
			Actor2:         actorOrNil(actor2Name, classifyActorType(actor2Code)),
			Metadata: map[string]any{
				"event_code":  eventCode,
				"goldstein":   goldstein,
				"avg_tone":    avgTone,
				"actor1_code": actor1Code,
				"actor2_code": actor2Code,
			},
		})
	}

	return events, failures
}

// Validate checks required fields and cross-source duplicate detection
// by GLOBALEVENTID, matching gdelt_adapter.py's validate().
func (a *GDELTAdapter) Validate(ctx context.Context, e *domain.Event) (bool, string) {
	if e.ID == "" {
		return false, "missing id"
	}
	if e.SourceURL == "" {
		return false, "missing source_url"
	}
	if e.EventTimestamp.IsZero() {
		return false, "missing event_timestamp"
	}

	if a.dupCheck != nil {
		seen, err := a.dupCheck.SeenWithinWindow(ctx, domain.SourceGDELT, e.SourceEventID, e.SourceURL, 7*24*time.Hour)
		if err == nil && seen {
			return false, "duplicate"
		}
		// per gdelt_adapter.py: a duplicate-check failure doesn't block
		// the insert, it's better to risk a duplicate than lose data.
	}

	return true, ""
}

// classifyActorType maps a GDELT actor code to a coarse ActorType,
// grounded verbatim on gdelt_adapter.py's _classify_actor_type keyword
// rule.
func classifyActorType(code string) domain.ActorType {
	if code == "" {
		return ""
	}
	code = strings.ToUpper(code)
	switch {
	case strings.Contains(code, "GOV") || strings.Contains(code, "LEG") || strings.Contains(code, "JUD"):
		return domain.ActorGovernment
	case strings.Contains(code, "MIL") || strings.Contains(code, "ARM"):
		return domain.ActorMilitary
	case strings.Contains(code, "REB") || strings.Contains(code, "OPP") || strings.Contains(code, "INS"):
		return domain.ActorRebel
	case strings.Contains(code, "BUS") || strings.Contains(code, "COP"):
		return domain.ActorCorporate
	default:
		return domain.ActorCivilian
	}
}

func actorOrNil(name string, t domain.ActorType) *domain.Actor {
	if name == "" {
		return nil
	}
	return &domain.Actor{Name: name, Type: t}
}

// parseDateAdded parses GDELT's YYYYMMDDHHMMSS DATEADDED field (only
// the YYYYMMDD prefix is significant, matching gdelt_adapter.py).
func parseDateAdded(v any) (time.Time, error) {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', 0, 64)
	default:
		return time.Time{}, fmt.Errorf("unsupported DATEADDED type %T", v)
	}
	if len(s) < 8 {
		return time.Time{}, fmt.Errorf("DATEADDED too short: %q", s)
	}
	return time.Parse("20060102", s[:8])
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}

func ptr(f float64) *float64 { return &f }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
