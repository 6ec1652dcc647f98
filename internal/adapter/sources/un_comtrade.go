package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/category"
	"github.com/stdin/venezuelawatch/internal/domain"
	verrors "github.com/stdin/venezuelawatch/internal/errors"
)

// unComtradeSourceCredibility reflects UN Comtrade's status as an
// official multilateral trade statistics aggregator.
const unComtradeSourceCredibility = 0.9

// unComtradeMinTradeValueUSD filters out trade flows too small to be
// signal, carried verbatim from functions/comtrade/main.py's
// MIN_TRADE_VALUE_USD = $10 million.
const unComtradeMinTradeValueUSD = 10_000_000.0

// venezuelaCommodities is the tracked HS commodity-code registry,
// grounded on functions/comtrade/main.py's VENEZUELA_COMMODITIES table.
var venezuelaCommodities = map[string]string{
	"2709": "Petroleum oils (crude)",
	"2710": "Petroleum oils (refined)",
	"1001": "Wheat",
	"1005": "Maize (corn)",
	"0201": "Beef (fresh/chilled)",
	"3004": "Medicaments",
	"8471": "Computing machinery",
	"8517": "Telephone/communication equipment",
	"TOTAL": "All commodities",
}

// unComtradeFlows mirrors main.py's [('imports', 'M'), ('exports', 'X')]
// loop.
var unComtradeFlows = []struct{ Name, Code string }{
	{"imports", "M"},
	{"exports", "X"},
}

// UNComtradeAdapter fetches Venezuela import/export flows for a
// tracked set of HS commodity codes from the UN Comtrade API, grounded
// on functions/comtrade/main.py's previewFinalData call and
// significant-flow filter.
type UNComtradeAdapter struct {
	httpClient *http.Client
	baseURL    string
	subKey     string
	dupCheck   adapter.DuplicateChecker
}

// NewUNComtradeAdapter builds the adapter. baseURL defaults to the
// public Comtrade data API; subKey is the Comtrade subscription key.
func NewUNComtradeAdapter(httpClient *http.Client, baseURL, subKey string, dup adapter.DuplicateChecker) *UNComtradeAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://comtradeapi.un.org/data/v1/get/C/M/HS"
	}
	return &UNComtradeAdapter{httpClient: httpClient, baseURL: baseURL, subKey: subKey, dupCheck: dup}
}

func (a *UNComtradeAdapter) SourceName() domain.Source  { return domain.SourceUNComtrade }
func (a *UNComtradeAdapter) ScheduleFrequency() string   { return "0 4 1 * *" } // monthly, matching Comtrade's own publication cadence
func (a *UNComtradeAdapter) DefaultLookbackMinutes() int { return 129600 }      // 90 days

// Fetch pulls imports and exports for every tracked commodity code for
// the reporting period implied by [start, end), mirroring main.py's
// reporter=862 (Venezuela)/partner=0 (World) per-commodity/per-flow
// loop. Comtrade publishes with a 2-3 month lag, so the period targets
// end minus that lag rather than end itself.
func (a *UNComtradeAdapter) Fetch(ctx context.Context, start, end time.Time, limit int) ([]adapter.RawRecord, error) {
	period := end.AddDate(0, -2, 0).Format("200601")
	var raw []adapter.RawRecord

	for code := range venezuelaCommodities {
		for _, flow := range unComtradeFlows {
			url := fmt.Sprintf("%s/862/%s/%s?subscription-key=%s&partnerCode=0&flowCode=%s",
				a.baseURL, period, code, a.subKey, flow.Code)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, verrors.Wrap(verrors.Permanent, "adapter.un_comtrade.fetch", "build request", err)
			}

			resp, err := a.httpClient.Do(req)
			if err != nil {
				return nil, verrors.Wrap(verrors.Transient, "adapter.un_comtrade.fetch", "request failed", err)
			}
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, verrors.Wrap(verrors.Transient, "adapter.un_comtrade.fetch", "read body", readErr)
			}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return nil, verrors.New(verrors.Transient, "adapter.un_comtrade.fetch", fmt.Sprintf("upstream status %d", resp.StatusCode))
			}
			if resp.StatusCode >= 400 {
				continue // a single commodity/flow combination failing shouldn't abort the rest
			}

			for _, row := range gjson.GetBytes(body, "data").Array() {
				raw = append(raw, adapter.RawRecord{
					"period":         row.Get("period").String(),
					"commodity_code": code,
					"trade_flow":     flow.Name,
					"value_usd":      row.Get("primaryValue").Float(),
					"reporter_code":  row.Get("reporterCode").String(),
				})
			}
		}
	}

	return raw, nil
}

// Transform maps significant trade flows (>= MIN_TRADE_VALUE_USD) to
// canonical events, one per commodity/flow/period, matching main.py's
// filter-then-record loop.
func (a *UNComtradeAdapter) Transform(raw []adapter.RawRecord) ([]domain.Event, []adapter.TransformFailure) {
	var events []domain.Event
	var failures []adapter.TransformFailure

	for _, rec := range raw {
		valueUSD, _ := rec["value_usd"].(float64)
		if valueUSD < unComtradeMinTradeValueUSD {
			continue // below the significant-flow threshold, not a failure
		}

		periodStr, _ := rec["period"].(string)
		commodityCode, _ := rec["commodity_code"].(string)
		tradeFlow, _ := rec["trade_flow"].(string)
		if periodStr == "" || commodityCode == "" {
			failures = append(failures, adapter.TransformFailure{Record: rec, Reason: "missing period or commodity_code"})
			continue
		}

		eventTimestamp, err := time.Parse("200601", periodStr)
		if err != nil {
			failures = append(failures, adapter.TransformFailure{Record: rec, Reason: "unparseable period"})
			continue
		}

		cat, subcategory := category.Classify(domain.SourceUNComtrade, map[string]any{"commodity_code": commodityCode})
		commodityName := venezuelaCommodities[commodityCode]
		eventID := fmt.Sprintf("comtrade-%s-%s-%s", commodityCode, tradeFlow, periodStr)

		events = append(events, domain.Event{
			ID:                domain.NewID(domain.SourceUNComtrade, eventID),
			Source:            domain.SourceUNComtrade,
			SourceEventID:     eventID,
			SourceURL:         "https://comtradeplus.un.org/",
			EventTimestamp:    eventTimestamp,
			Category:          cat,
			Subcategory:       subcategory,
			EventType:         "trade_flow",
			Title:             fmt.Sprintf("Venezuela %s: %s ($%.1fM)", tradeFlow, commodityName, valueUSD/1_000_000),
			Content:           fmt.Sprintf("%s %s valued at $%.2f for period %s", tradeFlow, commodityName, valueUSD, periodStr),
			CountryCode:       "VE",
			Commodities:       []string{commodityName},
			MagnitudeRaw:      ptr(valueUSD),
			MagnitudeUnit:     domain.UnitUSD,
			MagnitudeNorm:     adapter.NormalizeUSD(valueUSD),
			Direction:         domain.DirectionNeutral, // trade volume alone doesn't imply a risk direction
			NumSources:        1,
			SourceCredibility: unComtradeSourceCredibility,
			Confidence:        unComtradeSourceCredibility,
			Metadata: map[string]any{
				"commodity_code": commodityCode,
				"trade_flow":     tradeFlow,
				"value_usd":      valueUSD,
				"period":         periodStr,
			},
		})
	}

	return events, failures
}

// Validate checks required fields and duplicate detection by the
// composite commodity/flow/period event id.
func (a *UNComtradeAdapter) Validate(ctx context.Context, e *domain.Event) (bool, string) {
	if e.ID == "" {
		return false, "missing id"
	}
	if e.EventTimestamp.IsZero() {
		return false, "missing event_timestamp"
	}

	if a.dupCheck != nil {
		seen, err := a.dupCheck.SeenWithinWindow(ctx, domain.SourceUNComtrade, e.SourceEventID, e.SourceURL, 30*24*time.Hour)
		if err == nil && seen {
			return false, "duplicate"
		}
	}

	return true, ""
}
