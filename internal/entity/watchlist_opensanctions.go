package entity

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	verrors "github.com/stdin/venezuelawatch/internal/errors"
)

// OpenSanctionsWatchlist implements Watchlist against the OpenSanctions
// /match API, grounded on sanctions_screener.py's _check_opensanctions.
// Unlike OFAC's full-list fetch, OpenSanctions scores server-side and
// returns only candidates above its own threshold. sanctions_screener.py
// picks schema "Person" or "Organization" per call since it keeps two
// code paths; ScreenEntities shares a single Watchlist across both
// people and organizations, so this client queries the "LegalEntity"
// schema both share instead, and lets the caller's own fuzzy match
// narrow false positives.
type OpenSanctionsWatchlist struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewOpenSanctionsWatchlist builds an OpenSanctionsWatchlist; baseURL
// defaults to the hosted OpenSanctions API when empty.
func NewOpenSanctionsWatchlist(httpClient *http.Client, baseURL, apiKey string) *OpenSanctionsWatchlist {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.opensanctions.org"
	}
	return &OpenSanctionsWatchlist{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey}
}

var _ Watchlist = (*OpenSanctionsWatchlist)(nil)

func (w *OpenSanctionsWatchlist) Name() string { return "OPENSANCTIONS" }

// Candidates calls OpenSanctions' /match/default endpoint with name, at
// matchThreshold -- the server does its own fuzzy scoring, so the
// results returned are already plausible candidates.
func (w *OpenSanctionsWatchlist) Candidates(ctx context.Context, name string) ([]WatchlistEntry, error) {
	q := url.Values{}
	q.Set("schema", "LegalEntity")
	q.Set("properties.name", name)
	q.Set("threshold", "0.6")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/match/default?"+q.Encode(), nil)
	if err != nil {
		return nil, verrors.Wrap(verrors.Permanent, "entity.opensanctions.candidates", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, verrors.Wrap(verrors.Transient, "entity.opensanctions.candidates", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, verrors.Wrap(verrors.Transient, "entity.opensanctions.candidates", "read body", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, verrors.New(verrors.Transient, "entity.opensanctions.candidates", "upstream unavailable")
	}
	if resp.StatusCode >= 400 {
		return nil, verrors.New(verrors.Permanent, "entity.opensanctions.candidates", "upstream rejected request")
	}

	var entries []WatchlistEntry
	for _, result := range gjson.GetBytes(body, "results").Array() {
		entries = append(entries, WatchlistEntry{
			Name:       result.Get("caption").String(),
			RawPayload: result.Value().(map[string]any),
		})
	}
	return entries, nil
}
