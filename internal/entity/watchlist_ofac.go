package entity

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	verrors "github.com/stdin/venezuelawatch/internal/errors"
)

// OFACWatchlist implements Watchlist against the free OFAC Sanctions
// List Search API (SDN list), grounded on sanctions_screener.py's
// _check_ofac: it downloads the full SDN entry list and lets the
// caller fuzzy-match, since the public endpoint has no server-side
// name search.
type OFACWatchlist struct {
	httpClient *http.Client
	endpoint   string
}

// NewOFACWatchlist builds an OFACWatchlist; endpoint defaults to the
// public SDN list endpoint when empty.
func NewOFACWatchlist(httpClient *http.Client, endpoint string) *OFACWatchlist {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if endpoint == "" {
		endpoint = "https://sanctionslistservice.ofac.treas.gov/entities"
	}
	return &OFACWatchlist{httpClient: httpClient, endpoint: endpoint}
}

var _ Watchlist = (*OFACWatchlist)(nil)

func (w *OFACWatchlist) Name() string { return "OFAC_SDN" }

// Candidates fetches the SDN entry list and returns every entry as a
// candidate; ScreenEntities does the fuzzy scoring. The free API has
// no query parameter, so there is no name-narrowed request to make --
// matching _check_ofac, which fetches the whole list on every call.
func (w *OFACWatchlist) Candidates(ctx context.Context, name string) ([]WatchlistEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint, nil)
	if err != nil {
		return nil, verrors.Wrap(verrors.Permanent, "entity.ofac.candidates", "build request", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, verrors.Wrap(verrors.Transient, "entity.ofac.candidates", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, verrors.Wrap(verrors.Transient, "entity.ofac.candidates", "read body", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, verrors.New(verrors.Transient, "entity.ofac.candidates", "upstream unavailable")
	}
	if resp.StatusCode >= 400 {
		return nil, verrors.New(verrors.Permanent, "entity.ofac.candidates", "upstream rejected request")
	}

	var entries []WatchlistEntry
	for _, entry := range gjson.GetBytes(body, "sdnEntries").Array() {
		entries = append(entries, WatchlistEntry{
			Name: entry.Get("name").String(),
			RawPayload: map[string]any{
				"uid":      entry.Get("uid").Value(),
				"type":     entry.Get("sdnType").String(),
				"programs": entry.Get("programs").Value(),
				"remarks":  entry.Get("remarks").String(),
			},
		})
	}
	return entries, nil
}
