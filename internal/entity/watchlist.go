package entity

import (
	"net/http"

	"github.com/stdin/venezuelawatch/internal/config"
)

// NewWatchlistFromConfig selects OpenSanctions when a premium API key is
// configured, falling back to the free OFAC list otherwise -- the same
// branch sanctions_screener.py's __init__ makes on
// bool(opensanctions_api_key).
func NewWatchlistFromConfig(cfg *config.Config, httpClient *http.Client) Watchlist {
	if cfg.OpenSanctionsAPIKey != "" {
		return NewOpenSanctionsWatchlist(httpClient, "", cfg.OpenSanctionsAPIKey)
	}
	return NewOFACWatchlist(httpClient, cfg.OFACEndpoint)
}
