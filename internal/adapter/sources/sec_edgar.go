package sources

import (
	"context"
	"time"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/domain"
)

// secEdgarSourceCredibility matches sec_edgar_adapter.py's rating for
// SEC full-text search filing mentions.
const secEdgarSourceCredibility = 0.85

// SECEdgarAdapter tracks Venezuela-related mentions in SEC filings via
// EDGAR's full-text search, grounded on sec_edgar_adapter.py's
// context_text/filing_type category dispatch. Structurally complete
// and wired into the registry; Fetch returns an empty batch until
// EDGAR full-text search integration is scoped, per the declared
// REGULATORY category this source always reports.
type SECEdgarAdapter struct {
	dupCheck adapter.DuplicateChecker
}

// NewSECEdgarAdapter builds the adapter.
func NewSECEdgarAdapter(dup adapter.DuplicateChecker) *SECEdgarAdapter {
	return &SECEdgarAdapter{dupCheck: dup}
}

func (a *SECEdgarAdapter) SourceName() domain.Source  { return domain.SourceSECEDGAR }
func (a *SECEdgarAdapter) ScheduleFrequency() string   { return "0 5 * * *" } // daily
func (a *SECEdgarAdapter) DefaultLookbackMinutes() int { return 1440 }        // 24 hours

// Fetch always returns an empty batch. The adapter is registered and
// scheduled like every other source so its health is visible on
// /adapters/health, but EDGAR full-text search has no stable free JSON
// endpoint the way GDELT/ReliefWeb/FRED do; wiring it needs an EDGAR
// API key arrangement out of scope for this pass.
func (a *SECEdgarAdapter) Fetch(ctx context.Context, start, end time.Time, limit int) ([]adapter.RawRecord, error) {
	return nil, nil
}

// Transform is a no-op since Fetch never returns records; kept so the
// contract is fully implemented rather than panicking if ever called
// directly.
func (a *SECEdgarAdapter) Transform(raw []adapter.RawRecord) ([]domain.Event, []adapter.TransformFailure) {
	return nil, nil
}

// Validate mirrors sec_edgar_adapter.py's required-field checks for
// when filing ingestion is wired in: accession number id, title,
// source url, and a context_text metadata field.
func (a *SECEdgarAdapter) Validate(ctx context.Context, e *domain.Event) (bool, string) {
	if e.SourceEventID == "" {
		return false, "missing source_event_id"
	}
	if e.Title == "" {
		return false, "missing title"
	}
	if e.SourceURL == "" {
		return false, "missing source_url"
	}
	if _, ok := e.Metadata["context_text"]; !ok {
		return false, "missing metadata field: context_text"
	}

	if a.dupCheck != nil {
		seen, err := a.dupCheck.SeenWithinWindow(ctx, domain.SourceSECEDGAR, e.SourceEventID, e.SourceURL, 30*24*time.Hour)
		if err == nil && seen {
			return false, "duplicate"
		}
	}

	return true, ""
}
