package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/bus"
	"github.com/stdin/venezuelawatch/internal/domain"
)

// EventStore implements the column store: shared, with writes as
// per-event upserts keyed on id. bus.Deduper's existence check and
// adapter.DuplicateChecker's by-source-id/url window check both read
// this same events table, since both are
// asking "have we already ingested this," just from different angles
// (canonical id vs. source-native id/URL).
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore builds an EventStore over an already-migrated pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

var (
	_ bus.Deduper              = (*EventStore)(nil)
	_ adapter.DuplicateChecker = (*EventStore)(nil)
)

// Seen reports whether dedupKey (the canonical event id) already has a
// row.
func (s *EventStore) Seen(ctx context.Context, dedupKey string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, dedupKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: seen check for %s: %w", dedupKey, err)
	}
	return exists, nil
}

// MarkSeen is a no-op here: UpsertEvent is what actually creates the row
// dedupKey refers to, and the bus calls MarkSeen only after a handler
// has successfully processed (and therefore already upserted) the
// event. Kept as a distinct method to satisfy bus.Deduper and to leave
// a seam for a lighter-weight dedup table if the events upsert itself
// is ever moved off the hot path.
func (s *EventStore) MarkSeen(ctx context.Context, dedupKey string) error {
	return nil
}

// SeenWithinWindow implements adapter.DuplicateChecker: true if a row
// for (source, sourceEventID) already exists, or one sharing sourceURL
// was ingested within window.
func (s *EventStore) SeenWithinWindow(ctx context.Context, source domain.Source, sourceEventID, sourceURL string, window time.Duration) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM events
			WHERE (source = $1 AND source_event_id = $2)
			   OR (source_url = $3 AND $3 != '' AND ingested_at >= $4)
		)
	`, string(source), sourceEventID, sourceURL, time.Now().Add(-window)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: seen within window: %w", err)
	}
	return exists, nil
}

// UpsertEvent writes e, keyed on id, overwriting any prior row -- the
// idempotent "re-ingestion of the same (source, source_event_id) pair"
// contract domain.NewID relies on.
func (s *EventStore) UpsertEvent(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("storage: marshal event payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (
			id, source, source_event_id, source_url, event_timestamp, ingested_at, created_at,
			category, subcategory, event_type, title, content, country_code,
			magnitude_norm, direction, tone_norm, num_sources, source_credibility, confidence,
			risk_score, severity, severity_band, payload
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23
		)
		ON CONFLICT (id) DO UPDATE SET
			risk_score = excluded.risk_score,
			severity = excluded.severity,
			severity_band = excluded.severity_band,
			payload = excluded.payload
	`,
		e.ID, string(e.Source), e.SourceEventID, e.SourceURL, e.EventTimestamp, e.IngestedAt, e.CreatedAt,
		string(e.Category), e.Subcategory, e.EventType, e.Title, e.Content, e.CountryCode,
		e.MagnitudeNorm, string(e.Direction), e.ToneNorm, e.NumSources, e.SourceCredibility, e.Confidence,
		e.RiskScore, string(e.Severity), string(e.SeverityBand), payload,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert event %s: %w", e.ID, err)
	}
	return nil
}

// GetEvent fetches an event by canonical id, returning nil if absent.
func (s *EventStore) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM events WHERE id = $1`, id).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get event %s: %w", id, err)
	}
	var e domain.Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("storage: unmarshal event %s: %w", id, err)
	}
	return &e, nil
}

// EventTypeDailyCounts returns the daily count of events of eventType in
// [start, end), one of correlation.Series' three variable kinds
// (the event-type daily count).
func (s *EventStore) EventTypeDailyCounts(ctx context.Context, eventType string, start, end time.Time) ([]DailyPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc('day', event_timestamp) AS day, COUNT(*)
		FROM events
		WHERE event_type = $1 AND event_timestamp >= $2 AND event_timestamp < $3
		GROUP BY day
		ORDER BY day
	`, eventType, start, end)
	if err != nil {
		return nil, fmt.Errorf("storage: event type daily counts for %s: %w", eventType, err)
	}
	defer rows.Close()

	var out []DailyPoint
	for rows.Next() {
		var day time.Time
		var count int64
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("storage: scan event type daily count: %w", err)
		}
		out = append(out, DailyPoint{Date: day, Value: float64(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: event type daily counts for %s: %w", eventType, err)
	}
	return out, nil
}

// CategoryDailyCounts returns the daily count of events in category in
// [start, end) -- the daily volume series C16/C17's daemon-side alert
// jobs watch for threshold crossings and mention-count spikes, in place
// of a literal per-series macro indicator or GDELT per-event mention
// feed (see internal/alerts and cmd/pulsed's DESIGN.md entry).
func (s *EventStore) CategoryDailyCounts(ctx context.Context, cat domain.Category, start, end time.Time) ([]DailyPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc('day', event_timestamp) AS day, COUNT(*)
		FROM events
		WHERE category = $1 AND event_timestamp >= $2 AND event_timestamp < $3
		GROUP BY day
		ORDER BY day
	`, string(cat), start, end)
	if err != nil {
		return nil, fmt.Errorf("storage: category daily counts for %s: %w", cat, err)
	}
	defer rows.Close()

	var out []DailyPoint
	for rows.Next() {
		var day time.Time
		var count int64
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("storage: scan category daily count: %w", err)
		}
		out = append(out, DailyPoint{Date: day, Value: float64(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: category daily counts for %s: %w", cat, err)
	}
	return out, nil
}

// GetEvents batch-fetches events by id, silently omitting any id with no
// row -- the narrative and lineage handlers resolve a connecting-events
// id list this way and don't treat a stale/deleted id as an error.
func (s *EventStore) GetEvents(ctx context.Context, ids []string) ([]domain.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT payload FROM events WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("storage: get events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Event, 0, len(ids))
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan event payload: %w", err)
		}
		var e domain.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("storage: unmarshal event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: get events: %w", err)
	}
	return out, nil
}
