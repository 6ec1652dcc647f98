package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stdin/venezuelawatch/internal/domain"
	"github.com/stdin/venezuelawatch/internal/trending"
)

// MentionStore implements trending.MentionReader and owns the durable
// mention/spike writes C12 and C17 produce, so the Redis leaderboard
// (internal/trending) can always be rebuilt from this table.
type MentionStore struct {
	db *sqlx.DB
}

// NewMentionStore builds a MentionStore over an already-migrated db.
func NewMentionStore(db *sqlx.DB) *MentionStore {
	return &MentionStore{db: db}
}

var _ trending.MentionReader = (*MentionStore)(nil)

// MentionsSince returns every mention recorded at or after cutoff, for
// the leaderboard's nightly reconciliation job.
func (s *MentionStore) MentionsSince(ctx context.Context, cutoff time.Time) ([]trending.MentionRecord, error) {
	var rows []struct {
		CanonicalID string    `db:"canonical_id"`
		MentionedAt time.Time `db:"mentioned_at"`
		Relevance   float64   `db:"relevance"`
	}
	const q = `
		SELECT canonical_id, mentioned_at, relevance
		FROM entity_mentions
		WHERE mentioned_at >= $1
		ORDER BY mentioned_at ASC
	`
	if err := s.db.SelectContext(ctx, &rows, q, cutoff); err != nil {
		return nil, fmt.Errorf("storage: mentions since %s: %w", cutoff, err)
	}
	out := make([]trending.MentionRecord, len(rows))
	for i, r := range rows {
		out[i] = trending.MentionRecord{CanonicalID: r.CanonicalID, MentionedAt: r.MentionedAt, Relevance: r.Relevance}
	}
	return out, nil
}

// RecordMention inserts an EntityMention row. C12 calls this immediately
// after resolving an event's entity block, before bumping the live
// leaderboard, so Reconcile can always replay what Bump saw live.
func (s *MentionStore) RecordMention(ctx context.Context, m domain.EntityMention) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_mentions (event_id, canonical_id, raw_name, match_score, relevance, mentioned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.EventID, m.CanonicalID, m.RawName, m.MatchScore, m.Relevance, m.MentionedAt)
	if err != nil {
		return fmt.Errorf("storage: record entity mention: %w", err)
	}
	return nil
}

// EntitiesByEvent returns, for every event mentioned at or after cutoff,
// the distinct canonical ids mentioned in it -- the co-occurrence graph
// handler groups this by event to count pairwise entity co-mentions
// without materializing a join across every mention pair in SQL.
func (s *MentionStore) EntitiesByEvent(ctx context.Context, cutoff time.Time) (map[string][]string, error) {
	var rows []struct {
		EventID     string `db:"event_id"`
		CanonicalID string `db:"canonical_id"`
	}
	const q = `
		SELECT DISTINCT event_id, canonical_id
		FROM entity_mentions
		WHERE mentioned_at >= $1
	`
	if err := s.db.SelectContext(ctx, &rows, q, cutoff); err != nil {
		return nil, fmt.Errorf("storage: entities by event since %s: %w", cutoff, err)
	}
	out := make(map[string][]string)
	for _, r := range rows {
		out[r.EventID] = append(out[r.EventID], r.CanonicalID)
	}
	return out, nil
}

// ConnectingEvents returns ids of events that mention both a and b,
// most recent first, capped at limit -- the narrative handler resolves
// this before asking the narrator to describe the relationship.
func (s *MentionStore) ConnectingEvents(ctx context.Context, a, b string, limit int) ([]string, error) {
	var ids []string
	const q = `
		SELECT m1.event_id
		FROM entity_mentions m1
		JOIN entity_mentions m2 ON m1.event_id = m2.event_id
		WHERE m1.canonical_id = $1 AND m2.canonical_id = $2
		ORDER BY m1.mentioned_at DESC
		LIMIT $3
	`
	if err := s.db.SelectContext(ctx, &ids, q, a, b, limit); err != nil {
		return nil, fmt.Errorf("storage: connecting events for %s/%s: %w", a, b, err)
	}
	return ids, nil
}

// EntityRiskDaily returns the daily average risk_score of events
// mentioning canonicalID in [start, end), one of correlation.Series'
// three variable kinds (entity risk history).
func (s *MentionStore) EntityRiskDaily(ctx context.Context, canonicalID string, start, end time.Time) ([]DailyPoint, error) {
	var rows []struct {
		Day   time.Time `db:"day"`
		Value float64   `db:"value"`
	}
	const q = `
		SELECT date_trunc('day', e.event_timestamp) AS day, AVG(e.risk_score) AS value
		FROM entity_mentions m
		JOIN events e ON e.id = m.event_id
		WHERE m.canonical_id = $1 AND e.event_timestamp >= $2 AND e.event_timestamp < $3
		GROUP BY day
		ORDER BY day
	`
	if err := s.db.SelectContext(ctx, &rows, q, canonicalID, start, end); err != nil {
		return nil, fmt.Errorf("storage: entity risk daily for %s: %w", canonicalID, err)
	}
	out := make([]DailyPoint, len(rows))
	for i, r := range rows {
		out[i] = DailyPoint{Date: r.Day, Value: r.Value}
	}
	return out, nil
}

// RecordSpike inserts a MentionSpike row (C17), uniquely keyed on
// (EventID, SpikeDate) at the application layer -- callers compute the
// spike once per entity per day before calling this.
func (s *MentionStore) RecordSpike(ctx context.Context, sp domain.MentionSpike) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mention_spikes (event_id, spike_date, mention_count, baseline_avg, baseline_std, z_score, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sp.EventID, sp.SpikeDate, sp.MentionCount, sp.BaselineAvg, sp.BaselineStd, sp.ZScore, string(sp.Confidence))
	if err != nil {
		return fmt.Errorf("storage: record mention spike: %w", err)
	}
	return nil
}
