// Package trending implements C14: a real-time entity trending
// leaderboard backed by a Redis sorted set, with exponential time-decay
// scoring and a nightly reconciliation job that rebuilds it from the
// mention history.
package trending

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisKey is the sorted-set key the leaderboard lives under.
const redisKey = "entity:trending"

// halfLifeHours is the exponential decay time constant: a mention's
// contribution to an entity's score is weighted exp(-age/168h), so it
// falls by a factor of e every 7 days and halves after about 116 hours.
const halfLifeHours = 168.0

// reconcileWindow bounds how far back the nightly sync replays mentions.
const reconcileWindow = 30 * 24 * time.Hour

// MentionReader is the read port the reconciliation job pulls history
// from; the concrete implementation lives in internal/storage.
type MentionReader interface {
	MentionsSince(ctx context.Context, cutoff time.Time) ([]MentionRecord, error)
}

// MentionRecord is the minimal shape the reconciliation job needs from
// an EntityMention row.
type MentionRecord struct {
	CanonicalID string
	MentionedAt time.Time
	Relevance   float64 // 0 treated as the default weight of 1.0
}

// EntityLookup resolves canonical ids to display metadata for leaderboard
// responses.
type EntityLookup interface {
	EntitiesByID(ctx context.Context, ids []string) (map[string]EntitySummary, error)
}

// EntitySummary is the display payload joined onto a leaderboard row.
type EntitySummary struct {
	CanonicalID string
	PrimaryName string
	EntityType  string
}

// Entry is one ranked row in the trending leaderboard.
type Entry struct {
	CanonicalID string  `json:"canonical_id"`
	PrimaryName string  `json:"primary_name"`
	EntityType  string  `json:"entity_type"`
	Score       float64 `json:"score"`
}

// Leaderboard implements C14 over a Redis sorted set.
type Leaderboard struct {
	rdb     *redis.Client
	lookup  EntityLookup
	reader  MentionReader
	log     zerolog.Logger
	nowFunc func() time.Time
}

// New builds a Leaderboard. lookup and reader may be nil if the caller
// only needs score updates (e.g. in adapter-side tests).
func New(rdb *redis.Client, lookup EntityLookup, reader MentionReader, log zerolog.Logger) *Leaderboard {
	return &Leaderboard{rdb: rdb, lookup: lookup, reader: reader, log: log, nowFunc: time.Now}
}

// Bump applies one mention's contribution to an entity's trending score:
// score += weight * exp(-age_hours/168). weight defaults to 1.0 when the
// caller passes 0 (mirrors the original's "relevance or 1.0" fallback).
func (l *Leaderboard) Bump(ctx context.Context, canonicalID string, mentionedAt time.Time, weight float64) error {
	if weight == 0 {
		weight = 1.0
	}
	ageHours := l.nowFunc().Sub(mentionedAt).Hours()
	decay := math.Exp(-ageHours / halfLifeHours)
	score := weight * decay
	return l.rdb.ZIncrBy(ctx, redisKey, score, canonicalID).Err()
}

// Top returns the top N entities by trending score, joined with display
// metadata via the EntityLookup port.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]Entry, error) {
	raw, err := l.rdb.ZRevRangeWithScores(ctx, redisKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("trending: fetch top: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	ids := make([]string, len(raw))
	for i, z := range raw {
		ids[i] = z.Member.(string)
	}

	summaries := map[string]EntitySummary{}
	if l.lookup != nil {
		summaries, err = l.lookup.EntitiesByID(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("trending: resolve entities: %w", err)
		}
	}

	entries := make([]Entry, 0, len(raw))
	for _, z := range raw {
		id := z.Member.(string)
		summary, ok := summaries[id]
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			CanonicalID: id,
			PrimaryName: summary.PrimaryName,
			EntityType:  summary.EntityType,
			Score:       z.Score,
		})
	}
	return entries, nil
}

// Rank returns an entity's 1-indexed position in the leaderboard, or
// false if it isn't ranked.
func (l *Leaderboard) Rank(ctx context.Context, canonicalID string) (int64, bool, error) {
	rank, err := l.rdb.ZRevRank(ctx, redisKey, canonicalID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank + 1, true, nil
}

// Reconcile rebuilds the leaderboard from scratch by replaying
// reconcileWindow's worth of mention history. Run nightly to correct
// drift between Redis and the durable mention log.
func (l *Leaderboard) Reconcile(ctx context.Context) (int, error) {
	if l.reader == nil {
		return 0, fmt.Errorf("trending: reconcile called with no MentionReader configured")
	}

	if err := l.rdb.Del(ctx, redisKey).Err(); err != nil {
		return 0, fmt.Errorf("trending: clear leaderboard: %w", err)
	}

	cutoff := l.nowFunc().Add(-reconcileWindow)
	mentions, err := l.reader.MentionsSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("trending: load mentions: %w", err)
	}

	for _, m := range mentions {
		if err := l.Bump(ctx, m.CanonicalID, m.MentionedAt, m.Relevance); err != nil {
			l.log.Warn().Err(err).Str("canonical_id", m.CanonicalID).Msg("trending: reconcile bump failed")
		}
	}

	l.log.Info().Int("mentions", len(mentions)).Time("cutoff", cutoff).Msg("trending: reconciliation complete")
	return len(mentions), nil
}

// RunNightly blocks, running Reconcile once per interval until ctx is
// canceled: a single periodic job rather than a dependency-aware work
// queue.
func (l *Leaderboard) RunNightly(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Reconcile(ctx); err != nil {
				l.log.Error().Err(err).Msg("trending: nightly reconciliation failed")
			}
		}
	}
}
