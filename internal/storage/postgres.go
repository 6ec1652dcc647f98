// Package storage provides the Postgres/pgx reference implementations of
// every storage-facing port the core pipeline depends on: entity.Store,
// entity.Watchlist's MatchRecorder, trending.MentionReader/EntityLookup,
// config.SettingsStore, bus.Deduper, and adapter.DuplicateChecker. Each
// store wraps a concrete client behind its port's interface, and schema
// bootstrap runs the same way at startup, generalized from SQLite
// PRAGMAs/file paths to a Postgres connection pool.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// OpenRelational opens the sqlx/database-sql connection used by the
// entity, sanctions, trending, and settings stores, and applies the
// schema, following an open-then-migrate two-step shape.
func OpenRelational(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open relational store: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("storage: ping relational store: %w", err)
	}

	if err := migrateRelational(ctx, db); err != nil {
		return nil, fmt.Errorf("storage: migrate relational store: %w", err)
	}
	return db, nil
}

// OpenEventStore opens the pgx pool backing the column store (raw event
// rows) and applies its schema.
func OpenEventStore(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open event store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping event store: %w", err)
	}

	if err := migrateEventStore(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: migrate event store: %w", err)
	}
	return pool, nil
}

// relationalSchema is the single source of truth for the relational
// store's tables. Applied with IF NOT EXISTS so repeated calls (every
// process start) are idempotent.
const relationalSchema = `
CREATE TABLE IF NOT EXISTS entities (
	id            TEXT PRIMARY KEY,
	primary_name  TEXT NOT NULL,
	entity_type   TEXT NOT NULL,
	country_code  TEXT,
	metadata      JSONB,
	created_at    TIMESTAMPTZ NOT NULL,
	last_verified TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entities_block ON entities (lower(left(primary_name, 3)), country_code, entity_type);

CREATE TABLE IF NOT EXISTS entity_aliases (
	canonical_id      TEXT NOT NULL REFERENCES entities(id),
	alias             TEXT NOT NULL,
	source            TEXT NOT NULL,
	confidence        DOUBLE PRECISION NOT NULL,
	resolution_method TEXT NOT NULL,
	first_seen        TIMESTAMPTZ NOT NULL,
	last_seen         TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (alias, source)
);

CREATE TABLE IF NOT EXISTS entity_mentions (
	event_id     TEXT NOT NULL,
	canonical_id TEXT NOT NULL REFERENCES entities(id),
	raw_name     TEXT,
	match_score  DOUBLE PRECISION,
	relevance    DOUBLE PRECISION,
	mentioned_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entity_mentions_mentioned_at ON entity_mentions (mentioned_at);

CREATE TABLE IF NOT EXISTS mention_spikes (
	event_id      TEXT NOT NULL,
	spike_date    DATE NOT NULL,
	mention_count INTEGER NOT NULL,
	baseline_avg  DOUBLE PRECISION,
	baseline_std  DOUBLE PRECISION,
	z_score       DOUBLE PRECISION,
	confidence    TEXT
);

CREATE TABLE IF NOT EXISTS sanctions_matches (
	event_id    TEXT NOT NULL,
	entity_name TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	list        TEXT NOT NULL,
	match_score DOUBLE PRECISION NOT NULL,
	raw_payload JSONB,
	matched_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key         TEXT PRIMARY KEY,
	value       TEXT NOT NULL,
	description TEXT,
	updated_at  TIMESTAMPTZ NOT NULL
);
`

func migrateRelational(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, relationalSchema)
	return err
}

// eventStoreSchema is the column store's single table: one row per
// canonical Event, upserted on (source, source_event_id).
const eventStoreSchema = `
CREATE TABLE IF NOT EXISTS events (
	id                 TEXT PRIMARY KEY,
	source             TEXT NOT NULL,
	source_event_id    TEXT NOT NULL,
	source_url         TEXT,
	event_timestamp    TIMESTAMPTZ,
	ingested_at        TIMESTAMPTZ NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	category           TEXT NOT NULL,
	subcategory        TEXT,
	event_type         TEXT,
	title              TEXT,
	content            TEXT,
	country_code       TEXT,
	magnitude_norm     DOUBLE PRECISION,
	direction          TEXT,
	tone_norm          DOUBLE PRECISION,
	num_sources        INTEGER,
	source_credibility DOUBLE PRECISION,
	confidence         DOUBLE PRECISION,
	risk_score         DOUBLE PRECISION,
	severity           TEXT,
	severity_band      TEXT,
	payload            JSONB NOT NULL,
	UNIQUE (source, source_event_id)
);
CREATE INDEX IF NOT EXISTS idx_events_source_url ON events (source_url);
CREATE INDEX IF NOT EXISTS idx_events_ingested_at ON events (ingested_at);
`

func migrateEventStore(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, eventStoreSchema)
	return err
}
