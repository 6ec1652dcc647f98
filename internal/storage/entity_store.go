package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stdin/venezuelawatch/internal/domain"
	"github.com/stdin/venezuelawatch/internal/entity"
	"github.com/stdin/venezuelawatch/internal/trending"
)

// EntityStore implements entity.Store against the relational schema in
// postgres.go, following the same NewXStore(db) constructor shape as
// the other stores in this package, with Postgres's
// $n placeholders via sqlx in place of database/sql's ? placeholders.
type EntityStore struct {
	db *sqlx.DB
}

// NewEntityStore builds an EntityStore over an already-migrated db.
func NewEntityStore(db *sqlx.DB) *EntityStore {
	return &EntityStore{db: db}
}

var (
	_ entity.Store          = (*EntityStore)(nil)
	_ trending.EntityLookup = (*EntityStore)(nil)
)

// FindAliasExact looks up an exact, case-insensitive (alias, source)
// pair with confidence >= exactMatchThreshold left to the caller to
// check; this method returns whatever alias is stored, if any.
func (s *EntityStore) FindAliasExact(ctx context.Context, alias string, source domain.Source) (*domain.EntityAlias, error) {
	const q = `
		SELECT canonical_id, alias, source, confidence, resolution_method, first_seen, last_seen
		FROM entity_aliases
		WHERE lower(alias) = lower($1) AND source = $2
	`
	var row entityAliasRow
	err := s.db.GetContext(ctx, &row, q, alias, string(source))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: find alias exact: %w", err)
	}
	out := row.toDomain()
	return &out, nil
}

// CandidatesByBlock returns canonical entities sharing the blocking key.
func (s *EntityStore) CandidatesByBlock(ctx context.Context, namePrefix, countryCode string, entityType domain.EntityType) ([]domain.CanonicalEntity, error) {
	const q = `
		SELECT id, primary_name, entity_type, country_code, metadata, created_at, last_verified
		FROM entities
		WHERE lower(left(primary_name, 3)) = lower($1) AND country_code = $2 AND entity_type = $3
	`
	var rows []canonicalEntityRow
	if err := s.db.SelectContext(ctx, &rows, q, namePrefix, countryCode, string(entityType)); err != nil {
		return nil, fmt.Errorf("storage: candidates by block: %w", err)
	}
	out := make([]domain.CanonicalEntity, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// CreateEntity inserts a new canonical entity and its first alias inside
// a single transaction.
func (s *EntityStore) CreateEntity(ctx context.Context, e domain.CanonicalEntity, alias domain.EntityAlias) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin create entity tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("storage: marshal entity metadata: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entities (id, primary_name, entity_type, country_code, metadata, created_at, last_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.PrimaryName, string(e.EntityType), e.CountryCode, metadata, e.CreatedAt, e.LastVerified); err != nil {
		return fmt.Errorf("storage: insert entity: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entity_aliases (canonical_id, alias, source, confidence, resolution_method, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, alias.CanonicalID, alias.Alias, string(alias.Source), alias.Confidence, string(alias.ResolutionMethod), alias.FirstSeen, alias.LastSeen); err != nil {
		return fmt.Errorf("storage: insert first alias: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit create entity tx: %w", err)
	}
	return nil
}

// TouchAlias updates LastSeen on an existing alias match.
func (s *EntityStore) TouchAlias(ctx context.Context, canonicalID, alias string, source domain.Source, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE entity_aliases SET last_seen = $1
		WHERE canonical_id = $2 AND lower(alias) = lower($3) AND source = $4
	`, seenAt, canonicalID, alias, string(source))
	if err != nil {
		return fmt.Errorf("storage: touch alias: %w", err)
	}
	return nil
}

// UpsertAlias records a newly observed alias against an existing
// canonical entity.
func (s *EntityStore) UpsertAlias(ctx context.Context, alias domain.EntityAlias) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_aliases (canonical_id, alias, source, confidence, resolution_method, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (alias, source) DO UPDATE SET
			confidence = excluded.confidence,
			resolution_method = excluded.resolution_method,
			last_seen = excluded.last_seen
	`, alias.CanonicalID, alias.Alias, string(alias.Source), alias.Confidence, string(alias.ResolutionMethod), alias.FirstSeen, alias.LastSeen)
	if err != nil {
		return fmt.Errorf("storage: upsert alias: %w", err)
	}
	return nil
}

// EntitiesByID implements trending.EntityLookup: a batched primary-name/
// type lookup joined onto leaderboard rows.
func (s *EntityStore) EntitiesByID(ctx context.Context, ids []string) (map[string]trending.EntitySummary, error) {
	if len(ids) == 0 {
		return map[string]trending.EntitySummary{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, primary_name, entity_type FROM entities WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("storage: build entities-by-id query: %w", err)
	}
	query = s.db.Rebind(query)

	var rows []struct {
		ID          string `db:"id"`
		PrimaryName string `db:"primary_name"`
		EntityType  string `db:"entity_type"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("storage: entities by id: %w", err)
	}

	out := make(map[string]trending.EntitySummary, len(rows))
	for _, r := range rows {
		out[r.ID] = trending.EntitySummary{CanonicalID: r.ID, PrimaryName: r.PrimaryName, EntityType: r.EntityType}
	}
	return out, nil
}

// EntitiesWithMetadata batch-fetches full canonical entity rows
// (including metadata) by id -- the graph handler needs risk_score and
// sanctions_status out of Metadata for node rendering, which
// EntitiesByID's narrower trending.EntitySummary doesn't carry.
func (s *EntityStore) EntitiesWithMetadata(ctx context.Context, ids []string) (map[string]domain.CanonicalEntity, error) {
	if len(ids) == 0 {
		return map[string]domain.CanonicalEntity{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, primary_name, entity_type, country_code, metadata, created_at, last_verified FROM entities WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("storage: build entities-with-metadata query: %w", err)
	}
	query = s.db.Rebind(query)

	var rows []canonicalEntityRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("storage: entities with metadata: %w", err)
	}
	out := make(map[string]domain.CanonicalEntity, len(rows))
	for _, r := range rows {
		out[r.ID] = r.toDomain()
	}
	return out, nil
}

// entityAliasRow is the sqlx scan target for entity_aliases rows.
type entityAliasRow struct {
	CanonicalID      string    `db:"canonical_id"`
	Alias            string    `db:"alias"`
	Source           string    `db:"source"`
	Confidence       float64   `db:"confidence"`
	ResolutionMethod string    `db:"resolution_method"`
	FirstSeen        time.Time `db:"first_seen"`
	LastSeen         time.Time `db:"last_seen"`
}

func (r entityAliasRow) toDomain() domain.EntityAlias {
	return domain.EntityAlias{
		CanonicalID:      r.CanonicalID,
		Alias:            r.Alias,
		Source:           domain.Source(r.Source),
		Confidence:       r.Confidence,
		ResolutionMethod: domain.ResolutionMethod(r.ResolutionMethod),
		FirstSeen:        r.FirstSeen,
		LastSeen:         r.LastSeen,
	}
}

// canonicalEntityRow is the sqlx scan target for entities rows.
type canonicalEntityRow struct {
	ID           string         `db:"id"`
	PrimaryName  string         `db:"primary_name"`
	EntityType   string         `db:"entity_type"`
	CountryCode  sql.NullString `db:"country_code"`
	Metadata     []byte         `db:"metadata"`
	CreatedAt    time.Time      `db:"created_at"`
	LastVerified time.Time      `db:"last_verified"`
}

func (r canonicalEntityRow) toDomain() domain.CanonicalEntity {
	out := domain.CanonicalEntity{
		ID:           r.ID,
		PrimaryName:  r.PrimaryName,
		EntityType:   domain.EntityType(r.EntityType),
		CountryCode:  r.CountryCode.String,
		CreatedAt:    r.CreatedAt,
		LastVerified: r.LastVerified,
	}
	if len(r.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(r.Metadata, &meta); err == nil {
			out.Metadata = meta
		}
	}
	return out
}
