package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/stdin/venezuelawatch/internal/domain"
	"github.com/stdin/venezuelawatch/internal/entity"
)

// SanctionsStore implements entity.MatchRecorder, persisting audit
// records of sanctions-list matches above C13's recording threshold.
type SanctionsStore struct {
	db *sqlx.DB
}

// NewSanctionsStore builds a SanctionsStore over an already-migrated db.
func NewSanctionsStore(db *sqlx.DB) *SanctionsStore {
	return &SanctionsStore{db: db}
}

var _ entity.MatchRecorder = (*SanctionsStore)(nil)

// RecordMatch persists m as a sanctions_matches row.
func (s *SanctionsStore) RecordMatch(ctx context.Context, m domain.SanctionsMatch) error {
	payload, err := json.Marshal(m.RawPayload)
	if err != nil {
		return fmt.Errorf("storage: marshal sanctions match payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sanctions_matches (event_id, entity_name, entity_type, list, match_score, raw_payload, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.EventID, m.EntityName, string(m.EntityType), m.List, m.MatchScore, payload, m.MatchedAt)
	if err != nil {
		return fmt.Errorf("storage: record sanctions match: %w", err)
	}
	return nil
}
