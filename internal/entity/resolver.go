// Package entity implements C12 (tiered entity resolution) and C13
// (sanctions screening): both screen the same entity-name block the LLM
// analyzer emits.
package entity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stdin/venezuelawatch/internal/domain"
)

const (
	exactMatchThreshold         = 0.95
	probabilisticMatchThreshold = 0.85
	blockingPrefixLen           = 3
)

// Store is the relational-store port the resolver reads/writes through.
// Concrete implementation lives in internal/storage/postgres; the
// resolver only depends on this narrow interface so it's testable with
// an in-memory fake.
type Store interface {
	// FindAliasExact looks up an exact, case-insensitive (alias, source)
	// pair with stored confidence >= exactMatchThreshold.
	FindAliasExact(ctx context.Context, alias string, source domain.Source) (*domain.EntityAlias, error)
	// CandidatesByBlock returns canonical entities sharing the blocking
	// key (first 3 chars of name, country code, entity type).
	CandidatesByBlock(ctx context.Context, namePrefix, countryCode string, entityType domain.EntityType) ([]domain.CanonicalEntity, error)
	// CreateEntity inserts a new canonical entity transactionally along
	// with its first alias; retried by the caller on unique-constraint
	// conflict so concurrent resolves of the same raw name collapse to
	// one canonical row.
	CreateEntity(ctx context.Context, entity domain.CanonicalEntity, alias domain.EntityAlias) error
	// TouchAlias updates LastSeen on an existing alias match.
	TouchAlias(ctx context.Context, canonicalID, alias string, source domain.Source, seenAt time.Time) error
	// UpsertAlias records a newly observed alias against an existing
	// canonical entity (tier 2 hits).
	UpsertAlias(ctx context.Context, alias domain.EntityAlias) error
}

// Resolver implements C12's three-tier resolution strategy.
type Resolver struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// New builds a Resolver over store.
func New(store Store, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, log: log, now: time.Now}
}

// ResolveResult is C12's (canonical_id, confidence, method) tuple.
type ResolveResult struct {
	CanonicalID string
	Confidence  float64
	Method      domain.ResolutionMethod
}

// Resolve runs the three tiers in order: exact alias, probabilistic
// blocked Jaro-Winkler, then create-new. maxCreateRetries bounds the
// unique-constraint-conflict retry loop on tier 3 (up to 3 attempts).
func (r *Resolver) Resolve(ctx context.Context, rawName, countryCode string, source domain.Source, entityType domain.EntityType) (ResolveResult, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawName))
	now := r.now()

	// Tier 1: exact alias.
	if alias, err := r.store.FindAliasExact(ctx, normalized, source); err == nil && alias != nil {
		if alias.Confidence >= exactMatchThreshold {
			if err := r.store.TouchAlias(ctx, alias.CanonicalID, normalized, source, now); err != nil {
				r.log.Warn().Err(err).Str("canonical_id", alias.CanonicalID).Msg("entity: failed to touch alias last_seen")
			}
			return ResolveResult{CanonicalID: alias.CanonicalID, Confidence: alias.Confidence, Method: domain.ResolutionExact}, nil
		}
	}

	// Tier 2: probabilistic, blocked on (first-3-chars, country, type).
	prefix := normalized
	if len(prefix) > blockingPrefixLen {
		prefix = prefix[:blockingPrefixLen]
	}
	candidates, err := r.store.CandidatesByBlock(ctx, prefix, countryCode, entityType)
	if err != nil {
		r.log.Warn().Err(err).Msg("entity: blocked candidate lookup failed, falling through to create-new")
	}

	best := ResolveResult{}
	bestProb := 0.0
	for _, c := range candidates {
		prob := jaroWinkler(normalized, strings.ToLower(c.PrimaryName))
		if prob > bestProb {
			bestProb = prob
			best = ResolveResult{CanonicalID: c.ID, Confidence: prob, Method: domain.ResolutionProbabilistic}
		}
	}
	if bestProb >= probabilisticMatchThreshold {
		if err := r.store.UpsertAlias(ctx, domain.EntityAlias{
			CanonicalID:      best.CanonicalID,
			Alias:            normalized,
			Source:           source,
			Confidence:       bestProb,
			ResolutionMethod: domain.ResolutionProbabilistic,
			FirstSeen:        now,
			LastSeen:         now,
		}); err != nil {
			return ResolveResult{}, err
		}
		return best, nil
	}

	// Tier 3: create new, with retry on unique-constraint conflict.
	const maxCreateRetries = 3
	newID := uuid.NewString()
	entityRecord := domain.CanonicalEntity{
		ID:           newID,
		PrimaryName:  rawName,
		EntityType:   entityType,
		CountryCode:  countryCode,
		CreatedAt:    now,
		LastVerified: now,
	}
	aliasRecord := domain.EntityAlias{
		CanonicalID:      newID,
		Alias:            normalized,
		Source:           source,
		Confidence:       1.0,
		ResolutionMethod: domain.ResolutionExact,
		FirstSeen:        now,
		LastSeen:         now,
	}

	var lastErr error
	for attempt := 0; attempt < maxCreateRetries; attempt++ {
		if err := r.store.CreateEntity(ctx, entityRecord, aliasRecord); err != nil {
			lastErr = err
			// Another concurrent resolve may have just inserted the
			// same alias; re-check tier 1 before retrying a fresh id.
			if alias, checkErr := r.store.FindAliasExact(ctx, normalized, source); checkErr == nil && alias != nil {
				return ResolveResult{CanonicalID: alias.CanonicalID, Confidence: alias.Confidence, Method: domain.ResolutionExact}, nil
			}
			continue
		}
		return ResolveResult{CanonicalID: newID, Confidence: 1.0, Method: domain.ResolutionExact}, nil
	}
	return ResolveResult{}, lastErr
}
