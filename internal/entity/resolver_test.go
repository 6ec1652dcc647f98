package entity

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdin/venezuelawatch/internal/domain"
)

type fakeStore struct {
	aliases       map[string]domain.EntityAlias // key: alias+"/"+source
	entities      []domain.CanonicalEntity
	createErr     error
	createErrLeft int
	onConflict    func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{aliases: map[string]domain.EntityAlias{}}
}

func key(alias string, source domain.Source) string {
	return alias + "/" + string(source)
}

func (f *fakeStore) FindAliasExact(ctx context.Context, alias string, source domain.Source) (*domain.EntityAlias, error) {
	if a, ok := f.aliases[key(alias, source)]; ok {
		return &a, nil
	}
	return nil, nil
}

func (f *fakeStore) CandidatesByBlock(ctx context.Context, namePrefix, countryCode string, entityType domain.EntityType) ([]domain.CanonicalEntity, error) {
	var out []domain.CanonicalEntity
	for _, e := range f.entities {
		if e.CountryCode == countryCode && e.EntityType == entityType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateEntity(ctx context.Context, entity domain.CanonicalEntity, alias domain.EntityAlias) error {
	if f.createErrLeft > 0 {
		f.createErrLeft--
		if f.onConflict != nil {
			f.onConflict()
		}
		return f.createErr
	}
	f.entities = append(f.entities, entity)
	f.aliases[key(alias.Alias, alias.Source)] = alias
	return nil
}

func (f *fakeStore) TouchAlias(ctx context.Context, canonicalID, alias string, source domain.Source, seenAt time.Time) error {
	a := f.aliases[key(alias, source)]
	a.LastSeen = seenAt
	f.aliases[key(alias, source)] = a
	return nil
}

func (f *fakeStore) UpsertAlias(ctx context.Context, alias domain.EntityAlias) error {
	f.aliases[key(alias.Alias, alias.Source)] = alias
	return nil
}

func TestResolve_TierOneExactAliasHit(t *testing.T) {
	store := newFakeStore()
	store.aliases[key("pdvsa", domain.SourceGDELT)] = domain.EntityAlias{
		CanonicalID: "canon-1", Alias: "pdvsa", Source: domain.SourceGDELT, Confidence: 1.0,
	}
	r := New(store, zerolog.Nop())

	result, err := r.Resolve(context.Background(), "PDVSA", "VE", domain.SourceGDELT, domain.EntityOrganization)
	require.NoError(t, err)
	assert.Equal(t, "canon-1", result.CanonicalID)
	assert.Equal(t, domain.ResolutionExact, result.Method)
}

func TestResolve_TierTwoProbabilisticMatch(t *testing.T) {
	store := newFakeStore()
	store.entities = append(store.entities, domain.CanonicalEntity{
		ID: "canon-2", PrimaryName: "Petroleos de Venezuela", EntityType: domain.EntityOrganization, CountryCode: "VE",
	})
	r := New(store, zerolog.Nop())

	result, err := r.Resolve(context.Background(), "Petroleos de Venzuela", "VE", domain.SourceReliefWeb, domain.EntityOrganization)
	require.NoError(t, err)
	assert.Equal(t, "canon-2", result.CanonicalID)
	assert.Equal(t, domain.ResolutionProbabilistic, result.Method)
	assert.GreaterOrEqual(t, result.Confidence, probabilisticMatchThreshold)
}

func TestResolve_TierThreeCreatesNewEntity(t *testing.T) {
	store := newFakeStore()
	r := New(store, zerolog.Nop())

	result, err := r.Resolve(context.Background(), "Totally Novel Org", "VE", domain.SourceGDELT, domain.EntityOrganization)
	require.NoError(t, err)
	assert.NotEmpty(t, result.CanonicalID)
	assert.Equal(t, domain.ResolutionExact, result.Method)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Len(t, store.entities, 1)
}

func TestResolve_TierThreeRetriesOnConflictThenFindsWinner(t *testing.T) {
	store := newFakeStore()
	store.createErr = assert.AnError
	store.createErrLeft = 1
	r := New(store, zerolog.Nop())

	// Simulate a concurrent resolve winning the race: the alias appears
	// only when the first CreateEntity conflicts, so tier 1 misses it and
	// the retry's re-check is what finds it.
	store.onConflict = func() {
		store.aliases[key("totally novel org", domain.SourceGDELT)] = domain.EntityAlias{
			CanonicalID: "canon-winner", Alias: "totally novel org", Source: domain.SourceGDELT, Confidence: 1.0,
		}
	}

	result, err := r.Resolve(context.Background(), "Totally Novel Org", "VE", domain.SourceGDELT, domain.EntityOrganization)
	require.NoError(t, err)
	assert.Equal(t, "canon-winner", result.CanonicalID)
}

func TestJaroWinkler_IdenticalStringsScoreOne(t *testing.T) {
	assert.Equal(t, 1.0, jaroWinkler("pdvsa", "pdvsa"))
}

func TestJaroWinkler_EmptyStringsScoreZero(t *testing.T) {
	assert.Equal(t, 0.0, jaroWinkler("", "pdvsa"))
}
