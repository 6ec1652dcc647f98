package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stdin/venezuelawatch/internal/bus"
	"github.com/stdin/venezuelawatch/internal/domain"
	"github.com/stdin/venezuelawatch/internal/entity"
	"github.com/stdin/venezuelawatch/internal/llm"
	"github.com/stdin/venezuelawatch/internal/trending"
)

// fakeEventStore is an in-memory stand-in for storage.EventStore,
// scoped to the three methods the pipeline's EventStore port needs.
type fakeEventStore struct {
	mu     sync.Mutex
	events map[string]domain.Event
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: map[string]domain.Event{}}
}

func (s *fakeEventStore) Seen(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[id]
	return ok, nil
}

func (s *fakeEventStore) UpsertEvent(ctx context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
	return nil
}

func (s *fakeEventStore) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// fakeMentionWriter is an in-memory stand-in for storage.MentionStore,
// scoped to RecordMention.
type fakeMentionWriter struct {
	mu       sync.Mutex
	mentions []domain.EntityMention
}

func newFakeMentionWriter() *fakeMentionWriter {
	return &fakeMentionWriter{}
}

func (w *fakeMentionWriter) RecordMention(ctx context.Context, m domain.EntityMention) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mentions = append(w.mentions, m)
	return nil
}

// fakeEntityStore backs entity.Resolver with no pre-seeded aliases, so
// every resolve falls through to tier 3 (create new).
type fakeEntityStore struct {
	mu       sync.Mutex
	entities []domain.CanonicalEntity
	aliases  []domain.EntityAlias
}

func newFakeEntityStore() *fakeEntityStore { return &fakeEntityStore{} }

func (s *fakeEntityStore) FindAliasExact(ctx context.Context, alias string, source domain.Source) (*domain.EntityAlias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.aliases {
		if a.Alias == alias && a.Source == source {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *fakeEntityStore) CandidatesByBlock(ctx context.Context, namePrefix, countryCode string, entityType domain.EntityType) ([]domain.CanonicalEntity, error) {
	return nil, nil
}

func (s *fakeEntityStore) CreateEntity(ctx context.Context, e domain.CanonicalEntity, alias domain.EntityAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append(s.entities, e)
	s.aliases = append(s.aliases, alias)
	return nil
}

func (s *fakeEntityStore) TouchAlias(ctx context.Context, canonicalID, alias string, source domain.Source, seenAt time.Time) error {
	return nil
}

func (s *fakeEntityStore) UpsertAlias(ctx context.Context, alias domain.EntityAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases = append(s.aliases, alias)
	return nil
}

// fakeWatchlist never returns a candidate, so the screener's sanctions
// dimension is always 0 -- sufficient for exercising the extract
// handler's C10 recomputation without a real watchlist.
type fakeWatchlist struct{}

func (fakeWatchlist) Candidates(ctx context.Context, name string) ([]entity.WatchlistEntry, error) {
	return nil, nil
}

func (fakeWatchlist) Name() string { return "FAKE" }

type fakeMatchRecorder struct{}

func (fakeMatchRecorder) RecordMatch(ctx context.Context, m domain.SanctionsMatch) error { return nil }

// fakeAnalyzer stands in for llm.Analyzer with a fixed, canned analysis
// so tests don't depend on a real model call.
type fakeAnalyzer struct {
	result *domain.LLMAnalysis
	err    error
	calls  int
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, in llm.AnalyzeInput) (*domain.LLMAnalysis, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func newTestPipeline(t *testing.T, events *fakeEventStore, mentions *fakeMentionWriter, analyzer llm.Analyzer) (*Pipeline, *bus.Bus) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := bus.New(rdb, zerolog.Nop(), 3)

	resolver := entity.New(newFakeEntityStore(), zerolog.Nop())
	screener := entity.NewScreener(fakeWatchlist{}, fakeMatchRecorder{}, zerolog.Nop())
	board := trending.New(rdb, nil, nil, zerolog.Nop())

	p := New(b, events, mentions, analyzer, resolver, screener, board, zerolog.Nop())
	return p, b
}

func sampleEvent(id string) domain.Event {
	return domain.Event{
		ID:             id,
		Source:         domain.SourceGDELT,
		SourceEventID:  "src-1",
		EventTimestamp: time.Now().Add(-time.Hour),
		Category:       domain.CategoryConflict,
		EventType:      "CRISIS",
		Title:          "Unrest reported in Caracas",
		Content:        "Security forces clashed with protesters.",
		CountryCode:    "VE",
		Metadata: map[string]any{
			"goldstein": -5.0,
			"avg_tone":  -3.2,
		},
	}
}

func TestHandleIngest_AssignsSeverityUpsertsAndPublishesAnalyze(t *testing.T) {
	events := newFakeEventStore()
	p, _ := newTestPipeline(t, events, newFakeMentionWriter(), &fakeAnalyzer{})

	e := sampleEvent("evt-1")
	env, err := bus.Wrap(e, time.Now())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.handleIngest(ctx, env))

	stored, err := events.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotEmpty(t, stored.Severity)
}

func TestHandleIngest_SkipsDuplicateEvent(t *testing.T) {
	events := newFakeEventStore()
	seeded := sampleEvent("evt-dup")
	require.NoError(t, events.UpsertEvent(context.Background(), seeded))

	analyzer := &fakeAnalyzer{}
	p, _ := newTestPipeline(t, events, newFakeMentionWriter(), analyzer)

	env, err := bus.Wrap(sampleEvent("evt-dup"), time.Now())
	require.NoError(t, err)

	require.NoError(t, p.handleIngest(context.Background(), env))
	require.Equal(t, 0, analyzer.calls)

	// A reprocessed event would have been re-upserted with a severity.
	stored, err := events.GetEvent(context.Background(), "evt-dup")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Empty(t, stored.Severity)
}

func TestHandleAnalyze_ComputesHybridAndPublishesExtract(t *testing.T) {
	events := newFakeEventStore()
	e := sampleEvent("evt-2")
	require.NoError(t, events.UpsertEvent(context.Background(), e))

	analyzer := &fakeAnalyzer{result: &domain.LLMAnalysis{
		Sentiment: domain.Sentiment{Score: -0.6},
		Summary:   domain.Summary{Short: "Clashes reported"},
		Risk:      domain.RiskAssessment{Score: 0.8, Level: "high"},
		Urgency:   domain.UrgencyHigh,
		Language:  "en",
		Entities: domain.EntityBlock{
			People: []domain.NamedEntity{{Name: "Nicolas Maduro", Relevance: 0.9}},
		},
	}}

	p, _ := newTestPipeline(t, events, newFakeMentionWriter(), analyzer)

	env, err := bus.Wrap(AnalyzeMessage{EventID: "evt-2", ModelTier: "standard"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, p.handleAnalyze(context.Background(), env))
	require.Equal(t, 1, analyzer.calls)

	stored, err := events.GetEvent(context.Background(), "evt-2")
	require.NoError(t, err)
	require.NotNil(t, stored.LLMAnalysis)
	require.Equal(t, domain.ScoringHybrid, stored.ScoringMethod)
	require.Greater(t, stored.RiskScore, 0.0)
}

func TestHandleAnalyze_SkipsWhenAlreadyAnalyzedAndNotReanalyze(t *testing.T) {
	events := newFakeEventStore()
	e := sampleEvent("evt-3")
	e.LLMAnalysis = &domain.LLMAnalysis{Risk: domain.RiskAssessment{Score: 0.4}}
	require.NoError(t, events.UpsertEvent(context.Background(), e))

	analyzer := &fakeAnalyzer{}
	p, _ := newTestPipeline(t, events, newFakeMentionWriter(), analyzer)

	env, err := bus.Wrap(AnalyzeMessage{EventID: "evt-3", ModelTier: "fast"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, p.handleAnalyze(context.Background(), env))
	require.Equal(t, 0, analyzer.calls)
}

func TestHandleExtract_RecordsMentionsAndAggregates(t *testing.T) {
	events := newFakeEventStore()
	e := sampleEvent("evt-4")
	e.Actor1 = &domain.Actor{Name: "Nicolas Maduro", Type: domain.ActorGovernment}
	e.LLMAnalysis = &domain.LLMAnalysis{
		Sentiment: domain.Sentiment{Score: -0.5},
		Risk:      domain.RiskAssessment{Score: 0.7},
		Urgency:   domain.UrgencyHigh,
		Themes:    []string{"oil", "sanctions"},
		Entities: domain.EntityBlock{
			People: []domain.NamedEntity{{Name: "Nicolas Maduro", Relevance: 0.95}},
		},
	}
	require.NoError(t, events.UpsertEvent(context.Background(), e))

	mentions := newFakeMentionWriter()
	p, _ := newTestPipeline(t, events, mentions, &fakeAnalyzer{})

	env, err := bus.Wrap(ExtractMessage{EventID: "evt-4"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, p.handleExtract(context.Background(), env))

	// actor1 fuzzy-dedups against the identical LLM-extracted name, so
	// exactly one mention should be recorded, not two.
	require.Len(t, mentions.mentions, 1)

	stored, err := events.GetEvent(context.Background(), "evt-4")
	require.NoError(t, err)
	require.Contains(t, stored.Metadata, "aggregate_risk_score")
}

func TestHandleExtract_NoopWhenNotYetAnalyzed(t *testing.T) {
	events := newFakeEventStore()
	require.NoError(t, events.UpsertEvent(context.Background(), sampleEvent("evt-5")))

	mentions := newFakeMentionWriter()
	p, _ := newTestPipeline(t, events, mentions, &fakeAnalyzer{})

	env, err := bus.Wrap(ExtractMessage{EventID: "evt-5"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, p.handleExtract(context.Background(), env))
	require.Empty(t, mentions.mentions)
}

func TestCollectEntityNames_DedupsActorAgainstLLMName(t *testing.T) {
	e := sampleEvent("evt-6")
	e.Actor1 = &domain.Actor{Name: "Nicolás Maduro", Type: domain.ActorGovernment}
	e.Actor2 = &domain.Actor{Name: "Juan Guaido", Type: domain.ActorCivilian}
	e.LLMAnalysis = &domain.LLMAnalysis{
		Entities: domain.EntityBlock{
			People: []domain.NamedEntity{{Name: "Nicolas Maduro", Relevance: 0.9}},
		},
	}

	names := collectEntityNames(e)

	require.Len(t, names, 2) // the LLM's Maduro entry plus actor2's Guaido; actor1 dedups away
	var sawGuaido bool
	for _, n := range names {
		if n.Name == "Juan Guaido" {
			sawGuaido = true
			require.Equal(t, domain.EntityPerson, n.EntityType)
		}
	}
	require.True(t, sawGuaido)
}
