package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stdin/venezuelawatch/internal/bus"
	"github.com/stdin/venezuelawatch/internal/domain"
	"github.com/stdin/venezuelawatch/internal/entity"
	"github.com/stdin/venezuelawatch/internal/llm"
	"github.com/stdin/venezuelawatch/internal/scoring"
	"github.com/stdin/venezuelawatch/internal/severity"
	"github.com/stdin/venezuelawatch/internal/trending"
)

// consumerGroup names the shared consumer group every pipeline stage
// reads under; each stage still runs as its own consumer identity so
// the bus's idle-claim reclamation attributes pending messages
// correctly.
const consumerGroup = "pipeline"

// prefetch bounds concurrent in-flight messages per stage -- the
// backpressure knob that makes analyze workers the pacing point.
const prefetch = 10

// EventStore is the narrow column-store port the pipeline reads/writes
// events through. storage.EventStore satisfies this (and bus.Deduper,
// and adapter.DuplicateChecker) against the same table.
type EventStore interface {
	Seen(ctx context.Context, id string) (bool, error)
	UpsertEvent(ctx context.Context, e domain.Event) error
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
}

// MentionWriter is the narrow relational-store port the extract stage
// records resolved entity mentions through.
type MentionWriter interface {
	RecordMention(ctx context.Context, m domain.EntityMention) error
}

// Pipeline wires C6's three bus topics to the domain packages: ingest
// persists and classifies severity (C3), analyze runs C7+C8 and blends
// C9, extract resolves entities (C12), screens sanctions (C13), and
// bumps the trending leaderboard (C14).
type Pipeline struct {
	bus         *bus.Bus
	events      EventStore
	mentions    MentionWriter
	analyzer    llm.Analyzer
	resolver    *entity.Resolver
	screener    *entity.Screener
	leaderboard *trending.Leaderboard
	log         zerolog.Logger
}

// New builds a Pipeline over its collaborators.
func New(b *bus.Bus, events EventStore, mentions MentionWriter, analyzer llm.Analyzer, resolver *entity.Resolver, screener *entity.Screener, leaderboard *trending.Leaderboard, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		bus:         b,
		events:      events,
		mentions:    mentions,
		analyzer:    analyzer,
		resolver:    resolver,
		screener:    screener,
		leaderboard: leaderboard,
		log:         log,
	}
}

// Run starts all three stage consumers and blocks until ctx is
// canceled. Generic bus-level dedup (keyed on the envelope's transient
// message id) is skipped here -- the dedup window check belongs at the
// ingest handler, keyed on the canonical event id, which handleIngest
// does itself via EventStore.Seen.
func (p *Pipeline) Run(ctx context.Context) {
	stages := []struct {
		topic    string
		consumer string
		handler  bus.Handler
	}{
		{bus.TopicIngest, "ingest-1", p.handleIngest},
		{bus.TopicAnalyze, "analyze-1", p.handleAnalyze},
		{bus.TopicExtract, "extract-1", p.handleExtract},
	}

	var wg sync.WaitGroup
	for _, s := range stages {
		wg.Add(1)
		go func(topic, consumer string, handler bus.Handler) {
			defer wg.Done()
			if err := p.bus.Consume(ctx, topic, consumerGroup, consumer, prefetch, nil, handler); err != nil {
				p.log.Error().Err(err).Str("topic", topic).Msg("pipeline: consume loop exited")
			}
		}(s.topic, s.consumer, s.handler)
	}
	wg.Wait()
}

// handleIngest implements the ingest handler: dedup check, severity
// classification (C3), idempotent column-store upsert, then hand off
// to analyze with the model tier C3's severity already picked.
func (p *Pipeline) handleIngest(ctx context.Context, env bus.Envelope) error {
	var e domain.Event
	if err := env.Unwrap(&e); err != nil {
		return err
	}

	if seen, err := p.events.Seen(ctx, e.ID); err != nil {
		p.log.Warn().Err(err).Str("event_id", e.ID).Msg("pipeline: ingest dedup check failed, processing anyway")
	} else if seen {
		return nil
	}

	sev, reason := severity.Assign(&e)
	e.Severity = sev
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Metadata["severity_reason"] = reason

	if err := p.events.UpsertEvent(ctx, e); err != nil {
		return fmt.Errorf("pipeline: ingest upsert: %w", err)
	}

	msg := AnalyzeMessage{EventID: e.ID, ModelTier: string(tierFor(sev))}
	if _, err := p.bus.Publish(ctx, bus.TopicAnalyze, msg); err != nil {
		return fmt.Errorf("pipeline: publish analyze: %w", err)
	}
	return nil
}

// tierFor reserves the premium model for events C3 already flagged P1,
// standard for P2, and the cheap tier for everything else.
func tierFor(sev domain.Severity) llm.Tier {
	switch sev {
	case domain.P1:
		return llm.TierPremium
	case domain.P2:
		return llm.TierStandard
	default:
		return llm.TierFast
	}
}

// handleAnalyze implements the analyze handler: C7 then C8 (C7's score
// injected into C8's prompt context), hybrid blend + severity band via
// C9, enrichment written back to the event row, then hand off to
// extract.
func (p *Pipeline) handleAnalyze(ctx context.Context, env bus.Envelope) error {
	var msg AnalyzeMessage
	if err := env.Unwrap(&msg); err != nil {
		return err
	}

	e, err := p.events.GetEvent(ctx, msg.EventID)
	if err != nil {
		return fmt.Errorf("pipeline: analyze load event: %w", err)
	}
	if e == nil {
		return fmt.Errorf("pipeline: analyze: event %s not found", msg.EventID)
	}
	if e.LLMAnalysis != nil && !msg.Reanalyze {
		return nil
	}

	srcMeta, hasMeta := quantMetadata(*e)
	var quantScore *float64
	if hasMeta {
		score := scoring.QuantScore(srcMeta, scoring.DefaultQuantWeights, p.warn("quant"))
		quantScore = &score
	}

	analysis, err := p.analyzer.Analyze(ctx, llm.AnalyzeInput{
		Title:   e.Title,
		Content: e.Content,
		Context: analyzeContext(*e, quantScore),
		Tier:    llm.Tier(msg.ModelTier),
	})
	if err != nil {
		return fmt.Errorf("pipeline: llm analyze: %w", err)
	}

	hybrid := scoring.Hybrid(quantScore, analysis.Risk.Score, scoring.DefaultHybridWeights)

	sentiment := analysis.Sentiment.Score
	e.Sentiment = &sentiment
	e.RiskScore = hybrid.Score
	e.SeverityBand = hybrid.Band
	e.ScoringMethod = hybrid.Method
	e.Urgency = analysis.Urgency
	e.Language = analysis.Language
	e.Summary = analysis.Summary.Short
	e.Relationships = analysis.Relationships
	e.Themes = analysis.Themes
	e.LLMAnalysis = analysis

	if err := p.events.UpsertEvent(ctx, *e); err != nil {
		return fmt.Errorf("pipeline: analyze upsert: %w", err)
	}

	if _, err := p.bus.Publish(ctx, bus.TopicExtract, ExtractMessage{EventID: e.ID}); err != nil {
		return fmt.Errorf("pipeline: publish extract: %w", err)
	}
	return nil
}

// handleExtract implements the extract handler: resolves (C12) every
// name in the LLM entity block plus the event's source-provided actors
// (fuzzy-deduped against the LLM names), records mentions, bumps the
// trending leaderboard (C14), screens sanctions (C13), and re-aggregates
// (C10) now that the sanctions dimension is known.
func (p *Pipeline) handleExtract(ctx context.Context, env bus.Envelope) error {
	var msg ExtractMessage
	if err := env.Unwrap(&msg); err != nil {
		return err
	}

	e, err := p.events.GetEvent(ctx, msg.EventID)
	if err != nil {
		return fmt.Errorf("pipeline: extract load event: %w", err)
	}
	if e == nil {
		return fmt.Errorf("pipeline: extract: event %s not found", msg.EventID)
	}
	if e.LLMAnalysis == nil {
		return nil
	}

	for _, n := range collectEntityNames(*e) {
		result, err := p.resolver.Resolve(ctx, n.Name, e.CountryCode, e.Source, n.EntityType)
		if err != nil {
			return fmt.Errorf("pipeline: resolve %q: %w", n.Name, err)
		}

		relevance := n.Relevance
		if relevance == 0 {
			relevance = 1.0
		}

		if err := p.mentions.RecordMention(ctx, domain.EntityMention{
			EventID:     e.ID,
			CanonicalID: result.CanonicalID,
			RawName:     n.Name,
			MatchScore:  result.Confidence,
			Relevance:   relevance,
			MentionedAt: e.EventTimestamp,
		}); err != nil {
			return fmt.Errorf("pipeline: record mention %q: %w", n.Name, err)
		}

		if err := p.leaderboard.Bump(ctx, result.CanonicalID, e.EventTimestamp, relevance); err != nil {
			p.log.Warn().Err(err).Str("canonical_id", result.CanonicalID).Msg("pipeline: leaderboard bump failed")
		}
	}

	sanctionsDim, err := p.screener.ScreenEntities(ctx, e.ID, e.LLMAnalysis.Entities.People, e.LLMAnalysis.Entities.Organizations)
	if err != nil {
		return fmt.Errorf("pipeline: sanctions screen: %w", err)
	}

	aggregate := scoring.Aggregate(scoring.AggregateInput{
		LLMBaseRisk: e.LLMAnalysis.Risk.Score,
		Sanctions:   sanctionsDim,
		Sentiment:   scoring.SentimentRisk(e.LLMAnalysis.Sentiment.Score),
		Urgency:     scoring.UrgencyRisk(string(e.LLMAnalysis.Urgency)),
		SupplyChain: scoring.SupplyChainRisk(e.LLMAnalysis.Themes),
		EventType:   e.EventType,
	}, p.warn("aggregate"))

	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Metadata["aggregate_risk_score"] = aggregate

	if err := p.events.UpsertEvent(ctx, *e); err != nil {
		return fmt.Errorf("pipeline: extract upsert: %w", err)
	}
	return nil
}

// warn adapts the pipeline's logger to the small func(string) renormalization
// warning hook scoring.QuantScore/Aggregate expect.
func (p *Pipeline) warn(op string) func(string) {
	return func(msg string) {
		p.log.Warn().Str("op", op).Msg(msg)
	}
}

// quantMetadata builds C7's input from whatever structured signals the
// adapter attached to the event. GDELT is the only source currently
// populating goldstein/tone; themes/mentions fall back to C7's own
// neutral-on-absence default when no adapter has supplied them yet.
func quantMetadata(e domain.Event) (scoring.SourceMetadata, bool) {
	var meta scoring.SourceMetadata
	has := false

	if e.Metadata != nil {
		if v, ok := e.Metadata["goldstein"].(float64); ok {
			meta.GoldsteinScale = &v
			has = true
		}
		if v, ok := e.Metadata["avg_tone"].(float64); ok {
			meta.AvgTone = &v
			has = true
		}
		if v, ok := e.Metadata["num_mentions"].(float64); ok {
			n := int(v)
			meta.NumMentions = &n
			has = true
		}
	}
	if len(e.Themes) > 0 {
		meta.Themes = e.Themes
		has = true
	}
	return meta, has
}

// analyzeContext renders the analysis context object -- source,
// event_type, timestamp, and C7's score when available -- as the
// AnalyzeInput.Context string folded into the prompt.
func analyzeContext(e domain.Event, quantScore *float64) string {
	ctx := fmt.Sprintf("source=%s event_type=%s timestamp=%s", e.Source, e.EventType, e.EventTimestamp.Format(time.RFC3339))
	if quantScore != nil {
		ctx += fmt.Sprintf(" quant_score=%.1f", *quantScore)
	}
	if e.CountryCode != "" {
		ctx += " country=" + e.CountryCode
	}
	return ctx
}

// namedEntity is one resolvable name collected from an event's LLM
// entity block or its source-provided actors.
type namedEntity struct {
	Name       string
	EntityType domain.EntityType
	Relevance  float64
}

// collectEntityNames merges C8's extracted people/organizations with
// the event's source-provided actors, fuzzy-deduping an actor name
// against any already-collected LLM name at a 0.85 Jaro-Winkler
// threshold so the same real-world entity observed under two spellings
// isn't mentioned twice.
func collectEntityNames(e domain.Event) []namedEntity {
	const actorDedupThreshold = 0.85

	var out []namedEntity
	for _, person := range e.LLMAnalysis.Entities.People {
		if person.Name == "" {
			continue
		}
		out = append(out, namedEntity{Name: person.Name, EntityType: domain.EntityPerson, Relevance: person.Relevance})
	}
	for _, org := range e.LLMAnalysis.Entities.Organizations {
		if org.Name == "" {
			continue
		}
		out = append(out, namedEntity{Name: org.Name, EntityType: domain.EntityOrganization, Relevance: org.Relevance})
	}

	addActor := func(a *domain.Actor) {
		if a == nil || a.Name == "" {
			return
		}
		for _, existing := range out {
			if entity.SimilarNames(a.Name, existing.Name) >= actorDedupThreshold {
				return
			}
		}
		out = append(out, namedEntity{Name: a.Name, EntityType: actorEntityType(a.Type), Relevance: 1.0})
	}
	addActor(e.Actor1)
	addActor(e.Actor2)

	return out
}

// actorEntityType maps the domain's actor classification onto C12's
// resolvable entity-type vocabulary.
func actorEntityType(t domain.ActorType) domain.EntityType {
	switch t {
	case domain.ActorGovernment:
		return domain.EntityGovernment
	case domain.ActorCorporate, domain.ActorMilitary, domain.ActorRebel:
		return domain.EntityOrganization
	default:
		return domain.EntityPerson
	}
}
