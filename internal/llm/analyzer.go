// Package llm implements C8: a single structured-analysis call per event,
// cached, with graceful degradation to a neutral object on failure.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/stdin/venezuelawatch/internal/domain"
)

// Tier selects which Claude model answers the analysis call. Cheaper
// tiers are used for routine low-severity events; premium is reserved
// for events C3 already flagged P1, so the extra cost only lands where
// the deterministic classifier has signaled it matters.
type Tier string

const (
	TierFast     Tier = "fast"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

var tierModel = map[Tier]string{
	TierFast:     "claude-3-5-haiku-latest",
	TierStandard: "claude-sonnet-4-5",
	TierPremium:  "claude-opus-4-5",
}

// cacheTTL is the reuse window for an identical analysis request. 24h:
// re-ingesting the same title/content pair within a day must not
// re-trigger a paid model call.
const cacheTTL = 24 * time.Hour

const maxRetries = 2

// Cache is the small byte-oriented port the analyzer's result cache
// reads/writes through; the concrete implementation is Redis-backed.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Analyzer is the C8 port: given raw event text, return the structured
// intelligence bundle every downstream scorer and resolver consumes.
type Analyzer interface {
	Analyze(ctx context.Context, in AnalyzeInput) (*domain.LLMAnalysis, error)
}

// AnalyzeInput is the analyzer's request: title/content are the raw
// event text, context is optional surrounding metadata (country, source,
// prior related events) folded into the prompt, tier picks the model.
type AnalyzeInput struct {
	Title   string
	Content string
	Context string
	Tier    Tier
}

// ClaudeAnalyzer implements Analyzer against the Anthropic Messages API,
// wrapping the external client behind an interface the same way the
// rest of this codebase wraps external clients (brokers, queues,
// stores) instead of depending on them concretely.
type ClaudeAnalyzer struct {
	client anthropic.Client
	cache  Cache
	log    zerolog.Logger
}

// NewClaudeAnalyzer builds a ClaudeAnalyzer. apiKey may be empty in dev
// mode; every call then falls straight to the neutral fallback object.
func NewClaudeAnalyzer(apiKey string, cache Cache, log zerolog.Logger) *ClaudeAnalyzer {
	return &ClaudeAnalyzer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		cache:  cache,
		log:    log,
	}
}

func (a *ClaudeAnalyzer) Analyze(ctx context.Context, in AnalyzeInput) (*domain.LLMAnalysis, error) {
	key := cacheKey(in)

	if raw, ok, err := a.cache.Get(ctx, key); err != nil {
		a.log.Warn().Err(err).Msg("llm: cache read failed, proceeding without it")
	} else if ok {
		var cached domain.LLMAnalysis
		if err := json.Unmarshal(raw, &cached); err == nil {
			cached.FromCache = true
			return &cached, nil
		}
	}

	model, ok := tierModel[in.Tier]
	if !ok {
		model = tierModel[TierFast]
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		analysis, err := a.callOnce(ctx, model, in)
		if err == nil {
			if raw, marshalErr := json.Marshal(analysis); marshalErr == nil {
				if cacheErr := a.cache.Set(ctx, key, raw, cacheTTL); cacheErr != nil {
					a.log.Warn().Err(cacheErr).Msg("llm: cache write failed")
				}
			}
			return analysis, nil
		}
		lastErr = err
		a.log.Warn().Err(err).Int("attempt", attempt).Msg("llm: analysis call failed, retrying")
	}

	a.log.Error().Err(lastErr).Msg("llm: exhausted retries, returning neutral fallback")
	return neutralFallback(), nil
}

func (a *ClaudeAnalyzer) callOnce(ctx context.Context, model string, in AnalyzeInput) (*domain.LLMAnalysis, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(in))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic call: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	analysis, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("llm: parse response: %w", err)
	}
	return analysis, nil
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON pulls a JSON object out of the model's response, tolerating
// a markdown code fence around it (models routinely add one despite
// instructions not to).
func extractJSON(text string) (*domain.LLMAnalysis, error) {
	body := text
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		body = m[1]
	}

	var analysis domain.LLMAnalysis
	if err := json.Unmarshal([]byte(body), &analysis); err != nil {
		return nil, fmt.Errorf("unparseable model output: %w", err)
	}
	return &analysis, nil
}

// neutralFallback is the degraded object returned when every retry has
// failed: a score of 50/neutral everywhere, which downstream hybrid
// scoring (C9) combines like any other analysis rather than propagating
// an error.
func neutralFallback() *domain.LLMAnalysis {
	return &domain.LLMAnalysis{
		Sentiment: domain.Sentiment{Score: 0, Label: "neutral", Confidence: 0},
		Summary:   domain.Summary{Short: "Analysis unavailable.", KeyPoints: []string{}},
		Risk:      domain.RiskAssessment{Score: 0.5, Level: "medium"},
		Urgency:   domain.UrgencyLow,
		Fallback:  true,
	}
}

func cacheKey(in AnalyzeInput) string {
	sum := sha256.Sum256([]byte(in.Title + "\x00" + in.Content + "\x00" + in.Context + "\x00" + string(in.Tier)))
	return "llm:analysis:" + hex.EncodeToString(sum[:])
}
