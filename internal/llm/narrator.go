package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

// ChatMessage is one turn of a /chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatDelta is one streamed fragment of a Narrator response. Done marks
// the final, textless frame; Err carries a stream failure so the caller
// can forward it as an SSE error frame instead of silently truncating.
type ChatDelta struct {
	Text string
	Done bool
	Err  error
}

// Narrator is the freeform conversational port /chat and the graph
// narrative endpoint share. Unlike Analyzer, a Narrator reply has no
// closed schema to parse and nothing worth caching, so it gets its own
// narrower interface rather than overloading Analyzer's contract.
type Narrator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Stream(ctx context.Context, messages []ChatMessage) (<-chan ChatDelta, error)
}

// ClaudeNarrator implements Narrator directly over the Anthropic
// Messages API, reusing ClaudeAnalyzer's client construction but none
// of its cache/retry/schema-extraction machinery.
type ClaudeNarrator struct {
	client anthropic.Client
	model  string
	log    zerolog.Logger
}

// NewClaudeNarrator builds a ClaudeNarrator against model (the daemon
// passes cfg.LLMModel, the fast-tier model by default; narration isn't
// severity-routed the way C8 is).
func NewClaudeNarrator(apiKey, model string, log zerolog.Logger) *ClaudeNarrator {
	return &ClaudeNarrator{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		log:    log,
	}
}

// Complete runs a single non-streaming turn, for the graph narrative
// handler's one-shot "describe this relationship" call.
func (n *ClaudeNarrator) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(n.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := n.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: narrator complete: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// Stream runs a multi-turn conversation and forwards each text delta on
// the returned channel, closing it once the model's turn ends or the
// stream errors. The caller (the /chat SSE handler) drains it frame by
// frame rather than waiting for the full reply.
func (n *ClaudeNarrator) Stream(ctx context.Context, messages []ChatMessage) (<-chan ChatDelta, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(n.model),
		MaxTokens: 2048,
		Messages:  toAnthropicMessages(messages),
	}

	stream := n.client.Messages.NewStreaming(ctx, params)
	out := make(chan ChatDelta, 16)

	go func() {
		defer close(out)

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				out <- ChatDelta{Err: fmt.Errorf("llm: narrator stream accumulate: %w", err)}
				return
			}
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
					out <- ChatDelta{Text: text.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- ChatDelta{Err: fmt.Errorf("llm: narrator stream: %w", err)}
			return
		}
		out <- ChatDelta{Done: true}
	}()

	return out, nil
}

func toAnthropicMessages(messages []ChatMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
