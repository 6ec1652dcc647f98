// Package pipeline implements C6's orchestrator half: the three
// bus.Consume loops binding the ingest/analyze/extract topics to the
// domain packages (severity, scoring, llm, entity, trending). The
// generic pub/sub primitives live in internal/bus; this package can't
// live there too without an import cycle (internal/storage's concrete
// ports satisfy both bus.Deduper and entity.Store/trending.MentionReader,
// so bus cannot import storage, and the orchestrator needs storage).
package pipeline

// AnalyzeMessage is the payload the ingest handler publishes to
// bus.TopicAnalyze: "{event_id, model_tier}".
type AnalyzeMessage struct {
	EventID   string `json:"event_id"`
	ModelTier string `json:"model_tier"`
	Reanalyze bool   `json:"reanalyze,omitempty"`
}

// ExtractMessage is the payload the analyze handler publishes to
// bus.TopicExtract: "{event_id}".
type ExtractMessage struct {
	EventID string `json:"event_id"`
}
