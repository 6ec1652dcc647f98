// Package bus implements C6: durable, at-least-once ingest/analyze/
// extract topics over Redis Streams, framed under the same managed-
// queue envelope shape the original GCP Pub/Sub deployment used (see
// original_source/backend/data_pipeline/services/pubsub_client.py),
// so a future swap to a managed queue only touches this package.
package bus

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic names for the ingest/analyze/extract pipeline stages.
const (
	TopicIngest          = "ingest-event"
	TopicAnalyze         = "analyze-event"
	TopicExtract         = "extract-entities"
	TopicEventAnalysis   = "event-analysis" // compat alias of TopicAnalyze
)

// Envelope mirrors the managed-queue wire shape:
// {message: {data: base64(json), messageId, publishTime}}.
type Envelope struct {
	Message EnvelopeMessage `json:"message"`
}

// EnvelopeMessage is the envelope's inner payload.
type EnvelopeMessage struct {
	Data        string    `json:"data"` // base64-encoded JSON
	MessageID   string    `json:"messageId"`
	PublishTime time.Time `json:"publishTime"`
}

// Wrap marshals payload to JSON and wraps it in an Envelope with a fresh
// message id and the current timestamp.
func Wrap(payload any, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("bus: marshal payload: %w", err)
	}
	return Envelope{Message: EnvelopeMessage{
		Data:        base64.StdEncoding.EncodeToString(raw),
		MessageID:   uuid.NewString(),
		PublishTime: now,
	}}, nil
}

// Unwrap decodes an Envelope's base64 payload into dst.
func (e Envelope) Unwrap(dst any) error {
	raw, err := base64.StdEncoding.DecodeString(e.Message.Data)
	if err != nil {
		return fmt.Errorf("bus: decode envelope data: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("bus: unmarshal envelope payload: %w", err)
	}
	return nil
}
