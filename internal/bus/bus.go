package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// dlqSuffix names a topic's dead-letter stream.
const dlqSuffix = ":dlq"

// Deduper is the at-least-once dedup port. Consume calls it with the
// envelope's message id as the dedup key; a nil Deduper disables the
// check.
type Deduper interface {
	Seen(ctx context.Context, dedupKey string) (bool, error)
	MarkSeen(ctx context.Context, dedupKey string) error
}

// Bus publishes to and consumes from Redis Streams. Its retry-queue/
// in-flight-tracking/select-loop shape is generalized from an
// in-process work queue to a durable, multi-consumer stream.
type Bus struct {
	rdb        *redis.Client
	log        zerolog.Logger
	maxRetries int
}

// New builds a Bus over an already-connected client.
func New(rdb *redis.Client, log zerolog.Logger, maxRetries int) *Bus {
	return &Bus{rdb: rdb, log: log, maxRetries: maxRetries}
}

// Publish wraps payload in the managed-queue envelope and appends it to
// topic's stream. Returns the envelope's message id.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) (string, error) {
	env, err := Wrap(payload, time.Now())
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("bus: marshal envelope: %w", err)
	}
	if err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{"envelope": raw},
	}).Err(); err != nil {
		return "", fmt.Errorf("bus: publish to %s: %w", topic, err)
	}
	return env.Message.MessageID, nil
}

// EnsureGroup creates topic's consumer group if it doesn't already
// exist, creating the stream itself (MKSTREAM) when absent. A new group
// starts at the beginning of the stream, so messages published before
// the first consumer attached are still delivered.
func (b *Bus) EnsureGroup(ctx context.Context, topic, group string) error {
	err := b.rdb.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("bus: create group %s/%s: %w", topic, group, err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && len(err.Error()) >= len("BUSYGROUP") && err.Error()[:9] == "BUSYGROUP"
}

// dlqTopic returns topic's dead-letter stream name.
func dlqTopic(topic string) string {
	return topic + dlqSuffix
}
