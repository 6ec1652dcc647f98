package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// reclaimIdle is how long a message must sit unacked before another
// consumer may reclaim it for retry.
const reclaimIdle = 30 * time.Second

// Handler processes one decoded message; a non-nil error leaves the
// message pending for redelivery (up to maxRetries) rather than acking.
type Handler func(ctx context.Context, env Envelope) error

// Consume runs a blocking read loop against topic's consumer group,
// claiming up to prefetch new messages at a time (the per-consumer
// concurrency cap), then reclaiming any message idle longer
// than reclaimIdle before re-delivering it. A message whose delivery
// count exceeds maxRetries is moved to the topic's DLQ stream and
// acked off the main stream so it stops blocking the group. Blocks
// until ctx is canceled.
func (b *Bus) Consume(ctx context.Context, topic, group, consumer string, prefetch int64, dedup Deduper, handler Handler) error {
	if err := b.EnsureGroup(ctx, topic, group); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := b.reclaimStale(ctx, topic, group, consumer, handler, dedup); err != nil {
			b.log.Warn().Err(err).Str("topic", topic).Msg("bus: reclaim pass failed")
		}

		streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{topic, ">"},
			Count:    prefetch,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.handleOne(ctx, topic, group, msg, dedup, handler)
			}
		}
	}
}

func (b *Bus) handleOne(ctx context.Context, topic, group string, msg redis.XMessage, dedup Deduper, handler Handler) {
	env, err := decodeEnvelope(msg)
	if err != nil {
		b.log.Error().Err(err).Str("id", msg.ID).Msg("bus: undecodable message, dead-lettering")
		b.deadLetter(ctx, topic, group, msg)
		return
	}

	if dedup != nil {
		seen, err := dedup.Seen(ctx, env.Message.MessageID)
		if err != nil {
			b.log.Warn().Err(err).Msg("bus: dedup check failed, processing anyway")
		} else if seen {
			b.rdb.XAck(ctx, topic, group, msg.ID)
			return
		}
	}

	if err := handler(ctx, env); err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Str("id", msg.ID).Msg("bus: handler failed, leaving pending for retry")
		return
	}

	if dedup != nil {
		if err := dedup.MarkSeen(ctx, env.Message.MessageID); err != nil {
			b.log.Warn().Err(err).Msg("bus: failed to record dedup marker")
		}
	}
	b.rdb.XAck(ctx, topic, group, msg.ID)
}

// reclaimStale finds messages idle longer than reclaimIdle, re-attempts
// ones under maxRetries, and dead-letters the rest.
func (b *Bus) reclaimStale(ctx context.Context, topic, group, consumer string, handler Handler, dedup Deduper) error {
	pending, err := b.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: topic,
		Group:  group,
		Idle:   reclaimIdle,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	for _, p := range pending {
		if int(p.RetryCount) > b.maxRetries {
			b.deadLetterByID(ctx, topic, group, p.ID)
			continue
		}

		claimed, err := b.rdb.XClaim(ctx, &redis.XClaimArgs{
			Stream:   topic,
			Group:    group,
			Consumer: consumer,
			MinIdle:  reclaimIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			continue
		}
		for _, msg := range claimed {
			b.handleOne(ctx, topic, group, msg, dedup, handler)
		}
	}
	return nil
}

func (b *Bus) deadLetter(ctx context.Context, topic, group string, msg redis.XMessage) {
	b.rdb.XAdd(ctx, &redis.XAddArgs{Stream: dlqTopic(topic), Values: msg.Values})
	b.rdb.XAck(ctx, topic, group, msg.ID)
}

func (b *Bus) deadLetterByID(ctx context.Context, topic, group, id string) {
	entries, err := b.rdb.XRange(ctx, topic, id, id).Result()
	if err != nil || len(entries) == 0 {
		b.rdb.XAck(ctx, topic, group, id)
		return
	}
	b.deadLetter(ctx, topic, group, entries[0])
}

func decodeEnvelope(msg redis.XMessage) (Envelope, error) {
	raw, ok := msg.Values["envelope"].(string)
	if !ok {
		return Envelope{}, errors.New("bus: message missing envelope field")
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
