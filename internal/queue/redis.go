package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisQueue implements a Redis Streams + consumer group job queue for
// thumbnail generation, with a cancellation set so a reset session can
// abandon a still-queued job.
type RedisQueue struct {
	client       *redis.Client
	Stream       string
	Group        string
	CancelKey    string
	pollInterval time.Duration
}

// NewRedisQueue connects to Redis and ensures the stream and group exist.
func NewRedisQueue(redisURL, stream, group string, poll time.Duration) (*RedisQueue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	q := &RedisQueue{
		client:       c,
		Stream:       stream,
		Group:        group,
		CancelKey:    "sessions:cancelled:set",
		pollInterval: poll,
	}
	// Ensure consumer group exists (MKSTREAM creates stream if missing)
	if err := c.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil && !isBusyGroupErr(err) {
		return nil, fmt.Errorf("xgroup create: %w", err)
	}
	return q, nil
}

func isBusyGroupErr(err error) bool {
	if err == nil {
		return false
	}
	// go-redis surfaces BUSYGROUP as a generic error string from Redis
	return strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}

func (q *RedisQueue) Close() error { return q.client.Close() }

// Ping checks redis connectivity.
func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// Enqueue adds a job to the stream as a single-field entry {data: <json>}.
func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.Stream,
		Values: map[string]any{"data": string(payload)},
	}).Err()
}

// Dequeue reads one message from the consumer group and ACKs it. Returns nil
// payload when nothing arrived within the poll interval.
func (q *RedisQueue) Dequeue(ctx context.Context, consumer string) ([]byte, error) {
	res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.Group,
		Consumer: consumer,
		Streams:  []string{q.Stream, ">"},
		Count:    1,
		Block:    q.pollInterval,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, stream := range res {
		for _, msg := range stream.Messages {
			_ = q.client.XAck(ctx, q.Stream, q.Group, msg.ID).Err()
			if data, ok := msg.Values["data"].(string); ok {
				return []byte(data), nil
			}
		}
	}
	return nil, nil
}

// CancelSession marks a session so its queued job is skipped.
func (q *RedisQueue) CancelSession(ctx context.Context, sessionID string) error {
	return q.client.SAdd(ctx, q.CancelKey, sessionID).Err()
}

// IsCancelled reports whether a session's job was abandoned.
func (q *RedisQueue) IsCancelled(ctx context.Context, sessionID string) (bool, error) {
	return q.client.SIsMember(ctx, q.CancelKey, sessionID).Result()
}

// ClearCancelled removes the cancellation mark, e.g. when the session id is
// reused after a reset.
func (q *RedisQueue) ClearCancelled(ctx context.Context, sessionID string) error {
	return q.client.SRem(ctx, q.CancelKey, sessionID).Err()
}
