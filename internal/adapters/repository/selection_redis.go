package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/studylog/core/internal/ports"
)

// RedisSelectionRepository stores one key per session plus a set per
// database listing the sessions that selected it.
//
//	<prefix>session:<id>       -> database file, expires with the cookie
//	<prefix>collection:<name>  -> set of session ids
type RedisSelectionRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSelectionRepository creates a Redis backed selection store. A zero
// ttl keeps selections forever.
func NewRedisSelectionRepository(client *redis.Client, prefix string, ttl time.Duration) ports.SelectionRepository {
	return &RedisSelectionRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSelectionRepository) sessionKey(sessionID string) string {
	return r.prefix + "session:" + sessionID
}

func (r *RedisSelectionRepository) indexKey(collection string) string {
	return r.prefix + "collection:" + collection
}

// Get retrieves a session's selection from its key
func (r *RedisSelectionRepository) Get(ctx context.Context, sessionID string) (string, bool, error) {
	collection, err := r.client.Get(ctx, r.sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get selection: %w", err)
	}
	return collection, true, nil
}

// Set stores a selection and moves the session between database indexes
func (r *RedisSelectionRepository) Set(ctx context.Context, sessionID, collection string) error {
	previous, _, err := r.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(sessionID), collection, r.ttl)
		if previous != "" && previous != collection {
			pipe.SRem(ctx, r.indexKey(previous), sessionID)
		}
		pipe.SAdd(ctx, r.indexKey(collection), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set selection: %w", err)
	}
	return nil
}

// Reassign moves the sessions indexed under from to to, keeping their TTLs
func (r *RedisSelectionRepository) Reassign(ctx context.Context, from, to string) (int64, error) {
	iter := r.client.SScan(ctx, r.indexKey(from), 0, "", 100).Iterator()

	var moved int64
	for iter.Next(ctx) {
		sessionID := iter.Val()
		current, ok, err := r.Get(ctx, sessionID)
		if err != nil {
			return moved, err
		}
		// expired sessions and ones that switched away are only unindexed
		if !ok || current != from {
			continue
		}
		_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.sessionKey(sessionID), to, redis.KeepTTL)
			pipe.SAdd(ctx, r.indexKey(to), sessionID)
			return nil
		})
		if err != nil {
			return moved, fmt.Errorf("reassign selection: %w", err)
		}
		moved++
	}
	if err := iter.Err(); err != nil {
		return moved, fmt.Errorf("scan selections: %w", err)
	}

	if err := r.client.Del(ctx, r.indexKey(from)).Err(); err != nil {
		return moved, fmt.Errorf("drop selection index: %w", err)
	}
	return moved, nil
}

// Ping checks the Redis connection
func (r *RedisSelectionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (r *RedisSelectionRepository) Close() error {
	return r.client.Close()
}
