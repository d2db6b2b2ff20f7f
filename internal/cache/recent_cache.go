package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"fruitfresh/internal/model"
)

const (
	recentKey           = "fruit:predictions:recent"
	recentGenerationKey = "fruit:predictions:recent:gen"
)

// RecentCache keeps the newest predictions in a capped redis list. The list
// is only written by Replace, and only when no Invalidate happened since the
// caller read Generation, so a present key never holds a stale snapshot.
type RecentCache struct {
	client *redisv9.Client
	size   int
	ttl    time.Duration
}

func NewRecentCache(client *redisv9.Client, size int, ttl time.Duration) *RecentCache {
	if size <= 0 {
		size = 50
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RecentCache{
		client: client,
		size:   size,
		ttl:    ttl,
	}
}

func (c *RecentCache) Size() int {
	return c.size
}

// Recent returns up to limit records, newest first. hit is false when the
// list is absent or limit exceeds what the cache holds.
func (c *RecentCache) Recent(ctx context.Context, limit int) ([]model.PredictionRecord, bool, error) {
	if limit <= 0 || limit > c.size {
		return nil, false, nil
	}
	exists, err := c.client.Exists(ctx, recentKey).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis check recent predictions failed: %w", err)
	}
	if exists == 0 {
		return nil, false, nil
	}

	raw, err := c.client.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis read recent predictions failed: %w", err)
	}
	records := make([]model.PredictionRecord, 0, len(raw))
	for _, item := range raw {
		var record model.PredictionRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, false, fmt.Errorf("unmarshal cached prediction failed: %w", err)
		}
		records = append(records, record)
	}
	return records, true, nil
}

// Generation returns the invalidation counter. Read it before querying the
// database and pass it to Replace.
func (c *RecentCache) Generation(ctx context.Context) (int64, error) {
	gen, err := readGeneration(ctx, c.client)
	if err != nil {
		return 0, fmt.Errorf("redis read recent generation failed: %w", err)
	}
	return gen, nil
}

func readGeneration(ctx context.Context, cmd redisv9.Cmdable) (int64, error) {
	gen, err := cmd.Get(ctx, recentGenerationKey).Int64()
	if errors.Is(err, redisv9.Nil) {
		return 0, nil
	}
	return gen, err
}

// Replace overwrites the list with records, which must be newest first. It
// is a no-op returning false when the generation moved past gen.
func (c *RecentCache) Replace(ctx context.Context, gen int64, records []model.PredictionRecord) (bool, error) {
	if len(records) > c.size {
		records = records[:c.size]
	}
	values := make([]interface{}, 0, len(records))
	for _, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return false, fmt.Errorf("marshal prediction cache failed: %w", err)
		}
		values = append(values, payload)
	}

	applied := false
	err := c.client.Watch(ctx, func(tx *redisv9.Tx) error {
		current, err := readGeneration(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
			pipe.Del(ctx, recentKey)
			if len(values) > 0 {
				pipe.RPush(ctx, recentKey, values...)
				pipe.Expire(ctx, recentKey, c.ttl)
			}
			return nil
		})
		if err != nil {
			return err
		}
		applied = true
		return nil
	}, recentGenerationKey)
	if errors.Is(err, redisv9.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis replace recent predictions failed: %w", err)
	}
	return applied, nil
}

// Invalidate drops the list and bumps the generation so in-flight refills
// built from older snapshots are discarded.
func (c *RecentCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Incr(ctx, recentGenerationKey)
		pipe.Del(ctx, recentKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate recent predictions failed: %w", err)
	}
	return nil
}
