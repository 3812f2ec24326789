package vocabulary

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	apperrors "hr-assistant/internal/common/errors"
	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/common/metrics"
	"hr-assistant/internal/models"
)

// ValueSource loads the distinct values of a column from storage.
type ValueSource interface {
	DistinctValues(ctx context.Context, column models.Column) ([]string, error)
}

// Tier is an optional shared second-level cache.
type Tier interface {
	Get(ctx context.Context, column models.Column) ([]string, bool, error)
	Set(ctx context.Context, column models.Column, values []string) error
}

// Cache is a read-through cache of per-column distinct values. Each column is
// loaded at most once per process (concurrent first loads may race; the
// results are identical) and kept as an immutable sorted snapshot.
type Cache struct {
	source ValueSource
	tier   Tier
	logger logger.Logger

	mu        sync.RWMutex
	snapshots map[models.Column][]string
}

func NewCache(source ValueSource, tier Tier, log logger.Logger) *Cache {
	return &Cache{
		source:    source,
		tier:      tier,
		logger:    log.With(map[string]interface{}{"component": "vocabulary"}),
		snapshots: make(map[models.Column][]string),
	}
}

// Values returns the snapshot for column. The returned slice is shared and
// must not be modified.
func (c *Cache) Values(ctx context.Context, column models.Column) ([]string, error) {
	c.mu.RLock()
	snap, ok := c.snapshots[column]
	c.mu.RUnlock()
	if ok {
		return snap, nil
	}

	values, tier, err := c.load(ctx, column)
	if err != nil {
		return nil, err
	}
	metrics.VocabularyLoads.WithLabelValues(string(column), tier).Inc()

	c.mu.Lock()
	if existing, ok := c.snapshots[column]; ok {
		values = existing
	} else {
		c.snapshots[column] = values
	}
	c.mu.Unlock()

	return values, nil
}

func (c *Cache) load(ctx context.Context, column models.Column) ([]string, string, error) {
	if c.tier != nil {
		values, found, err := c.tier.Get(ctx, column)
		if err != nil {
			c.logger.Warn("vocabulary tier read failed", map[string]interface{}{
				"column": string(column),
				"error":  err.Error(),
			})
		} else if found {
			return values, "redis", nil
		}
	}

	values, err := c.source.DistinctValues(ctx, column)
	if err != nil {
		return nil, "", apperrors.NewVocabularyLoadFailedError(string(column), err)
	}
	values = snapshot(values)

	if c.tier != nil {
		if err := c.tier.Set(ctx, column, values); err != nil {
			c.logger.Warn("vocabulary tier write failed", map[string]interface{}{
				"column": string(column),
				"error":  err.Error(),
			})
		}
	}
	return values, "storage", nil
}

// Warm loads the given columns concurrently.
func (c *Cache) Warm(ctx context.Context, columns []models.Column) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, col := range columns {
		col := col
		g.Go(func() error {
			values, err := c.Values(gctx, col)
			if err != nil {
				return err
			}
			c.logger.Debug("vocabulary warmed", map[string]interface{}{
				"column": string(col),
				"values": len(values),
			})
			return nil
		})
	}
	return g.Wait()
}

// Loaded reports whether column already has a snapshot.
func (c *Cache) Loaded(column models.Column) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.snapshots[column]
	return ok
}

func snapshot(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// RedisTier stores snapshots as JSON arrays under prefix+column.
type RedisTier struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisTier(client *redis.Client, prefix string, ttl time.Duration) *RedisTier {
	return &RedisTier{client: client, prefix: prefix, ttl: ttl}
}

func (t *RedisTier) key(column models.Column) string {
	return t.prefix + string(column)
}

func (t *RedisTier) Get(ctx context.Context, column models.Column) ([]string, bool, error) {
	val, err := t.client.Get(ctx, t.key(column)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var values []string
	if err := json.Unmarshal([]byte(val), &values); err != nil {
		return nil, false, fmt.Errorf("decode cached values: %w", err)
	}
	return values, true, nil
}

func (t *RedisTier) Set(ctx context.Context, column models.Column, values []string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return t.client.Set(ctx, t.key(column), data, t.ttl).Err()
}
