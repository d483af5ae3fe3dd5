package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/llmarxiv/internal/arxiv"
	"github.com/local/llmarxiv/internal/metrics"
)

// DefaultPaperTTL bounds how long metadata is reused. arXiv metadata only
// changes when a new version is posted.
const DefaultPaperTTL = 24 * time.Hour

// PaperCache caches arXiv lookups by identifier.
type PaperCache struct {
	client Backend
	ttl    time.Duration
}

func NewPaperCache(client Backend, ttl time.Duration) *PaperCache {
	if ttl <= 0 {
		ttl = DefaultPaperTTL
	}
	return &PaperCache{client: client, ttl: ttl}
}

func (c *PaperCache) key(id string) string { return fmt.Sprintf("arxiv:paper:%s", id) }

// Get returns the cached paper, or nil without error on a miss.
func (c *PaperCache) Get(ctx context.Context, id string) (*arxiv.Paper, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.IncCache("miss")
		return nil, nil
	}
	if err != nil {
		metrics.IncCache("error")
		return nil, err
	}
	var p arxiv.Paper
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// a bad entry is a miss; it is overwritten by the next Put
		metrics.IncCache("miss")
		return nil, nil
	}
	metrics.IncCache("hit")
	return &p, nil
}

func (c *PaperCache) Put(ctx context.Context, id string, p *arxiv.Paper) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(id), string(b), c.ttl).Err()
}

func (c *PaperCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}

func (c *PaperCache) Close() error { return c.client.Close() }
