package cache

import (
	"context"
	"encoding/json"
	"time"

	"stockbridge/internal/domain"

	"github.com/redis/go-redis/v9"
)

const defaultQuoteTTL = 30 * time.Second

// QuoteCache keeps the latest quote per code in Redis with a short TTL.
// A nil QuoteCache is valid and behaves as an always-empty cache.
type QuoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewQuoteCache(client *redis.Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = defaultQuoteTTL
	}
	return &QuoteCache{client: client, ttl: ttl}
}

func quoteKey(code string) string {
	return "quote:" + code
}

func (c *QuoteCache) Get(ctx context.Context, codes []string) (map[string]*domain.Quote, error) {
	found := make(map[string]*domain.Quote, len(codes))
	if c == nil || c.client == nil || len(codes) == 0 {
		return found, nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = quoteKey(code)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var q domain.Quote
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			continue
		}
		found[codes[i]] = &q
	}
	return found, nil
}

func (c *QuoteCache) Set(ctx context.Context, quotes []*domain.Quote) error {
	if c == nil || c.client == nil || len(quotes) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, q := range quotes {
		raw, err := json.Marshal(q)
		if err != nil {
			return err
		}
		pipe.Set(ctx, quoteKey(q.Code), raw, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
