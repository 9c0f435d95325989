package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"kangaroo/internal/application/port"
	"kangaroo/internal/domain/model"
)

// Cache keeps the last committed batch in a redis hash, field = ticker.
// It is a read-through accelerator for the API; the store stays the truth.
type Cache struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, key: prefix + ":quotes", ttl: ttl}
}

func (c *Cache) SetBatch(ctx context.Context, stocks []model.Stock) error {
	if len(stocks) == 0 {
		return nil
	}
	fields := make(map[string]any, len(stocks))
	for _, st := range stocks {
		b, err := json.Marshal(st)
		if err != nil {
			return err
		}
		fields[st.Ticker] = string(b)
	}

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, c.key, fields)
	if c.ttl > 0 {
		pipe.Expire(ctx, c.key, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Cache) Get(ctx context.Context, ticker string) (*model.Stock, bool, error) {
	raw, err := c.rdb.HGet(ctx, c.key, ticker).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var st model.Stock
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, false, err
	}
	return &st, true, nil
}

func (c *Cache) List(ctx context.Context) ([]model.Stock, error) {
	raw, err := c.rdb.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	stocks := make([]model.Stock, 0, len(raw))
	for _, v := range raw {
		var st model.Stock
		if err := json.Unmarshal([]byte(v), &st); err != nil {
			return nil, err
		}
		stocks = append(stocks, st)
	}
	sort.Slice(stocks, func(i, j int) bool {
		if stocks[i].MarketCapVal != stocks[j].MarketCapVal {
			return stocks[i].MarketCapVal > stocks[j].MarketCapVal
		}
		return stocks[i].Ticker < stocks[j].Ticker
	})
	return stocks, nil
}

var _ port.QuoteCache = (*Cache)(nil)
