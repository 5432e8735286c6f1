package histcache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"StockTracker/internal/model"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "history:"

// Redis is a Cache backed by Redis. Entries expire server-side.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (r *Redis) Get(ctx context.Context, symbol string) (*model.History, bool) {
	data, err := r.client.Get(ctx, keyPrefix+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Printf("[WARN] history cache get %s: %v", symbol, err)
		return nil, false
	}
	var h model.History
	if err := json.Unmarshal(data, &h); err != nil {
		log.Printf("[WARN] history cache entry %s unreadable: %v", symbol, err)
		return nil, false
	}
	return &h, true
}

func (r *Redis) Set(ctx context.Context, symbol string, h *model.History) {
	if h == nil {
		return
	}
	data, err := json.Marshal(h)
	if err != nil {
		log.Printf("[WARN] history cache encode %s: %v", symbol, err)
		return
	}
	if err := r.client.Set(ctx, keyPrefix+symbol, data, r.ttl).Err(); err != nil {
		log.Printf("[WARN] history cache set %s: %v", symbol, err)
	}
}
