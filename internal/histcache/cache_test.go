package histcache

import (
	"context"
	"testing"
	"time"

	"StockTracker/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHistory() *model.History {
	return &model.History{
		Symbol:       "AAPL",
		DailyData:    []model.DailyBar{{Symbol: "AAPL", Date: "2024-05-01", Close: 170.5}},
		GranularData: []model.IntradayBar{{Symbol: "AAPL", DateTime: "2024-05-01T13:30:00Z", Close: 170.1}},
	}
}

func TestMemory_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory(DefaultTTL, func() time.Time { return now })

	_, ok := c.Get(ctx, "AAPL")
	assert.False(t, ok)

	c.Set(ctx, "AAPL", sampleHistory())
	now = now.Add(23 * time.Hour)
	h, ok := c.Get(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, 170.5, h.DailyData[0].Close)

	now = now.Add(time.Hour)
	_, ok = c.Get(ctx, "AAPL")
	assert.False(t, ok, "an entry exactly TTL old is expired")
	assert.Zero(t, c.Len(), "expired entries are evicted on read")
}

func TestRedis_RoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedis(client, time.Hour)

	_, ok := c.Get(ctx, "AAPL")
	assert.False(t, ok)

	c.Set(ctx, "AAPL", sampleHistory())
	assert.True(t, mr.Exists("history:AAPL"))
	assert.Equal(t, time.Hour, mr.TTL("history:AAPL"))

	h, ok := c.Get(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, sampleHistory(), h)

	mr.FastForward(time.Hour)
	_, ok = c.Get(ctx, "AAPL")
	assert.False(t, ok)
}

func TestRedis_CorruptEntryIsAMiss(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	require.NoError(t, mr.Set("history:MSFT", "not json"))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, ok := NewRedis(client, 0).Get(context.Background(), "MSFT")
	assert.False(t, ok)
}
