package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oebrowse/logging"
)

type memClient struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newMemClient() *memClient {
	return &memClient{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memClient) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memClient) Close() error { return nil }

func newTestStore(cl *memClient) *Store {
	s := New(Config{Client: redis.NewClient(&redis.Options{}), TTL: time.Hour, Logger: logging.NewNoopLogger()})
	s.client = cl
	return s
}

func TestStore_SaveLoad(t *testing.T) {
	cl := newMemClient()
	s := newTestStore(cl)
	ctx := context.Background()

	_, found, err := s.Load(ctx, "demo", "res.partner")
	require.NoError(t, err)
	assert.False(t, found)

	raw := map[string]any{"name": map[string]any{"type": "char"}, "parent_id": map[string]any{"type": "many2one", "relation": "res.partner"}}
	require.NoError(t, s.Save(ctx, "demo", "res.partner", raw))
	assert.Equal(t, time.Hour, cl.ttl["oebrowse:schema:demo:res.partner"])

	got, found, err := s.Load(ctx, "demo", "res.partner")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, raw, got)
}

func TestStore_CorruptEntry(t *testing.T) {
	cl := newMemClient()
	cl.data["oebrowse:schema:demo:x"] = "{not json"
	s := newTestStore(cl)

	_, found, err := s.Load(context.Background(), "demo", "x")
	require.NoError(t, err)
	assert.False(t, found)
}
