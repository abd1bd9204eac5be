package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.failErr != nil {
		return redis.NewStringResult("", f.failErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.failErr != nil {
		return redis.NewStatusResult("", f.failErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.failErr != nil {
		return redis.NewIntResult(0, f.failErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	repo := NewRedisRepository(fake, 0)

	_, err := repo.Load(ctx, "c1")
	assert.ErrorIs(t, err, ErrCartNotFound)

	c := New("c1", DefaultRules())
	require.NoError(t, c.Add(kaos("M", 2, 10)))
	require.NoError(t, repo.Save(ctx, c.Snapshot()))

	assert.Contains(t, fake.data, "cart:c1")
	assert.Equal(t, DefaultTTL, fake.ttls["cart:c1"])

	snap, err := repo.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.Items(), snap.Items)

	require.NoError(t, repo.Delete(ctx, "c1"))
	_, err = repo.Load(ctx, "c1")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestRedisRepository_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.failErr = errors.New("connection refused")
	repo := NewRedisRepository(fake, time.Hour)

	_, err := repo.Load(ctx, "c1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCartNotFound)

	assert.Error(t, repo.Save(ctx, Snapshot{ID: "c1"}))
	assert.Error(t, repo.Delete(ctx, "c1"))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("http://not-redis")
	assert.Error(t, err)

	client, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, client.Options().DB)
	_ = client.Close()
}

func TestMemoryRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(time.Hour)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	c := New("c1", DefaultRules())
	require.NoError(t, c.Add(kaos("M", 1, 10)))
	require.NoError(t, repo.Save(ctx, c.Snapshot()))

	snap, err := repo.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)

	now = now.Add(2 * time.Hour)
	_, err = repo.Load(ctx, "c1")
	assert.ErrorIs(t, err, ErrCartNotFound)
}
