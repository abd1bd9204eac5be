package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultTTL is how long an untouched cart is kept.
const DefaultTTL = 7 * 24 * time.Hour

// ErrCartNotFound is returned when no snapshot exists for a cart ID.
var ErrCartNotFound = errors.New("cart not found")

// Repository persists cart snapshots by cart ID.
type Repository interface {
	Load(ctx context.Context, id string) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
	Delete(ctx context.Context, id string) error
}

// redisClient is the subset of *redis.Client the repository needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRepository stores snapshots as JSON strings with a sliding TTL.
type RedisRepository struct {
	client redisClient
	ttl    time.Duration
	prefix string
}

// NewRedisRepository creates a repository over client.
func NewRedisRepository(client redisClient, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRepository{client: client, ttl: ttl, prefix: "cart:"}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + id
}

func (r *RedisRepository) Load(ctx context.Context, id string) (Snapshot, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrCartNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load cart %s: %w", id, err)
	}
	return UnmarshalSnapshot(data)
}

func (r *RedisRepository) Save(ctx context.Context, s Snapshot) error {
	data, err := MarshalSnapshot(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save cart %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete cart %s: %w", id, err)
	}
	return nil
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryRepository keeps snapshots in process, for tests and single-node dev.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryRepository creates an in-memory repository.
func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryRepository{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *MemoryRepository) Load(_ context.Context, id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return Snapshot{}, ErrCartNotFound
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, id)
		return Snapshot{}, ErrCartNotFound
	}
	return UnmarshalSnapshot(e.data)
}

func (m *MemoryRepository) Save(_ context.Context, s Snapshot) error {
	data, err := MarshalSnapshot(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[s.ID] = memoryEntry{data: data, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}
