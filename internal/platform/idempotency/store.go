// Package idempotency deduplicates mutations that carry a client generated key
// within a fixed window.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight means another request with the same key is still running.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

const pendingMarker = "pending"

// Response is the stored outcome replayed to later duplicates.
type Response struct {
	Status      int             `json:"status"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

type Store interface {
	// Reserve claims key. It returns the stored response when the key already
	// completed, ErrInFlight when it is reserved but not completed, and
	// nil, nil when the caller now owns the key.
	Reserve(ctx context.Context, key string) (*Response, error)
	Complete(ctx context.Context, key string, resp *Response) error
	// Release frees a reservation so the client may retry, used when the first attempt failed.
	Release(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
	window time.Duration
}

func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	return &RedisStore{client: client, window: window}
}

func (s *RedisStore) Reserve(ctx context.Context, key string) (*Response, error) {
	ok, err := s.client.SetNX(ctx, redisKey(key), pendingMarker, s.window).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	val, err := s.client.Get(ctx, redisKey(key)).Result()
	if err == redis.Nil {
		// Expired between SETNX and GET; try once more.
		ok, err = s.client.SetNX(ctx, redisKey(key), pendingMarker, s.window).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, nil
		}
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, err
	}
	return decode(val)
}

func (s *RedisStore) Complete(ctx context.Context, key string, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(key), data, s.window).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKey(key)).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func redisKey(key string) string {
	return "idem:" + key
}

func decode(val string) (*Response, error) {
	if val == pendingMarker {
		return nil, ErrInFlight
	}
	var resp Response
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is the single process store used when no Redis address is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	window  time.Duration
	now     func() time.Time
}

func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), window: window, now: time.Now}
}

func (s *MemoryStore) Reserve(_ context.Context, key string) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return decode(e.value)
	}
	s.entries[key] = memoryEntry{value: pendingMarker, expiresAt: now.Add(s.window)}
	s.sweep(now)
	return nil, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: string(data), expiresAt: s.now().Add(s.window)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// sweep drops expired entries. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
