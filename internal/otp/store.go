package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is keyed code storage with expiry. Get distinguishes a code that was
// never issued (ErrNotFound) from one past its expiry (ErrExpired); an
// expired record is removed on read.
type Store interface {
	Put(ctx context.Context, key, code string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// RedisStore keeps codes in redis. The record carries its own expiry instant;
// the redis TTL is set to twice the code window so a read inside the grace
// period can still report ErrExpired instead of ErrNotFound.
type RedisStore struct {
	RDB    *redis.Client
	Prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{RDB: rdb, Prefix: "otp:"}
}

func (s *RedisStore) Put(ctx context.Context, key, code string, ttl time.Duration) error {
	expires := time.Now().Add(ttl).Unix()
	value := code + ":" + strconv.FormatInt(expires, 10)
	if err := s.RDB.Set(ctx, s.Prefix+key, value, 2*ttl).Err(); err != nil {
		return fmt.Errorf("otp: redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.RDB.Get(ctx, s.Prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("otp: redis get failed: %w", err)
	}

	code, expStr, ok := strings.Cut(value, ":")
	if !ok {
		return "", ErrNotFound
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", ErrNotFound
	}
	if time.Now().Unix() > exp {
		s.RDB.Del(ctx, s.Prefix+key)
		return "", ErrExpired
	}
	return code, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.RDB.Del(ctx, s.Prefix+key).Err()
}

type memoryEntry struct {
	code    string
	expires time.Time
}

// MemoryStore is a process-local Store for tests and single-instance runs.
// Expired entries are swept lazily on read.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Put(_ context.Context, key, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[key] = memoryEntry{code: code, expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[key]
	if !ok {
		return "", ErrNotFound
	}
	if time.Now().After(entry.expires) {
		delete(s.codes, key)
		return "", ErrExpired
	}
	return entry.code, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, key)
	return nil
}
