package redis

// Package redis provides a Redis-backed durable slot for the session credential.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skala/skip-session/internal/ports"
)

// DefaultPrefix namespaces every key written by KeyValueStore.
const DefaultPrefix = "skip-session:"

// KeyValueStore is a Redis-based durable slot for production use. Values
// optionally expire after TTL so abandoned credentials do not linger.
type KeyValueStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.KeyValueStore = (*KeyValueStore)(nil)

// NewKeyValueStore creates a Redis slot with the default prefix and no expiry.
func NewKeyValueStore(client redis.UniversalClient) *KeyValueStore {
	return &KeyValueStore{
		client: client,
		prefix: DefaultPrefix,
	}
}

// NewKeyValueStoreWithOptions creates a Redis slot with a custom key prefix
// and TTL (0 disables expiry).
func NewKeyValueStoreWithOptions(client redis.UniversalClient, prefix string, ttl time.Duration) *KeyValueStore {
	return &KeyValueStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}

	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *KeyValueStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to delete
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
