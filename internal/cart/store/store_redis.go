package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"pdv/internal/cart"
	platformredis "pdv/internal/platform/redis"
	"pdv/pkg/platform/sentinel"
)

const keyPrefix = "pdv:cart:"

// RedisStore persists cart snapshots in Redis so an operator's cart and
// selected client survive a register reload. Snapshots carry no TTL; they
// live until the sale commits or the cart is cleared.
type RedisStore struct {
	client *platformredis.Client
}

// NewRedisStore creates a Redis-backed snapshot store.
func NewRedisStore(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(registerID string) string { return keyPrefix + registerID }

func (s *RedisStore) Save(ctx context.Context, registerID string, snap cart.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal cart snapshot: %w", err)
	}
	if err := s.client.Set(ctx, key(registerID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, registerID string) (cart.Snapshot, error) {
	payload, err := s.client.Get(ctx, key(registerID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return cart.Snapshot{}, fmt.Errorf("cart snapshot for register %q: %w", registerID, sentinel.ErrNotFound)
	}
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("load cart snapshot: %w", err)
	}
	var snap cart.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return cart.Snapshot{}, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	return snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, registerID string) error {
	if err := s.client.Del(ctx, key(registerID)).Err(); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}
