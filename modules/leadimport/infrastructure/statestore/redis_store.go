package statestore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/connection"
)

// RedisStore shares pending OAuth states between replicas. Entries expire
// through the key TTL.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) Save(ctx context.Context, state *connection.State) error {
	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		return errors.New("oauth state already expired")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshal oauth state")
	}
	if err := s.redis.Set(ctx, s.key(state.Value), payload, ttl).Err(); err != nil {
		return errors.Wrap(err, "store oauth state")
	}
	return nil
}

// Consume uses GETDEL so two callbacks racing on one state cannot both win.
func (s *RedisStore) Consume(ctx context.Context, value string, now time.Time) (*connection.State, error) {
	if value == "" {
		return nil, connection.ErrStateNotFound
	}
	raw, err := s.redis.GetDel(ctx, s.key(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, connection.ErrStateNotFound
		}
		return nil, errors.Wrap(err, "consume oauth state")
	}
	var state connection.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, errors.Wrap(err, "unmarshal oauth state")
	}
	if state.Value != value || state.Expired(now) {
		return nil, connection.ErrStateNotFound
	}
	return &state, nil
}

func (s *RedisStore) key(value string) string {
	return s.prefix + value
}
