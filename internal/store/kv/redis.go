package kv

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore persists each collection under its own key so the dataset can
// be inspected with plain redis tooling.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(addr string, password string, db int, prefix string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if prefix == "" {
		prefix = "pos"
	}

	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(collection string) string {
	return s.prefix + ":" + collection
}

func (s *RedisStore) SaveAll(ctx context.Context, collections map[string][]byte) error {
	pipe := s.client.TxPipeline()
	for name, payload := range collections {
		pipe.Set(ctx, s.key(name), payload, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (map[string][]byte, error) {
	names := []string{
		CollectionProducts,
		CollectionSales,
		CollectionRawMaterials,
		CollectionEmployees,
		CollectionConfig,
	}

	out := make(map[string][]byte, len(names))
	for _, name := range names {
		val, err := s.client.Get(ctx, s.key(name)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis load %s: %w", name, err)
		}
		out[name] = val
	}
	return out, nil
}
