package process

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists a memory process's KV pairs in one Redis hash, so a
// single DEL clears the instance and keys never collide across processes.
type RedisStore struct {
	client *redis.Client
	hash   string
}

// NewRedisStore connects to addr and namespaces this process's data under
// "lumen:memory:<name>".
func NewRedisStore(addr, password string, db int, name string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis store %s: %w", addr, err)
	}
	return &RedisStore{client: client, hash: "lumen:memory:" + name}, nil
}

// NewRedisStoreFromClient wraps an existing client; tests inject a
// miniredis-backed one here.
func NewRedisStoreFromClient(client *redis.Client, name string) *RedisStore {
	return &RedisStore{client: client, hash: "lumen:memory:" + name}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hash, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.HSet(ctx, s.hash, key, value).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.HDel(ctx, s.hash, key).Err()
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.hash).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.hash).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }
