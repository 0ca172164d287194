// Package redis implements the Directory over Redis: each collection maps
// to a hash, each child to a hash field holding a JSON document. The
// conditional write the booking path depends on runs as a Lua script so the
// compare and the set are one atomic server-side step.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/telemed-api/internal/store"
)

type Config struct {
	URL          string
	KeyPrefix    string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

type Store struct {
	client *redis.Client
	prefix string
}

// casScript compares the stored document with the expected one and replaces
// it on match. Documents are always written by this client via
// encoding/json, so byte comparison is stable.
var casScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur or cur ~= ARGV[2] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
return 1
`)

func New(cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "telemed"
	}
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) key(parent string) string {
	return s.prefix + ":" + parent
}

func (s *Store) Get(ctx context.Context, path string, out interface{}) error {
	parent, name := store.Split(path)
	raw, err := s.client.HGet(ctx, s.key(parent), name).Bytes()
	if err == redis.Nil {
		return store.ErrNotFound
	}
	if err != nil {
		return unavailable(err)
	}
	return json.Unmarshal(raw, out)
}

func (s *Store) GetAll(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	all, err := s.client.HGetAll(ctx, s.key(path)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	out := make(map[string]json.RawMessage, len(all))
	for name, raw := range all {
		out[name] = json.RawMessage(raw)
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	parent, name := store.Split(path)
	if err := s.client.HSet(ctx, s.key(parent), name, raw).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) SetAll(ctx context.Context, path string, values map[string]interface{}) error {
	fields := make(map[string]interface{}, len(values))
	for name, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		fields[name] = raw
	}
	key := s.key(path)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	parent, name := store.Split(path)
	doc := make(map[string]interface{})
	raw, err := s.client.HGet(ctx, s.key(parent), name).Bytes()
	if err != nil && err != redis.Nil {
		return unavailable(err)
	}
	if err == nil {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
	}
	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key(parent), name, merged).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	parent, name := store.Split(path)
	if err := s.client.HDel(ctx, s.key(parent), name).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) CompareAndSet(ctx context.Context, path string, expect, value interface{}) (bool, error) {
	expectRaw, err := json.Marshal(expect)
	if err != nil {
		return false, err
	}
	valueRaw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	parent, name := store.Split(path)
	res, err := casScript.Run(ctx, s.client, []string{s.key(parent)}, name, expectRaw, valueRaw).Int()
	if err != nil {
		return false, unavailable(err)
	}
	return res == 1, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
