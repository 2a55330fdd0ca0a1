package snapshot

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/lithe-dev/lithe/internal/errors"
)

// Redis is a snapshot backend over Redis. Each store is one hash under
// "<prefix><name>" with fields "data" and "rev".
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis backend. Prefix may be empty, in which case
// "lithe:snapshot:" is used.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "lithe:snapshot:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(name string) string {
	return r.prefix + name
}

// Save implements Store.
func (r *Redis) Save(ctx context.Context, name string, data []byte, rev uint64) error {
	err := r.client.HSet(ctx, r.key(name), "data", data, "rev", rev).Err()
	if err != nil {
		return errors.New("E201").WithDetail("save %q: %v", name, err).Wrap(err)
	}
	return nil
}

// Load implements Store.
func (r *Redis) Load(ctx context.Context, name string) ([]byte, uint64, error) {
	fields, err := r.client.HGetAll(ctx, r.key(name)).Result()
	if err != nil {
		return nil, 0, errors.New("E201").WithDetail("load %q: %v", name, err).Wrap(err)
	}
	// HGetAll returns an empty map for a missing key.
	if len(fields) == 0 {
		return nil, 0, nil
	}

	rev, err := strconv.ParseUint(fields["rev"], 10, 64)
	if err != nil {
		return nil, 0, errors.New("E201").WithDetail("load %q: bad rev %q", name, fields["rev"]).Wrap(err)
	}
	return []byte(fields["data"]), rev, nil
}

// LoadAll implements Store.
func (r *Redis) LoadAll(ctx context.Context) (map[string]Record, error) {
	out := make(map[string]Record)

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return nil, errors.New("E201").WithDetail("scan snapshots: %v", err).Wrap(err)
		}
		for _, key := range keys {
			name := strings.TrimPrefix(key, r.prefix)
			data, rev, err := r.Load(ctx, name)
			if err != nil {
				return nil, err
			}
			if data != nil {
				out[name] = Record{Data: data, Rev: rev}
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, r.key(name)).Err(); err != nil {
		return errors.New("E201").WithDetail("delete %q: %v", name, err).Wrap(err)
	}
	return nil
}

// Close implements Store.
func (r *Redis) Close() error {
	return r.client.Close()
}
