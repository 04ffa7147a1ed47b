package lockstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// deleteIfEqualsScript deletes KEYS[1] only if its current value equals
// ARGV[1]. Mirrors the release-lock Lua script used throughout the
// seat-locking examples this package is grounded on.
var deleteIfEqualsScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// expireIfEqualsScript resets the TTL (in milliseconds) of KEYS[1] only
// if its current value equals ARGV[1].
var expireIfEqualsScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

type redisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected *redis.Client as a Store.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *redisStore) Expire(ctx context.Context, key, expected string, ttl time.Duration) (bool, error) {
	res, err := expireIfEqualsScript.Run(ctx, s.client, []string{key}, expected, ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisStore) DeleteIfEquals(ctx context.Context, key, expected string) (bool, error) {
	res, err := deleteIfEqualsScript.Run(ctx, s.client, []string{key}, expected).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (s *redisStore) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	return s.client.IncrBy(ctx, key, delta).Result()
}

// Scan uses cursor-based SCAN rather than KEYS so a large keyspace never
// blocks the Redis event loop for the duration of the call.
func (s *redisStore) Scan(ctx context.Context, prefix string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	pattern := prefix + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (s *redisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return -1, false, err
	}
	// go-redis reports PTTL's -2 (absent) and -1 (no expiry) replies as
	// raw durations rather than scaling them to milliseconds.
	switch d {
	case -2, -2 * time.Millisecond:
		return -1, false, nil
	case -1, -1 * time.Millisecond:
		return -1, true, nil
	}
	if d < 0 {
		return -1, false, nil
	}
	return d, true, nil
}
