package security

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to the server at url and pings it.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisStore shares security state between instances. Each entry is a hash
// under prefix+"e:"+key; a sorted set at prefix+"idx" orders keys by start
// time (milliseconds) for sweeping.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisStore(rdb redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + "e:" + k }
func (s *RedisStore) index() string       { return s.prefix + "idx" }

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if len(m) == 0 {
		return Entry{}, false, nil
	}
	count, err := strconv.Atoi(m["count"])
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis entry %s: bad count: %w", key, err)
	}
	start, err := strconv.ParseInt(m["start"], 10, 64)
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis entry %s: bad start: %w", key, err)
	}
	return Entry{Count: count, Start: time.Unix(0, start)}, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry) error {
	start := e.Start.UnixNano()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key(key), "count", e.Count, "start", start)
		p.ZAdd(ctx, s.index(), redis.Z{Score: float64(e.Start.UnixMilli()), Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.remove(ctx, []string{key})
}

func (s *RedisStore) remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	members := make([]any, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
		members[i] = k
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, full...)
		p.ZRem(ctx, s.index(), members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, s.index()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis len: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time, keep int) (int, error) {
	stale, err := s.rdb.ZRangeByScore(ctx, s.index(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redis sweep: %w", err)
	}
	if err := s.remove(ctx, stale); err != nil {
		return 0, err
	}
	removed := len(stale)
	if keep <= 0 {
		return removed, nil
	}

	n, err := s.Len(ctx)
	if err != nil {
		return removed, err
	}
	if n <= keep {
		return removed, nil
	}
	oldest, err := s.rdb.ZRange(ctx, s.index(), 0, int64(n-keep-1)).Result()
	if err != nil {
		return removed, fmt.Errorf("redis sweep: %w", err)
	}
	if err := s.remove(ctx, oldest); err != nil {
		return removed, err
	}
	return removed + len(oldest), nil
}
