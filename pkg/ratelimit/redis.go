package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix     = "ratelimit:"
	defaultDuplicatesKey = "ratelimit:duplicate_attempts"
	// DefaultMaxDuplicateEntries caps the Redis audit list.
	DefaultMaxDuplicateEntries = 10000

	fieldCount     = "count"
	fieldResetTime = "reset_time"
)

// RedisStore keeps one hash per identity (count, reset_time in unix ms) and
// a capped list of duplicate attempts. Counter keys expire Retention after
// their window ends.
type RedisStore struct {
	client        redis.UniversalClient
	prefix        string
	duplicatesKey string
	retention     time.Duration
	maxDuplicates int64
}

var _ CounterStore = (*RedisStore)(nil)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Retention keeps counter keys alive this long after their window ends.
	Retention time.Duration
	// MaxDuplicates trims the audit list. Zero uses DefaultMaxDuplicateEntries.
	MaxDuplicates int64
}

// NewRedisClient dials and pings Redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps an existing client. The caller owns the client.
func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if cfg.MaxDuplicates <= 0 {
		cfg.MaxDuplicates = DefaultMaxDuplicateEntries
	}
	return &RedisStore{
		client:        client,
		prefix:        defaultKeyPrefix,
		duplicatesKey: defaultDuplicatesKey,
		retention:     cfg.Retention,
		maxDuplicates: cfg.MaxDuplicates,
	}
}

func (s *RedisStore) key(identity string) string {
	return s.prefix + identity
}

func (s *RedisStore) Get(ctx context.Context, identity string) (*Counter, error) {
	vals, err := s.client.HGetAll(ctx, s.key(identity)).Result()
	if err != nil {
		return nil, err
	}
	rawReset, ok := vals[fieldResetTime]
	if !ok {
		// missing or half-written hash, treat as a fresh window
		return nil, nil
	}
	resetMs, err := strconv.ParseInt(rawReset, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s of %s: %w", fieldResetTime, identity, err)
	}
	count, err := strconv.Atoi(vals[fieldCount])
	if err != nil {
		return nil, fmt.Errorf("parse %s of %s: %w", fieldCount, identity, err)
	}
	return &Counter{Identity: identity, Count: count, ResetAt: time.UnixMilli(resetMs).UTC()}, nil
}

func (s *RedisStore) Reset(ctx context.Context, identity string, resetAt time.Time) error {
	key := s.key(identity)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fieldCount, 1, fieldResetTime, resetAt.UnixMilli())
	pipe.PExpireAt(ctx, key, resetAt.Add(s.retention))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Increment(ctx context.Context, identity string) (int, error) {
	n, err := s.client.HIncrBy(ctx, s.key(identity), fieldCount, 1).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *RedisStore) RecordDuplicate(ctx context.Context, identity string, at time.Time) error {
	entry := identity + "|" + strconv.FormatInt(at.UnixMilli(), 10)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.duplicatesKey, entry)
	pipe.LTrim(ctx, s.duplicatesKey, 0, s.maxDuplicates-1)
	_, err := pipe.Exec(ctx)
	return err
}

// Duplicates returns up to limit audit entries, newest first.
func (s *RedisStore) Duplicates(ctx context.Context, limit int64) ([]DuplicateAttempt, error) {
	if limit <= 0 {
		limit = s.maxDuplicates
	}
	raw, err := s.client.LRange(ctx, s.duplicatesKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DuplicateAttempt, 0, len(raw))
	for _, r := range raw {
		i := strings.LastIndexByte(r, '|')
		if i < 0 {
			continue
		}
		ms, err := strconv.ParseInt(r[i+1:], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, DuplicateAttempt{Identity: r[:i], AttemptedAt: time.UnixMilli(ms).UTC()})
	}
	return out, nil
}
