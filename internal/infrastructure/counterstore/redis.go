package counterstore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/sequence"
)

// DefaultKeyPrefix namespaces counter keys in Redis.
const DefaultKeyPrefix = "autoinc:counter:"

// raiseScript sets the key to max(current, value) in one server-side step.
// Values are compared as decimal strings so they stay exact past 2^53.
var raiseScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == false then
	redis.call('SET', KEYS[1], ARGV[1])
	return ARGV[1]
end
if not string.match(current, '^%d+$') then
	return redis.error_reply('ERR value is not an integer or out of range')
end
current = string.gsub(current, '^0+(%d)', '%1')
local target = ARGV[1]
if #target > #current or (#target == #current and target > current) then
	redis.call('SET', KEYS[1], target)
	return target
end
return current
`)

// RedisStore keeps each counter in its own key and relies on INCR for
// atomicity.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ sequence.AdminStore = (*RedisStore)(nil)

// NewRedisStore creates a store. An empty prefix selects DefaultKeyPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(counterID string) string {
	return s.prefix + counterID
}

// FindAndIncrement implements sequence.Store.
func (s *RedisStore) FindAndIncrement(ctx context.Context, counterID string) (int64, error) {
	v, err := s.client.Incr(ctx, s.key(counterID)).Result()
	if err != nil {
		return 0, mapRedisError(counterID, err)
	}
	return v, nil
}

// Get implements sequence.Inspector.
func (s *RedisStore) Get(ctx context.Context, counterID string) (sequence.Record, error) {
	raw, err := s.client.Get(ctx, s.key(counterID)).Result()
	if errors.Is(err, redis.Nil) {
		return sequence.Record{}, apperror.NewNotFound("counter", counterID)
	}
	if err != nil {
		return sequence.Record{}, mapRedisError(counterID, err)
	}
	v, err := parseCounter(counterID, raw)
	if err != nil {
		return sequence.Record{}, err
	}
	return sequence.Record{CounterID: counterID, SequenceValue: v}, nil
}

// List implements sequence.Inspector. Keys are gathered with SCAN, so the
// result is a point-in-time view only for counters that already existed.
func (s *RedisStore) List(ctx context.Context, prefix string, limit int) ([]sequence.Record, error) {
	limit = normalizeLimit(limit)
	pattern := escapeGlob(s.prefix+prefix) + "*"

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, mapRedisError(prefix, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, mapRedisError(prefix, err)
	}

	records := make([]sequence.Record, 0, len(keys))
	for i, k := range keys {
		raw, ok := values[i].(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		counterID := strings.TrimPrefix(k, s.prefix)
		v, err := parseCounter(counterID, raw)
		if err != nil {
			return nil, err
		}
		records = append(records, sequence.Record{CounterID: counterID, SequenceValue: v})
	}
	return records, nil
}

// Raise implements sequence.Inspector.
func (s *RedisStore) Raise(ctx context.Context, counterID string, value int64) (int64, error) {
	if err := checkRaise(counterID, value); err != nil {
		return 0, err
	}
	v, err := raiseScript.Run(ctx, s.client, []string{s.key(counterID)}, value).Int64()
	if err != nil {
		return 0, mapRedisError(counterID, err)
	}
	return v, nil
}

// Ping implements sequence.AdminStore.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseCounter(counterID, raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, apperror.NewStorageInvariantViolation(counterID, "counter record is not a valid sequence value").
			WithDetail("raw", raw)
	}
	return v, nil
}

// mapRedisError classifies client errors. Redis reports a non-integer or
// overflowing value with "not an integer or out of range".
func mapRedisError(counterID string, err error) error {
	if strings.Contains(err.Error(), "not an integer or out of range") ||
		strings.Contains(err.Error(), "increment or decrement would overflow") {
		return apperror.NewStorageInvariantViolation(counterID, "counter record is not a valid sequence value").WithCause(err)
	}
	return apperror.NewStorageUnavailable(counterID, err)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
