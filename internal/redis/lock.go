package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrLockNotAcquired = errors.New("booking lock not acquired")
)

// Locker guards the read-validate-insert section of a booking so that two
// requests touching the same doctor or patient cannot interleave.
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

func DoctorLockKey(doctorID uuid.UUID) string {
	return "lock:doctor:" + doctorID.String()
}

func PatientLockKey(patientID uuid.UUID) string {
	return "lock:patient:" + patientID.String()
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisLocker creates a locker that takes every key in a single atomic
// script call, so a caller either holds all of its keys or none of them.
// Failed releases are logged; the keys then expire after ttl.
func NewRedisLocker(client *redis.Client, ttl time.Duration, log zerolog.Logger) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "booking-lock").Logger(),
	}
}

var lockScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
  if redis.call("EXISTS", key) == 1 then
    return 0
  end
end
for i, key in ipairs(KEYS) do
  redis.call("SET", key, ARGV[1], "PX", ARGV[2])
end
return 1
`)

var unlockScript = redis.NewScript(`
local released = 0
for i, key in ipairs(KEYS) do
  if redis.call("GET", key) == ARGV[1] then
    released = released + redis.call("DEL", key)
  end
end
return released
`)

func (l *redisLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}

	sorted := dedupeSorted(keys)
	token := uuid.NewString()
	ttlMillis := strconv.FormatInt(l.ttl.Milliseconds(), 10)

	ok, err := lockScript.Run(ctx, l.client, sorted, token, ttlMillis).Int()
	if err != nil {
		return fmt.Errorf("acquire booking lock: %w", err)
	}
	if ok != 1 {
		return ErrLockNotAcquired
	}

	defer func() {
		// released with a fresh context so a cancelled request still frees its keys
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.release(relCtx, sorted, token); err != nil {
			l.log.Error().Err(err).Strs("keys", sorted).Dur("expires_in", l.ttl).Msg("booking lock not released")
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisLocker) release(ctx context.Context, keys []string, token string) error {
	_, err := unlockScript.Run(ctx, l.client, keys, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release booking lock: %w", err)
	}
	return nil
}

func dedupeSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
