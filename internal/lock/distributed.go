// Package lock implements a Redis-backed distributed mutex, used to
// serialize cluster-wide realm-map reloads so that two instances whose
// background reloads coincide don't both hammer a slow ODBC realm-map source
// at once (spec §4.5 background task notes the provider call "is
// considered fast," but a deployment pointing the provider at a remote
// database may still want this). Grounded on the teacher's
// internal/infrastructure/lock/distributed.go: SETNX for acquisition, a
// Lua script for compare-and-delete release so a lock can't be released by
// whoever doesn't hold it, and a manager that tracks locks by key.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedLock is a single named Redis mutex.
type DistributedLock struct {
	redis    *redis.Client
	key      string
	value    string
	ttl      time.Duration
	logger   *slog.Logger
	acquired bool
}

// LockConfig configures a DistributedLock. Only TTL and ValuePrefix are
// read by DistributedLock; MaxRetries, RetryInterval, AcquireTimeout and
// ReleaseTimeout are not consulted. Acquire always retries 3 times with a
// 100ms-based backoff, each SETNX attempt is bounded by TTL, and Release
// and Extend use a fixed 2s timeout.
type LockConfig struct {
	TTL time.Duration `env:"LOCK_TTL" default:"30s"`

	MaxRetries    int           `env:"LOCK_MAX_RETRIES" default:"3"`
	RetryInterval time.Duration `env:"LOCK_RETRY_INTERVAL" default:"100ms"`

	AcquireTimeout time.Duration `env:"LOCK_ACQUIRE_TIMEOUT" default:"5s"`
	ReleaseTimeout time.Duration `env:"LOCK_RELEASE_TIMEOUT" default:"2s"`

	ValuePrefix string `env:"LOCK_VALUE_PREFIX" default:"lock"`
}

func defaultLockConfig() *LockConfig {
	return &LockConfig{
		TTL:            30 * time.Second,
		MaxRetries:     3,
		RetryInterval:  100 * time.Millisecond,
		AcquireTimeout: 5 * time.Second,
		ReleaseTimeout: 2 * time.Second,
		ValuePrefix:    "lock",
	}
}

// NewDistributedLock builds a lock bound to key but does not acquire it.
func NewDistributedLock(redisClient *redis.Client, key string, config *LockConfig, logger *slog.Logger) *DistributedLock {
	if config == nil {
		config = defaultLockConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DistributedLock{
		redis:  redisClient,
		key:    key,
		value:  generateLockValue(config.ValuePrefix),
		ttl:    config.TTL,
		logger: logger,
	}
}

func generateLockValue(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), time.Now().Unix())
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// Acquire attempts to acquire the lock with the default retry count.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	return l.AcquireWithRetry(ctx, 0)
}

// AcquireWithRetry attempts to acquire the lock, retrying maxRetries times
// on contention or transient Redis errors.
func (l *DistributedLock) AcquireWithRetry(ctx context.Context, maxRetries int) (bool, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	l.logger.Debug("attempting to acquire lock", "key", l.key, "value", l.value, "ttl", l.ttl)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		acquireCtx, cancel := context.WithTimeout(ctx, l.ttl)

		result, err := l.redis.SetNX(acquireCtx, l.key, l.value, l.ttl).Result()
		cancel()
		if err != nil {
			l.logger.Error("failed to acquire lock", "key", l.key, "attempt", attempt+1, "error", err)
			if attempt == maxRetries {
				return false, fmt.Errorf("failed to acquire lock after %d attempts: %w", maxRetries+1, err)
			}
			time.Sleep(l.retryInterval(attempt))
			continue
		}

		if result {
			l.acquired = true
			l.logger.Info("lock acquired", "key", l.key, "value", l.value, "ttl", l.ttl)
			return true, nil
		}

		l.logger.Debug("lock already held by another instance", "key", l.key, "attempt", attempt+1)
		if attempt == maxRetries {
			return false, nil
		}
		time.Sleep(l.retryInterval(attempt))
	}

	return false, nil
}

// releaseScript performs a compare-and-delete: it only removes the key if
// the stored value still matches the value this lock set, so a lock whose
// TTL already expired and was re-acquired by someone else is never
// released out from under them.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Release releases the lock if this instance still holds it.
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		l.logger.Warn("releasing a lock that was never acquired", "key", l.key)
		return nil
	}

	l.logger.Debug("releasing lock", "key", l.key, "value", l.value)

	releaseCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result, err := l.redis.Eval(releaseCtx, releaseScript, []string{l.key}, l.value).Result()
	if err != nil {
		l.logger.Error("failed to release lock", "key", l.key, "error", err)
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if result.(int64) == 1 {
		l.acquired = false
		l.logger.Info("lock released", "key", l.key)
		return nil
	}

	l.logger.Warn("lock was not released (already expired or held by another instance)", "key", l.key)
	return nil
}

const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("expire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Extend pushes the lock's expiry out to newTTL, provided this instance
// still holds it.
func (l *DistributedLock) Extend(ctx context.Context, newTTL time.Duration) error {
	if !l.acquired {
		return fmt.Errorf("cannot extend a lock that was never acquired")
	}

	l.logger.Debug("extending lock", "key", l.key, "newTTL", newTTL)

	extendCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result, err := l.redis.Eval(extendCtx, extendScript, []string{l.key}, l.value, int(newTTL.Seconds())).Result()
	if err != nil {
		l.logger.Error("failed to extend lock", "key", l.key, "error", err)
		return fmt.Errorf("failed to extend lock: %w", err)
	}

	if result.(int64) == 1 {
		l.ttl = newTTL
		l.logger.Info("lock extended", "key", l.key, "newTTL", newTTL)
		return nil
	}

	return fmt.Errorf("failed to extend lock (already expired or held by another instance)")
}

func (l *DistributedLock) IsAcquired() bool      { return l.acquired }
func (l *DistributedLock) GetKey() string        { return l.key }
func (l *DistributedLock) GetValue() string      { return l.value }
func (l *DistributedLock) GetTTL() time.Duration { return l.ttl }

func (l *DistributedLock) retryInterval(attempt int) time.Duration {
	baseInterval := 100 * time.Millisecond
	interval := time.Duration(attempt+1) * baseInterval
	jitter := time.Duration(float64(interval) * 0.25 * (2*float64(time.Now().UnixNano()%1000)/1000 - 1))
	return interval + jitter
}

// LockManager tracks a set of acquired locks by key so a caller can release
// all of them together, e.g. on engine Stop.
type LockManager struct {
	redis  *redis.Client
	config *LockConfig
	logger *slog.Logger
	locks  map[string]*DistributedLock
}

func NewLockManager(redisClient *redis.Client, config *LockConfig, logger *slog.Logger) *LockManager {
	if config == nil {
		config = defaultLockConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LockManager{
		redis:  redisClient,
		config: config,
		logger: logger,
		locks:  make(map[string]*DistributedLock),
	}
}

// AcquireLock acquires and tracks a new lock for key.
func (lm *LockManager) AcquireLock(ctx context.Context, key string) (*DistributedLock, error) {
	l := NewDistributedLock(lm.redis, key, lm.config, lm.logger)

	acquired, err := l.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("failed to acquire lock for key: %s", key)
	}

	lm.locks[key] = l
	return l, nil
}

// ReleaseLock releases and untracks the lock for key.
func (lm *LockManager) ReleaseLock(ctx context.Context, key string) error {
	l, exists := lm.locks[key]
	if !exists {
		lm.logger.Warn("releasing a lock this manager never acquired", "key", key)
		return nil
	}

	if err := l.Release(ctx); err != nil {
		return err
	}
	delete(lm.locks, key)
	return nil
}

// ReleaseAll releases every tracked lock.
func (lm *LockManager) ReleaseAll(ctx context.Context) error {
	var lastErr error
	for key, l := range lm.locks {
		if err := l.Release(ctx); err != nil {
			lm.logger.Error("failed to release lock", "key", key, "error", err)
			lastErr = err
		}
	}
	lm.locks = make(map[string]*DistributedLock)
	return lastErr
}

func (lm *LockManager) GetLock(key string) (*DistributedLock, bool) {
	l, exists := lm.locks[key]
	return l, exists
}

func (lm *LockManager) ListLocks() []string {
	keys := make([]string, 0, len(lm.locks))
	for key := range lm.locks {
		keys = append(keys, key)
	}
	return keys
}

func (lm *LockManager) Close(ctx context.Context) error {
	return lm.ReleaseAll(ctx)
}
