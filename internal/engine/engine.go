package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/cache"
	"github.com/nforgeio/lilltek-auth/internal/lock"
	"github.com/nforgeio/lilltek-auth/internal/lockout"
	"github.com/nforgeio/lilltek-auth/internal/realmmap"
	"github.com/nforgeio/lilltek-auth/pkg/security"
)

// Engine is the Authentication Engine (spec component C5): a shared,
// thread-safe object fronting the realm map, the positive and negative
// caches, and the lockout tracker. A single mutex serializes all reads and
// writes of the realm map, both caches and the counter block (spec §5);
// backend calls and event dispatch always happen with that mutex released.
type Engine struct {
	settings Settings
	provider realmmap.Provider
	logger   *slog.Logger
	audit    *security.AuditLogger

	mu            sync.Mutex
	realmMap      map[string]authtypes.RealmMapping // key: lower(realm)
	positiveCache *cache.Cache[authtypes.PositiveCacheEntry]
	negativeCache *cache.Cache[*lockout.State]
	nextFlush     time.Time
	nextMapLoad   time.Time

	// suppressLockEvents silences the negative cache's eviction-triggered
	// lock-released events during a bulk ClearNakCache (spec §4.4). It is
	// read from the cache's own eviction hook, which can fire while the
	// engine lock is already held by the calling goroutine (e.g. a Set()
	// that evicts an unrelated key) -- so it must not itself take e.mu.
	suppressLockEvents atomic.Bool

	Counters Counters
	subs     subscribers

	// reloadLockMgr optionally serializes reloadRealmMapLocked's provider
	// call across a cluster of Engine instances sharing a realm-map source
	// (e.g. an ODBC provider), so peers whose background reloads coincide
	// don't all hit the source simultaneously. Nil means no
	// coordination -- every instance reloads independently, which is the
	// normal single-node case. See UseClusterReloadLock.
	reloadLockMgr *lock.LockManager
	reloadLockKey string

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds an Engine. Call Start to load the initial realm map and begin
// the background task.
func New(settings Settings, provider realmmap.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		settings: settings,
		provider: provider,
		logger:   logger,
		audit:    security.NewAuditLogger(logger),
	}
	if settings.MaxCacheSize > 0 {
		e.positiveCache = cache.New[authtypes.PositiveCacheEntry](settings.MaxCacheSize, settings.CacheTTL, nil)
	}
	if settings.MaxNakCacheSize > 0 {
		e.negativeCache = cache.New[*lockout.State](settings.MaxNakCacheSize, settings.NakCacheTTL, e.onNegativeEvicted)
	}
	return e
}

// UseClusterReloadLock wires a Redis-backed distributed lock that
// reloadRealmMapLocked acquires before calling the provider. Acquisition is
// best-effort: it retries a few times with short sleeps, and if the lock is
// still held elsewhere the reload is skipped. key should be the same across every Engine instance
// sharing a realm-map source; config may be nil to take lock.LockConfig's
// defaults. Call before Start.
func (e *Engine) UseClusterReloadLock(client *redis.Client, key string, config *lock.LockConfig) {
	e.reloadLockMgr = lock.NewLockManager(client, config, e.logger)
	e.reloadLockKey = key
}

// OnAuthenticated registers fn to run after every successful authentication
// (spec §4.5 events), outside the engine lock.
func (e *Engine) OnAuthenticated(fn AuthenticatedFunc) { e.subs.OnAuthenticated(fn) }

// OnLockStatusChanged registers fn to run after every lock-state transition
// (spec §4.5 events), outside the engine lock.
func (e *Engine) OnLockStatusChanged(fn LockStatusChangedFunc) { e.subs.OnLockStatusChanged(fn) }

// Start loads the initial realm map synchronously and installs the
// background task (spec §4.5). Fails if already running.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return &InvariantViolation{Msg: "engine already running"}
	}

	if err := e.reloadRealmMapLocked(ctx); err != nil {
		e.running.Store(false)
		return &ConfigurationError{Err: err}
	}

	now := time.Now()
	e.mu.Lock()
	e.nextFlush = now.Add(e.settings.CacheFlushInterval)
	e.nextMapLoad = now.Add(e.settings.RealmMapLoadInterval)
	e.mu.Unlock()

	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	go e.backgroundLoop()
	return nil
}

// Stop cancels the background task, closes the realm map provider's
// extensions, and releases the caches (spec §4.5). An in-flight backend
// call cannot be cancelled; Stop waits only for the background task to
// exit (spec §5 "Cancellation").
func (e *Engine) Stop() error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}
	close(e.stopCh)
	<-e.doneCh

	e.mu.Lock()
	mappings := e.realmMap
	e.realmMap = nil
	e.mu.Unlock()

	for _, m := range mappings {
		if m.Extension != nil {
			_ = m.Extension.Close()
		}
	}
	if e.provider != nil {
		_ = e.provider.Close()
	}
	if e.reloadLockMgr != nil {
		_ = e.reloadLockMgr.Close(context.Background())
	}
	return nil
}

func (e *Engine) assertRunning() error {
	if !e.running.Load() {
		return &InvariantViolation{Msg: "engine not running"}
	}
	return nil
}

// lookupMappingLocked returns the mapping for realm under the engine lock. Caller
// must hold e.mu.
func (e *Engine) lookupMappingLocked(realm string) (authtypes.RealmMapping, bool) {
	m, ok := e.realmMap[strings.ToLower(realm)]
	return m, ok
}
