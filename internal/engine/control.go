package engine

import (
	"time"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/lockout"
	"github.com/nforgeio/lilltek-auth/internal/metrics"
)

// AddCredentials injects a trusted positive result, used by the Cluster
// Sync Adapter when a peer reports a successful authentication (spec
// §4.5, §4.6 CredentialShared).
func (e *Engine) AddCredentials(realm, account, password string, ttl time.Duration) error {
	if err := e.assertRunning(); err != nil {
		return err
	}
	if e.positiveCache == nil {
		return nil
	}
	key := authtypes.AccountKey(realm, account)
	e.mu.Lock()
	e.positiveCache.Set(key, authtypes.PositiveCacheEntry{Password: password, MaxCacheTime: ttl}, ttl)
	e.mu.Unlock()
	return nil
}

// LockAccount force-locks (realm, account) irrespective of failure
// history, clearing any positive cache entry for the account (spec §4.4).
func (e *Engine) LockAccount(realm, account string, ttl time.Duration) error {
	if err := e.assertRunning(); err != nil {
		return err
	}
	key := authtypes.AccountKey(realm, account)

	e.mu.Lock()
	if e.positiveCache != nil {
		e.positiveCache.Remove(key)
	}

	var events []pendingEvent
	if e.negativeCache != nil {
		if state, hit := e.negativeCache.TryGet(key); hit {
			lockout.Lock(state, ttl)
			e.negativeCache.Set(key, state, ttl)
		} else {
			mapping, _ := e.lookupMappingLocked(realm)
			policy := mappingPolicy(mapping, e.settings)
			state := lockout.NewLocked(realm, account, policy, ttl)
			e.negativeCache.Set(key, state, ttl)
		}
		events = append(events, e.lockEvent(realm, account, true, ttl))
		e.Counters.LocksApplied.Add(1)
		metrics.LocksAppliedTotal.Inc()
	}
	e.mu.Unlock()

	e.subs.dispatch(events)
	e.audit.LogAccountLocked(realm, account, ttl)
	return nil
}

// IncrementFailCount mirrors a failure observed by a peer instance via the
// Cluster Sync Adapter (spec §4.4, §4.6 FailObserved).
func (e *Engine) IncrementFailCount(realm, account string) error {
	if err := e.assertRunning(); err != nil {
		return err
	}
	if e.negativeCache == nil {
		return nil
	}
	key := authtypes.AccountKey(realm, account)

	e.mu.Lock()
	var events []pendingEvent
	state, hit := e.negativeCache.TryGet(key)
	if !hit {
		mapping, _ := e.lookupMappingLocked(realm)
		policy := mappingPolicy(mapping, e.settings)
		state = lockout.NewObserved(realm, account, policy, e.settings.NakCacheTTL)
		if state.TTL > 0 {
			e.negativeCache.Set(key, state, state.TTL)
		}
		if state.IsLocked {
			events = append(events, e.lockEvent(realm, account, true, state.TTL))
			e.Counters.LocksApplied.Add(1)
			metrics.LocksAppliedTotal.Inc()
		}
	} else {
		justLocked := lockout.IncrementObserved(state, e.settings.NakCacheTTL)
		e.negativeCache.Set(key, state, state.TTL)
		if justLocked {
			events = append(events, e.lockEvent(realm, account, true, state.TTL))
			e.Counters.LocksApplied.Add(1)
			metrics.LocksAppliedTotal.Inc()
		}
	}
	e.mu.Unlock()

	e.subs.dispatch(events)
	if len(events) > 0 {
		e.audit.LogAccountLocked(realm, account, state.TTL)
	}
	return nil
}

// FlushCache removes every positive-cache entry for realm, or for a single
// account within realm when account != "" (spec §4.5).
func (e *Engine) FlushCache(realm, account string) {
	if e.positiveCache == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if account != "" {
		e.positiveCache.Remove(authtypes.AccountKey(realm, account))
		return
	}
	e.positiveCache.RemovePrefix(authtypes.RealmPrefix(realm))
}

// FlushNakCache removes every negative-cache entry for realm, or for a
// single account within realm when account != "".
func (e *Engine) FlushNakCache(realm, account string) {
	if e.negativeCache == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if account != "" {
		e.negativeCache.Remove(authtypes.AccountKey(realm, account))
		return
	}
	e.negativeCache.RemovePrefix(authtypes.RealmPrefix(realm))
}

// ClearCache empties the positive cache wholesale.
func (e *Engine) ClearCache() {
	if e.positiveCache == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positiveCache.Clear()
}

// ClearNakCache empties the negative cache wholesale, suppressing the
// per-entry lock-released events that would otherwise fire for every
// currently-locked account (spec §4.4: "may be suppressed by a scoped
// report-enable toggle so that bulk cache flushes do not emit spurious
// unlock storms").
func (e *Engine) ClearNakCache() {
	if e.negativeCache == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suppressLockEvents.Store(true)
	e.negativeCache.Clear()
	e.suppressLockEvents.Store(false)
}

// onNegativeEvicted is the negative cache's eviction hook (spec §9 "the
// lock-released event fires from the negative cache's eviction hook"). It
// runs synchronously from within the cache's own critical section (and
// sometimes from within the engine lock, e.g. a Set() that evicts an
// unrelated key), so it must never call back into the engine or block --
// it hands the event to a goroutine, which is the dispatch-outside-the-lock
// spec §5/§9 requires without risking reentrant locking.
func (e *Engine) onNegativeEvicted(key string, state *lockout.State) {
	if !state.IsLocked {
		return
	}
	if e.suppressLockEvents.Load() {
		return
	}
	e.Counters.LocksReleased.Add(1)
	metrics.LocksReleasedTotal.Inc()
	ev := e.lockEvent(state.Realm, state.Account, false, 0)
	go e.subs.dispatch([]pendingEvent{ev})
	e.audit.LogAccountUnlocked(state.Realm, state.Account)
}
