package engine

import (
	"context"
	"time"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/lockout"
	"github.com/nforgeio/lilltek-auth/internal/metrics"
)

// Authenticate runs the full request pipeline against (realm, account,
// password) -- spec §4.5 "Authentication pipeline (normative)". It never
// returns an error for a credential rejection; it returns one only for a
// BackendFailure (infrastructure failure), per spec §7.
func (e *Engine) Authenticate(ctx context.Context, realm, account, password string) (authtypes.AuthResult, error) {
	if err := e.assertRunning(); err != nil {
		return authtypes.AuthResult{}, err
	}

	e.Counters.TotalAuthentications.Add(1)

	e.mu.Lock()

	mapping, ok := e.lookupMappingLocked(realm)
	if !ok {
		e.mu.Unlock()
		result := authtypes.Rejected(authtypes.StatusBadRealm, "realm not mapped", e.settings.CacheTTL)
		metrics.AuthRequestsTotal.WithLabelValues(realm, "bad_realm").Inc()
		e.logAndCount(realm, account, result, nil)
		return result, nil
	}

	if password == "" {
		e.mu.Unlock()
		result := authtypes.Rejected(authtypes.StatusBadPassword, "empty password", e.settings.NakCacheTTL)
		metrics.AuthRequestsTotal.WithLabelValues(realm, "bad_password").Inc()
		e.logAndCount(realm, account, result, nil)
		return result, nil
	}

	key := authtypes.AccountKey(realm, account)

	if e.positiveCache != nil {
		if entry, hit := e.positiveCache.TryGet(key); hit && entry.Password == password {
			e.mu.Unlock()
			metrics.PositiveCacheHitsTotal.Inc()
			result := authtypes.Authenticated(entry.MaxCacheTime)
			metrics.AuthRequestsTotal.WithLabelValues(realm, "authenticated").Inc()
			e.logAndCount(realm, account, result, nil)
			return result, nil
		}
		metrics.PositiveCacheMissesTotal.Inc()
	}

	var events []pendingEvent
	var state *lockout.State
	var hadNegativeEntry bool

	if e.negativeCache != nil {
		if s, hit := e.negativeCache.TryGet(key); hit {
			state = s
			hadNegativeEntry = true
			metrics.NegativeCacheHitsTotal.Inc()

			if state.IsLocked {
				e.mu.Unlock()
				result := authtypes.Rejected(authtypes.StatusAccountLocked, "account locked", state.TTL)
				metrics.AuthRequestsTotal.WithLabelValues(realm, "locked").Inc()
				e.logAndCount(realm, account, result, nil)
				return result, nil
			}

			if state.HasPassword(password) {
				justLocked := lockout.RecordFailure(state, password, state.Status, e.settings.NakCacheTTL)
				e.negativeCache.Set(key, state, state.TTL)
				if justLocked {
					events = append(events, e.lockEvent(realm, account, true, state.TTL))
					e.Counters.LocksApplied.Add(1)
					metrics.LocksAppliedTotal.Inc()
				}
				e.mu.Unlock()
				result := authtypes.Rejected(state.Status, state.Status.String(), state.TTL)
				metrics.AuthRequestsTotal.WithLabelValues(realm, "access_denied").Inc()
				e.dispatchAndLog(realm, account, result, events)
				return result, nil
			}
			// Password not yet seen for this account -- fall through to the
			// backend, it may be the correct one.
		}
	}

	// Release the lock before the backend call (spec §5: backend calls never
	// run under the engine lock).
	e.mu.Unlock()

	backendStart := time.Now()
	backendResult, err := mapping.Extension.Authenticate(ctx, realm, account, password)
	metrics.AuthBackendDuration.WithLabelValues(realm, mapping.ExtensionType).Observe(time.Since(backendStart).Seconds())
	if err != nil {
		e.Counters.BackendExceptions.Add(1)
		metrics.AuthBackendErrorsTotal.WithLabelValues(realm).Inc()
		metrics.AuthRequestsTotal.WithLabelValues(realm, "backend_error").Inc()
		failure := &BackendFailure{Realm: realm, Account: account, Err: err}
		e.logBackendFailure(realm, account, failure)
		return authtypes.AuthResult{}, failure
	}

	e.mu.Lock()

	if backendResult.Status == authtypes.StatusAuthenticated {
		ttl := minPositive(backendResult.MaxCacheTime, e.settings.CacheTTL)
		if e.positiveCache != nil {
			e.positiveCache.Add(key, authtypes.PositiveCacheEntry{Password: password, MaxCacheTime: ttl}, ttl)
		}
		events = append(events, pendingEvent{authenticated: &authenticatedEvent{realm: realm, account: account, password: password, ttl: ttl}})
		e.Counters.Authenticated.Add(1)
		e.mu.Unlock()

		result := authtypes.Authenticated(ttl)
		metrics.AuthRequestsTotal.WithLabelValues(realm, "authenticated").Inc()
		e.dispatchAndLog(realm, account, result, events)
		return result, nil
	}

	e.Counters.Rejected.Add(1)
	if e.negativeCache != nil {
		if hadNegativeEntry {
			justLocked := lockout.RecordFailure(state, password, backendResult.Status, e.settings.NakCacheTTL)
			e.negativeCache.Set(key, state, state.TTL)
			if justLocked {
				events = append(events, e.lockEvent(realm, account, true, state.TTL))
				e.Counters.LocksApplied.Add(1)
				metrics.LocksAppliedTotal.Inc()
			}
		} else {
			policy := mappingPolicy(mapping, e.settings)
			state = lockout.New(realm, account, password, backendResult.Status, policy, e.settings.NakCacheTTL)
			if state.TTL > 0 {
				e.negativeCache.Set(key, state, state.TTL)
			}
			if state.IsLocked {
				events = append(events, e.lockEvent(realm, account, true, state.TTL))
				e.Counters.LocksApplied.Add(1)
				metrics.LocksAppliedTotal.Inc()
			}
		}
	}

	resultStatus := backendResult.Status
	resultTTL := e.settings.NakCacheTTL
	if state != nil {
		resultStatus = state.Status
		resultTTL = state.TTL
	}
	e.mu.Unlock()

	result := authtypes.Rejected(resultStatus, resultStatus.String(), resultTTL)
	metrics.AuthRequestsTotal.WithLabelValues(realm, "access_denied").Inc()
	e.dispatchAndLog(realm, account, result, events)
	return result, nil
}

func (e *Engine) lockEvent(realm, account string, locked bool, ttl time.Duration) pendingEvent {
	return pendingEvent{lockChanged: &lockChangedEvent{realm: realm, account: account, locked: locked, ttl: ttl}}
}

func mappingPolicy(m authtypes.RealmMapping, settings Settings) lockout.Policy {
	p := lockout.Policy{
		LockoutCount:     settings.LockoutCount,
		LockoutThreshold: settings.LockoutThreshold,
		LockoutTime:      settings.LockoutTime,
	}
	if m.LockoutCount > 0 {
		p.LockoutCount = m.LockoutCount
	}
	if m.LockoutThreshold > 0 {
		p.LockoutThreshold = m.LockoutThreshold
	}
	if m.LockoutTime > 0 {
		p.LockoutTime = m.LockoutTime
	}
	return p
}

func minPositive(a, b time.Duration) time.Duration {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}
