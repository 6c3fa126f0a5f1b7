package lockout

import (
	"time"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

func minDuration(a, b time.Duration) time.Duration {
	if b > 0 && b < a {
		return b
	}
	return a
}

// New creates the LockoutState for an account key seeing its first failure
// (spec §4.4, "On every negative authentication whose account key is not
// yet in the negative cache"). status is what the backend reported; it
// becomes the cached status
// unless the account locks immediately, in which case it is overridden to
// AccountLocked.
func New(realm, account, password string, status authtypes.Status, policy Policy, negativeCacheTTL time.Duration) *State {
	s := &State{
		Realm:            realm,
		Account:          account,
		Status:           status,
		FailCount:        1,
		LockoutCount:     policy.LockoutCount,
		LockoutThreshold: policy.LockoutThreshold,
		LockoutTime:      policy.LockoutTime,
	}
	s.addPassword(password)

	if policy.LockoutThreshold > 0 && policy.LockoutCount <= 1 {
		s.IsLocked = true
		s.Status = authtypes.StatusAccountLocked
		s.TTL = minDuration(policy.LockoutTime, negativeCacheTTL)
		return s
	}

	s.TTL = minDuration(policy.LockoutThreshold, negativeCacheTTL)
	return s
}

// RecordFailure applies a subsequent failure to an already-cached account
// key (spec §4.4, "On every subsequent negative authentication whose
// account key is present"). It reports justLocked = true the moment the
// account transitions into the locked state, so the caller can schedule a
// LockStatusChanged event (spec §4.5 step 8). If the account is already
// locked, RecordFailure is a no-op (P5: failCount does not increment past
// the locking attempt).
func RecordFailure(s *State, password string, status authtypes.Status, negativeCacheTTL time.Duration) (justLocked bool) {
	if s.IsLocked {
		return false
	}

	s.FailCount++
	s.Status = status

	if s.LockoutThreshold > 0 && s.FailCount >= s.LockoutCount {
		s.IsLocked = true
		s.Status = authtypes.StatusAccountLocked
		s.TTL = minDuration(s.LockoutTime, negativeCacheTTL)
		s.addPassword(password)
		return true
	}

	s.TTL = minDuration(s.LockoutThreshold, negativeCacheTTL)
	if !s.HasPassword(password) {
		s.addPassword(password)
	}
	return false
}

// Lock force-locks s irrespective of failure history, for the engine's
// explicit lockAccount API and for peer-mirrored lock directives.
func Lock(s *State, duration time.Duration) {
	s.IsLocked = true
	s.Status = authtypes.StatusAccountLocked
	s.TTL = duration
}

// NewLocked builds a LockoutState that is already locked, for lockAccount
// calls against an account key with no existing negative-cache entry.
func NewLocked(realm, account string, policy Policy, duration time.Duration) *State {
	s := &State{
		Realm:            realm,
		Account:          account,
		LockoutCount:     policy.LockoutCount,
		LockoutThreshold: policy.LockoutThreshold,
		LockoutTime:      policy.LockoutTime,
	}
	Lock(s, duration)
	return s
}

// IncrementObserved mirrors a failure observed by a peer instance (spec
// §4.5 Cluster Sync Adapter, FailObserved -> engine.incrementFailCount). It
// increments failCount without recording a specific rejected password,
// since peers don't share the raw password over the sync channel.
func IncrementObserved(s *State, negativeCacheTTL time.Duration) (justLocked bool) {
	if s.IsLocked {
		return false
	}
	s.FailCount++
	if s.LockoutThreshold > 0 && s.FailCount >= s.LockoutCount {
		s.IsLocked = true
		s.Status = authtypes.StatusAccountLocked
		s.TTL = minDuration(s.LockoutTime, negativeCacheTTL)
		return true
	}
	s.TTL = minDuration(s.LockoutThreshold, negativeCacheTTL)
	return false
}

// NewObserved builds the first-failure state for a peer-mirrored increment
// against an account key with no local negative-cache entry yet.
func NewObserved(realm, account string, policy Policy, negativeCacheTTL time.Duration) *State {
	s := &State{
		Realm:            realm,
		Account:          account,
		Status:           authtypes.StatusAccessDenied,
		FailCount:        1,
		LockoutCount:     policy.LockoutCount,
		LockoutThreshold: policy.LockoutThreshold,
		LockoutTime:      policy.LockoutTime,
	}
	if policy.LockoutThreshold > 0 && policy.LockoutCount <= 1 {
		s.IsLocked = true
		s.Status = authtypes.StatusAccountLocked
		s.TTL = minDuration(policy.LockoutTime, negativeCacheTTL)
		return s
	}
	s.TTL = minDuration(policy.LockoutThreshold, negativeCacheTTL)
	return s
}
