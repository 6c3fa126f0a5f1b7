// Package lockout implements the per-account failed-attempt tracker (spec
// component C4). It is pure state-machine logic over a LockoutState value;
// the engine is responsible for storing that value in the negative cache
// (internal/cache) and for wiring the cache's eviction hook so a
// lock-release event fires when a locked entry's final reference dies.
//
// Grounded on the sliding-window lockout services retrieved alongside this
// spec (abramin/Credo's authlockout service, tomtom215/cartographus's
// internal/auth lockout, hivewarden's ratelimit/lockout): a small struct
// tracking consecutive failures and a lock deadline, mutated by two entry
// points -- "first failure" and "subsequent failure" -- plus an explicit
// force-lock path for administrative action.
package lockout

import (
	"time"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

// State is the record held in the negative cache for one account key (spec
// §3 "LockoutState").
type State struct {
	Realm   string
	Account string

	// Status is the outcome last reported to callers for this account key.
	Status authtypes.Status

	FailCount int

	// Policy snapshot from the realm mapping at construction time.
	LockoutCount     int
	LockoutThreshold time.Duration
	LockoutTime      time.Duration

	IsLocked bool
	TTL      time.Duration

	BadPasswords map[string]struct{}
}

// HasPassword reports whether password has already been rejected for this
// account.
func (s *State) HasPassword(password string) bool {
	_, ok := s.BadPasswords[password]
	return ok
}

func (s *State) addPassword(password string) {
	if s.BadPasswords == nil {
		s.BadPasswords = make(map[string]struct{}, 1)
	}
	s.BadPasswords[password] = struct{}{}
}

// Policy bundles the per-realm lockout overrides a RealmMapping carries, so
// the tracker doesn't need to import authtypes.RealmMapping directly.
type Policy struct {
	LockoutCount     int
	LockoutThreshold time.Duration
	LockoutTime      time.Duration
}

