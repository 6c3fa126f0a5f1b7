package authtypes

import (
	"context"
	"time"
)

// Extension is the capability set every backend variant (File, Config,
// LDAP, RADIUS, ODBC, or a user-defined source) must implement. The engine
// only ever talks to this interface; it never knows which concrete variant
// a RealmMapping is bound to.
type Extension interface {
	// Open parses args/query and acquires source-specific resources. It is
	// an idempotent guard: calling Open twice on an already-open extension
	// returns an error.
	Open(args map[string]string, query string) error

	// Authenticate verifies one (realm, account, password) triple. It never
	// returns an error for credential rejection -- it returns a non-
	// Authenticated AuthResult. It returns an error only for infrastructure
	// failure (source unreachable, malformed response). Must tolerate
	// concurrent calls.
	Authenticate(ctx context.Context, realm, account, password string) (AuthResult, error)

	// Close waits for in-flight Authenticate calls to return before
	// releasing shared resources.
	Close() error
}

// CommonArgs carries the common, engine-reserved argument keys every
// backend recognizes. The realm-mapping layer is the only consumer of the
// Lockout* keys.
type CommonArgs struct {
	MaxCacheTime     time.Duration
	LockoutCount     int
	LockoutThreshold time.Duration
	LockoutTime      time.Duration
}
