package engine

import "fmt"

// BackendFailure wraps an error surfaced by a backend extension's
// Authenticate call (unreachable source, malformed response) -- spec §7:
// "surfaced as a thrown engine-level error... not cached." It is returned
// verbatim to the caller of authenticate; it is never recorded in the
// negative cache.
type BackendFailure struct {
	Realm, Account string
	Err            error
}

func (e *BackendFailure) Error() string {
	return fmt.Sprintf("engine: backend failure for %s/%s: %v", e.Realm, e.Account, e.Err)
}

func (e *BackendFailure) Unwrap() error { return e.Err }

// ConfigurationError marks a fatal problem detected at open/start time
// (duplicate realm, missing required argument, unparseable extension type
// reference) -- spec §7.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "engine: configuration error: " + e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// InvariantViolation marks a programmer error, such as calling a running-
// engine-only method before start() or after stop() -- spec §7.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "engine: invariant violation: " + e.Msg }
