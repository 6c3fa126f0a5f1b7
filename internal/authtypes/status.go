// Package authtypes holds the value types shared by every component of the
// authentication engine: the account key, the realm routing table entry, and
// the result a backend (or the engine itself) reports for one credential
// check.
package authtypes

import "strings"

// Status is the outcome of a single authentication attempt.
type Status int

const (
	// StatusAuthenticated means the credentials were accepted.
	StatusAuthenticated Status = iota
	// StatusBadPassword means the account exists but the password was wrong.
	StatusBadPassword
	// StatusBadAccount means the account does not exist in the backend.
	StatusBadAccount
	// StatusBadRealm means no RealmMapping exists for the realm.
	StatusBadRealm
	// StatusAccessDenied is a collapsed rejection that does not distinguish
	// account from password (what most backends return by default).
	StatusAccessDenied
	// StatusAccountDisabled means the account exists but is administratively disabled.
	StatusAccountDisabled
	// StatusAccountLocked means the account is in the lockout window.
	StatusAccountLocked
	// StatusBadRequest means the request itself was malformed.
	StatusBadRequest
	// StatusServerError means the backend reported a server-side error.
	StatusServerError
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "Authenticated"
	case StatusBadPassword:
		return "BadPassword"
	case StatusBadAccount:
		return "BadAccount"
	case StatusBadRealm:
		return "BadRealm"
	case StatusAccessDenied:
		return "AccessDenied"
	case StatusAccountDisabled:
		return "AccountDisabled"
	case StatusAccountLocked:
		return "AccountLocked"
	case StatusBadRequest:
		return "BadRequest"
	case StatusServerError:
		return "ServerError"
	default:
		return "Unknown"
	}
}

// Authenticated reports whether the status represents acceptance.
func (s Status) Authenticated() bool {
	return s == StatusAuthenticated
}

// AccountKey returns the canonical cache key for a (realm, account) pair:
// lower(realm) + "/" + lower(account). Realm and account comparisons are
// ordinal-case-insensitive everywhere in the engine, so every cache and
// tracker keys off this string rather than the raw inputs.
func AccountKey(realm, account string) string {
	var b strings.Builder
	b.Grow(len(realm) + len(account) + 1)
	b.WriteString(strings.ToLower(realm))
	b.WriteByte('/')
	b.WriteString(strings.ToLower(account))
	return b.String()
}

// RealmPrefix returns lower(realm) + "/", the prefix every AccountKey for
// realm begins with. Used by cache-flush operations that only have a realm
// and need to match keys beginning with "realm/".
func RealmPrefix(realm string) string {
	return strings.ToLower(realm) + "/"
}
