package authtypes

import "time"

// RealmMapping binds one realm to the backend extension that verifies it,
// plus the per-realm policy overrides the lockout tracker applies. It is
// immutable once constructed: a reloaded realm map is built as a brand new
// slice of mappings and swapped in wholesale, never mutated in place.
type RealmMapping struct {
	Realm         string
	ExtensionType string
	Args          map[string]string
	Query         string

	LockoutCount     int
	LockoutThreshold time.Duration
	LockoutTime      time.Duration

	Extension Extension
}

// Clone returns a shallow copy with a fresh Args map, so callers mutating
// the copy's Args never touch the mapping carried in the live realm map.
func (m RealmMapping) Clone() RealmMapping {
	args := make(map[string]string, len(m.Args))
	for k, v := range m.Args {
		args[k] = v
	}
	m.Args = args
	return m
}
