package authtypes

import "time"

// PositiveCacheEntry is the value stored in the positive cache (spec §3).
// Key equality is on the account key; the stored password is compared on
// lookup to detect a wrong-password submission for a cached account.
type PositiveCacheEntry struct {
	Password     string
	MaxCacheTime time.Duration
}
