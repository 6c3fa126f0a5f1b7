// Package sync implements the Cluster Sync Adapter (spec component C6):
// binds an Engine to a Redis pub/sub channel so peer instances converge on
// the same cache view. Grounded on the teacher's internal/realtime event
// bus (internal/realtime/bus.go -- Start/Stop lifecycle, a buffered
// channel drained by one worker goroutine, subscribers notified
// concurrently) generalized from an in-process fan-out to a Redis-backed
// one, using the same redis/go-redis/v9 client the teacher's
// internal/infrastructure/cache/redis.go and internal/infrastructure/lock
// already depend on.
package sync

import "encoding/json"

// messageKind tags the payload carried on the shared channel (spec §4.6).
type messageKind string

const (
	kindCredentialShared    messageKind = "CredentialShared"
	kindFailObserved        messageKind = "FailObserved"
	kindCacheRemoveAccount  messageKind = "CacheRemoveAccount"
	kindCacheRemoveRealm    messageKind = "CacheRemoveRealm"
	kindCacheClear          messageKind = "CacheClear"
	kindCacheRemoveNakAcct  messageKind = "CacheRemoveNakAccount"
	kindCacheRemoveNakRealm messageKind = "CacheRemoveNakRealm"
	kindCacheClearNak       messageKind = "CacheClearNak"
	kindKeyUpdate           messageKind = "KeyUpdate"
)

// envelope is the wire format published to the sync channel. NodeID lets a
// subscriber ignore its own broadcasts without relying on Redis pub/sub
// delivery semantics (a client receives every message published on a
// channel it's subscribed to, including its own).
type envelope struct {
	Kind   messageKind     `json:"kind"`
	NodeID string          `json:"node_id"`
	Body   json.RawMessage `json:"body"`
}

type credentialSharedBody struct {
	Realm    string `json:"realm"`
	Account  string `json:"account"`
	Password string `json:"password"`
	TTLMS    int64  `json:"ttl_ms"`
}

type failObservedBody struct {
	Realm   string `json:"realm"`
	Account string `json:"account"`
}

type accountScopedBody struct {
	Realm   string `json:"realm"`
	Account string `json:"account"`
}

type realmScopedBody struct {
	Realm string `json:"realm"`
}
