// Package engine implements the Authentication Engine orchestrator (spec
// component C5): the realm map, the positive/negative caches, and the
// lockout tracker wired together behind one request pipeline. Grounded on
// the teacher's top-level service struct (internal/notification/service.go
// in spirit: a mutex-guarded map of routing state, a background ticker,
// start/stop lifecycle, event subscribers dispatched outside the lock).
package engine

import "time"

// Settings mirrors the configuration table in spec §6. Field names match
// the spec's normative key names; cmd/authengine's serve command builds
// one of these from the viper-loaded config.EngineConfig.
type Settings struct {
	RealmMapLoadInterval time.Duration
	CacheTTL             time.Duration
	MaxCacheSize         int
	NakCacheTTL          time.Duration
	MaxNakCacheSize      int
	CacheFlushInterval   time.Duration
	BkTaskInterval       time.Duration
	LogAuthSuccess       bool
	LogAuthFailure       bool
	LockoutCount         int
	LockoutThreshold     time.Duration
	LockoutTime          time.Duration
}

// DefaultSettings returns the spec §6 defaults.
func DefaultSettings() Settings {
	return Settings{
		RealmMapLoadInterval: 10 * time.Minute,
		CacheTTL:             10 * time.Minute,
		MaxCacheSize:         100000,
		NakCacheTTL:          15 * time.Minute,
		MaxNakCacheSize:      100000,
		CacheFlushInterval:   time.Minute,
		BkTaskInterval:       5 * time.Second,
		LogAuthSuccess:       true,
		LogAuthFailure:       true,
		LockoutCount:         5,
		LockoutThreshold:     time.Minute,
		LockoutTime:          5 * time.Minute,
	}
}
