package engine

import "sync/atomic"

// Counters holds the engine's running totals (spec §4.5 background task:
// "emit counter snapshots"; §7: "the engine increments an exception
// counter"). All fields are updated with atomic ops so Snapshot can be
// called from the background task or a metrics scrape without taking the
// engine lock.
type Counters struct {
	TotalAuthentications atomic.Uint64
	Authenticated         atomic.Uint64
	Rejected              atomic.Uint64
	BackendExceptions     atomic.Uint64
	LocksApplied          atomic.Uint64
	LocksReleased         atomic.Uint64
	RealmMapReloads       atomic.Uint64
	RealmMapReloadErrors  atomic.Uint64
}

// CounterSnapshot is a point-in-time copy suitable for logging or exporting
// to Prometheus gauges.
type CounterSnapshot struct {
	TotalAuthentications uint64
	Authenticated        uint64
	Rejected             uint64
	BackendExceptions    uint64
	LocksApplied         uint64
	LocksReleased        uint64
	RealmMapReloads      uint64
	RealmMapReloadErrors uint64
}

func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		TotalAuthentications: c.TotalAuthentications.Load(),
		Authenticated:        c.Authenticated.Load(),
		Rejected:             c.Rejected.Load(),
		BackendExceptions:    c.BackendExceptions.Load(),
		LocksApplied:         c.LocksApplied.Load(),
		LocksReleased:        c.LocksReleased.Load(),
		RealmMapReloads:      c.RealmMapReloads.Load(),
		RealmMapReloadErrors: c.RealmMapReloadErrors.Load(),
	}
}
