// Package metrics exposes Prometheus counters, gauges, and histograms for
// the Authentication Engine (spec §2: "emit counter snapshots for the
// operator surface"). Grounded on the teacher's package-level
// promauto-registered metric variables (internal/metrics/config_reload.go,
// internal/realtime/metrics.go).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthRequestsTotal counts every Authenticate call by outcome.
	//
	// Labels:
	//   - realm
	//   - outcome: authenticated, access_denied, locked, bad_realm, bad_password, backend_error
	AuthRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authengine_auth_requests_total",
			Help: "Total number of Authenticate calls by realm and outcome",
		},
		[]string{"realm", "outcome"},
	)

	// AuthBackendDuration observes backend.Authenticate latency, excluding
	// time spent resolving a cache hit.
	AuthBackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authengine_backend_duration_seconds",
			Help:    "Duration of backend extension Authenticate calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"realm", "extension_type"},
	)

	// AuthBackendErrorsTotal counts backend failures (spec §7
	// BackendFailure), which are never cached.
	AuthBackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authengine_backend_errors_total",
			Help: "Total number of backend extension errors by realm",
		},
		[]string{"realm"},
	)

	// PositiveCacheHitsTotal and PositiveCacheMissesTotal track the
	// positive-result cache's hit rate.
	PositiveCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authengine_positive_cache_hits_total",
			Help: "Total number of positive cache hits",
		},
	)
	PositiveCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authengine_positive_cache_misses_total",
			Help: "Total number of positive cache misses",
		},
	)

	// NegativeCacheHitsTotal tracks the lockout tracker's cache hit rate.
	NegativeCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authengine_negative_cache_hits_total",
			Help: "Total number of negative cache hits",
		},
	)

	// LocksAppliedTotal and LocksReleasedTotal track lockout state
	// transitions (spec §4.4).
	LocksAppliedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authengine_locks_applied_total",
			Help: "Total number of accounts transitioning to locked",
		},
	)
	LocksReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authengine_locks_released_total",
			Help: "Total number of accounts transitioning out of locked, via cache eviction",
		},
	)

	// RealmMapReloadsTotal and RealmMapReloadErrorsTotal track the
	// background realm-map reload task (spec §4.5).
	RealmMapReloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authengine_realm_map_reloads_total",
			Help: "Total number of successful realm map reloads",
		},
	)
	RealmMapReloadErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authengine_realm_map_reload_errors_total",
			Help: "Total number of failed realm map reloads",
		},
	)

	// RealmMapSize reports the number of realms currently mapped.
	RealmMapSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authengine_realm_map_size",
			Help: "Number of realms currently present in the loaded realm map",
		},
	)

	// SyncMessagesPublishedTotal and SyncMessagesReceivedTotal track the
	// Cluster Sync Adapter's Redis pub/sub traffic (spec §4.6), by kind.
	SyncMessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authengine_sync_messages_published_total",
			Help: "Total number of cluster sync messages published by kind",
		},
		[]string{"kind"},
	)
	SyncMessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authengine_sync_messages_received_total",
			Help: "Total number of cluster sync messages received by kind",
		},
		[]string{"kind"},
	)
)
