package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/backend"
	"github.com/nforgeio/lilltek-auth/internal/realmmap"
)

func newTestEngine(t *testing.T, handle string, settings Settings) *Engine {
	t.Helper()
	backends := backend.NewRegistry()
	provider := realmmap.NewConfigProvider(backends)
	require.NoError(t, provider.Open(backend.CommonArgs{}, handle))

	eng := New(settings, provider, nil)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Stop() })
	return eng
}

func defaultTestSettings() Settings {
	s := DefaultSettings()
	s.BkTaskInterval = time.Hour // background task must not interfere with assertions
	return s
}

func TestAuthenticate_Success(t *testing.T) {
	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", defaultTestSettings())

	result, err := eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, authtypes.StatusAuthenticated, result.Status)
}

func TestAuthenticate_BadRealm(t *testing.T) {
	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", defaultTestSettings())

	result, err := eng.Authenticate(context.Background(), "nosuchrealm", "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, authtypes.StatusBadRealm, result.Status)
}

func TestAuthenticate_EmptyPassword(t *testing.T) {
	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", defaultTestSettings())

	result, err := eng.Authenticate(context.Background(), "corp", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, authtypes.StatusBadPassword, result.Status)
}

func TestAuthenticate_PositiveCacheHitAvoidsBackendCall(t *testing.T) {
	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", defaultTestSettings())

	first, err := eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)
	require.True(t, first.Status.Authenticated())

	before := eng.Counters.Snapshot()
	second, err := eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, second.Status.Authenticated())

	after := eng.Counters.Snapshot()
	assert.Equal(t, before.Authenticated, after.Authenticated, "a cache hit must not re-count as a fresh backend Authenticated")
}

func TestAuthenticate_LocksAfterThreshold(t *testing.T) {
	settings := defaultTestSettings()
	settings.LockoutCount = 3
	settings.LockoutThreshold = time.Minute
	settings.LockoutTime = 5 * time.Minute

	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", settings)

	for i := 0; i < 2; i++ {
		result, err := eng.Authenticate(context.Background(), "corp", "alice", "wrong")
		require.NoError(t, err)
		assert.NotEqual(t, authtypes.StatusAccountLocked, result.Status)
	}

	result, err := eng.Authenticate(context.Background(), "corp", "alice", "wrong-again")
	require.NoError(t, err)
	assert.Equal(t, authtypes.StatusAccountLocked, result.Status)

	// Even the correct password is now rejected while locked.
	result, err = eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, authtypes.StatusAccountLocked, result.Status)
}

func TestAuthenticate_RepeatedSamePasswordAdvancesFailCount(t *testing.T) {
	settings := defaultTestSettings()
	settings.LockoutCount = 3
	settings.LockoutThreshold = time.Minute
	settings.LockoutTime = 5 * time.Minute

	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", settings)

	for i := 0; i < 2; i++ {
		result, err := eng.Authenticate(context.Background(), "corp", "alice", "wrong")
		require.NoError(t, err)
		assert.NotEqual(t, authtypes.StatusAccountLocked, result.Status)
	}

	result, err := eng.Authenticate(context.Background(), "corp", "alice", "wrong")
	require.NoError(t, err)
	assert.Equal(t, authtypes.StatusAccountLocked, result.Status, "a repeated rejected password still counts toward lockout")
}

func TestAuthenticate_LockAccountAPI(t *testing.T) {
	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", defaultTestSettings())

	require.NoError(t, eng.LockAccount("corp", "alice", time.Minute))

	result, err := eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, authtypes.StatusAccountLocked, result.Status)
}

func TestFlushCache_SingleAccountAndWholeRealm(t *testing.T) {
	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret\npartner$$Config$$$$partner;bob;hunter2", defaultTestSettings())

	_, err := eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)
	_, err = eng.Authenticate(context.Background(), "partner", "bob", "hunter2")
	require.NoError(t, err)

	eng.FlushCache("corp", "alice")

	key := authtypes.AccountKey("corp", "alice")
	_, hit := eng.positiveCache.TryGet(key)
	assert.False(t, hit)

	key2 := authtypes.AccountKey("partner", "bob")
	_, hit = eng.positiveCache.TryGet(key2)
	assert.True(t, hit)

	eng.ClearCache()
	_, hit = eng.positiveCache.TryGet(key2)
	assert.False(t, hit)
}

func TestOnAuthenticated_FiresOutsideLock(t *testing.T) {
	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", defaultTestSettings())

	var got string
	done := make(chan struct{})
	eng.OnAuthenticated(func(realm, account, password string, ttl time.Duration) {
		got = account
		close(done)
	})

	_, err := eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnAuthenticated callback never fired")
	}
	assert.Equal(t, "alice", got)
}

func TestOnLockStatusChanged_FiresOnLockAndRelease(t *testing.T) {
	settings := defaultTestSettings()
	settings.LockoutCount = 1
	settings.LockoutThreshold = time.Minute
	settings.LockoutTime = 20 * time.Millisecond
	settings.MaxNakCacheSize = 10

	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", settings)

	var transitions []bool
	eng.OnLockStatusChanged(func(realm, account string, locked bool, ttl time.Duration) {
		transitions = append(transitions, locked)
	})

	_, err := eng.Authenticate(context.Background(), "corp", "alice", "wrong")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(transitions) >= 1 }, time.Second, time.Millisecond)
	assert.True(t, transitions[0])

	// The lock entry's TTL is LockoutTime (20ms); flushing after it expires
	// evicts the entry and fires the release event.
	time.Sleep(40 * time.Millisecond)
	eng.negativeCache.Flush()

	require.Eventually(t, func() bool { return len(transitions) >= 2 }, time.Second, time.Millisecond)
	assert.False(t, transitions[1])
}

func TestLoadRealmMap_ReloadFailureRetainsOldMap(t *testing.T) {
	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", defaultTestSettings())

	// Swap the provider's backing map to one that errors, by pointing at a
	// broken handle; GetMap on ConfigProvider just replays its fixed
	// snapshot, so simulate a failing provider directly on the engine.
	eng.provider = failingProvider{}

	err := eng.LoadRealmMap(context.Background())
	assert.Error(t, err)

	result, authErr := eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, authErr)
	assert.True(t, result.Status.Authenticated(), "a failed reload must retain the previously loaded map")
}

type failingProvider struct{}

func (failingProvider) Open(backend.CommonArgs, string) error { return nil }
func (failingProvider) GetMap(context.Context) ([]authtypes.RealmMapping, error) {
	return nil, errSimulatedProviderFailure
}
func (failingProvider) Close() error { return nil }

type simulatedErr struct{}

func (simulatedErr) Error() string { return "simulated provider failure" }

var errSimulatedProviderFailure = simulatedErr{}

func TestAssertRunning_BlocksBeforeStartAfterStop(t *testing.T) {
	backends := backend.NewRegistry()
	provider := realmmap.NewConfigProvider(backends)
	require.NoError(t, provider.Open(backend.CommonArgs{}, "corp$$Config$$$$corp;alice;s3cret"))

	eng := New(defaultTestSettings(), provider, nil)

	_, err := eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	assert.Error(t, err)

	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Stop())

	_, err = eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	assert.Error(t, err)
}

// TestAuthenticate_ConcurrentFlushNakCacheDoesNotResurrectEntries exercises
// the race between an in-flight Authenticate (which reads a *lockout.State
// via negativeCache.TryGet, mutates it, and later writes it back via
// negativeCache.Set) and a concurrent FlushNakCache/ClearNakCache. Both
// sides must serialize on e.mu, or the in-flight Authenticate can write a
// stale state back in after the flush/clear removed it -- run with
// `go test -race` to catch any unlocked access.
func TestAuthenticate_ConcurrentFlushNakCacheDoesNotResurrectEntries(t *testing.T) {
	settings := defaultTestSettings()
	settings.LockoutCount = 1000 // keep accounts from actually locking mid-race
	settings.LockoutThreshold = time.Minute
	settings.LockoutTime = time.Minute
	settings.NakCacheTTL = time.Minute

	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret", settings)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_, _ = eng.Authenticate(context.Background(), "corp", "alice", "wrong-password")
				}
			}
		}()
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if i%2 == 0 {
					eng.FlushNakCache("corp", "alice")
				} else {
					eng.ClearNakCache()
				}
			}
		}(i)
	}

	// Let the race window run briefly, then stop the authenticate
	// goroutines and wait for every goroutine to finish.
	time.Sleep(200 * time.Millisecond)
	close(stop)
	wg.Wait()

	// The engine must still be usable afterward -- the real assertion here
	// is that this test completes without a data race or deadlock under
	// `go test -race`.
	result, err := eng.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, result.Status.Authenticated())
}
