package sync

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/backend"
	"github.com/nforgeio/lilltek-auth/internal/engine"
	"github.com/nforgeio/lilltek-auth/internal/realmmap"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestEngine(t *testing.T, handle string) *engine.Engine {
	t.Helper()
	return newTestEngineWithSettings(t, handle, defaultTestSettings())
}

func defaultTestSettings() engine.Settings {
	s := engine.DefaultSettings()
	s.BkTaskInterval = time.Hour
	return s
}

func newTestEngineWithSettings(t *testing.T, handle string, settings engine.Settings) *engine.Engine {
	t.Helper()
	backends := backend.NewRegistry()
	provider := realmmap.NewConfigProvider(backends)
	require.NoError(t, provider.Open(backend.CommonArgs{}, handle))

	eng := engine.New(settings, provider, nil)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Stop() })
	return eng
}

func TestAdapter_PublishCredentialSharedAppliesOnPeer(t *testing.T) {
	client := setupTestRedis(t)

	receiver := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret")
	recvAdapter := New(client, "chan1", receiver, nil)
	require.NoError(t, recvAdapter.Start(context.Background()))
	t.Cleanup(func() { _ = recvAdapter.Stop() })

	sender := New(client, "chan1", nil, nil)
	require.NoError(t, sender.PublishCredentialShared(context.Background(), "corp", "bob", "hunter2", time.Minute))

	require.Eventually(t, func() bool {
		result, err := receiver.Authenticate(context.Background(), "corp", "bob", "hunter2")
		return err == nil && result.Status == authtypes.StatusAuthenticated
	}, time.Second, 5*time.Millisecond)
}

func TestAdapter_PublishFailObservedMirrorsLockoutState(t *testing.T) {
	client := setupTestRedis(t)

	settings := defaultTestSettings()
	settings.LockoutCount = 1
	settings.LockoutThreshold = time.Minute
	settings.LockoutTime = time.Minute

	receiver := newTestEngineWithSettings(t, "corp$$Config$$$$corp;alice;s3cret", settings)
	recvAdapter := New(client, "chan2", receiver, nil)
	require.NoError(t, recvAdapter.Start(context.Background()))
	t.Cleanup(func() { _ = recvAdapter.Stop() })

	sender := New(client, "chan2", nil, nil)
	require.NoError(t, sender.PublishFailObserved(context.Background(), "corp", "alice"))

	require.Eventually(t, func() bool {
		result, err := receiver.Authenticate(context.Background(), "corp", "alice", "s3cret")
		return err == nil && result.Status == authtypes.StatusAccountLocked
	}, time.Second, 5*time.Millisecond)
}

func TestAdapter_CacheRemoveAccountAndRealm(t *testing.T) {
	client := setupTestRedis(t)

	receiver := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret\npartner$$Config$$$$partner;bob;hunter2")
	recvAdapter := New(client, "chan3", receiver, nil)
	require.NoError(t, recvAdapter.Start(context.Background()))
	t.Cleanup(func() { _ = recvAdapter.Stop() })

	_, err := receiver.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)
	_, err = receiver.Authenticate(context.Background(), "partner", "bob", "hunter2")
	require.NoError(t, err)

	before := receiver.Counters.Snapshot()

	sender := New(client, "chan3", nil, nil)
	require.NoError(t, sender.PublishCacheRemoveAccount(context.Background(), "corp", "alice"))

	// A flushed entry forces the next lookup back to the backend, which
	// bumps the Authenticated counter again; an untouched cache hit would
	// not.
	require.Eventually(t, func() bool {
		result, err := receiver.Authenticate(context.Background(), "corp", "alice", "s3cret")
		if err != nil || !result.Status.Authenticated() {
			return false
		}
		return receiver.Counters.Snapshot().Authenticated > before.Authenticated
	}, time.Second, 5*time.Millisecond)

	before = receiver.Counters.Snapshot()
	require.NoError(t, sender.PublishCacheRemoveRealm(context.Background(), "partner"))
	require.Eventually(t, func() bool {
		result, err := receiver.Authenticate(context.Background(), "partner", "bob", "hunter2")
		if err != nil || !result.Status.Authenticated() {
			return false
		}
		return receiver.Counters.Snapshot().Authenticated > before.Authenticated
	}, time.Second, 5*time.Millisecond)
}

func TestAdapter_CacheClear(t *testing.T) {
	client := setupTestRedis(t)

	receiver := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret")
	recvAdapter := New(client, "chan4", receiver, nil)
	require.NoError(t, recvAdapter.Start(context.Background()))
	t.Cleanup(func() { _ = recvAdapter.Stop() })

	_, err := receiver.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)
	before := receiver.Counters.Snapshot()

	sender := New(client, "chan4", nil, nil)
	require.NoError(t, sender.PublishCacheClear(context.Background()))

	require.Eventually(t, func() bool {
		result, err := receiver.Authenticate(context.Background(), "corp", "alice", "s3cret")
		if err != nil || !result.Status.Authenticated() {
			return false
		}
		return receiver.Counters.Snapshot().Authenticated > before.Authenticated
	}, time.Second, 5*time.Millisecond)
}

func TestAdapter_SelfPublishedMessagesAreIgnored(t *testing.T) {
	client := setupTestRedis(t)

	receiver := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret")
	adapter := New(client, "chan5", receiver, nil)
	require.NoError(t, adapter.Start(context.Background()))
	t.Cleanup(func() { _ = adapter.Stop() })

	_, err := receiver.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)

	// The adapter subscribes to the same channel it publishes on, so it
	// receives its own envelopes; the handler must discard them on NodeID.
	// A CacheClear this adapter publishes itself therefore leaves the local
	// positive cache untouched, and the next Authenticate is still a cache
	// hit that does not bump the Authenticated counter.
	require.NoError(t, adapter.PublishCacheClear(context.Background()))
	time.Sleep(50 * time.Millisecond)

	before := receiver.Counters.Snapshot()
	result, err := receiver.Authenticate(context.Background(), "corp", "alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, result.Status.Authenticated())
	assert.Equal(t, before.Authenticated, receiver.Counters.Snapshot().Authenticated, "a self-published CacheClear must not be applied")
}

func TestAdapter_StartRequiresReachableRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	eng := newTestEngine(t, "corp$$Config$$$$corp;alice;s3cret")
	adapter := New(client, "chan6", eng, nil)
	assert.Error(t, adapter.Start(context.Background()))
}
