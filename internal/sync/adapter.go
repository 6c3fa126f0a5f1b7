package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nforgeio/lilltek-auth/internal/engine"
	"github.com/nforgeio/lilltek-auth/internal/metrics"
)

// Adapter binds an Engine to a Redis pub/sub channel shared by every peer
// instance (spec §4.6). It subscribes to the channel and translates each
// incoming envelope into the matching Engine method call, and it publishes
// CredentialShared whenever the bound engine reports a successful
// authentication.
type Adapter struct {
	client  *redis.Client
	channel string
	nodeID  string
	engine  *engine.Engine
	logger  *slog.Logger

	pubsub *redis.PubSub
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds an Adapter. Call Start to subscribe and begin forwarding the
// bound engine's Authenticated events.
func New(client *redis.Client, channel string, eng *engine.Engine, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		client:  client,
		channel: channel,
		nodeID:  uuid.NewString(),
		engine:  eng,
		logger:  logger.With("component", "cluster-sync"),
	}
}

// Start subscribes to the sync channel and wires the engine's
// Authenticated event to a CredentialShared broadcast.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.pubsub = a.client.Subscribe(runCtx, a.channel)
	if _, err := a.pubsub.Receive(runCtx); err != nil {
		cancel()
		return err
	}

	a.engine.OnAuthenticated(func(realm, account, password string, ttl time.Duration) {
		if err := a.PublishCredentialShared(context.Background(), realm, account, password, ttl); err != nil {
			a.logger.Warn("failed to publish credential-shared", "error", err)
		}
	})

	a.wg.Add(1)
	go a.receiveLoop(runCtx)
	return nil
}

// Stop unsubscribes and waits for the receive loop to exit.
func (a *Adapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.pubsub != nil {
		_ = a.pubsub.Close()
	}
	a.wg.Wait()
	return nil
}

func (a *Adapter) receiveLoop(ctx context.Context) {
	defer a.wg.Done()
	ch := a.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			a.handle(msg.Payload)
		}
	}
}

func (a *Adapter) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		a.logger.Warn("discarding malformed sync message", "error", err)
		return
	}
	if env.NodeID == a.nodeID {
		return
	}
	metrics.SyncMessagesReceivedTotal.WithLabelValues(string(env.Kind)).Inc()

	switch env.Kind {
	case kindCredentialShared:
		var body credentialSharedBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			a.logger.Warn("malformed credential-shared body", "error", err)
			return
		}
		_ = a.engine.AddCredentials(body.Realm, body.Account, body.Password, time.Duration(body.TTLMS)*time.Millisecond)

	case kindFailObserved:
		var body failObservedBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			a.logger.Warn("malformed fail-observed body", "error", err)
			return
		}
		_ = a.engine.IncrementFailCount(body.Realm, body.Account)

	case kindCacheRemoveAccount:
		var body accountScopedBody
		if err := json.Unmarshal(env.Body, &body); err == nil {
			a.engine.FlushCache(body.Realm, body.Account)
		}

	case kindCacheRemoveRealm:
		var body realmScopedBody
		if err := json.Unmarshal(env.Body, &body); err == nil {
			a.engine.FlushCache(body.Realm, "")
		}

	case kindCacheClear:
		a.engine.ClearCache()

	case kindCacheRemoveNakAcct:
		var body accountScopedBody
		if err := json.Unmarshal(env.Body, &body); err == nil {
			a.engine.FlushNakCache(body.Realm, body.Account)
		}

	case kindCacheRemoveNakRealm:
		var body realmScopedBody
		if err := json.Unmarshal(env.Body, &body); err == nil {
			a.engine.FlushNakCache(body.Realm, "")
		}

	case kindCacheClearNak:
		a.engine.ClearNakCache()

	case kindKeyUpdate:
		// Peer public-key invalidation is a transport-layer concern (spec
		// §4.6 defers authentication/encryption of peer messages); nothing
		// in the engine itself is cached from it.

	default:
		a.logger.Warn("unknown sync message kind", "kind", env.Kind)
	}
}

func (a *Adapter) publish(ctx context.Context, kind messageKind, body interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	env := envelope{Kind: kind, NodeID: a.nodeID, Body: raw}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := a.client.Publish(ctx, a.channel, payload).Err(); err != nil {
		return err
	}
	metrics.SyncMessagesPublishedTotal.WithLabelValues(string(kind)).Inc()
	return nil
}

// PublishCredentialShared broadcasts a newly verified credential to peers.
func (a *Adapter) PublishCredentialShared(ctx context.Context, realm, account, password string, ttl time.Duration) error {
	return a.publish(ctx, kindCredentialShared, credentialSharedBody{
		Realm: realm, Account: account, Password: password, TTLMS: ttl.Milliseconds(),
	})
}

// PublishFailObserved broadcasts a locally observed failure so peers can
// mirror it into their own lockout tracker (spec §4.6 FailObserved).
func (a *Adapter) PublishFailObserved(ctx context.Context, realm, account string) error {
	return a.publish(ctx, kindFailObserved, failObservedBody{Realm: realm, Account: account})
}

// PublishCacheRemoveAccount broadcasts a single-account positive-cache
// removal.
func (a *Adapter) PublishCacheRemoveAccount(ctx context.Context, realm, account string) error {
	return a.publish(ctx, kindCacheRemoveAccount, accountScopedBody{Realm: realm, Account: account})
}

// PublishCacheRemoveRealm broadcasts a realm-scoped positive-cache flush.
func (a *Adapter) PublishCacheRemoveRealm(ctx context.Context, realm string) error {
	return a.publish(ctx, kindCacheRemoveRealm, realmScopedBody{Realm: realm})
}

// PublishCacheClear broadcasts a wholesale positive-cache clear.
func (a *Adapter) PublishCacheClear(ctx context.Context) error {
	return a.publish(ctx, kindCacheClear, struct{}{})
}

// PublishCacheRemoveNakAccount broadcasts a single-account negative-cache
// removal.
func (a *Adapter) PublishCacheRemoveNakAccount(ctx context.Context, realm, account string) error {
	return a.publish(ctx, kindCacheRemoveNakAcct, accountScopedBody{Realm: realm, Account: account})
}

// PublishCacheRemoveNakRealm broadcasts a realm-scoped negative-cache
// flush.
func (a *Adapter) PublishCacheRemoveNakRealm(ctx context.Context, realm string) error {
	return a.publish(ctx, kindCacheRemoveNakRealm, realmScopedBody{Realm: realm})
}

// PublishCacheClearNak broadcasts a wholesale negative-cache clear.
func (a *Adapter) PublishCacheClearNak(ctx context.Context) error {
	return a.publish(ctx, kindCacheClearNak, struct{}{})
}

// PublishKeyUpdate broadcasts a peer public-key invalidation notice.
func (a *Adapter) PublishKeyUpdate(ctx context.Context) error {
	return a.publish(ctx, kindKeyUpdate, struct{}{})
}
