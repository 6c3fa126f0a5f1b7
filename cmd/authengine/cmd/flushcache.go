package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nforgeio/lilltek-auth/internal/config"
	syncadapter "github.com/nforgeio/lilltek-auth/internal/sync"
)

var (
	flushRealm   string
	flushAccount string
	flushNak     bool
)

var flushCacheCmd = &cobra.Command{
	Use:   "flush-cache",
	Short: "Broadcast a cache flush to every running cluster peer over Redis pub/sub",
	Long: `flush-cache publishes a CacheRemove* / CacheClear* sync message to the
cluster channel so every running authengine peer evicts the matching
cache entries. It does not touch a local cache, since a one-shot CLI
process has no running Engine of its own -- it only needs the same Redis
client and channel the peers already subscribe to.`,
	RunE: runFlushCache,
}

func init() {
	flushCacheCmd.Flags().StringVar(&flushRealm, "realm", "", "realm to flush; omit both --realm and --account to clear the whole cache")
	flushCacheCmd.Flags().StringVar(&flushAccount, "account", "", "single account within --realm to flush; omit to flush the whole realm")
	flushCacheCmd.Flags().BoolVar(&flushNak, "nak", false, "flush the negative (lockout) cache instead of the positive cache")
}

func runFlushCache(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Sync.Enabled {
		return fmt.Errorf("sync.enabled is false in config, there is no cluster channel to publish to")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Sync.RedisAddr,
		Password: cfg.Sync.RedisPassword,
		DB:       cfg.Sync.RedisDB,
	})
	defer client.Close()

	adapter := syncadapter.New(client, cfg.Sync.Channel, nil, nil)
	ctx := context.Background()

	switch {
	case flushRealm == "" && flushAccount == "":
		if flushNak {
			err = adapter.PublishCacheClearNak(ctx)
		} else {
			err = adapter.PublishCacheClear(ctx)
		}
	case flushAccount != "":
		if flushNak {
			err = adapter.PublishCacheRemoveNakAccount(ctx, flushRealm, flushAccount)
		} else {
			err = adapter.PublishCacheRemoveAccount(ctx, flushRealm, flushAccount)
		}
	default:
		if flushNak {
			err = adapter.PublishCacheRemoveNakRealm(ctx, flushRealm)
		} else {
			err = adapter.PublishCacheRemoveRealm(ctx, flushRealm)
		}
	}
	if err != nil {
		return fmt.Errorf("publishing cache flush: %w", err)
	}

	cmd.Println("cache flush broadcast")
	return nil
}
