package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nforgeio/lilltek-auth/internal/adapter/httpjson"
	"github.com/nforgeio/lilltek-auth/internal/backend"
	"github.com/nforgeio/lilltek-auth/internal/config"
	"github.com/nforgeio/lilltek-auth/internal/engine"
	"github.com/nforgeio/lilltek-auth/internal/lock"
	"github.com/nforgeio/lilltek-auth/internal/realmmap"
	"github.com/nforgeio/lilltek-auth/internal/sync"
	pkglogger "github.com/nforgeio/lilltek-auth/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Authentication Engine with the reference HTTP adapter",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)
	logger.Info("starting authengine", "version", version, "config", configPath)

	backends := backend.NewRegistry()
	providers := realmmap.NewRegistry(backends)
	provider, ok := providers.New(cfg.RealmMap.ProviderType)
	if !ok {
		return fmt.Errorf("unknown realm_map.provider_type %q", cfg.RealmMap.ProviderType)
	}
	if err := provider.Open(backend.CommonArgs{}, cfg.RealmMap.ConfigHandle); err != nil {
		return fmt.Errorf("opening realm map provider: %w", err)
	}

	settings := engine.Settings{
		RealmMapLoadInterval: cfg.Engine.RealmMapLoadInterval,
		CacheTTL:             cfg.Engine.CacheTTL,
		MaxCacheSize:         cfg.Engine.MaxCacheSize,
		NakCacheTTL:          cfg.Engine.NakCacheTTL,
		MaxNakCacheSize:      cfg.Engine.MaxNakCacheSize,
		CacheFlushInterval:   cfg.Engine.CacheFlushInterval,
		BkTaskInterval:       cfg.Engine.BkTaskInterval,
		LogAuthSuccess:       cfg.Engine.LogAuthSuccess,
		LogAuthFailure:       cfg.Engine.LogAuthFailure,
		LockoutCount:         cfg.Engine.LockoutCount,
		LockoutThreshold:     cfg.Engine.LockoutThreshold,
		LockoutTime:          cfg.Engine.LockoutTime,
	}

	eng := engine.New(settings, provider, logger)

	var syncAdapter *sync.Adapter
	var redisClient *redis.Client
	if cfg.Sync.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Sync.RedisAddr,
			Password: cfg.Sync.RedisPassword,
			DB:       cfg.Sync.RedisDB,
		})

		if cfg.Sync.ReloadLockEnabled {
			eng.UseClusterReloadLock(redisClient, cfg.Sync.ReloadLockKey, &lock.LockConfig{TTL: cfg.Sync.ReloadLockTTL})
		}

		syncAdapter = sync.New(redisClient, cfg.Sync.Channel, eng, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	if syncAdapter != nil {
		if err := syncAdapter.Start(ctx); err != nil {
			logger.Error("cluster sync adapter failed to start", "error", err)
		}
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      httpjson.NewRouter(eng, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("http adapter listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http adapter failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http adapter shutdown error", "error", err)
	}

	if syncAdapter != nil {
		_ = syncAdapter.Stop()
	}
	if err := eng.Stop(); err != nil {
		logger.Error("engine shutdown error", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("authengine stopped")
	return nil
}

// newLogger builds the process-wide slog.Logger from cfg.Log via
// pkg/logger, which rotates to a file through lumberjack when
// log.output is "file" and writes plain stdout/stderr otherwise.
func newLogger(cfg *config.Config) *slog.Logger {
	return pkglogger.NewLogger(pkglogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
}
