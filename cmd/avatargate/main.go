// avatargate serves avatar speak delivery over HTTP with provider
// failover, health monitoring, response caching, and admission control.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/BaSui01/avatargate/avatar"
	"github.com/BaSui01/avatargate/config"
	"github.com/BaSui01/avatargate/dispatch"
	"github.com/BaSui01/avatargate/providers"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	// Adapter kinds self-register with the provider factory.
	_ "github.com/BaSui01/avatargate/providers/akool"
	_ "github.com/BaSui01/avatargate/providers/duix"
	_ "github.com/BaSui01/avatargate/providers/local"
	_ "github.com/BaSui01/avatargate/providers/mock"
	_ "github.com/BaSui01/avatargate/providers/senseavatar"
)

func main() {
	configPath := flag.String("config", "avatargate.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Fatal("avatargate exited", zap.Error(err))
	}
}

func run(cfg *config.Config, configPath string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, err := buildCache(cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	events := dispatch.NewDispatcher(dispatch.WithLogger(logger))

	client, err := avatar.NewClient(avatar.ClientConfig{
		AvatarID:      cfg.AvatarID,
		Retry:         cfg.Retry,
		Health:        cfg.Health,
		CacheTTL:      cfg.Cache.TTL,
		CacheCapacity: cfg.Cache.Capacity,
		Cache:         cache,
		Events:        events,
	}, logger)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}

	for _, pc := range cfg.Providers {
		desc := pc.Descriptor()
		p, err := providers.Build(desc, logger)
		if err != nil {
			return fmt.Errorf("build provider %q: %w", desc.Name, err)
		}
		if err := client.Register(desc, p); err != nil {
			return fmt.Errorf("register provider %q: %w", desc.Name, err)
		}
	}

	client.Start(ctx)

	watcher, err := config.NewWatcher(configPath, config.WithWatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("build config watcher: %w", err)
	}
	if err := watcher.Start(ctx, func(next *config.Config) {
		reloadProviders(client, next, logger)
	}); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	defer watcher.Stop()

	srv := NewServer(cfg.Server, client, events, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// reloadProviders rebuilds the provider set from a freshly loaded config.
// A provider that fails to build drops out of the new set; the rest still
// apply.
func reloadProviders(client *avatar.Client, cfg *config.Config, logger *zap.Logger) {
	entries := make([]*avatar.Entry, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		desc := pc.Descriptor()
		p, err := providers.Build(desc, logger)
		if err != nil {
			logger.Error("skipping provider on reload",
				zap.String("provider", desc.Name),
				zap.Error(err))
			continue
		}
		entries = append(entries, &avatar.Entry{Descriptor: desc, Provider: p})
	}
	if len(entries) == 0 {
		logger.Error("reload produced no usable providers, keeping previous set")
		return
	}
	client.Reload(entries)
	logger.Info("providers reloaded", zap.Int("count", len(entries)))
}

func buildCache(cfg config.CacheConfig, logger *zap.Logger) (avatar.Cache, error) {
	switch cfg.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return avatar.NewRedisCache(rdb, logger)
	default:
		// The in-memory cache is the default; NewClient builds it from
		// CacheCapacity when Cache is nil.
		return nil, nil
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
