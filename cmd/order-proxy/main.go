package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/pickup-client/internal/httpapi"
	"github.com/Sternrassler/pickup-client/pkg/cache"
	"github.com/Sternrassler/pickup-client/pkg/cart"
	"github.com/Sternrassler/pickup-client/pkg/config"
	"github.com/Sternrassler/pickup-client/pkg/controller"
	"github.com/Sternrassler/pickup-client/pkg/logging"
	"github.com/Sternrassler/pickup-client/pkg/notify"
	"github.com/Sternrassler/pickup-client/pkg/ratelimit"
	"github.com/Sternrassler/pickup-client/pkg/remote"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Order proxy failed")
	}
}

// app holds the wired components of the order proxy.
type app struct {
	redis  *redis.Client
	db     *gorm.DB
	bridge notify.Bridge
	ctrl   *controller.Controller
	server *httpapi.Server

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Shutdown step failed")
		}
	}
}

// setup connects every backend and installs the cache. A cache install
// failure aborts startup.
func setup(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	a.redis = redis.NewClient(opts)
	a.closers = append(a.closers, a.redis.Close)
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")

	a.db, err = remote.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := a.db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := remote.Migrate(a.db); err != nil {
		return nil, err
	}

	switch cfg.Notify.Transport {
	case config.TransportAMQP:
		b, err := notify.DialAMQP(cfg.Notify.AMQPURL, cfg.Notify.Exchange)
		if err != nil {
			return nil, fmt.Errorf("connect to amqp: %w", err)
		}
		a.bridge = b
		a.closers = append(a.closers, b.Close)
	default:
		a.bridge = notify.NewRedisBridge(a.redis, cfg.Redis.Namespace)
	}
	store := remote.NewStore(a.db, a.bridge)

	ccfg := controller.DefaultConfig(cfg.Origin(), cfg.Cache.Version)
	ccfg.ShellAssets = cfg.Cache.ShellAssets
	ccfg.Rules = controller.Rules{BypassHosts: cfg.Cache.BypassHosts, BypassPaths: cfg.Cache.BypassPaths}
	ccfg.PrecacheConcurrency = cfg.Cache.PrecacheConcurrency
	ccfg.RevalidateTimeout = cfg.Cache.RevalidateTimeout
	a.ctrl, err = controller.New(cache.NewStore(a.redis, cfg.Redis.Namespace), ccfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		a.ctrl.Wait()
		return nil
	})

	report, err := a.ctrl.Install(ctx)
	if err != nil {
		return nil, fmt.Errorf("install cache %s: %w", cfg.Cache.Version, err)
	}
	log.Info().
		Str("version", cfg.Cache.Version).
		Int("cached", len(report.Cached)).
		Int("failed", len(report.Failed)).
		Msg("Cache installed")

	deleted, err := a.ctrl.Activate(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Stale caches not fully deleted")
	}
	log.Info().Strs("deleted", deleted).Msg("Cache activated")

	var limiter *ratelimit.Limiter
	if cfg.Limit.Commands > 0 {
		limiter, err = ratelimit.NewLimiter(a.redis, ratelimit.Config{
			Limit:     cfg.Limit.Commands,
			Window:    cfg.Limit.Window,
			Namespace: cfg.Redis.Namespace,
		})
		if err != nil {
			return nil, err
		}
	}

	a.server, err = httpapi.New(httpapi.Config{
		Remote:        store,
		Redis:         a.redis,
		Namespace:     cfg.Redis.Namespace,
		Bridge:        a.bridge,
		Controller:    a.ctrl,
		Limiter:       limiter,
		DefaultDevice: cfg.Server.DeviceID,
		StaffToken:    cfg.Server.StaffToken,
		Retry:         cart.DefaultRetryConfig(),

		MaxSessions:        cfg.Server.MaxSessions,
		SessionIdleTimeout: cfg.Server.SessionIdleTimeout,
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func run(ctx context.Context, cfg config.Config) error {
	a, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Str("origin", cfg.Server.OriginURL).Msg("Starting order proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
