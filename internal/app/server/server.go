// Package server wires the outlet sync service together.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"outlet-sync/internal/api"
	"outlet-sync/internal/config"
	"outlet-sync/internal/engine"
	"outlet-sync/internal/events"
	"outlet-sync/internal/listener"
	"outlet-sync/internal/lock"
	"outlet-sync/internal/market"
	"outlet-sync/internal/runner"
	"outlet-sync/internal/storage"
)

// App holds the long-lived dependencies shared by serve and one-shot runs.
type App struct {
	Store  *storage.Store
	Cache  *storage.Cache
	Runner *runner.Runner

	ctx     context.Context
	cancel  context.CancelFunc
	bg      sync.WaitGroup
	closers []func() error
}

// Build connects to postgres, redis and kafka as configured. Background
// runs started through App.Runner stop when ctx is cancelled or the App is
// closed.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.RequireMarket(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	store, err := storage.New(ctx, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a := &App{Store: store, Cache: storage.NewCache(), ctx: ctx, cancel: cancel}
	a.closers = append(a.closers, func() error { store.Close(); return nil })

	pub, closePub := newPublisher(cfg)
	a.closers = append(a.closers, closePub)

	locker, closeLock := newLocker(cfg)
	a.closers = append(a.closers, closeLock)

	client := market.New(
		market.NewHTTPClient(cfg.MarketTimeout(), cfg.Market.Retries),
		cfg.Market.BaseURL,
		cfg.Market.OAuthToken,
		cfg.Market.OAuthClientID,
	)

	eng := engine.NewEngine(engine.Options{
		Partner:        client,
		Directory:      storage.CachingDirectory{Dir: store, Cache: a.Cache},
		Catalog:        store,
		Publisher:      pub,
		Logger:         log.Logger,
		ManagedSpaces:  cfg.Sync.ManagedSpaces,
		PageSize:       cfg.Sync.PageSize,
		MaxOutletPages: cfg.Sync.MaxOutletPages,
		RegionMaxPages: cfg.Sync.RegionMaxPages,
		Pause:          cfg.Sync.Pause,
	})
	a.Runner = runner.New(ctx, eng, locker, log.Logger)

	log.Info().
		Str("db", store.DSNRedacted()).
		Str("market", cfg.Market.BaseURL).
		Strs("managed_spaces", cfg.Sync.ManagedSpaces).
		Msg("app ready")
	return a, nil
}

// goBackground runs fn with the app context; Close waits for it.
func (a *App) goBackground(fn func(ctx context.Context)) {
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		fn(a.ctx)
	}()
}

// Close cancels background work, waits for it and releases connections in
// reverse order.
func (a *App) Close() {
	a.cancel()
	a.bg.Wait()
	a.Runner.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func newPublisher(cfg config.Config) (engine.Publisher, func() error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.Noop{}, events.Noop{}.Close
	}
	k := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	return k, k.Close
}

func newLocker(cfg config.Config) (lock.Locker, func() error) {
	if cfg.Redis.Addr == "" {
		return &lock.LocalLocker{}, func() error { return nil }
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return lock.NewRedisLocker(rdb, cfg.Redis.LockKey, cfg.Redis.LockTTL), rdb.Close
}

func newHTTPServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Serve runs the HTTP API, the periodic schedule and the catalog listener
// until ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config) error {
	a, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// warm the campaign cache for the admin API
	if cs, err := a.Store.ListCampaigns(a.ctx); err != nil {
		log.Warn().Err(err).Msg("warm campaign cache")
	} else {
		a.Cache.UpdateCampaigns(cs)
	}

	a.goBackground(func(ctx context.Context) { a.Runner.Schedule(ctx, cfg.Sync.Interval) })
	if cfg.Listener.Enabled {
		a.goBackground(func(ctx context.Context) {
			listener.ListenAndTrigger(ctx, a.Store.PgxPool(), a.Runner, a.Store.ListenChannel(), cfg.Backoff())
		})
	}

	srv := newHTTPServer(cfg, api.Router(api.NewSyncHandler(a.Runner, a.Cache, a.Store)))
	return runHTTP(a.ctx, srv)
}

// runHTTP serves until ctx is done, then shuts down gracefully. A listen
// failure is returned at once.
func runHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	return srv.Shutdown(shCtx)
}

// RunOnce performs a single synchronous sync.
func RunOnce(ctx context.Context, cfg config.Config) (engine.Report, error) {
	a, err := Build(ctx, cfg)
	if err != nil {
		return engine.Report{}, err
	}
	defer a.Close()
	return a.Runner.Run(ctx, engine.TriggerManual)
}
