package main

import (
	"context"
	"fmt"
	"io"

	"github.com/JonnyWalker81/larder/backend/internal/config"
	"github.com/JonnyWalker81/larder/backend/internal/handlers"
	"github.com/JonnyWalker81/larder/backend/internal/lock"
	"github.com/JonnyWalker81/larder/backend/internal/logger"
	"github.com/JonnyWalker81/larder/backend/internal/repository"
	"github.com/JonnyWalker81/larder/backend/internal/repository/postgres"
	"github.com/JonnyWalker81/larder/backend/internal/repository/sqlite"
	"github.com/JonnyWalker81/larder/backend/internal/service"
	"github.com/JonnyWalker81/larder/backend/pkg/supabase"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg      *config.Config
	service  service.PredictionService
	supabase *supabase.Client
	// pinger is nil for the Supabase store, which has no cheap health check
	pinger  handlers.Pinger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadConfig reads configuration and installs the global logger. A nil
// logOut logs to stdout; commands that print results pass stderr.
func loadConfig(logOut io.Writer) (*config.Config, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Format:  cfg.Log.Format,
		Backend: cfg.Log.Backend,
		Output:  logOut,
	})
	logger.SetDefault(log)

	return cfg, nil
}

// newApp opens the configured store and lock backend and builds the
// prediction service on top of them
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Supabase.URL != "" && cfg.Supabase.ServiceKey != "" {
		a.supabase = supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	}

	var (
		eventRepo      repository.EventRepository
		predictionRepo repository.PredictionRepository
	)

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewConnection(ctx, postgres.Config{
			URL:            cfg.Store.DatabaseURL,
			MaxConnections: cfg.Store.MaxConnections,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.pinger = db
		eventRepo = postgres.NewEventRepository(db)
		predictionRepo = postgres.NewPredictionRepository(db)

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.pinger = db
		eventRepo = sqlite.NewEventRepository(db)
		predictionRepo = sqlite.NewPredictionRepository(db)

	default:
		eventRepo = repository.NewEventRepository(a.supabase)
		predictionRepo = repository.NewPredictionRepository(a.supabase)
	}

	var locker lock.Locker
	if cfg.Redis.Addr != "" {
		client, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		locker = lock.NewRedisLocker(client)
		logger.Info("using redis item lock", logger.String("addr", cfg.Redis.Addr))
	}

	a.service = service.NewPredictionService(eventRepo, predictionRepo, locker, service.Options{
		Workers:       cfg.Analysis.Workers,
		StaleAfter:    cfg.Analysis.StaleAfter,
		RetentionDays: cfg.Analysis.RetentionDays,
	})

	logger.Info("prediction store ready", logger.String("driver", cfg.Store.Driver))

	return a, nil
}

// syncLogger flushes buffered entries for backends that buffer (zap)
func syncLogger() {
	if s, ok := logger.Default().(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}
