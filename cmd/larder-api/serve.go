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

	"github.com/JonnyWalker81/larder/backend/internal/handlers"
	"github.com/JonnyWalker81/larder/backend/internal/logger"
	"github.com/JonnyWalker81/larder/backend/internal/middleware"
	"github.com/JonnyWalker81/larder/backend/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the HTTP API server and, when enabled, the daily analysis job.`,
	RunE:  runServe,
}

var (
	port       string
	noSchedule bool
)

const shutdownTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Do not run the daily analysis job")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	defer syncLogger()

	// Override port from flag if provided
	if port != "" {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting larder API server",
		logger.String("env", cfg.Server.Env),
		logger.String("store", cfg.Store.Driver),
	)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.supabase == nil {
		return errors.New("supabase.url and supabase.service_key are required to verify API tokens")
	}

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shoppingHandler := handlers.NewShoppingHandler(a.service)
	healthHandler := handlers.NewHealthHandler(cfg.Server.Env, cfg.Store.Driver, a.pinger)

	generalLimiter := middleware.NewRateLimiter(cfg.Server.RateLimit, time.Minute, "general")
	defer generalLimiter.Stop()
	// Analysis is the expensive call; allow a handful per user per minute
	analyzeLimiter := middleware.NewRateLimiter(5, time.Minute, "analyze")
	defer analyzeLimiter.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	router.GET("/health", healthHandler.Health)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(a.supabase))
	v1.Use(middleware.RateLimit(generalLimiter))
	{
		shopping := v1.Group("/shopping")
		shopping.GET("/list", shoppingHandler.GetShoppingList)
		shopping.GET("/predictions", shoppingHandler.GetPredictions)
		shopping.POST("/analyze", middleware.RateLimit(analyzeLimiter), shoppingHandler.Analyze)
		shopping.GET("/insights/:item_name", shoppingHandler.GetItemInsight)
		shopping.GET("/status", shoppingHandler.GetStatus)
	}

	if cfg.Analysis.ScheduleEnabled && !noSchedule {
		sched, err := scheduler.New(a.service, scheduler.Config{
			Spec:       cfg.Analysis.Schedule,
			Timezone:   cfg.Analysis.Timezone,
			RunTimeout: cfg.Analysis.RunTimeout,
		})
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				logger.Warn("scheduler shutdown", logger.Err(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", logger.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
