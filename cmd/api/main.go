package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medibook/clinic-platform/internal/api/router"
	"github.com/medibook/clinic-platform/internal/appointments"
	"github.com/medibook/clinic-platform/internal/calendar"
	appconfig "github.com/medibook/clinic-platform/internal/config"
	"github.com/medibook/clinic-platform/internal/dashboard"
	"github.com/medibook/clinic-platform/internal/directory"
	"github.com/medibook/clinic-platform/internal/observability/metrics"
	"github.com/medibook/clinic-platform/internal/payments"
	"github.com/medibook/clinic-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		apptRepo appointments.Repository
		slots    calendar.Store
		doctors  directory.Doctors
		patients directory.Patients
		counts   dashboard.Counts
		txStore  payments.TransactionStore
		stats    dashboard.StatsSource
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		pgDir := directory.NewPostgresDirectory(pool)
		apptRepo = appointments.NewPostgresRepository(pool)
		slots = calendar.NewPostgresStore(pool)
		doctors, patients, counts = pgDir, pgDir, pgDir
		txStore = payments.NewPostgresTransactionStore(pool)

		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open sql handle", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		stats = dashboard.NewSQLStats(db)

		logger.Info("using postgres stores")
	} else {
		dir := directory.NewMemoryDirectory()
		apptRepo = appointments.NewMemoryRepository()
		slots = calendar.NewMemoryStore()
		doctors, patients, counts = dir, dir, dir
		txStore = payments.NewMemoryTransactionStore()
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)
	paymentMetrics := metrics.NewPaymentMetrics(nil)

	lifecycle := appointments.NewService(apptRepo, slots, doctors, patients, logger)

	var providers []payments.Provider
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		providers = append(providers, payments.NewRazorpayClient(
			cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayBaseURL,
			cfg.Currency, cfg.ProviderHTTPTimeout, logger,
		))
	}
	if cfg.KhaltiSecretKey != "" {
		providers = append(providers, payments.NewKhaltiClient(
			cfg.KhaltiSecretKey, cfg.KhaltiBaseURL, cfg.KhaltiReturnURL,
			cfg.PublicBaseURL, cfg.ProviderHTTPTimeout, logger,
		))
	}
	if len(providers) == 0 {
		logger.Warn("no payment providers configured")
	}

	gateway := payments.NewService(providers, txStore, lifecycle,
		newProcessedTracker(cfg, logger), paymentMetrics, logger)

	projections := dashboard.NewService(apptRepo, counts, stats,
		cfg.DashboardWindowDays, cfg.TopDoctorsLimit, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: appointments.NewHandler(lifecycle, bookingMetrics, logger),
		PaymentsHandler:     payments.NewHandler(gateway, logger),
		DashboardHandler:    dashboard.NewHandler(projections, logger),
		MetricsHandler:      promhttp.Handler(),
		JWTSecret:           cfg.JWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// newProcessedTracker connects the Redis confirmation tracker, degrading to
// the in-memory tracker if Redis is unconfigured or unreachable.
func newProcessedTracker(cfg *appconfig.Config, logger *logging.Logger) payments.ProcessedTracker {
	if cfg.RedisAddr == "" {
		return payments.NewMemoryTracker()
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to in-memory tracker", "error", err)
		_ = client.Close()
		return payments.NewMemoryTracker()
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)
	return payments.NewRedisTracker(client, 0)
}
