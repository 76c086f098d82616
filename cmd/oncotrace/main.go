package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oncotrace/oncotrace/internal/config"
	"github.com/oncotrace/oncotrace/internal/domain/classify"
	"github.com/oncotrace/oncotrace/internal/domain/fusion"
	"github.com/oncotrace/oncotrace/internal/domain/streams"
	"github.com/oncotrace/oncotrace/internal/domain/timeline"
	"github.com/oncotrace/oncotrace/internal/platform/auth"
	"github.com/oncotrace/oncotrace/internal/platform/cache"
	"github.com/oncotrace/oncotrace/internal/platform/db"
	"github.com/oncotrace/oncotrace/internal/platform/middleware"
	"github.com/oncotrace/oncotrace/internal/platform/notify"
	"github.com/oncotrace/oncotrace/internal/platform/reporting"
	"github.com/oncotrace/oncotrace/internal/platform/sandbox"
	"github.com/oncotrace/oncotrace/internal/platform/telemetry"
)

const (
	serviceName    = "oncotrace"
	serviceVersion = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "oncotrace",
		Short: "Clinical event-stream fusion engine",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(fuseCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the fusion API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func fuseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fuse",
		Short: "Run one fusion batch over every patient and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFuse()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a synthetic demo cohort into the source streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			patients, _ := cmd.Flags().GetInt("patients")
			seed, _ := cmd.Flags().GetInt64("seed")
			return runSeed(patients, seed)
		},
	}
	cmd.Flags().Int("patients", sandbox.DefaultSeedConfig().PatientCount, "Number of synthetic patients")
	cmd.Flags().Int64("seed", 0, "RNG seed for a reproducible cohort (0 picks one)")
	return cmd
}

func runSeed(patients int, seed int64) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	seedCfg := sandbox.DefaultSeedConfig()
	if patients > 0 {
		seedCfg.PatientCount = patients
	}
	seedCfg.Seed = seed

	svc := streams.NewService(streams.NewRepo(pool))
	result, err := sandbox.NewSeeder(svc, seedCfg, logger).Seed(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d patients: %d source rows in %s.\n",
		result.Patients, result.TotalRows, result.Duration.Round(time.Millisecond))
	return nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a service token",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			rolesCSV, _ := cmd.Flags().GetString("roles")
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET must be set to mint tokens")
			}

			roles := splitRoles(rolesCSV)
			if len(roles) == 0 {
				return fmt.Errorf("--roles must name at least one role")
			}

			token, err := auth.Mint(auth.Config{
				Secret:   []byte(cfg.JWTSecret),
				Issuer:   serviceName,
				TokenTTL: time.Duration(cfg.TokenTTLHours) * time.Hour,
			}, subject, roles)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Token subject (service or user identifier)")
	cmd.Flags().String("roles", auth.RoleViewer, "Comma-separated roles (viewer, operator, admin)")
	return cmd
}

// splitRoles parses a comma-separated role list, dropping blanks.
func splitRoles(csv string) []string {
	var roles []string
	for _, r := range strings.Split(csv, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// buildFusionService wires the fusion engine with its stream source and the
// optional cache, notifier and telemetry dependencies. The returned cleanup
// closes whatever was opened.
func buildFusionService(cfg *config.Config, pool *pgxpool.Pool, tp *telemetry.TelemetryProvider, logger zerolog.Logger) (*fusion.Service, *streams.Service, func(), error) {
	classifier := classify.NewDefault()
	if cfg.TriggerVocabFile != "" {
		vocab, err := classify.LoadVocabulary(cfg.TriggerVocabFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load trigger vocabulary: %w", err)
		}
		classifier = classify.New(vocab)
		logger.Info().Str("file", cfg.TriggerVocabFile).Msg("trigger vocabulary loaded")
	}

	var summaryCache *cache.SummaryCache
	if cfg.CacheEnabled() {
		c, err := cache.New(cfg.RedisAddr, cfg.RedisPassword, time.Duration(cfg.CacheTTLMinutes)*time.Minute, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		summaryCache = c
	}

	var notifier *notify.RunNotifier
	if cfg.NotifyEnabled() {
		notifier = notify.New(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	}

	streamsSvc := streams.NewService(streams.NewRepo(pool))
	fusionSvc := fusion.NewService(fusion.Deps{
		Repo:       fusion.NewRepo(pool),
		Source:     streamsSvc,
		Normalizer: timeline.NewNormalizer(classifier, logger),
		Workers:    cfg.FusionWorkers,
		Cache:      summaryCache,
		Notifier:   notifier,
		Telemetry:  tp,
		Logger:     logger,
	})

	cleanup := func() {
		if err := summaryCache.Close(); err != nil {
			logger.Warn().Err(err).Msg("cache close failed")
		}
		if err := notifier.Close(); err != nil {
			logger.Warn().Err(err).Msg("notifier close failed")
		}
	}
	return fusionSvc, streamsSvc, cleanup, nil
}

func runFuse() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// SIGINT stops feeding new patients; in-flight patients finish.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, _, cleanup, err := buildFusionService(cfg, pool, nil, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := svc.RunFusion(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s completed: %d patients, %d events, %d summaries, %d audit entries.\n",
		run.ID, run.PatientCount, run.EventCount, run.SummaryCount, run.AuditCount)
	return nil
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode; dev auth grants admin to every request")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Env,
	})
	defer tp.Shutdown(ctx)

	fusionSvc, streamsSvc, cleanup, err := buildFusionService(cfg, pool, tp, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire fusion service")
	}
	defer cleanup()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(tp.TracingMiddleware())
	e.Use(tp.MetricsMiddleware())

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.Config{
			Secret: []byte(cfg.JWTSecret),
			Issuer: serviceName,
		}))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// Health and metrics
	e.GET("/healthz", db.LivenessHandler())
	e.GET("/readyz", db.ReadinessHandler(pool))
	e.GET("/metrics", tp.PrometheusHandler())

	// API groups
	apiV1 := e.Group("/api/v1")

	// Rate limiting keys by token subject, so it must sit behind auth.
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))

	streams.NewHandler(streamsSvc).RegisterRoutes(apiV1)
	fusion.NewHandler(fusionSvc).RegisterRoutes(apiV1)
	reporting.NewHandler(pool).RegisterRoutes(apiV1)

	// Pool gauges for the metrics endpoint
	gaugeCtx, gaugeCancel := context.WithCancel(ctx)
	defer gaugeCancel()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		hm := tp.HealthMetrics()
		for {
			select {
			case <-gaugeCtx.Done():
				return
			case <-ticker.C:
				stats := db.GetPoolStats(pool)
				hm.SetDBPoolActive(int64(stats.AcquiredConns))
				hm.SetDBPoolIdle(int64(stats.IdleConns))
			}
		}
	}()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
