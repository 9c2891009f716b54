package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/calmstack/mantra/internal/api/handlers"
	"github.com/calmstack/mantra/internal/cache"
	"github.com/calmstack/mantra/internal/catalog"
	"github.com/calmstack/mantra/internal/config"
	"github.com/calmstack/mantra/internal/feedback"
	"github.com/calmstack/mantra/internal/fetch"
	"github.com/calmstack/mantra/internal/jobs"
	"github.com/calmstack/mantra/internal/orchestrator"
	"github.com/calmstack/mantra/internal/repository"
	"github.com/calmstack/mantra/internal/server"
	"github.com/calmstack/mantra/internal/source"
	"github.com/calmstack/mantra/internal/storage"
	"github.com/calmstack/mantra/internal/telemetry"
	"github.com/calmstack/mantra/internal/validate"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the mantra API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	var (
		cacheStore    cache.Store
		feedbackStore feedback.Store
		sessions      *repository.SessionRepository
	)
	if cfg.HasDatabase() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		log.Println("connected to database")

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		cacheStore = repository.NewCacheRepository(pool)
		feedbackStore = repository.NewFeedbackRepository(pool)
		sessions = repository.NewSessionRepository(pool)
	} else {
		cacheStore = cache.NewFileCache(filepath.Join(cfg.DataDir, "fetch_cache.json"))
		feedbackStore = feedback.NewFileStore(filepath.Join(cfg.DataDir, "feedback.json"))
		log.Println("no database configured, using file-backed stores")
	}

	fetcher := fetch.NewHTTPFetcher(filepath.Join(cfg.DataDir, "artifacts"), cfg.FetchTimeout)
	validator := validate.New(validatorConfig(cfg))

	sources, err := buildSources(cfg, cat)
	if err != nil {
		return err
	}

	var opts []orchestrator.Option
	if sessions != nil {
		opts = append(opts, orchestrator.WithHistory(sessions))
	}
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		opts = append(opts, orchestrator.WithMirror(s3Client))
	}

	orch, err := orchestrator.New(orchestrator.Config{
		SourceAttempts: cfg.SourceAttempts,
		AttemptBudget:  cfg.AttemptBudget,
		RecentLimit:    cfg.RecentLimit,
		SourceTimeout:  cfg.SourceTimeout,
		FetchTimeout:   cfg.FetchTimeout,
		Concurrent:     cfg.ConcurrentSources,
	}, sources, fetcher, validator, cacheStore, cat, opts...)
	if err != nil {
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	var warmWorker *jobs.Worker
	if cfg.WarmInterval > 0 {
		warmWorker = jobs.NewWorker(jobs.NewWarmer(cat, orch, ""), cfg.WarmInterval)
		go warmWorker.Start(ctx)
		log.Println("cache warmer started")
	}

	var sessionRecorder handlers.SessionRecorder
	if sessions != nil {
		sessionRecorder = sessions
	}

	router := server.NewRouter(server.RouterConfig{
		MeditationHandler: handlers.NewMeditationHandler(orch, sessionRecorder, feedbackStore),
		FeedbackHandler:   handlers.NewFeedbackHandler(feedbackStore),
		MoodHandler:       handlers.NewMoodHandler(cat),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if warmWorker != nil {
		warmWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func validatorConfig(cfg *config.Config) validate.Config {
	vc := validate.DefaultConfig()
	vc.IdealMinSeconds = cfg.IdealMinSeconds
	vc.IdealMaxSeconds = cfg.IdealMaxSeconds
	vc.FallbackMinSeconds = cfg.FallbackMinSeconds
	vc.FallbackMaxSeconds = cfg.FallbackMaxSeconds
	vc.MinBitrateKbps = cfg.MinBitrateKbps
	vc.MinSampleRateHz = cfg.MinSampleRateHz
	vc.SoftPass = cfg.SoftPass
	return vc
}

// buildSources instantiates the configured sources in priority order. The
// openai source is skipped with a warning when no API key is set; any
// other unknown name is fatal.
func buildSources(cfg *config.Config, cat *catalog.Catalog) ([]source.Client, error) {
	window := source.DurationWindow{
		MinSeconds: cfg.FallbackMinSeconds,
		MaxSeconds: cfg.FallbackMaxSeconds,
	}
	seed := time.Now().UnixNano()

	var sources []source.Client
	for _, name := range cfg.SourcePriority {
		switch name {
		case "curated":
			sources = append(sources, source.NewCuratedSource(cat, window, seed))
		case "archive":
			sources = append(sources, source.NewArchiveSource(source.ArchiveConfig{
				APIURL:  cfg.ArchiveAPIURL,
				Window:  window,
				Timeout: cfg.SourceTimeout,
			}, cat))
		case "scrape":
			sources = append(sources, source.NewScrapeSource(source.ScrapeConfig{
				BaseURL: cfg.ScrapeBaseURL,
				Window:  window,
				Timeout: cfg.SourceTimeout,
			}, cat, seed))
		case "openai":
			if !cfg.HasOpenAI() {
				log.Println("openai source configured but no API key set, skipping")
				continue
			}
			api := source.NewOpenAIAdapter(cfg.OpenAIAPIKey, cfg.OpenAIModel)
			sources = append(sources, source.NewLookupSource(api, source.DefaultReachabilityChecker(cfg.SourceTimeout), source.LookupConfig{
				CachePath: filepath.Join(cfg.DataDir, "openai_cache.json"),
				Timeout:   cfg.SourceTimeout,
			}))
		default:
			return nil, fmt.Errorf("unknown source %q in priority list", name)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no usable sources configured")
	}
	return sources, nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
