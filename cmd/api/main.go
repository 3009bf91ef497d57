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

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/care-api/internal/config"
	adminhandler "github.com/jwalitptl/care-api/internal/handler/admin"
	authhandler "github.com/jwalitptl/care-api/internal/handler/auth"
	filehandler "github.com/jwalitptl/care-api/internal/handler/file"
	"github.com/jwalitptl/care-api/internal/handler/health"
	medicinehandler "github.com/jwalitptl/care-api/internal/handler/medicine"
	patienthandler "github.com/jwalitptl/care-api/internal/handler/patient"
	"github.com/jwalitptl/care-api/internal/middleware"
	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/internal/repository/memory"
	"github.com/jwalitptl/care-api/internal/repository/postgres"
	"github.com/jwalitptl/care-api/internal/router"
	adminService "github.com/jwalitptl/care-api/internal/service/admin"
	authService "github.com/jwalitptl/care-api/internal/service/auth"
	fileService "github.com/jwalitptl/care-api/internal/service/file"
	medicineService "github.com/jwalitptl/care-api/internal/service/medicine"
	patientService "github.com/jwalitptl/care-api/internal/service/patient"
	"github.com/jwalitptl/care-api/pkg/auth"
	"github.com/jwalitptl/care-api/pkg/logger"
	redisbroker "github.com/jwalitptl/care-api/pkg/messaging/redis"
	"github.com/jwalitptl/care-api/pkg/metrics"
	"github.com/jwalitptl/care-api/pkg/security"
)

const catalogCacheTTL = 5 * time.Minute

func main() {
	rootCmd := &cobra.Command{
		Use:          "care-api",
		Short:        "Patient care record API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres driver, got %q", cfg.Database.Driver)
			}

			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			log.Info().Msg("database schema is up to date")
			return nil
		},
	}
}

// setup loads configuration and installs the global logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	log.Logger = l.Zerolog()
	return cfg, nil
}

type repositories struct {
	users     repository.UserRepository
	patients  repository.PatientRepository
	medicines repository.MedicineRepository
	files     repository.FileRepository
	db        *sqlx.DB
}

func openRepositories(cfg config.DatabaseConfig) (*repositories, error) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return &repositories{
			users:     memory.NewUserRepository(),
			patients:  memory.NewPatientRepository(memory.NewOutboxRepository()),
			medicines: memory.NewMedicineRepository(),
			files:     memory.NewFileRepository(),
		}, nil
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, err
	}
	base := postgres.NewBaseRepository(db)
	return &repositories{
		users:     postgres.NewUserRepository(base),
		patients:  postgres.NewPatientRepository(base),
		medicines: postgres.NewMedicineRepository(base),
		files:     postgres.NewFileRepository(base),
		db:        db,
	}, nil
}

func revocationStore(ctx context.Context, cfg config.RedisConfig) (auth.RevocationStore, func(), error) {
	if cfg.URL == "" {
		log.Warn().Msg("redis is not configured, token revocation is kept in process")
		return auth.NewMemoryRevocationStore(), func() {}, nil
	}
	client, err := redisbroker.NewClient(ctx, redisbroker.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return auth.NewRedisRevocationStore(client), func() { client.Close() }, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	repos, err := openRepositories(cfg.Database)
	if err != nil {
		return err
	}
	if repos.db != nil {
		defer repos.db.Close()
	}

	revoked, closeRevoked, err := revocationStore(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer closeRevoked()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace, registry)

	// Services
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	authSvc := authService.NewService(
		repos.users,
		jwtSvc,
		revoked,
		security.NewBcryptHasher(cfg.Security.BcryptCost),
		authService.LockoutPolicy{MaxAttempts: cfg.Security.MaxLoginAttempts, Duration: cfg.Security.LockoutDuration},
		m,
	)
	catalog := medicineService.NewService(repos.medicines, catalogCacheTTL)
	patientSvc := patientService.NewService(repos.patients, catalog, m)
	fileSvc := fileService.NewService(repos.files, patientSvc)
	adminSvc := adminService.NewService(repos.users, patientSvc)

	// Handlers
	authMW := middleware.NewAuthMiddleware(authSvc)
	var pinger health.Pinger
	if repos.db != nil {
		pinger = repos.db
	}

	r := router.NewRouter(authMW, router.Handlers{
		Health:    health.NewHandler(pinger),
		Auth:      authhandler.NewHandler(authSvc, authMW.Authenticate()),
		Patients:  patienthandler.NewHandler(patientSvc),
		Medicines: medicinehandler.NewHandler(catalog),
		Files:     filehandler.NewHandler(fileSvc),
		Admin:     adminhandler.NewHandler(adminSvc),
	}, router.RouterConfig{
		Mode:       cfg.Server.Mode,
		CORSConfig: middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
		RateLimit: middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RPS),
			Burst: cfg.RateLimit.Burst,
		},
		SizeLimit:     middleware.DefaultSizeLimitConfig(cfg.Limits.MaxBodyBytes),
		Security:      middleware.DefaultSecurityConfig(),
		MetricsPrefix: cfg.Metrics.Namespace,
		Registry:      registry,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("driver", cfg.Database.Driver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited")
	return nil
}
