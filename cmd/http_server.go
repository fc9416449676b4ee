package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/auth"
	"github.com/frahmantamala/workpermit/internal/authz"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	"github.com/frahmantamala/workpermit/internal/core/events"
	"github.com/frahmantamala/workpermit/internal/directory"
	directorypg "github.com/frahmantamala/workpermit/internal/directory/postgres"
	"github.com/frahmantamala/workpermit/internal/grant"
	grantpg "github.com/frahmantamala/workpermit/internal/grant/postgres"
	"github.com/frahmantamala/workpermit/internal/obs"
	"github.com/frahmantamala/workpermit/internal/permit"
	permitpg "github.com/frahmantamala/workpermit/internal/permit/postgres"
	"github.com/frahmantamala/workpermit/internal/transport"
	"github.com/frahmantamala/workpermit/internal/transport/openapi"
	"github.com/frahmantamala/workpermit/internal/transport/rest"
	"github.com/frahmantamala/workpermit/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

// Stores are the connections every command shares. Gorm reuses the sqlx
// pool rather than opening its own.
type Stores struct {
	SQL  *sqlx.DB
	Gorm *gorm.DB
}

func (s *Stores) Close() error {
	return s.SQL.Close()
}

type Dependencies struct {
	Config   *internal.Config
	Stores   *Stores
	Router   *chi.Mux
	EventBus *events.EventBus
	Metrics  *obs.Metrics
	Logger   *slog.Logger

	Directory directory.Directory
	Grants    *grant.Service
	Authz     *authz.Service
	Auth      *auth.Service
	Permits   *permit.Service
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(context.Background(), deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		// let coworker marking for already approved permits finish
		deps.EventBus.Wait()
		if err := deps.Stores.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(ctx context.Context, deps *Dependencies) error {
	cfg := deps.Config

	doc, err := openapi.Load(ctx, cfg.Server.OpenAPIPath)
	if err != nil {
		return err
	}
	contract, err := openapi.NewValidator(doc, rest.APIBasePath, deps.Logger)
	if err != nil {
		return err
	}

	base := transport.NewBaseHandler(deps.Logger)
	handlers := rest.Handlers{
		Auth:   auth.NewHandler(base, deps.Auth),
		Grant:  grant.NewHandler(base, deps.Grants),
		Authz:  authz.NewHandler(base, deps.Authz),
		Permit: permit.NewHandler(base, deps.Permits),
	}

	rest.RegisterAllRoutes(deps.Router, deps.Stores.SQL.DB, handlers, rest.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		OpenAPIPath:    cfg.Server.OpenAPIPath,
		MetricsPath:    cfg.Observability.Metrics.Path,
		Metrics:        deps.Metrics,
		Contract:       contract,
	}, deps.Logger)
	return nil
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	stores, err := openStores(ctx, config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps := &Dependencies{
		Config:   config,
		Stores:   stores,
		Router:   chi.NewRouter(),
		EventBus: events.NewEventBus(log),
		Logger:   log,
	}

	policy := approvalPolicy(config.Approval)
	deps.Directory = directorypg.NewDirectoryRepository(stores.SQL)
	deps.Grants = grant.NewService(grantpg.NewGrantRepository(stores.Gorm), policy, log)
	deps.Authz = authz.NewService(deps.Grants, deps.Directory, policy, log)
	deps.Auth = auth.NewService(deps.Directory, newTokenGenerator(config.Security), log)

	var recorder permit.Recorder
	if config.Observability.Metrics.Enabled {
		deps.Metrics = obs.New()
		recorder = deps.Metrics
	}

	permitRepo := permitpg.NewPermitRepository(stores.Gorm)
	deps.Permits = permit.NewService(permitRepo, deps.Directory, deps.Authz, deps.EventBus, recorder, policy, log)
	permit.NewEventHandler(log).RegisterEventHandlers(deps.EventBus)

	return deps, nil
}

func approvalPolicy(cfg internal.ApprovalConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxTries = cfg.RetryMaxTries
	if cfg.RetryMaxElapsed > 0 {
		policy.MaxElapsedTime = cfg.RetryMaxElapsed
	}
	return policy
}

func newTokenGenerator(cfg internal.SecurityConfig) *auth.JWTTokenGenerator {
	return auth.NewJWTTokenGenerator(cfg.TokenSecret, cfg.TokenIssuer, cfg.AccessTokenDuration)
}

// openStores connects through the pgx stdlib driver and hands the same pool
// to gorm.
func openStores(ctx context.Context, cfg internal.DatabaseConfig) (*Stores, error) {
	const driver = "pgx"

	dbConn, err := sqlx.ConnectContext(ctx, driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: dbConn.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}

	return &Stores{SQL: dbConn, Gorm: gormDB}, nil
}
