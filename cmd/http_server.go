package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/secure-payments/internal"
	"github.com/frahmantamala/secure-payments/internal/core/events"
	"github.com/frahmantamala/secure-payments/internal/keymanager"
	"github.com/frahmantamala/secure-payments/internal/parameters"
	"github.com/frahmantamala/secure-payments/internal/payment"
	"github.com/frahmantamala/secure-payments/internal/payment/memory"
	paymentPostgres "github.com/frahmantamala/secure-payments/internal/payment/postgres"
	"github.com/frahmantamala/secure-payments/internal/transport/rest"
	"github.com/frahmantamala/secure-payments/internal/transport/swagger"
	"github.com/frahmantamala/secure-payments/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config     *internal.Config
	DB         *sqlx.DB
	Gorm       *gorm.DB
	Redis      *redis.Client
	Store      payment.Store
	Params     *parameters.Provider
	Keys       *keymanager.Scoped
	EventBus   *events.EventBus
	Service    *payment.Service
	Reconciler *payment.IndexReconciler
	Logger     *slog.Logger
}

func (d *Dependencies) Close() {
	if d.EventBus != nil {
		d.EventBus.Wait()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("Database close error", "error", err)
		}
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	router, err := setupRoutes(deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.Reconciler.Start(ctx)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "store", deps.Config.Database.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		deps.Logger.Info("Received signal, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Reconciler.Stop()
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Reconciler.Stop()
	deps.Close()
	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) (*chi.Mux, error) {
	docs, err := swagger.Load(context.Background())
	if err != nil {
		return nil, err
	}

	checks := map[string]rest.CheckFunc{}
	if deps.DB != nil {
		checks["postgres"] = deps.DB.PingContext
	}
	if deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.RouterOptions{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		Health:         rest.NewHealthHandler(checks),
		Payments:       payment.NewHandler(deps.Service),
		Docs:           docs,
	}, deps.Logger)

	return router, nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Configure(config.Server.Env, config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	deps := &Dependencies{Config: config, Logger: lg}

	switch config.Database.Driver {
	case "memory":
		lg.Warn("using in-memory payment store; data is lost on restart")
		deps.Store = memory.New()
	default:
		db, err := initDB(config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		gdb, err := initGorm(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize gorm: %w", err)
		}
		deps.DB = db
		deps.Gorm = gdb
		deps.Store = paymentPostgres.NewPaymentRepository(gdb)
	}

	if config.Redis.Addr != "" {
		client, err := initRedis(config.Redis)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		deps.Redis = client
	}

	source, err := parameterSource(config, deps.Redis)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Params = parameters.NewProvider(source, parameters.Names{
		MaskPattern: config.Parameters.MaskPatternName(),
		MaxAmount:   config.Parameters.MaxAmountName(),
	}, config.Parameters.CacheTTL)

	keys, err := initKeyManager(config.KeyManager)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Keys = keys

	deps.EventBus = events.NewEventBus(lg)
	audit := events.AuditLogHandler(lg.With("component", "audit"))
	deps.EventBus.Subscribe(events.EventTypePaymentCreated, audit)
	deps.EventBus.Subscribe(events.EventTypePaymentApproved, audit)

	deps.Service = payment.NewService(deps.Store, deps.Params, deps.Keys, deps.EventBus, lg).
		WithDependencyTimeout(config.Dependencies.Timeout)
	deps.Reconciler = payment.NewIndexReconciler(deps.Store, config.Index.ReconcileInterval, lg)

	return deps, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

func initRedis(cfg internal.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func parameterSource(cfg *internal.Config, client *redis.Client) (parameters.Source, error) {
	switch cfg.Parameters.Source {
	case "file":
		return parameters.NewFileSource(cfg.Parameters.FilePath), nil
	case "redis":
		if client == nil {
			return nil, errors.New("parameters source redis requires redis.addr")
		}
		return parameters.NewRedisSource(client), nil
	default:
		return nil, fmt.Errorf("unknown parameters source %q", cfg.Parameters.Source)
	}
}

func initKeyManager(cfg internal.KeyManagerConfig) (*keymanager.Scoped, error) {
	key, err := cfg.DecodeKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load key: %w", err)
	}
	local, err := keymanager.NewLocalKeyManager(cfg.KeyID, key)
	if err != nil {
		return nil, err
	}
	grants, err := keymanager.ParseGrants(cfg.Grants)
	if err != nil {
		return nil, err
	}
	return keymanager.NewScoped(local, grants), nil
}
