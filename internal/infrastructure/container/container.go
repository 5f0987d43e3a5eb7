// Package container wires the application with Uber FX
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/alchemorsel/pantrychef/internal/application/actions"
	"github.com/alchemorsel/pantrychef/internal/application/ai"
	"github.com/alchemorsel/pantrychef/internal/application/prompt"
	apprecipe "github.com/alchemorsel/pantrychef/internal/application/recipe"
	"github.com/alchemorsel/pantrychef/internal/application/user"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/ai/openai"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/http/apiserver"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/monitoring"
	gormRepo "github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/migrations"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/postgres"
	rediscache "github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/redis"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/sqlite"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/security"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	"github.com/alchemorsel/pantrychef/pkg/validation"
)

// Module returns the application graph for cfg, logging through log
func Module(cfg *config.Config, log *zap.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg, log),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		ObservabilityModule,
		DatabaseModule,
		CacheModule,
		RepositoryModule,
		ServiceModule,
		HTTPModule,
		LifecycleModule,
	)
}

// ObservabilityModule provides metrics and tracing
var ObservabilityModule = fx.Provide(
	monitoring.NewMetrics,
	NewTracing,
)

// DatabaseModule provides the GORM connection
var DatabaseModule = fx.Provide(
	NewDatabase,
)

// CacheModule provides the session cache
var CacheModule = fx.Provide(
	NewCache,
)

// RepositoryModule provides repository implementations
var RepositoryModule = fx.Provide(
	fx.Annotate(
		gormRepo.NewAccountRepository,
		fx.As(new(outbound.AccountRepository)),
	),
	fx.Annotate(
		gormRepo.NewDocumentStore,
		fx.As(new(outbound.DocumentStore)),
	),
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	validation.New,

	func(cfg *config.Config, log *zap.Logger) *openai.Client {
		return openai.NewClient(cfg.AI, log)
	},
	func(c *openai.Client) outbound.CompletionService { return c },

	func(completion outbound.CompletionService, validate *validator.Validate, metrics *monitoring.Metrics, log *zap.Logger) (*ai.DetectionPipeline, error) {
		return ai.NewDetectionPipeline(completion, validate, log, prompt.WithObserver(metrics))
	},
	func(completion outbound.CompletionService, validate *validator.Validate, metrics *monitoring.Metrics, log *zap.Logger) (*ai.GenerationPipeline, error) {
		return ai.NewGenerationPipeline(completion, validate, log, prompt.WithObserver(metrics))
	},
	func(cfg *config.Config, detector *ai.DetectionPipeline, generator *ai.GenerationPipeline, log *zap.Logger) inbound.Actions {
		return actions.NewService(detector, generator, log, actions.WithLimits(inbound.Limits{
			MinIngredients: cfg.Generation.MinIngredients,
			MaxPhotoBytes:  cfg.Generation.MaxPhotoBytes,
		}))
	},

	fx.Annotate(
		apprecipe.NewLibraryService,
		fx.As(new(inbound.Library)),
	),

	func(cfg *config.Config, accounts outbound.AccountRepository, cache outbound.CacheRepository, log *zap.Logger) *security.IdentityService {
		return security.NewIdentityService(cfg.Auth, accounts, cache, log)
	},
	func(identity *security.IdentityService) outbound.IdentityService { return identity },

	func() *user.SessionHub { return user.NewSessionHub(8) },
	user.NewAccountService,
)

// HTTPModule provides the API server
var HTTPModule = fx.Provide(
	NewServer,
)

// LifecycleModule starts and stops the server
var LifecycleModule = fx.Invoke(
	RegisterLifecycleHooks,
)

// NewTracing installs the tracer provider and flushes it on stop
func NewTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*monitoring.Tracing, error) {
	tracing, err := monitoring.NewTracing(context.Background(), cfg.App, cfg.Monitoring, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: tracing.Shutdown})
	return tracing, nil
}

// NewDatabase opens the configured database. Postgres schemas are migrated
// before the pool is opened; SQLite is migrated by GORM.
func NewDatabase(lc fx.Lifecycle, cfg *config.Config, metrics *monitoring.Metrics, log *zap.Logger) (*gorm.DB, error) {
	var db *gorm.DB

	switch cfg.Database.Driver {
	case "postgres":
		migrator, err := migrations.Open(cfg.GetDatabaseURL(), cfg.Database.Database, log)
		if err != nil {
			return nil, err
		}
		err = migrator.Up()
		migrator.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cm, err := postgres.NewConnectionManager(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		db = cm.GetDB()

	default:
		var err error
		db, err = sqlite.SetupDatabase(cfg.Database.Path, sqlite.ParseLogLevel(cfg.Database.LogLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to setup SQLite database: %w", err)
		}
		log.Info("Connected to SQLite database", zap.String("path", cfg.Database.Path))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics.RegisterDB(cfg.Database.Driver, sqlDB)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return sqlDB.Close()
		},
	})
	return db, nil
}

// Cache is the session cache with an optional health check
type Cache struct {
	fx.Out

	Repository outbound.CacheRepository
	Check      apiserver.HealthCheck `name:"cache_check"`
}

// NewCache uses Redis when enabled and an in-process cache otherwise
func NewCache(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (Cache, error) {
	if !cfg.Redis.Enabled {
		repo := memory.NewCacheRepository(time.Minute)
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return repo.Close() }})
		log.Info("Using in-memory session cache")
		return Cache{Repository: repo}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout+time.Second)
	defer cancel()
	client, err := rediscache.NewClient(ctx, cfg.Redis)
	if err != nil {
		return Cache{}, fmt.Errorf("failed to connect to redis: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
	log.Info("Using Redis session cache", zap.String("addr", cfg.RedisAddr()))

	return Cache{
		Repository: rediscache.NewCacheRepository(client, cfg.Redis.KeyPrefix, log),
		Check:      redisCheck(client),
	}, nil
}

func redisCheck(client goredis.UniversalClient) apiserver.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// ServerParams are the dependencies of the API server
type ServerParams struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Actions    inbound.Actions
	Library    inbound.Library
	Accounts   *user.AccountService
	Identity   *security.IdentityService
	Metrics    *monitoring.Metrics
	Tracing    *monitoring.Tracing
	DB         *gorm.DB
	CacheCheck apiserver.HealthCheck `name:"cache_check" optional:"true"`
}

// NewServer builds the API server with its health checks
func NewServer(p ServerParams) *apiserver.Server {
	checks := map[string]apiserver.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := p.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if p.CacheCheck != nil {
		checks["cache"] = p.CacheCheck
	}

	return apiserver.NewServer(p.Config, p.Logger, apiserver.Dependencies{
		Actions:      p.Actions,
		Library:      p.Library,
		Accounts:     p.Accounts,
		Sessions:     p.Identity,
		Metrics:      p.Metrics,
		HealthChecks: checks,
	})
}

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	server *apiserver.Server,
	completion *openai.Client,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting PantryChef",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("address", cfg.Address()),
			)

			go func() {
				if err := server.Start(); err != nil {
					log.Error("HTTP server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			go func() {
				pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := completion.Ping(pingCtx); err != nil {
					log.Warn("Completion provider is not reachable", zap.String("provider", cfg.AI.Provider), zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down PantryChef")

			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}

			_ = log.Sync()
			return nil
		},
	})
}
