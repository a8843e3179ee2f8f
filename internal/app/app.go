// Package app assembles the store, services and HTTP router from
// configuration and owns every connection it opens.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"task-manager/server/internal/cache"
	"task-manager/server/internal/config"
	"task-manager/server/internal/database"
	"task-manager/server/internal/monitoring"
	"task-manager/server/internal/notifier"
	"task-manager/server/internal/server"
	"task-manager/server/internal/services"
	"task-manager/server/internal/store"
	"task-manager/server/internal/store/mongostore"
	"task-manager/server/internal/store/redisfeed"
	"task-manager/server/internal/store/sqlstore"

	"github.com/redis/go-redis/v9"
	gormlogger "gorm.io/gorm/logger"
)

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   store.Store
	Monitor *monitoring.Monitor
	Users   services.UserService
	Tasks   services.TaskService

	notifier *notifier.Notifier
	closers  []func() error
}

// New connects to the configured backends. On error every connection
// opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Monitor: monitoring.NewMonitor(),
	}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = app.openRedis(ctx)
		if err != nil {
			return nil, err
		}
	}

	switch cfg.Store.Driver {
	case config.StoreMongo:
		err = app.openMongo(ctx)
	case config.StorePostgres, config.StoreSQLite:
		err = app.openSQL(ctx, rdb)
	default:
		err = fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	app.Monitor.RegisterHealthCheck("store", app.Store.Ping)

	var users store.UserStore = app.Store
	if rdb != nil {
		userCache := cache.NewRedisCache(rdb, "task-manager:")
		app.Monitor.RegisterHealthCheck("redis", userCache.Health)
		cached := services.NewCachedUserStore(
			app.Store,
			userCache,
			cache.NewCircuitBreaker(cache.DefaultCircuitBreakerConfig()),
			cfg.Redis.CacheTTL,
			logger.With("component", "user_cache"),
		)
		app.Monitor.RegisterStats("user_cache", cached.Stats)
		users = cached
	}

	app.Users = services.NewUserService(users, logger.With("component", "users"))
	app.Tasks = services.NewTaskService(app.Store, users,
		services.WithWritebackConcurrency(cfg.Tasks.WritebackConcurrency),
		services.WithTaskLogger(logger.With("component", "tasks")),
	)
	app.notifier = notifier.New(app.Store, cfg.Stream.HeartbeatInterval)

	return app, nil
}

func (a *App) openRedis(ctx context.Context) (*redis.Client, error) {
	rc := a.Config.Redis
	rdb := cache.NewRedisClient(&cache.CacheConfig{
		Addr:         a.Config.GetRedisAddr(),
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   rc.MaxRetries,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	})
	a.closers = append(a.closers, rdb.Close)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.Config.GetRedisAddr(), err)
	}
	a.Logger.Info("redis connected", "addr", a.Config.GetRedisAddr())
	return rdb, nil
}

func (a *App) openMongo(ctx context.Context) error {
	mc := a.Config.Mongo
	client, err := database.NewMongoClient(ctx, database.MongoConfig{
		URI:            a.Config.GetMongoURI(),
		ConnectTimeout: mc.ConnectTimeout,
		MaxPoolSize:    mc.MaxPoolSize,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		return client.Disconnect(context.Background())
	})

	st := mongostore.New(client, mc.Database,
		mongostore.WithBufferSize(a.Config.Stream.BufferSize),
		mongostore.WithLogger(a.Logger.With("component", "mongostore")),
	)
	if err := st.EnsureIndexes(ctx); err != nil {
		return err
	}
	a.Store = st
	a.Logger.Info("mongodb connected", "database", mc.Database)
	return nil
}

func (a *App) openSQL(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return errors.New("sql store drivers need redis for change notifications")
	}
	dc := a.Config.Database
	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          a.Config.Store.Driver,
		DSN:             a.Config.GetDatabaseDSN(),
		MaxOpenConns:    dc.MaxOpenConns,
		MaxIdleConns:    dc.MaxIdleConns,
		ConnMaxLifetime: dc.ConnMaxLifetime,
		ConnMaxIdleTime: dc.ConnMaxIdleTime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pool.Close)
	a.Monitor.RegisterStats("database", pool.Stats)

	feed := redisfeed.New(rdb, a.Config.Stream.Channel, a.Config.Stream.BufferSize, a.Logger.With("component", "redisfeed"))
	st := sqlstore.New(pool.DB, feed, a.Logger.With("component", "sqlstore"))
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	a.Store = st
	a.Logger.Info("sql store ready", "driver", a.Config.Store.Driver)
	return nil
}

func (a *App) Handler() http.Handler {
	return server.NewRouter(server.RouterDeps{
		Config:   a.Config,
		Logger:   a.Logger,
		Users:    a.Users,
		Tasks:    a.Tasks,
		Notifier: a.notifier,
		Monitor:  a.Monitor,
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
