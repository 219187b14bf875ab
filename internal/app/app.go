package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"pagebuilder/internal/config"
	"pagebuilder/internal/secret"
	"pagebuilder/internal/service"
	"pagebuilder/internal/storage"
)

// App wires configuration, storage and services together. It is shared by
// the MCP server and the CLI.
type App struct {
	cfg *config.Config
	log *zap.Logger

	backend storage.Backend
	store   *storage.PageStore
	nc      *nats.Conn

	emitter service.EventEmitter
	editors *service.EditorService
	pages   *service.PageService
	maint   *service.Maintenance
	watcher *pageWatcher
}

// Option customizes New.
type Option func(*options)

type options struct {
	secrets secret.SecretStore
	emitter service.EventEmitter
	backend storage.Backend
}

// WithSecrets overrides the secret store used to resolve backend passwords.
func WithSecrets(s secret.SecretStore) Option {
	return func(o *options) { o.secrets = s }
}

// WithEmitter adds an emitter that receives every event alongside the
// configured ones.
func WithEmitter(e service.EventEmitter) Option {
	return func(o *options) { o.emitter = e }
}

// WithBackend uses an already opened backend instead of the configured one.
// The App takes ownership and closes it on Shutdown.
func WithBackend(b storage.Backend) Option {
	return func(o *options) { o.backend = b }
}

// New opens the configured backend and builds every service. Nothing runs in
// the background until Startup.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	o := options{secrets: secret.Chain{secret.NewEnvStore(), secret.NewKeychainStore(secret.DefaultKeychainService)}}
	for _, opt := range opts {
		opt(&o)
	}

	backend := o.backend
	if backend == nil {
		b, err := OpenBackend(ctx, cfg.Storage, o.secrets)
		if err != nil {
			return nil, err
		}
		backend = b
	}

	a := &App{cfg: cfg, log: log, backend: backend}
	a.store = storage.NewPageStore(backend, storage.WithMaxVersions(cfg.Editor.MaxVersions))

	emitters := service.MultiEmitter{service.LogEmitter{Log: log}}
	if o.emitter != nil {
		emitters = append(emitters, o.emitter)
	}
	if cfg.Events.NATSURL != "" {
		nc, err := service.ConnectNATS(cfg.Events.NATSURL)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.nc = nc
		emitters = append(emitters, service.NewNATSEmitter(nc, cfg.Events.SubjectPrefix, log))
	}
	a.emitter = emitters

	a.editors = service.NewEditorService(a.store, service.EditorConfig{
		MaxHistory:       cfg.Editor.MaxHistory,
		AutosaveInterval: cfg.Editor.AutosaveInterval,
		AutosaveEnabled:  cfg.Editor.AutosaveEnabled,
		WriteTimeout:     cfg.Editor.WriteTimeout,
	}, a.emitter, log)
	a.pages = service.NewPageService(a.store, a.editors, a.emitter, log)
	a.maint = service.NewMaintenance(a.store, cfg.Maintenance.VersionPruneSchedule, log)
	return a, nil
}

// OpenBackend connects to the backend selected by cfg.Driver.
func OpenBackend(ctx context.Context, cfg config.StorageConfig, secrets secret.SecretStore) (storage.Backend, error) {
	switch cfg.Driver {
	case storage.DriverSQLite, "":
		db, err := storage.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case storage.DriverPostgres, storage.DriverMySQL:
		dsn, err := secret.Resolve(secrets, cfg.PasswordSecret, cfg.DSN)
		if err != nil {
			return nil, err
		}
		db, err := storage.Open(cfg.Driver, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverRedis:
		password, err := lookupPassword(secrets, cfg.PasswordSecret)
		if err != nil {
			return nil, err
		}
		rb, err := storage.OpenRedis(ctx, cfg.RedisAddr, password, cfg.RedisDB, "pagebuilder:")
		if err != nil {
			return nil, err
		}
		return rb, nil
	case config.DriverMongo:
		uri, err := secret.Resolve(secrets, cfg.PasswordSecret, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		mb, err := storage.OpenMongo(ctx, uri, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return mb, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func lookupPassword(secrets secret.SecretStore, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	v, err := secrets.Get(key)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", key, err)
	}
	return string(v), nil
}

// Startup starts the maintenance job and the external change watcher.
func (a *App) Startup(ctx context.Context) error {
	if err := a.maint.Start(); err != nil {
		return err
	}
	w, err := newPageWatcher(ctx, a)
	if err != nil {
		a.maint.Stop()
		return err
	}
	a.watcher = w
	a.watcher.Start()
	a.log.Info("pagebuilder started",
		zap.String("driver", a.cfg.Storage.Driver),
		zap.Bool("autosave", a.cfg.Editor.AutosaveEnabled),
		zap.Duration("autosave_interval", a.cfg.Editor.AutosaveInterval),
	)
	return nil
}

// Shutdown saves and closes every open session, then releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.maint.Stop()
	a.editors.CloseAll(ctx, true)

	var errs []error
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("drain nats: %w", err))
		}
	}
	if err := a.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) Config() *config.Config { return a.cfg }

// Store returns the durable page store.
func (a *App) Store() *storage.PageStore { return a.store }

func (a *App) Editors() *service.EditorService { return a.editors }

func (a *App) Pages() *service.PageService { return a.pages }

func (a *App) Maintenance() *service.Maintenance { return a.maint }
