package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/geobot/config"
	"github.com/alejandrodnm/geobot/internal/adapters/classifier"
	"github.com/alejandrodnm/geobot/internal/adapters/notify"
	"github.com/alejandrodnm/geobot/internal/adapters/polymarket"
	"github.com/alejandrodnm/geobot/internal/adapters/storage"
	"github.com/alejandrodnm/geobot/internal/application/engine"
	"github.com/alejandrodnm/geobot/internal/application/engine/live"
	"github.com/alejandrodnm/geobot/internal/application/engine/paper"
	"github.com/alejandrodnm/geobot/internal/ports"
)

// App agrupa las dependencias construidas una vez por proceso.
type App struct {
	cfg      *config.Config
	catalog  *config.Catalog
	store    ports.StateStore
	repo     *storage.Repository
	locker   ports.Locker
	client   *polymarket.Client
	console  *notify.Console
	notifier *notify.Dispatcher
	gateway  *live.Gateway
	paper    *paper.Engine
	runner   *engine.Runner
	liveCfg  live.Config

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*App, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg, catalog: catalog, console: notify.NewConsole()}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	app.store = store
	app.closers = append(app.closers, store.Close)
	app.repo = storage.NewRepository(store)

	if locker, ok := store.(ports.Locker); ok {
		app.locker = locker
	} else if cfg.Storage.Lock {
		rs, err := storage.NewRedisStore(ctx, redisConfig(cfg.Storage.Redis))
		if err != nil {
			return nil, fmt.Errorf("run lock: %w", err)
		}
		app.locker = rs
		app.closers = append(app.closers, rs.Close)
	}

	senders := []notify.Sender{}
	if cfg.Notify.Console {
		senders = append(senders, app.console)
	}
	if cfg.Notify.Telegram.Enabled() {
		senders = append(senders, notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID))
	}
	app.notifier = notify.NewDispatcher(senders, cfg.Notify.Events)

	app.liveCfg = live.Config{
		Enabled:       cfg.Live.Enabled,
		Shadow:        cfg.Live.Shadow,
		ProposalTTL:   cfg.ProposalTTL(),
		BatchCap:      cfg.Live.MaxTradesPerBatch,
		MaxDivergence: cfg.Live.MaxPriceDivergence,
		MinBalance:    cfg.Live.MinBalanceUSDC,
	}.WithDefaults()

	app.client = polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	app.gateway = live.NewGateway(app.repo, app.notifier, app.liveCfg.ProposalTTL)
	app.paper = paper.New(app.repo)
	app.runner = engine.NewRunner(engine.Deps{
		Markets:    app.client,
		Classifier: classifier.New(),
		Repo:       app.repo,
		Gateway:    app.gateway,
		Notifier:   app.notifier,
		Locker:     app.locker,
		Workers:    cfg.Scan.Workers,
	})
	return app, nil
}

// openStore elige el backend de estado configurado.
func openStore(ctx context.Context, cfg config.StorageConfig) (ports.StateStore, error) {
	slog.Debug("storage: opening", "backend", cfg.Backend)
	switch cfg.Backend {
	case "sqlite":
		return storage.NewSQLiteStore(cfg.DSN)
	case "redis":
		return storage.NewRedisStore(ctx, redisConfig(cfg.Redis))
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return storage.NewFileStore(cfg.Dir)
	}
}

func redisConfig(cfg config.RedisConfig) storage.RedisConfig {
	return storage.RedisConfig{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// executor construye el cliente autenticado solo cuando hace falta ejecutar.
func (a *App) executor() (*live.Executor, error) {
	if a.cfg.API.PrivateKey == "" {
		return nil, fmt.Errorf("POLY_PRIVATE_KEY is required to execute trades")
	}
	auth, err := polymarket.NewAuthClient(a.cfg.API.CLOBBase, a.cfg.API.GammaBase, a.cfg.API.PrivateKey)
	if err != nil {
		return nil, err
	}
	trading, err := polymarket.NewTradingClient(auth, a.cfg.API.RPCURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { trading.Close(); return nil })
	return live.NewExecutor(a.repo, a.client, trading, a.notifier, a.liveCfg), nil
}

// Close libera conexiones en orden inverso.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
}
