package main

import (
	"context"

	accounttx "github.com/goliatone/go-accounttx"
	"github.com/goliatone/go-accounttx/adapters/gocommand"
	"github.com/goliatone/go-accounttx/adapters/gologger"
	"github.com/goliatone/go-accounttx/adapters/prommetrics"
	"github.com/goliatone/go-accounttx/adapters/zaplogger"
	accountcommand "github.com/goliatone/go-accounttx/command"
	"github.com/goliatone/go-accounttx/core"
	sqlstore "github.com/goliatone/go-accounttx/store/sql"
	"github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	"go.uber.org/zap"
)

// App holds the wired coordinator for one CLI invocation. Commands and
// queries are subscribed to the go-command dispatcher.
type App struct {
	client        *persistence.Client
	factory       *sqlstore.RepositoryFactory
	service       *accounttx.Service
	facade        *accounttx.Facade
	subscriptions gocommand.FacadeSubscriptions
	metrics       *prommetrics.Recorder
	zap           *zap.Logger
	logger        glog.Logger
}

func newApp(globals Globals) (*App, error) {
	zapLogger, err := zaplogger.New(zaplogger.Config{
		Level:      globals.LogLevel,
		Format:     globals.LogFormat,
		OutputFile: globals.LogOutput,
	})
	if err != nil {
		return nil, err
	}
	provider, logger := gologger.ResolveService(zaplogger.NewProvider(zapLogger), nil)
	metrics := prommetrics.NewRecorder(prommetrics.WithErrorHandler(func(name string, err error) {
		logger.Warn("metric registration failed", "metric", name, "error", err)
	}))

	app := &App{metrics: metrics, zap: zapLogger, logger: logger}
	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}

	client, err := sqlstore.OpenClient(sqlstore.PersistenceConfig{Driver: globals.Driver, DSN: globals.DSN})
	if err != nil {
		return fail(err)
	}
	app.client = client

	// The profile cache is sized from the resolved profile_cache.ttl_seconds.
	var factoryOpts []sqlstore.FactoryOption
	if !globals.NoProfileCache {
		factoryOpts = append(factoryOpts, sqlstore.WithConfiguredProfileCache())
	}
	app.factory = sqlstore.NewRepositoryFactory(factoryOpts...)

	runtime := accounttx.Config{
		Transactions: core.TransactionsConfig{RetentionSeconds: globals.Retention},
		Hasher:       core.HasherConfig{Algorithm: globals.Hasher},
		ProfileCache: core.ProfileCacheConfig{TTLSeconds: globals.ProfileTTL},
	}
	service, err := accounttx.NewService(runtime,
		accounttx.WithLoggerProvider(provider),
		accounttx.WithMetricsRecorder(metrics),
		accounttx.WithConfigProvider(core.NewCfgxConfigProvider(core.NewFileConfigLoader(globals.Config))),
		accounttx.WithPersistenceClient(client),
		accounttx.WithRepositoryFactory(app.factory),
	)
	if err != nil {
		return fail(err)
	}
	app.service = service

	facade, err := accounttx.NewFacade(service)
	if err != nil {
		return fail(err)
	}
	app.facade = facade

	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subscriptions, err := gocommand.RegisterFacade(adapter, facade)
	if err != nil {
		return fail(err)
	}
	app.subscriptions = subscriptions
	if err := adapter.Initialize(); err != nil {
		return fail(err)
	}
	return app, nil
}

func (a *App) sweep(ctx context.Context) error {
	if a.facade.Commands().SweepTransactions == nil {
		return nil
	}
	return gocommand.Dispatch(ctx, accountcommand.SweepTransactionsMessage{})
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.subscriptions.Unsubscribe()
	if a.client != nil {
		if err := a.client.Close(); err != nil && a.logger != nil {
			a.logger.Warn("close persistence client", "error", err)
		}
	}
	if a.zap != nil {
		_ = a.zap.Sync()
	}
}
