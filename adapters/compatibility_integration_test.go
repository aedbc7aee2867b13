package adapters_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	accounttx "github.com/goliatone/go-accounttx"
	"github.com/goliatone/go-accounttx/adapters/gocommand"
	"github.com/goliatone/go-accounttx/adapters/gojob"
	"github.com/goliatone/go-accounttx/adapters/gologger"
	accountcommand "github.com/goliatone/go-accounttx/command"
	"github.com/goliatone/go-accounttx/core"
	accountmigrations "github.com/goliatone/go-accounttx/migrations"
	accountquery "github.com/goliatone/go-accounttx/query"
	sqlstore "github.com/goliatone/go-accounttx/store/sql"
	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob(gologger.LoggerName, provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	enqueueProbe := &compatEnqueuer{}
	enqueueAdapter := gojob.NewEnqueuerAdapter(enqueueProbe)
	if err := enqueueAdapter.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          gojob.JobIDTransactionSweep,
		Parameters:     map[string]any{"retention_seconds": 600},
		IdempotencyKey: "idem_1",
		DedupPolicy:    "drop",
	}); err != nil {
		t.Fatalf("enqueue via gojob adapter: %v", err)
	}
	if enqueueProbe.last == nil || enqueueProbe.last.JobID != gojob.JobIDTransactionSweep {
		t.Fatalf("expected go-job message mapping through enqueuer adapter")
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	commandAdapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := commandAdapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := commandAdapter.RegisterCommand(command.CommandFunc[compatMessage](func(context.Context, compatMessage) error {
		return nil
	})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := commandAdapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get("accounttx.compat.command"); !ok {
		t.Fatalf("expected command resolver hook to mirror command into go-job queue registry")
	}
}

func TestRuntimeCompatibility_AccountLifecycleThroughDispatcherOnSQLite(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)

	factory := sqlstore.NewRepositoryFactory()
	svc, err := accounttx.NewService(accounttx.Config{},
		accounttx.WithPersistenceClient(client),
		accounttx.WithRepositoryFactory(factory),
		accounttx.WithCredentialHasher(core.NewPBKDF2Hasher(1000)),
		accounttx.WithLoggerProvider(&compatProvider{logger: &compatLogger{}}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	facade, err := accounttx.NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subscriptions, err := gocommand.RegisterFacade(adapter, facade)
	if err != nil {
		t.Fatalf("register facade: %v", err)
	}
	defer subscriptions.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}

	registered := command.NewResult[core.AutoCommitResult]()
	if err := gocommand.Dispatch(command.ContextWithResult(ctx, registered), accountcommand.RegisterUserMessage{
		Payload: core.RegisterPayload{
			Username:        "dora",
			Email:           "dora@example.com",
			Password:        "explorer",
			ConfirmPassword: "explorer",
		},
	}); err != nil {
		t.Fatalf("dispatch register: %v", err)
	}
	result, ok := registered.Load()
	if !ok || !result.Committed || result.UserID <= 0 {
		t.Fatalf("unexpected register result %#v", result)
	}

	profile, err := gocommand.Query[accountquery.AuthenticateMessage, core.UserProfile](ctx, accountquery.AuthenticateMessage{
		Email:    "dora@example.com",
		Password: "explorer",
	})
	if err != nil {
		t.Fatalf("authenticate query: %v", err)
	}
	if profile.ID != result.UserID || profile.Username != "dora" {
		t.Fatalf("unexpected authenticated profile %#v", profile)
	}

	view, err := gocommand.Query[accountquery.TransactionStatusMessage, core.TransactionStatusView](ctx, accountquery.TransactionStatusMessage{
		TransactionID: result.TransactionID,
	})
	if err != nil {
		t.Fatalf("status query: %v", err)
	}
	if view.Status != core.TransactionStatusCommitted {
		t.Fatalf("expected COMMITTED, got %s", view.Status)
	}

	if err := gocommand.Dispatch(ctx, accountcommand.DeleteUserMessage{
		Payload: core.DeletePayload{UserID: result.UserID},
	}); err != nil {
		t.Fatalf("dispatch delete: %v", err)
	}
	if _, err := gocommand.Query[accountquery.GetUserMessage, core.UserProfile](ctx, accountquery.GetUserMessage{
		UserID: result.UserID,
	}); err == nil {
		t.Fatalf("expected deleted user lookup to fail")
	}
}

func newSQLiteClient(t *testing.T) *persistence.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:accounttx-adapters-%d?mode=memory&cache=shared", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client, err := persistence.New(sqlstore.PersistenceConfig{Driver: "sqlite3", DSN: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if _, err := accountmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect == accountmigrations.DialectSQLite {
			client.RegisterSQLMigrations(fsys)
		}
		return nil
	}, accountmigrations.WithValidationTargets(accountmigrations.DialectSQLite)); err != nil {
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}

type compatMessage struct{}

func (compatMessage) Type() string { return "accounttx.compat.command" }

type compatEnqueuer struct {
	last *job.ExecutionMessage
}

func (e *compatEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	e.last = msg
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }
