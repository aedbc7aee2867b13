package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-accounttx/adapters/gocommand"
	accountcommand "github.com/goliatone/go-accounttx/command"
	"github.com/goliatone/go-accounttx/core"
	accountmigrations "github.com/goliatone/go-accounttx/migrations"
	accountquery "github.com/goliatone/go-accounttx/query"
	sqlstore "github.com/goliatone/go-accounttx/store/sql"
	"github.com/goliatone/go-command"
)

type Globals struct {
	Driver         string `help:"Database driver (sqlite3 or postgres)." default:"sqlite3" env:"ACCOUNTTX_DB_DRIVER"`
	DSN            string `help:"Database DSN." default:"file:accounttx.db?_foreign_keys=on" env:"ACCOUNTTX_DB_DSN" name:"dsn"`
	Config         string `help:"Config file (json, yaml or toml) layered over defaults." type:"existingfile" optional:"" env:"ACCOUNTTX_CONFIG"`
	LogLevel       string `help:"Log level." default:"info" enum:"debug,info,warn,error" env:"ACCOUNTTX_LOG_LEVEL"`
	LogFormat      string `help:"Log format." default:"json" enum:"json,console" env:"ACCOUNTTX_LOG_FORMAT"`
	LogOutput      string `help:"Log destination: stdout, stderr or a file path." default:"stderr"`
	Hasher         string `help:"Credential hasher (pbkdf2 or bcrypt); overrides the config file."`
	Retention      int    `help:"Seconds to keep terminal transactions before a sweep evicts them; overrides transactions.retention_seconds."`
	ProfileTTL     int    `help:"Profile cache TTL in seconds; overrides profile_cache.ttl_seconds." name:"profile-ttl"`
	NoProfileCache bool   `help:"Read profiles straight from the directory." name:"no-profile-cache"`
}

type CLI struct {
	Globals

	Migrate  MigrateCmd  `cmd:"" help:"Apply the users schema migrations."`
	Register RegisterCmd `cmd:"" help:"Register an account."`
	Update   UpdateCmd   `cmd:"" help:"Update an account."`
	Delete   DeleteCmd   `cmd:"" help:"Delete an account."`
	Get      GetCmd      `cmd:"" help:"Show an account profile."`
	Login    LoginCmd    `cmd:"" help:"Check credentials and show the profile."`
	Health   HealthCmd   `cmd:"" help:"Check user directory connectivity."`
	Serve    ServeCmd    `cmd:"" help:"Serve metrics and health."`
}

func run(ctx context.Context, parser *kong.Context, cli *CLI, out io.Writer) error {
	parser.BindTo(ctx, (*context.Context)(nil))
	parser.BindTo(out, (*io.Writer)(nil))
	if parser.Command() == "migrate" {
		return parser.Run(&cli.Globals)
	}
	app, err := newApp(cli.Globals)
	if err != nil {
		return err
	}
	defer app.Close()
	return parser.Run(&cli.Globals, app)
}

type MigrateCmd struct {
	List bool `help:"List the migration files for the dialect instead of applying them."`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals, out io.Writer) error {
	dialect := sqlstore.MigrationDialect(globals.Driver)
	if c.List {
		fsys, err := accountmigrations.ForDialect(dialect)
		if err != nil {
			return err
		}
		return fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.IsDir() && strings.HasSuffix(path, ".sql") {
				_, err = fmt.Fprintln(out, path)
			}
			return err
		})
	}

	client, err := sqlstore.OpenClient(sqlstore.PersistenceConfig{Driver: globals.Driver, DSN: globals.DSN})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	_, err = accountmigrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, accountmigrations.WithValidationTargets(dialect))
	if err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s: %w", dialect, err)
	}
	_, err = fmt.Fprintf(out, "migrated %s schema\n", dialect)
	return err
}

type RegisterCmd struct {
	Username string `arg:"" help:"Account username."`
	Email    string `arg:"" help:"Account email."`
	Password string `help:"Account password." required:"" env:"ACCOUNTTX_PASSWORD"`
	Confirm  string `help:"Password confirmation; defaults to --password."`
}

func (c *RegisterCmd) Run(ctx context.Context, out io.Writer) error {
	confirm := c.Confirm
	if confirm == "" {
		confirm = c.Password
	}
	return dispatchAutoCommit(ctx, out, accountcommand.RegisterUserMessage{
		Payload: core.RegisterPayload{
			Username:        c.Username,
			Email:           c.Email,
			Password:        c.Password,
			ConfirmPassword: confirm,
		},
	})
}

type UpdateCmd struct {
	UserID      int64  `arg:"" name:"user-id" help:"Account id."`
	Username    string `help:"New username."`
	Email       string `help:"New email."`
	Password    string `help:"New password." env:"ACCOUNTTX_PASSWORD"`
	OldPassword string `help:"Current password, required with --password."`
}

func (c *UpdateCmd) Run(ctx context.Context, out io.Writer) error {
	return dispatchAutoCommit(ctx, out, accountcommand.UpdateUserMessage{
		Payload: core.UpdatePayload{
			UserID:      c.UserID,
			Username:    c.Username,
			Email:       c.Email,
			Password:    c.Password,
			OldPassword: c.OldPassword,
		},
	})
}

type DeleteCmd struct {
	UserID int64 `arg:"" name:"user-id" help:"Account id."`
}

func (c *DeleteCmd) Run(ctx context.Context, out io.Writer) error {
	return dispatchAutoCommit(ctx, out, accountcommand.DeleteUserMessage{
		Payload: core.DeletePayload{UserID: c.UserID},
	})
}

type GetCmd struct {
	UserID int64 `arg:"" name:"user-id" help:"Account id."`
}

func (c *GetCmd) Run(ctx context.Context, out io.Writer) error {
	profile, err := gocommand.Query[accountquery.GetUserMessage, core.UserProfile](ctx, accountquery.GetUserMessage{
		UserID: c.UserID,
	})
	if err != nil {
		return err
	}
	return writeJSON(out, profile)
}

type LoginCmd struct {
	Email    string `arg:"" help:"Account email."`
	Password string `help:"Account password." required:"" env:"ACCOUNTTX_PASSWORD"`
}

func (c *LoginCmd) Run(ctx context.Context, out io.Writer) error {
	profile, err := gocommand.Query[accountquery.AuthenticateMessage, core.UserProfile](ctx, accountquery.AuthenticateMessage{
		Email:    c.Email,
		Password: c.Password,
	})
	if err != nil {
		return err
	}
	return writeJSON(out, profile)
}

type HealthCmd struct{}

func (HealthCmd) Run(ctx context.Context, app *App, out io.Writer) error {
	if err := app.service.Health(ctx); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out, "ok")
	return err
}

type ServeCmd struct {
	Addr          string        `help:"Listen address." default:":9464"`
	SweepInterval time.Duration `help:"Sweep interval for transactions held by this process. Serve creates none itself, so it only matters when the coordinator is embedded; zero disables it." default:"0"`
}

func (c *ServeCmd) Run(ctx context.Context, app *App) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := app.service.Health(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok\n")
	})
	server := &http.Server{Addr: c.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("serving", "addr", c.Addr)
		errCh <- server.ListenAndServe()
	}()

	var sweepTick <-chan time.Time
	if c.SweepInterval > 0 {
		ticker := time.NewTicker(c.SweepInterval)
		defer ticker.Stop()
		sweepTick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		case <-sweepTick:
			if err := app.sweep(ctx); err != nil {
				app.logger.Warn("sweep failed", "error", err)
			}
		}
	}
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// dispatchAutoCommit prints the transaction outcome whenever one was
// created, including failed ones, before returning the dispatch error.
func dispatchAutoCommit[T any](ctx context.Context, out io.Writer, msg T) error {
	result := command.NewResult[core.AutoCommitResult]()
	err := gocommand.Dispatch(command.ContextWithResult(ctx, result), msg)
	if outcome, ok := result.Load(); ok && outcome.TransactionID != "" {
		if writeErr := writeJSON(out, outcome); writeErr != nil && err == nil {
			err = writeErr
		}
	}
	return err
}
