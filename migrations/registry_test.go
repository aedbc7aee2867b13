package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	accounttx "github.com/goliatone/go-accounttx"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	var labels []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		calls = append(calls, dialect)
		labels = append(labels, label)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
	if labels[0] != "go-accounttx" {
		t.Fatalf("expected go-accounttx source label, got %q", labels[0])
	}
}

func TestForDialect_AcceptsDriverAliases(t *testing.T) {
	for _, dialect := range []string{"sqlite", "sqlite3", "postgres", "pg"} {
		fsys, err := ForDialect(dialect)
		if err != nil {
			t.Fatalf("for dialect %q: %v", dialect, err)
		}
		if _, err := fs.ReadFile(fsys, "00001_accounttx_users.up.sql"); err != nil {
			t.Fatalf("expected users migration for %q: %v", dialect, err)
		}
	}
	if _, err := ForDialect("mysql"); err == nil {
		t.Fatalf("expected unsupported dialect error")
	}
}

func TestRegister_AcceptsDriverAliasesAndRejectsUnknownTargets(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets("sqlite3", "sqlite"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != DialectSQLite || len(reg.ValidationTargets) != 1 {
		t.Fatalf("expected a single sqlite registration, got %v (targets %v)", calls, reg.ValidationTargets)
	}

	_, err = Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		t.Fatalf("register function must not run for unsupported targets")
		return nil
	}, WithValidationTargets("mysql"))
	if err == nil {
		t.Fatalf("expected unsupported target error")
	}
}

func TestFilesystems_RequiresDownMigrations(t *testing.T) {
	source := fstest.MapFS{
		"data/sql/migrations/00001_users.up.sql":        {Data: []byte("CREATE TABLE users (id INT);")},
		"data/sql/migrations/00001_users.down.sql":      {Data: []byte("DROP TABLE users;")},
		"data/sql/migrations/sqlite/00001_users.up.sql": {Data: []byte("CREATE TABLE users (id INTEGER);")},
	}
	if _, err := Filesystems(source); err == nil || !strings.Contains(err.Error(), "00001_users.down.sql") {
		t.Fatalf("expected missing down migration error, got %v", err)
	}

	source["data/sql/migrations/sqlite/00001_users.down.sql"] = &fstest.MapFile{Data: []byte("DROP TABLE users;")}
	filesystems, err := Filesystems(source)
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if filesystems[1].Path != "data/sql/migrations/sqlite" {
		t.Fatalf("unexpected sqlite path %q", filesystems[1].Path)
	}
}

func TestUsersMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := accounttx.GetCoreMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_accounttx_users.up.sql",
		"data/sql/migrations/00001_accounttx_users.down.sql",
		"data/sql/migrations/sqlite/00001_accounttx_users.up.sql",
		"data/sql/migrations/sqlite/00001_accounttx_users.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteUsersMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-accounttx-users?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(accounttx.GetCoreMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "00001_accounttx_users.up.sql"); err != nil {
		t.Fatalf("apply users migration up: %v", err)
	}

	insert := `INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`
	if _, err := db.ExecContext(context.Background(), insert, "alice", "alice@example.com", "hash"); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), insert, "alice", "other@example.com", "hash"); err == nil {
		t.Fatalf("expected unique username violation")
	}
	if _, err := db.ExecContext(context.Background(), insert, "bob", "alice@example.com", "hash"); err == nil {
		t.Fatalf("expected unique email violation")
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "00001_accounttx_users.down.sql"); err != nil {
		t.Fatalf("apply users migration down: %v", err)
	}

	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"users",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected users to be dropped after down migration")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
