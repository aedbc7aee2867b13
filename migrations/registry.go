// Package migrations exposes the embedded users schema per SQL dialect and
// hands it to a migration runner such as go-persistence-bun.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	accounttx "github.com/goliatone/go-accounttx"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	migrationsDir = "data/sql/migrations"
)

// dialectDirs maps each dialect to its directory below the migrations root.
// Postgres files sit at the root, sqlite overrides in a subdirectory.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{dialect: DialectPostgres, dir: "."},
	{dialect: DialectSQLite, dir: "sqlite"},
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// WithValidationTargets restricts registration to the named dialects. Driver
// aliases are accepted.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		normalized := make([]string, 0, len(targets))
		for _, target := range targets {
			if dialect := normalizeDialect(target); dialect != "" {
				normalized = append(normalized, dialect)
			}
		}
		if len(normalized) > 0 {
			slices.Sort(normalized)
			r.ValidationTargets = slices.Compact(normalized)
		}
	}
}

// Filesystems returns one FilesystemSpec per dialect. sources[0], when set, replaces
// the embedded tree; it may hold data/sql/migrations or the .sql files at its
// root. Each dialect must carry matching up and down files.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := accounttx.GetCoreMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}
	base, basePath, err := migrationsRoot(root)
	if err != nil {
		return nil, err
	}

	out := make([]FilesystemSpec, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		fsys, err := fs.Sub(base, entry.dir)
		if err != nil {
			return nil, fmt.Errorf("migrations: resolve %s filesystem: %w", entry.dialect, err)
		}
		spec := FilesystemSpec{
			Dialect: entry.dialect,
			Path:    path.Join(basePath, entry.dir),
			FS:      fsys,
		}
		if err := checkPairs(spec); err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// ForDialect returns the migration filesystem for dialect, accepting driver
// aliases such as "sqlite3" and "pg".
func ForDialect(dialect string, sources ...fs.FS) (fs.FS, error) {
	filesystems, err := Filesystems(sources...)
	if err != nil {
		return nil, err
	}
	normalized := normalizeDialect(dialect)
	for _, spec := range filesystems {
		if spec.Dialect == normalized {
			return spec.FS, nil
		}
	}
	return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Register calls registerFn once per targeted dialect, in dialect order.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "go-accounttx",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, target := range reg.ValidationTargets {
		if !slices.ContainsFunc(filesystems, func(spec FilesystemSpec) bool { return spec.Dialect == target }) {
			return reg, fmt.Errorf("migrations: unsupported dialect %q", target)
		}
	}
	for _, spec := range filesystems {
		if !slices.Contains(reg.ValidationTargets, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func migrationsRoot(root fs.FS) (fs.FS, string, error) {
	if sub, err := fs.Sub(root, migrationsDir); err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			return sub, migrationsDir, nil
		}
	}
	if matches, _ := fs.Glob(root, "*.sql"); len(matches) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", migrationsDir)
}

func checkPairs(spec FilesystemSpec) error {
	ups, err := fs.Glob(spec.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s %s: %w", spec.Dialect, spec.Path, err)
	}
	if len(ups) == 0 {
		return fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", spec.Dialect, spec.Path)
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(spec.FS, down); err != nil {
			return fmt.Errorf("migrations: %s migration %s has no %s", spec.Dialect, up, down)
		}
	}
	return nil
}

func normalizeDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "sqlite3", DialectSQLite:
		return DialectSQLite
	case "pg", "postgresql", DialectPostgres:
		return DialectPostgres
	default:
		return strings.ToLower(strings.TrimSpace(dialect))
	}
}
