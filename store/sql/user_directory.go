package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-accounttx/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ErrUniqueViolation marks writes rejected by the username or email index.
var ErrUniqueViolation = errors.New("sqlstore: username or email already taken")

// UserDirectory is the bun-backed account store. Reads go through
// go-repository-bun; writes only happen inside a UnitOfWork.
type UserDirectory struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
	now  func() time.Time
}

func NewUserDirectory(db *bun.DB) (*UserDirectory, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userRecord](db, userHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user repository wiring: %w", err)
		}
	}
	return &UserDirectory{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (d *UserDirectory) FindByID(ctx context.Context, id int64) (core.User, bool, error) {
	if d == nil || d.repo == nil {
		return core.User{}, false, fmt.Errorf("sqlstore: user directory is not configured")
	}
	if id <= 0 {
		return core.User{}, false, nil
	}
	return d.findOne(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id)
	}))
}

func (d *UserDirectory) FindByField(ctx context.Context, field core.UserField, value string) (core.User, bool, error) {
	if d == nil || d.repo == nil {
		return core.User{}, false, fmt.Errorf("sqlstore: user directory is not configured")
	}
	column, err := userColumn(field)
	if err != nil {
		return core.User{}, false, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return core.User{}, false, nil
	}
	return d.findOne(ctx, repository.SelectBy(column, "=", value))
}

func (d *UserDirectory) findOne(ctx context.Context, criteria ...repository.SelectCriteria) (core.User, bool, error) {
	criteria = append(criteria,
		repository.OrderBy("id ASC"),
		repository.SelectPaginate(1, 0),
	)
	records, _, err := d.repo.List(ctx, criteria...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, false, nil
		}
		return core.User{}, false, err
	}
	if len(records) == 0 || records[0] == nil {
		return core.User{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

// Begin opens a database transaction. The returned unit of work must be
// committed or rolled back by the caller.
func (d *UserDirectory) Begin(ctx context.Context) (core.UnitOfWork, error) {
	if d == nil || d.db == nil {
		return nil, fmt.Errorf("sqlstore: user directory is not configured")
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin unit of work: %w", err)
	}
	return &unitOfWork{tx: tx, now: d.now}, nil
}

// Ping checks connectivity with a trivial query.
func (d *UserDirectory) Ping(ctx context.Context) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("sqlstore: user directory is not configured")
	}
	var one int
	if err := d.db.NewRaw("SELECT 1").Scan(ctx, &one); err != nil {
		return fmt.Errorf("sqlstore: ping: %w", err)
	}
	return nil
}

type unitOfWork struct {
	mu   sync.Mutex
	tx   bun.Tx
	now  func() time.Time
	done bool
}

func (u *unitOfWork) Insert(ctx context.Context, in core.NewUser) (core.User, error) {
	if err := u.active(); err != nil {
		return core.User{}, err
	}
	record := newUserRecord(in, u.now())
	if _, err := u.tx.NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return core.User{}, fmt.Errorf("sqlstore: insert user %q: %w", in.Username, classifyWriteError(err))
	}
	return record.toDomain(), nil
}

func (u *unitOfWork) Update(ctx context.Context, changes core.UserChanges) error {
	if err := u.active(); err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}
	query := u.tx.NewUpdate().
		Model((*userRecord)(nil)).
		Set("updated_at = ?", u.now()).
		Where("id = ?", changes.UserID)
	if changes.Username != "" {
		query = query.Set("username = ?", changes.Username)
	}
	if changes.Email != "" {
		query = query.Set("email = ?", changes.Email)
	}
	if changes.PasswordHash != "" {
		query = query.Set("password_hash = ?", changes.PasswordHash)
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: update user %d: %w", changes.UserID, classifyWriteError(err))
	}
	return expectAffected(res, "update", changes.UserID)
}

func (u *unitOfWork) Delete(ctx context.Context, id int64) error {
	if err := u.active(); err != nil {
		return err
	}
	res, err := u.tx.NewDelete().
		Model((*userRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: delete user %d: %w", id, err)
	}
	return expectAffected(res, "delete", id)
}

func (u *unitOfWork) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return fmt.Errorf("sqlstore: unit of work already finished")
	}
	u.done = true
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit unit of work: %w", err)
	}
	return nil
}

// Rollback is a no-op once the unit of work has finished.
func (u *unitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("sqlstore: rollback unit of work: %w", err)
	}
	return nil
}

func (u *unitOfWork) active() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return fmt.Errorf("sqlstore: unit of work already finished")
	}
	return nil
}

func expectAffected(res sql.Result, action string, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: %s user %d: %w", action, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: %s user %d: %w", action, id, core.ErrUserNotFound)
	}
	return nil
}

// classifyWriteError tags unique index violations from sqlite and postgres
// with ErrUniqueViolation, keeping the driver error in the chain.
func classifyWriteError(err error) error {
	if err == nil || !isUniqueViolation(err) {
		return err
	}
	return errors.Join(ErrUniqueViolation, err)
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

func userColumn(field core.UserField) (string, error) {
	switch field {
	case core.UserFieldUsername:
		return "username", nil
	case core.UserFieldEmail:
		return "email", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported user field %q", field)
	}
}
