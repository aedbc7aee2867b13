package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// TransactionStore owns every transaction record. Update must serialize
// callers on the same id while leaving other ids uncontended.
type TransactionStore interface {
	Create(ctx context.Context, payload Payload) (string, error)
	Get(ctx context.Context, id string) (Transaction, error)
	Update(ctx context.Context, id string, mutate func(*Transaction) error) error
}

// EvictingTransactionStore is implemented by stores that support the
// optional retention policy.
type EvictingTransactionStore interface {
	TransactionStore
	EvictTerminal(ctx context.Context, olderThan time.Time) (int, error)
}

// UserDirectory is the account store the coordinator validates against and
// writes to. Reads outside a unit of work see committed state only.
type UserDirectory interface {
	FindByID(ctx context.Context, id int64) (User, bool, error)
	FindByField(ctx context.Context, field UserField, value string) (User, bool, error)
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork groups directory writes that either all commit or all roll back.
// Rollback after Commit is a no-op.
type UnitOfWork interface {
	Insert(ctx context.Context, in NewUser) (User, error)
	Update(ctx context.Context, changes UserChanges) error
	Delete(ctx context.Context, id int64) error
	Commit() error
	Rollback() error
}

type DirectoryPinger interface {
	Ping(ctx context.Context) error
}

type CredentialHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, digest string) bool
}

type ProfileReader interface {
	GetUserProfile(ctx context.Context, id int64) (UserProfile, error)
}

// ProfileInvalidator is implemented by caching profile readers so committed
// updates and deletes do not serve stale profiles.
type ProfileInvalidator interface {
	InvalidateUserProfile(ctx context.Context, id int64) error
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// TransactionCoordinator is the two-phase-commit surface exposed to command
// and query handlers.
type TransactionCoordinator interface {
	CreateTransaction(ctx context.Context, payload Payload) (string, error)
	Prepare(ctx context.Context, id string) (PrepareResult, error)
	Commit(ctx context.Context, id string) (CommitResult, error)
	Abort(ctx context.Context, id string) (AbortResult, error)
	Status(ctx context.Context, id string) (TransactionStatusView, error)
}

// AccountService wraps the coordinator with auto-commit account operations.
type AccountService interface {
	TransactionCoordinator
	Register(ctx context.Context, payload RegisterPayload) (AutoCommitResult, error)
	UpdateUser(ctx context.Context, payload UpdatePayload) (AutoCommitResult, error)
	DeleteUser(ctx context.Context, payload DeletePayload) (AutoCommitResult, error)
	Authenticate(ctx context.Context, email string, password string) (UserProfile, error)
	GetUser(ctx context.Context, id int64) (UserProfile, error)
	Health(ctx context.Context) error
}
