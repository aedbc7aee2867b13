package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTransactionNotFound     = errors.New("core: transaction not found")
	ErrInvalidTransactionState = errors.New("core: invalid transaction state")
	ErrValidationFailed        = errors.New("core: transaction validation failed")
	ErrUnsupportedOperation    = errors.New("core: unsupported transaction operation")
	ErrCommitFailed            = errors.New("core: transaction commit failed")
	ErrInvalidCredentials      = errors.New("core: invalid credentials")
	ErrUserNotFound            = errors.New("core: user not found")
)

type Operation string

const (
	OperationRegister Operation = "register"
	OperationUpdate   Operation = "update"
	OperationDelete   Operation = "delete"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusPrepared  TransactionStatus = "PREPARED"
	TransactionStatusCommitted TransactionStatus = "COMMITTED"
	TransactionStatusAborted   TransactionStatus = "ABORTED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Terminal reports whether no further transition is permitted from s.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusCommitted, TransactionStatusAborted, TransactionStatusFailed:
		return true
	default:
		return false
	}
}

var allowedTransactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:  {TransactionStatusPrepared, TransactionStatusAborted},
	TransactionStatusPrepared: {TransactionStatusPrepared, TransactionStatusCommitted, TransactionStatusFailed, TransactionStatusAborted},
}

// CanTransitionTo reports whether the state machine has an edge from s to next.
// PREPARED -> PREPARED is the re-prepare edge.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, candidate := range allowedTransactionTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Payload is the operation-specific input of a transaction. The set of
// implementations is closed: RegisterPayload, UpdatePayload and DeletePayload.
type Payload interface {
	Operation() Operation
	validate() error
	sealedPayload()
}

// ValidatePayload reports the first required field missing from payload.
func ValidatePayload(payload Payload) error {
	if payload == nil {
		return requiredFieldError("operation")
	}
	return payload.validate()
}

type RegisterPayload struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

func (RegisterPayload) Operation() Operation { return OperationRegister }

func (RegisterPayload) sealedPayload() {}

func (p RegisterPayload) validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return requiredFieldError("username")
	}
	if strings.TrimSpace(p.Email) == "" {
		return requiredFieldError("email")
	}
	if p.Password == "" {
		return requiredFieldError("password")
	}
	return nil
}

// UpdatePayload changes the fields that are non-empty. Password changes
// require OldPassword to match the stored credential.
type UpdatePayload struct {
	UserID      int64
	Username    string
	Email       string
	Password    string
	OldPassword string
}

func (UpdatePayload) Operation() Operation { return OperationUpdate }

func (UpdatePayload) sealedPayload() {}

func (p UpdatePayload) validate() error {
	if p.UserID <= 0 {
		return requiredFieldError("user_id")
	}
	return nil
}

type DeletePayload struct {
	UserID int64
}

func (DeletePayload) Operation() Operation { return OperationDelete }

func (DeletePayload) sealedPayload() {}

func (p DeletePayload) validate() error {
	if p.UserID <= 0 {
		return requiredFieldError("user_id")
	}
	return nil
}

// StagedChange is the side-effect-free result of a successful prepare.
type StagedChange interface {
	Operation() Operation
	sealedStagedChange()
}

type StagedRegistration struct {
	Username     string
	Email        string
	PasswordHash string
}

func (StagedRegistration) Operation() Operation { return OperationRegister }

func (StagedRegistration) sealedStagedChange() {}

// StagedUpdate carries only the fields to overwrite; empty strings are absent.
type StagedUpdate struct {
	UserID       int64
	Username     string
	Email        string
	PasswordHash string
}

func (StagedUpdate) Operation() Operation { return OperationUpdate }

func (StagedUpdate) sealedStagedChange() {}

func (u StagedUpdate) Changes() UserChanges {
	return UserChanges{
		UserID:       u.UserID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
	}
}

type StagedDeletion struct {
	UserID int64
}

func (StagedDeletion) Operation() Operation { return OperationDelete }

func (StagedDeletion) sealedStagedChange() {}

type TransactionPhase string

const (
	PhaseCreate  TransactionPhase = "create"
	PhasePrepare TransactionPhase = "prepare"
	PhaseCommit  TransactionPhase = "commit"
	PhaseAbort   TransactionPhase = "abort"
)

type LogEntry struct {
	At      time.Time
	Phase   TransactionPhase
	Message string
}

func (e LogEntry) String() string {
	return fmt.Sprintf("%s [%s] %s", e.At.Format(time.RFC3339Nano), e.Phase, e.Message)
}

type Transaction struct {
	ID        string
	Operation Operation
	Payload   Payload
	Status    TransactionStatus
	Prepared  StagedChange
	CreatedAt time.Time
	Log       []LogEntry

	// revalidationFailed is set when the latest prepare failed. Prepared
	// still holds the last accepted change but must not be committed.
	revalidationFailed bool
}

func (t *Transaction) appendLog(now time.Time, phase TransactionPhase, message string) {
	t.Log = append(t.Log, LogEntry{At: now.UTC(), Phase: phase, Message: message})
}

// transitionTo applies a state machine edge or fails with ErrInvalidTransactionState.
func (t *Transaction) transitionTo(next TransactionStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransactionState, t.Status, next)
	}
	t.Status = next
	return nil
}

// lastActivity is the time of the most recent log entry, or CreatedAt.
func (t Transaction) lastActivity() time.Time {
	if n := len(t.Log); n > 0 {
		return t.Log[n-1].At
	}
	return t.CreatedAt
}

func (t Transaction) clone() Transaction {
	cloned := t
	cloned.Log = append([]LogEntry(nil), t.Log...)
	return cloned
}

func (t Transaction) View() TransactionStatusView {
	return TransactionStatusView{
		ID:        t.ID,
		Operation: t.Operation,
		Status:    t.Status,
		Log:       append([]LogEntry(nil), t.Log...),
		CreatedAt: t.CreatedAt,
	}
}

// TransactionStatusView is the read-only projection returned by Status.
type TransactionStatusView struct {
	ID        string
	Operation Operation
	Status    TransactionStatus
	Log       []LogEntry
	CreatedAt time.Time
}

type PrepareResult struct {
	TransactionID string
	Prepared      bool
	Message       string
}

type CommitResult struct {
	TransactionID string
	Committed     bool
	Message       string
	// UserID is the affected account; for registrations it is the new id.
	UserID int64
}

type AbortResult struct {
	TransactionID string
	Aborted       bool
}

// AutoCommitResult reports a create -> prepare -> commit run.
type AutoCommitResult struct {
	TransactionID string
	Committed     bool
	Message       string
	UserID        int64
}

type UserField string

const (
	UserFieldUsername UserField = "username"
	UserFieldEmail    UserField = "email"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) Profile() UserProfile {
	return UserProfile{ID: u.ID, Username: u.Username, Email: u.Email}
}

type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// UserChanges overwrites only non-empty fields of the target user.
type UserChanges struct {
	UserID       int64
	Username     string
	Email        string
	PasswordHash string
}

func (c UserChanges) Empty() bool {
	return c.Username == "" && c.Email == "" && c.PasswordHash == ""
}

type UserProfile struct {
	ID       int64
	Username string
	Email    string
}
