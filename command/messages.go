package command

import (
	"strings"

	"github.com/goliatone/go-accounttx/core"
)

const (
	TypeCreateTransaction  = "accounttx.command.transaction.create"
	TypePrepareTransaction = "accounttx.command.transaction.prepare"
	TypeCommitTransaction  = "accounttx.command.transaction.commit"
	TypeAbortTransaction   = "accounttx.command.transaction.abort"
	TypeRegisterUser       = "accounttx.command.user.register"
	TypeUpdateUser         = "accounttx.command.user.update"
	TypeDeleteUser         = "accounttx.command.user.delete"
	TypeSweepTransactions  = "accounttx.command.transaction.sweep"
)

type CreateTransactionMessage struct {
	Payload core.Payload
}

func (CreateTransactionMessage) Type() string { return TypeCreateTransaction }

func (m CreateTransactionMessage) Validate() error {
	return commandWrapValidation(core.ValidatePayload(m.Payload), "command: invalid transaction payload")
}

type PrepareTransactionMessage struct {
	TransactionID string
}

func (PrepareTransactionMessage) Type() string { return TypePrepareTransaction }

func (m PrepareTransactionMessage) Validate() error {
	return validateTransactionID(m.TransactionID)
}

type CommitTransactionMessage struct {
	TransactionID string
}

func (CommitTransactionMessage) Type() string { return TypeCommitTransaction }

func (m CommitTransactionMessage) Validate() error {
	return validateTransactionID(m.TransactionID)
}

type AbortTransactionMessage struct {
	TransactionID string
}

func (AbortTransactionMessage) Type() string { return TypeAbortTransaction }

func (m AbortTransactionMessage) Validate() error {
	return validateTransactionID(m.TransactionID)
}

type RegisterUserMessage struct {
	Payload core.RegisterPayload
}

func (RegisterUserMessage) Type() string { return TypeRegisterUser }

func (m RegisterUserMessage) Validate() error {
	return commandWrapValidation(core.ValidatePayload(m.Payload), "command: invalid registration")
}

type UpdateUserMessage struct {
	Payload core.UpdatePayload
}

func (UpdateUserMessage) Type() string { return TypeUpdateUser }

func (m UpdateUserMessage) Validate() error {
	return commandWrapValidation(core.ValidatePayload(m.Payload), "command: invalid user update")
}

type DeleteUserMessage struct {
	Payload core.DeletePayload
}

func (DeleteUserMessage) Type() string { return TypeDeleteUser }

func (m DeleteUserMessage) Validate() error {
	return commandWrapValidation(core.ValidatePayload(m.Payload), "command: invalid user deletion")
}

// SweepTransactionsMessage evicts terminal transactions; a zero
// RetentionSeconds uses the configured retention.
type SweepTransactionsMessage struct {
	RetentionSeconds int
}

func (SweepTransactionsMessage) Type() string { return TypeSweepTransactions }

func (m SweepTransactionsMessage) Validate() error {
	if m.RetentionSeconds < 0 {
		return commandValidationError("retention_seconds", "retention_seconds must not be negative")
	}
	return nil
}

func validateTransactionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return commandValidationError("transaction_id", "transaction id is required")
	}
	return nil
}
