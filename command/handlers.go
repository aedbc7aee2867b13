package command

import (
	"context"
	"time"

	"github.com/goliatone/go-accounttx/core"
	gocmd "github.com/goliatone/go-command"
)

// TransactionService is the mutating half of the coordinator.
type TransactionService interface {
	CreateTransaction(ctx context.Context, payload core.Payload) (string, error)
	Prepare(ctx context.Context, id string) (core.PrepareResult, error)
	Commit(ctx context.Context, id string) (core.CommitResult, error)
	Abort(ctx context.Context, id string) (core.AbortResult, error)
}

// AccountService runs whole create-prepare-commit cycles.
type AccountService interface {
	Register(ctx context.Context, payload core.RegisterPayload) (core.AutoCommitResult, error)
	UpdateUser(ctx context.Context, payload core.UpdatePayload) (core.AutoCommitResult, error)
	DeleteUser(ctx context.Context, payload core.DeletePayload) (core.AutoCommitResult, error)
}

type TransactionSweeper interface {
	Sweep(ctx context.Context) (core.SweepResult, error)
	SweepOlderThan(ctx context.Context, retention time.Duration) (core.SweepResult, error)
}

// CreateTransactionResult is stored for CreateTransactionCommand.
type CreateTransactionResult struct {
	TransactionID string
}

type CreateTransactionCommand struct {
	service TransactionService
}

func NewCreateTransactionCommand(service TransactionService) *CreateTransactionCommand {
	return &CreateTransactionCommand{service: service}
}

func (c *CreateTransactionCommand) Execute(ctx context.Context, msg CreateTransactionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transaction service is required")
	}
	id, err := c.service.CreateTransaction(ctx, msg.Payload)
	if err != nil {
		return err
	}
	storeResult(ctx, CreateTransactionResult{TransactionID: id})
	return nil
}

type PrepareTransactionCommand struct {
	service TransactionService
}

func NewPrepareTransactionCommand(service TransactionService) *PrepareTransactionCommand {
	return &PrepareTransactionCommand{service: service}
}

func (c *PrepareTransactionCommand) Execute(ctx context.Context, msg PrepareTransactionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transaction service is required")
	}
	out, err := c.service.Prepare(ctx, msg.TransactionID)
	storeResult(ctx, out)
	return err
}

type CommitTransactionCommand struct {
	service TransactionService
}

func NewCommitTransactionCommand(service TransactionService) *CommitTransactionCommand {
	return &CommitTransactionCommand{service: service}
}

func (c *CommitTransactionCommand) Execute(ctx context.Context, msg CommitTransactionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transaction service is required")
	}
	out, err := c.service.Commit(ctx, msg.TransactionID)
	storeResult(ctx, out)
	return err
}

type AbortTransactionCommand struct {
	service TransactionService
}

func NewAbortTransactionCommand(service TransactionService) *AbortTransactionCommand {
	return &AbortTransactionCommand{service: service}
}

func (c *AbortTransactionCommand) Execute(ctx context.Context, msg AbortTransactionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transaction service is required")
	}
	out, err := c.service.Abort(ctx, msg.TransactionID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RegisterUserCommand struct {
	service AccountService
}

func NewRegisterUserCommand(service AccountService) *RegisterUserCommand {
	return &RegisterUserCommand{service: service}
}

func (c *RegisterUserCommand) Execute(ctx context.Context, msg RegisterUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: account service is required")
	}
	out, err := c.service.Register(ctx, msg.Payload)
	storeResult(ctx, out)
	return err
}

type UpdateUserCommand struct {
	service AccountService
}

func NewUpdateUserCommand(service AccountService) *UpdateUserCommand {
	return &UpdateUserCommand{service: service}
}

func (c *UpdateUserCommand) Execute(ctx context.Context, msg UpdateUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: account service is required")
	}
	out, err := c.service.UpdateUser(ctx, msg.Payload)
	storeResult(ctx, out)
	return err
}

type DeleteUserCommand struct {
	service AccountService
}

func NewDeleteUserCommand(service AccountService) *DeleteUserCommand {
	return &DeleteUserCommand{service: service}
}

func (c *DeleteUserCommand) Execute(ctx context.Context, msg DeleteUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: account service is required")
	}
	out, err := c.service.DeleteUser(ctx, msg.Payload)
	storeResult(ctx, out)
	return err
}

type SweepTransactionsCommand struct {
	sweeper TransactionSweeper
}

func NewSweepTransactionsCommand(sweeper TransactionSweeper) *SweepTransactionsCommand {
	return &SweepTransactionsCommand{sweeper: sweeper}
}

func (c *SweepTransactionsCommand) Execute(ctx context.Context, msg SweepTransactionsMessage) error {
	if c == nil || c.sweeper == nil {
		return commandDependencyError("command: transaction sweeper is required")
	}
	var (
		out core.SweepResult
		err error
	)
	if msg.RetentionSeconds > 0 {
		out, err = c.sweeper.SweepOlderThan(ctx, time.Duration(msg.RetentionSeconds)*time.Second)
	} else {
		out, err = c.sweeper.Sweep(ctx)
	}
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// storeResult also runs on failure so callers see prepare messages and
// auto-commit transaction ids alongside the error.
func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
