package accounttx

import (
	"fmt"

	accountcommand "github.com/goliatone/go-accounttx/command"
	"github.com/goliatone/go-accounttx/core"
	accountquery "github.com/goliatone/go-accounttx/query"
)

type CommandQueryService interface {
	accountcommand.TransactionService
	accountcommand.AccountService
	accountquery.TransactionStatusReader
	accountquery.UserReader
	accountquery.Authenticator
}

type Commands struct {
	CreateTransaction  *accountcommand.CreateTransactionCommand
	PrepareTransaction *accountcommand.PrepareTransactionCommand
	CommitTransaction  *accountcommand.CommitTransactionCommand
	AbortTransaction   *accountcommand.AbortTransactionCommand
	RegisterUser       *accountcommand.RegisterUserCommand
	UpdateUser         *accountcommand.UpdateUserCommand
	DeleteUser         *accountcommand.DeleteUserCommand
	// SweepTransactions is nil when no sweeper could be resolved.
	SweepTransactions *accountcommand.SweepTransactionsCommand
}

type Queries struct {
	TransactionStatus *accountquery.TransactionStatusQuery
	GetUser           *accountquery.GetUserQuery
	Authenticate      *accountquery.AuthenticateQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	sweeper accountcommand.TransactionSweeper
}

func WithSweeper(sweeper accountcommand.TransactionSweeper) FacadeOption {
	return func(options *facadeOptions) {
		options.sweeper = sweeper
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("accounttx: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	sweeper := cfg.sweeper
	if sweeper == nil {
		sweeper = resolveSweeper(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateTransaction:  accountcommand.NewCreateTransactionCommand(service),
		PrepareTransaction: accountcommand.NewPrepareTransactionCommand(service),
		CommitTransaction:  accountcommand.NewCommitTransactionCommand(service),
		AbortTransaction:   accountcommand.NewAbortTransactionCommand(service),
		RegisterUser:       accountcommand.NewRegisterUserCommand(service),
		UpdateUser:         accountcommand.NewUpdateUserCommand(service),
		DeleteUser:         accountcommand.NewDeleteUserCommand(service),
	}
	if sweeper != nil {
		facade.commands.SweepTransactions = accountcommand.NewSweepTransactionsCommand(sweeper)
	}
	facade.queries = Queries{
		TransactionStatus: accountquery.NewTransactionStatusQuery(service),
		GetUser:           accountquery.NewGetUserQuery(service),
		Authenticate:      accountquery.NewAuthenticateQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveSweeper(service CommandQueryService) accountcommand.TransactionSweeper {
	if sweeper, ok := service.(accountcommand.TransactionSweeper); ok {
		return sweeper
	}
	provider, ok := service.(interface {
		RetentionSweeper() (*core.RetentionSweeper, error)
	})
	if !ok {
		return nil
	}
	sweeper, err := provider.RetentionSweeper()
	if err != nil || sweeper == nil {
		return nil
	}
	return sweeper
}
