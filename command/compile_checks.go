package command

import (
	"github.com/goliatone/go-accounttx/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[CreateTransactionMessage]  = (*CreateTransactionCommand)(nil)
	_ gocmd.Commander[PrepareTransactionMessage] = (*PrepareTransactionCommand)(nil)
	_ gocmd.Commander[CommitTransactionMessage]  = (*CommitTransactionCommand)(nil)
	_ gocmd.Commander[AbortTransactionMessage]   = (*AbortTransactionCommand)(nil)
	_ gocmd.Commander[RegisterUserMessage]       = (*RegisterUserCommand)(nil)
	_ gocmd.Commander[UpdateUserMessage]         = (*UpdateUserCommand)(nil)
	_ gocmd.Commander[DeleteUserMessage]         = (*DeleteUserCommand)(nil)
	_ gocmd.Commander[SweepTransactionsMessage]  = (*SweepTransactionsCommand)(nil)

	_ TransactionService = (*core.Service)(nil)
	_ AccountService     = (*core.Service)(nil)
	_ TransactionSweeper = (*core.RetentionSweeper)(nil)
)
