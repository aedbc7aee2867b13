package query

import (
	"github.com/goliatone/go-accounttx/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[TransactionStatusMessage, core.TransactionStatusView] = (*TransactionStatusQuery)(nil)
	_ gocmd.Querier[GetUserMessage, core.UserProfile]                     = (*GetUserQuery)(nil)
	_ gocmd.Querier[AuthenticateMessage, core.UserProfile]                = (*AuthenticateQuery)(nil)

	_ TransactionStatusReader = (*core.Service)(nil)
	_ UserReader              = (*core.Service)(nil)
	_ Authenticator           = (*core.Service)(nil)
)
