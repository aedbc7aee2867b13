package query

import (
	"context"

	"github.com/goliatone/go-accounttx/core"
)

type TransactionStatusReader interface {
	Status(ctx context.Context, id string) (core.TransactionStatusView, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id int64) (core.UserProfile, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, email string, password string) (core.UserProfile, error)
}

type TransactionStatusQuery struct {
	reader TransactionStatusReader
}

func NewTransactionStatusQuery(reader TransactionStatusReader) *TransactionStatusQuery {
	return &TransactionStatusQuery{reader: reader}
}

func (q *TransactionStatusQuery) Query(
	ctx context.Context,
	msg TransactionStatusMessage,
) (core.TransactionStatusView, error) {
	if q == nil || q.reader == nil {
		return core.TransactionStatusView{}, queryDependencyError("query: transaction status reader is required")
	}
	return q.reader.Status(ctx, msg.TransactionID)
}

type GetUserQuery struct {
	reader UserReader
}

func NewGetUserQuery(reader UserReader) *GetUserQuery {
	return &GetUserQuery{reader: reader}
}

func (q *GetUserQuery) Query(ctx context.Context, msg GetUserMessage) (core.UserProfile, error) {
	if q == nil || q.reader == nil {
		return core.UserProfile{}, queryDependencyError("query: user reader is required")
	}
	return q.reader.GetUser(ctx, msg.UserID)
}

type AuthenticateQuery struct {
	authenticator Authenticator
}

func NewAuthenticateQuery(authenticator Authenticator) *AuthenticateQuery {
	return &AuthenticateQuery{authenticator: authenticator}
}

func (q *AuthenticateQuery) Query(ctx context.Context, msg AuthenticateMessage) (core.UserProfile, error) {
	if q == nil || q.authenticator == nil {
		return core.UserProfile{}, queryDependencyError("query: authenticator is required")
	}
	return q.authenticator.Authenticate(ctx, msg.Email, msg.Password)
}
