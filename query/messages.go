package query

import "strings"

const (
	TypeTransactionStatus = "accounttx.query.transaction.status"
	TypeGetUser           = "accounttx.query.user.get"
	TypeAuthenticate      = "accounttx.query.user.authenticate"
)

type TransactionStatusMessage struct {
	TransactionID string
}

func (TransactionStatusMessage) Type() string { return TypeTransactionStatus }

func (m TransactionStatusMessage) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return queryValidationError("transaction_id", "transaction id is required")
	}
	return nil
}

type GetUserMessage struct {
	UserID int64
}

func (GetUserMessage) Type() string { return TypeGetUser }

func (m GetUserMessage) Validate() error {
	if m.UserID <= 0 {
		return queryValidationError("user_id", "user id must be positive")
	}
	return nil
}

type AuthenticateMessage struct {
	Email    string
	Password string
}

func (AuthenticateMessage) Type() string { return TypeAuthenticate }

func (m AuthenticateMessage) Validate() error {
	if strings.TrimSpace(m.Email) == "" {
		return queryValidationError("email", "email is required")
	}
	if m.Password == "" {
		return queryValidationError("password", "password is required")
	}
	return nil
}
