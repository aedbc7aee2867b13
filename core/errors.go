package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TransactionErrorNotFound             = "TX_NOT_FOUND"
	TransactionErrorInvalidState         = "TX_INVALID_STATE"
	TransactionErrorValidationFailed     = "TX_VALIDATION_FAILED"
	TransactionErrorUnsupportedOperation = "TX_UNSUPPORTED_OPERATION"
	TransactionErrorCommitFailed         = "TX_COMMIT_FAILED"
	AccountErrorBadInput                 = "ACCOUNT_BAD_INPUT"
	AccountErrorInvalidCredentials       = "ACCOUNT_INVALID_CREDENTIALS"
	AccountErrorUserNotFound             = "ACCOUNT_USER_NOT_FOUND"
	AccountErrorDirectoryUnavailable     = "ACCOUNT_DIRECTORY_UNAVAILABLE"
	AccountErrorInternal                 = "ACCOUNT_INTERNAL_ERROR"
)

// ErrorKind is the coordinator error taxonomy.
type ErrorKind string

const (
	ErrorKindNone                 ErrorKind = ""
	ErrorKindNotFound             ErrorKind = "not_found"
	ErrorKindInvalidState         ErrorKind = "invalid_state"
	ErrorKindValidationFailed     ErrorKind = "validation_failed"
	ErrorKindUnsupportedOperation ErrorKind = "unsupported_operation"
	ErrorKindCommitFailure        ErrorKind = "commit_failure"
	ErrorKindOther                ErrorKind = "other"
)

var textCodeKinds = map[string]ErrorKind{
	TransactionErrorNotFound:             ErrorKindNotFound,
	TransactionErrorInvalidState:         ErrorKindInvalidState,
	TransactionErrorValidationFailed:     ErrorKindValidationFailed,
	TransactionErrorUnsupportedOperation: ErrorKindUnsupportedOperation,
	TransactionErrorCommitFailed:         ErrorKindCommitFailure,
}

// KindOf classifies err. Rich errors are matched on their text code, plain
// errors on the core sentinels.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if kind, ok := textCodeKinds[richErr.TextCode]; ok {
			return kind
		}
	}
	return sentinelKind(err)
}

func sentinelKind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrInvalidTransactionState):
		return ErrorKindInvalidState
	case errors.Is(err, ErrValidationFailed):
		return ErrorKindValidationFailed
	case errors.Is(err, ErrUnsupportedOperation):
		return ErrorKindUnsupportedOperation
	case errors.Is(err, ErrCommitFailed):
		return ErrorKindCommitFailure
	default:
		return ErrorKindOther
	}
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrTransactionNotFound):
		return wrapServiceError(err, goerrors.CategoryNotFound, TransactionErrorNotFound)
	case errors.Is(err, ErrInvalidTransactionState):
		return wrapServiceError(err, goerrors.CategoryConflict, TransactionErrorInvalidState)
	case errors.Is(err, ErrValidationFailed):
		return wrapServiceError(err, goerrors.CategoryValidation, TransactionErrorValidationFailed)
	case errors.Is(err, ErrUnsupportedOperation):
		return wrapServiceError(err, goerrors.CategoryOperation, TransactionErrorUnsupportedOperation)
	case errors.Is(err, ErrCommitFailed):
		return wrapServiceError(err, goerrors.CategoryInternal, TransactionErrorCommitFailed)
	case errors.Is(err, ErrInvalidCredentials):
		return wrapServiceError(err, goerrors.CategoryAuth, AccountErrorInvalidCredentials)
	case errors.Is(err, ErrUserNotFound):
		return wrapServiceError(err, goerrors.CategoryNotFound, AccountErrorUserNotFound)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, AccountErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapServiceError(err error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.Wrap(err, category, err.Error()).
			WithTextCode(textCode),
	)
}

func requiredFieldError(field string) error {
	return goerrors.NewValidation("core: validation failed", goerrors.FieldError{
		Field:   field,
		Message: field + " is required",
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(AccountErrorBadInput)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return AccountErrorBadInput
	case goerrors.CategoryNotFound:
		return TransactionErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return AccountErrorInvalidCredentials
	case goerrors.CategoryConflict:
		return TransactionErrorInvalidState
	default:
		return AccountErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func directoryUnavailableError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "user directory unavailable").
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(AccountErrorDirectoryUnavailable)
}
