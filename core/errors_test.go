package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorMapper_Sentinels(t *testing.T) {
	cases := []struct {
		err      error
		textCode string
		code     int
		kind     ErrorKind
	}{
		{err: fmt.Errorf("%w: %q", ErrTransactionNotFound, "x"), textCode: TransactionErrorNotFound, code: http.StatusNotFound, kind: ErrorKindNotFound},
		{err: invalidStateError(PhaseCommit, TransactionStatusPending), textCode: TransactionErrorInvalidState, code: http.StatusConflict, kind: ErrorKindInvalidState},
		{err: fmt.Errorf("%w: nil", ErrUnsupportedOperation), textCode: TransactionErrorUnsupportedOperation, code: http.StatusInternalServerError, kind: ErrorKindUnsupportedOperation},
		{err: fmt.Errorf("%w: boom", ErrCommitFailed), textCode: TransactionErrorCommitFailed, code: http.StatusInternalServerError, kind: ErrorKindCommitFailure},
		{err: ErrInvalidCredentials, textCode: AccountErrorInvalidCredentials, code: http.StatusUnauthorized, kind: ErrorKindOther},
		{err: ErrUserNotFound, textCode: AccountErrorUserNotFound, code: http.StatusNotFound, kind: ErrorKindOther},
	}
	for _, tc := range cases {
		mapped := serviceErrorMapper(tc.err)
		if mapped == nil {
			t.Fatalf("expected mapped error for %v", tc.err)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%v: expected text code %q, got %q", tc.err, tc.textCode, mapped.TextCode)
		}
		if mapped.Code != tc.code {
			t.Fatalf("%v: expected code %d, got %d", tc.err, tc.code, mapped.Code)
		}
		if got := KindOf(mapped); got != tc.kind {
			t.Fatalf("%v: expected kind %s, got %s", tc.err, tc.kind, got)
		}
		if got := KindOf(tc.err); got != tc.kind {
			t.Fatalf("%v: expected unmapped kind %s, got %s", tc.err, tc.kind, got)
		}
	}
}

func TestServiceErrorMapper_ValidationFailure(t *testing.T) {
	err := validationFailure("Username already taken")
	mapped := serviceErrorMapper(err)
	if mapped.TextCode != TransactionErrorValidationFailed {
		t.Fatalf("expected validation text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", mapped.Code)
	}
	if KindOf(mapped) != ErrorKindValidationFailed {
		t.Fatalf("expected validation kind")
	}
	if failureMessage(mapped) != "Username already taken" {
		t.Fatalf("expected message to survive mapping, got %q", failureMessage(mapped))
	}
}

func TestServiceErrorMapper_BadInputAndFallback(t *testing.T) {
	mapped := serviceErrorMapper(errors.New("core: user id is required"))
	if mapped.TextCode != AccountErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", mapped.TextCode)
	}

	mapped = serviceErrorMapper(errors.New("socket closed"))
	if mapped.TextCode == "" || mapped.Code == 0 {
		t.Fatalf("expected envelope defaults, got %#v", mapped)
	}
	if KindOf(mapped) != ErrorKindOther {
		t.Fatalf("expected other kind, got %s", KindOf(mapped))
	}
}

func TestRequiredFieldError(t *testing.T) {
	err := requiredFieldError("email")
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors error, got %T", err)
	}
	if richErr.TextCode != AccountErrorBadInput || richErr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected envelope %#v", richErr)
	}
	if KindOf(nil) != ErrorKindNone {
		t.Fatalf("expected none kind for nil")
	}
}
