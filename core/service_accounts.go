package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	registeredMessage = "User successfully registered"
	updatedMessage    = "User information updated successfully"
	deletedMessage    = "User account deleted successfully"
)

// Register runs create, prepare and commit for a new account. A failed
// prepare aborts the transaction before returning.
func (s *Service) Register(ctx context.Context, payload RegisterPayload) (AutoCommitResult, error) {
	return s.autoCommit(ctx, payload, registeredMessage)
}

func (s *Service) UpdateUser(ctx context.Context, payload UpdatePayload) (AutoCommitResult, error) {
	return s.autoCommit(ctx, payload, updatedMessage)
}

func (s *Service) DeleteUser(ctx context.Context, payload DeletePayload) (AutoCommitResult, error) {
	return s.autoCommit(ctx, payload, deletedMessage)
}

func (s *Service) autoCommit(ctx context.Context, payload Payload, successMessage string) (AutoCommitResult, error) {
	id, err := s.CreateTransaction(ctx, payload)
	if err != nil {
		return AutoCommitResult{}, err
	}
	result := AutoCommitResult{TransactionID: id}

	prepared, err := s.Prepare(ctx, id)
	if err != nil {
		result.Message = prepared.Message
		if result.Message == "" {
			result.Message = failureMessage(err)
		}
		if _, abortErr := s.Abort(ctx, id); abortErr != nil {
			s.logError(ctx, "auto-commit abort failed", map[string]any{
				"transaction_id": id,
				"error":          abortErr.Error(),
			})
		}
		return result, err
	}

	committed, err := s.Commit(ctx, id)
	result.UserID = committed.UserID
	if err != nil {
		result.Message = committed.Message
		if result.Message == "" {
			result.Message = failureMessage(err)
		}
		return result, err
	}
	result.Committed = true
	result.Message = successMessage
	return result, nil
}

// Authenticate checks email and password against the directory.
func (s *Service) Authenticate(ctx context.Context, email string, password string) (profile UserProfile, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if profile.ID > 0 {
			fields["user_id"] = profile.ID
		}
		s.observeOperation(ctx, startedAt, "account_authenticate", err, fields)
	}()

	if err = s.requireDirectory(); err != nil {
		return UserProfile{}, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return UserProfile{}, s.mapError(requiredFieldError("email"))
	}
	if password == "" {
		return UserProfile{}, s.mapError(requiredFieldError("password"))
	}

	user, found, findErr := s.directory.FindByField(ctx, UserFieldEmail, email)
	if findErr != nil {
		err = s.mapError(findErr)
		return UserProfile{}, err
	}
	if !found || !s.hasher.Verify(password, user.PasswordHash) {
		err = s.mapError(fmt.Errorf("%w: Incorrect email or password", ErrInvalidCredentials))
		return UserProfile{}, err
	}
	return user.Profile(), nil
}

// GetUser returns the public profile of a committed account.
func (s *Service) GetUser(ctx context.Context, id int64) (UserProfile, error) {
	if s == nil || s.profiles == nil {
		return UserProfile{}, dependencyError("core: profile reader is required")
	}
	if id <= 0 {
		return UserProfile{}, s.mapError(requiredFieldError("user_id"))
	}
	profile, err := s.profiles.GetUserProfile(ctx, id)
	if err != nil {
		return UserProfile{}, s.mapError(err)
	}
	return profile, nil
}

// Health pings the directory when it supports it.
func (s *Service) Health(ctx context.Context) error {
	if s == nil || s.directory == nil {
		return dependencyError("core: user directory is required")
	}
	pinger, ok := s.directory.(DirectoryPinger)
	if !ok {
		return nil
	}
	if err := pinger.Ping(ctx); err != nil {
		return directoryUnavailableError(err)
	}
	return nil
}
