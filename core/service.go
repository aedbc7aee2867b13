package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the two-phase-commit coordinator for account mutations.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	transactions      TransactionStore
	directory         UserDirectory
	hasher            CredentialHasher
	profiles          ProfileReader
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	TransactionStore  TransactionStore
	UserDirectory     UserDirectory
	CredentialHasher  CredentialHasher
	ProfileReader     ProfileReader
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("accounttx", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("accounttx"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.userDirectory == nil && builder.repositoryFactory != nil {
		if configurable, ok := builder.repositoryFactory.(ConfigurableStoreFactory); ok {
			if configErr := configurable.ConfigureStores(finalConfig); configErr != nil {
				return nil, mapBuildError(builder.errorMapper, configErr)
			}
		}
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				builder.userDirectory = stores.UserDirectory()
				if builder.profileReader == nil {
					builder.profileReader = stores.ProfileReader()
				}
			}
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.userDirectory = stores.UserDirectory()
			if builder.profileReader == nil {
				builder.profileReader = stores.ProfileReader()
			}
		}
	}
	if builder.credentialHasher == nil {
		hasher, hashErr := NewCredentialHasher(finalConfig.Hasher)
		if hashErr != nil {
			return nil, mapBuildError(builder.errorMapper, hashErr)
		}
		builder.credentialHasher = hasher
	}
	if builder.transactionStore == nil {
		store := NewMemoryTransactionStore()
		store.Now = builder.now
		builder.transactionStore = store
	}
	if builder.profileReader == nil && builder.userDirectory != nil {
		builder.profileReader = directoryProfileReader{directory: builder.userDirectory}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		transactions:      builder.transactionStore,
		directory:         builder.userDirectory,
		hasher:            builder.credentialHasher,
		profiles:          builder.profileReader,
		now:               builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		TransactionStore:  s.transactions,
		UserDirectory:     s.directory,
		CredentialHasher:  s.hasher,
		ProfileReader:     s.profiles,
	}
}

// CreateTransaction registers a PENDING transaction for payload. Only
// required fields are checked here; business rules run in Prepare.
func (s *Service) CreateTransaction(ctx context.Context, payload Payload) (id string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if id != "" {
			fields["transaction_id"] = id
		}
		s.observeOperation(ctx, startedAt, "transaction_create", err, fields)
	}()

	if err = s.requireStore(); err != nil {
		return "", err
	}
	if payload == nil {
		err = s.mapError(requiredFieldError("operation"))
		return "", err
	}
	fields["tx_operation"] = string(payload.Operation())
	if err = payload.validate(); err != nil {
		err = s.mapError(err)
		return "", err
	}

	id, err = s.transactions.Create(ctx, payload)
	if err != nil {
		err = s.mapError(err)
		return "", err
	}
	return id, nil
}

// Prepare validates the transaction against the current directory state and
// stages its change. Validation failures leave the status untouched and are
// returned both as PrepareResult.Message and as a TX_VALIDATION_FAILED error.
func (s *Service) Prepare(ctx context.Context, id string) (result PrepareResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"transaction_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "transaction_prepare", err, fields)
	}()

	result = PrepareResult{TransactionID: id}
	if err = s.requireStore(); err != nil {
		return result, err
	}
	if err = s.requireDirectory(); err != nil {
		return result, err
	}

	var outcome error
	err = s.transactions.Update(ctx, id, func(tx *Transaction) error {
		fields["tx_operation"] = string(tx.Operation)
		if tx.Status != TransactionStatusPending && tx.Status != TransactionStatusPrepared {
			return invalidStateError(PhasePrepare, tx.Status)
		}

		staged, stageErr := s.stage(ctx, tx.Payload)
		now := s.now()
		if stageErr != nil {
			message := failureMessage(stageErr)
			tx.appendLog(now, PhasePrepare, "prepare failed: "+message)
			tx.revalidationFailed = true
			if KindOf(stageErr) == ErrorKindValidationFailed {
				result.Message = message
			}
			outcome = stageErr
			return nil
		}
		if transitionErr := tx.transitionTo(TransactionStatusPrepared); transitionErr != nil {
			return transitionErr
		}
		tx.Prepared = staged
		tx.revalidationFailed = false
		tx.appendLog(now, PhasePrepare, "prepared")
		result.Prepared = true
		return nil
	})
	if err == nil {
		err = outcome
	}
	fields["prepared"] = result.Prepared
	if err != nil {
		err = s.mapError(err)
		return result, err
	}
	fields["tx_status"] = string(TransactionStatusPrepared)
	return result, nil
}

// Commit applies the staged change inside one unit of work. Any directory
// error rolls the unit of work back and moves the transaction to FAILED.
func (s *Service) Commit(ctx context.Context, id string) (result CommitResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"transaction_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "transaction_commit", err, fields)
	}()

	result = CommitResult{TransactionID: id}
	if err = s.requireStore(); err != nil {
		return result, err
	}
	if err = s.requireDirectory(); err != nil {
		return result, err
	}

	var outcome error
	var invalidate int64
	err = s.transactions.Update(ctx, id, func(tx *Transaction) error {
		fields["tx_operation"] = string(tx.Operation)
		if tx.Status != TransactionStatusPrepared {
			rejected := invalidStateError(PhaseCommit, tx.Status)
			if tx.Status.Terminal() {
				return rejected
			}
			tx.appendLog(s.now(), PhaseCommit, "commit rejected: transaction is "+string(tx.Status))
			outcome = rejected
			return nil
		}
		if tx.revalidationFailed {
			tx.appendLog(s.now(), PhaseCommit, "commit rejected: latest prepare failed")
			result.Message = "Latest prepare failed, prepare again before commit"
			outcome = validationFailure(result.Message)
			return nil
		}

		userID, applyErr := s.apply(ctx, tx.Prepared)
		now := s.now()
		if applyErr != nil {
			if transitionErr := tx.transitionTo(TransactionStatusFailed); transitionErr != nil {
				return transitionErr
			}
			tx.appendLog(now, PhaseCommit, "commit failed: "+applyErr.Error())
			result.Message = applyErr.Error()
			outcome = fmt.Errorf("%w: %v", ErrCommitFailed, applyErr)
			fields["tx_status"] = string(TransactionStatusFailed)
			return nil
		}
		if transitionErr := tx.transitionTo(TransactionStatusCommitted); transitionErr != nil {
			return transitionErr
		}
		tx.appendLog(now, PhaseCommit, "committed")
		result.Committed = true
		result.UserID = userID
		if tx.Operation != OperationRegister {
			invalidate = userID
		}
		fields["tx_status"] = string(TransactionStatusCommitted)
		return nil
	})
	if err == nil {
		err = outcome
	}
	fields["committed"] = result.Committed
	if err != nil {
		err = s.mapError(err)
		return result, err
	}

	if invalidate > 0 {
		s.invalidateProfile(ctx, invalidate)
	}
	return result, nil
}

// Abort abandons a PENDING or PREPARED transaction without touching the
// directory.
func (s *Service) Abort(ctx context.Context, id string) (result AbortResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"transaction_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "transaction_abort", err, fields)
	}()

	result = AbortResult{TransactionID: id}
	if err = s.requireStore(); err != nil {
		return result, err
	}

	err = s.transactions.Update(ctx, id, func(tx *Transaction) error {
		fields["tx_operation"] = string(tx.Operation)
		if tx.Status != TransactionStatusPending && tx.Status != TransactionStatusPrepared {
			return invalidStateError(PhaseAbort, tx.Status)
		}
		previous := tx.Status
		if transitionErr := tx.transitionTo(TransactionStatusAborted); transitionErr != nil {
			return transitionErr
		}
		tx.appendLog(s.now(), PhaseAbort, "aborted from "+string(previous))
		result.Aborted = true
		return nil
	})
	if err != nil {
		err = s.mapError(err)
		return result, err
	}
	fields["tx_status"] = string(TransactionStatusAborted)
	return result, nil
}

func (s *Service) Status(ctx context.Context, id string) (TransactionStatusView, error) {
	if err := s.requireStore(); err != nil {
		return TransactionStatusView{}, err
	}
	tx, err := s.transactions.Get(ctx, id)
	if err != nil {
		return TransactionStatusView{}, s.mapError(err)
	}
	return tx.View(), nil
}

func (s *Service) stage(ctx context.Context, payload Payload) (StagedChange, error) {
	switch p := payload.(type) {
	case RegisterPayload:
		return s.stageRegistration(ctx, p)
	case UpdatePayload:
		return s.stageUpdate(ctx, p)
	case DeletePayload:
		return s.stageDeletion(ctx, p)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedOperation, payload)
	}
}

func (s *Service) stageRegistration(ctx context.Context, p RegisterPayload) (StagedChange, error) {
	if p.Password != p.ConfirmPassword {
		return nil, validationFailure("Passwords do not match")
	}
	if _, taken, err := s.directory.FindByField(ctx, UserFieldUsername, p.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, validationFailure("Username already taken")
	}
	if _, taken, err := s.directory.FindByField(ctx, UserFieldEmail, p.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, validationFailure("Email already in use")
	}

	digest, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, err
	}
	return StagedRegistration{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: digest,
	}, nil
}

func (s *Service) stageUpdate(ctx context.Context, p UpdatePayload) (StagedChange, error) {
	user, found, err := s.directory.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, validationFailure("User not found")
	}

	staged := StagedUpdate{UserID: user.ID}
	if p.Username != "" && p.Username != user.Username {
		owner, taken, findErr := s.directory.FindByField(ctx, UserFieldUsername, p.Username)
		if findErr != nil {
			return nil, findErr
		}
		if taken && owner.ID != user.ID {
			return nil, validationFailure("Username already in use")
		}
		staged.Username = p.Username
	}
	if p.Email != "" && p.Email != user.Email {
		owner, taken, findErr := s.directory.FindByField(ctx, UserFieldEmail, p.Email)
		if findErr != nil {
			return nil, findErr
		}
		if taken && owner.ID != user.ID {
			return nil, validationFailure("Email already in use")
		}
		staged.Email = p.Email
	}
	if p.Password != "" {
		if p.OldPassword == "" || !s.hasher.Verify(p.OldPassword, user.PasswordHash) {
			return nil, validationFailure("Old password is incorrect")
		}
		digest, hashErr := s.hasher.Hash(p.Password)
		if hashErr != nil {
			return nil, hashErr
		}
		staged.PasswordHash = digest
	}
	return staged, nil
}

func (s *Service) stageDeletion(ctx context.Context, p DeletePayload) (StagedChange, error) {
	user, found, err := s.directory.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, validationFailure("User not found")
	}
	return StagedDeletion{UserID: user.ID}, nil
}

// apply writes staged inside a fresh unit of work and returns the affected
// user id.
func (s *Service) apply(ctx context.Context, staged StagedChange) (int64, error) {
	uow, err := s.directory.Begin(ctx)
	if err != nil {
		return 0, err
	}

	var userID int64
	switch change := staged.(type) {
	case StagedRegistration:
		var created User
		created, err = uow.Insert(ctx, NewUser{
			Username:     change.Username,
			Email:        change.Email,
			PasswordHash: change.PasswordHash,
		})
		userID = created.ID
	case StagedUpdate:
		userID = change.UserID
		if !change.Changes().Empty() {
			err = uow.Update(ctx, change.Changes())
		}
	case StagedDeletion:
		userID = change.UserID
		err = uow.Delete(ctx, change.UserID)
	default:
		err = fmt.Errorf("%w: staged %T", ErrUnsupportedOperation, staged)
	}
	if err != nil {
		if rollbackErr := uow.Rollback(); rollbackErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rollbackErr))
		}
		return 0, err
	}
	if err := uow.Commit(); err != nil {
		if rollbackErr := uow.Rollback(); rollbackErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rollbackErr))
		}
		return 0, err
	}
	return userID, nil
}

func (s *Service) invalidateProfile(ctx context.Context, userID int64) {
	invalidator, ok := s.profiles.(ProfileInvalidator)
	if !ok {
		return
	}
	if err := invalidator.InvalidateUserProfile(ctx, userID); err != nil {
		s.logError(ctx, "profile cache invalidation failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

func (s *Service) requireStore() error {
	if s == nil || s.transactions == nil {
		return dependencyError("core: transaction store is required")
	}
	return nil
}

func (s *Service) requireDirectory() error {
	if s.directory == nil {
		return dependencyError("core: user directory is required")
	}
	if s.hasher == nil {
		return dependencyError("core: credential hasher is required")
	}
	return nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func invalidStateError(phase TransactionPhase, status TransactionStatus) error {
	return fmt.Errorf("%w: cannot %s a %s transaction", ErrInvalidTransactionState, phase, status)
}

func validationFailure(message string) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(TransactionErrorValidationFailed)
}

func dependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(AccountErrorInternal)
}

// failureMessage prefers the envelope message so log entries carry the
// user-facing text rather than the category prefix.
func failureMessage(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

type directoryProfileReader struct {
	directory UserDirectory
}

func (r directoryProfileReader) GetUserProfile(ctx context.Context, id int64) (UserProfile, error) {
	user, found, err := r.directory.FindByID(ctx, id)
	if err != nil {
		return UserProfile{}, err
	}
	if !found {
		return UserProfile{}, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return user.Profile(), nil
}
