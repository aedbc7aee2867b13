package accounttx

import "github.com/goliatone/go-accounttx/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type TransactionStore = core.TransactionStore
type UserDirectory = core.UserDirectory
type CredentialHasher = core.CredentialHasher
type ProfileReader = core.ProfileReader
type RetentionSweeper = core.RetentionSweeper

type Payload = core.Payload
type RegisterPayload = core.RegisterPayload
type UpdatePayload = core.UpdatePayload
type DeletePayload = core.DeletePayload

type TransactionStatus = core.TransactionStatus
type TransactionStatusView = core.TransactionStatusView
type PrepareResult = core.PrepareResult
type CommitResult = core.CommitResult
type AbortResult = core.AbortResult
type AutoCommitResult = core.AutoCommitResult
type UserProfile = core.UserProfile

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithTransactionStore  = core.WithTransactionStore
	WithUserDirectory     = core.WithUserDirectory
	WithCredentialHasher  = core.WithCredentialHasher
	WithProfileReader     = core.WithProfileReader
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
