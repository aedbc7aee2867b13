package core

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	"github.com/goliatone/go-config/config"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StoreProvider exposes the directory side of a persistence backend.
type StoreProvider interface {
	UserDirectory() UserDirectory
	ProfileReader() ProfileReader
}

// RepositoryStoreFactory builds a StoreProvider from a persistence client.
type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// ConfigurableStoreFactory receives the resolved Config before BuildStores
// runs.
type ConfigurableStoreFactory interface {
	ConfigureStores(cfg Config) error
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	transactionStore  TransactionStore
	userDirectory     UserDirectory
	credentialHasher  CredentialHasher
	profileReader     ProfileReader
	now               func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTransactionStore(store TransactionStore) Option {
	return func(b *serviceBuilder) {
		b.transactionStore = store
	}
}

func WithUserDirectory(directory UserDirectory) Option {
	return func(b *serviceBuilder) {
		b.userDirectory = directory
	}
}

func WithCredentialHasher(hasher CredentialHasher) Option {
	return func(b *serviceBuilder) {
		b.credentialHasher = hasher
	}
}

func WithProfileReader(reader ProfileReader) Option {
	return func(b *serviceBuilder) {
		b.profileReader = reader
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("accounttx", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l.Values == nil {
		return map[string]any{}, nil
	}
	return maps.Clone(l.Values), nil
}

// StaticConfigLoader returns a RawConfigLoader serving a fixed map.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

// FileConfigLoader reads a JSON, YAML or TOML file through a go-config
// container. The file type follows the extension; ${VAR} placeholders are
// resolved by the container's solvers.
type FileConfigLoader struct {
	Path string
}

func NewFileConfigLoader(path string) FileConfigLoader {
	return FileConfigLoader{Path: strings.TrimSpace(path)}
}

func (l FileConfigLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	if strings.TrimSpace(l.Path) == "" {
		return map[string]any{}, nil
	}
	container := config.New(DefaultConfig()).
		WithProvider(config.FileProvider[Config](l.Path)).
		WithValidation(false)
	if err := container.Load(ctx); err != nil {
		return nil, fmt.Errorf("core: load config file %s: %w", l.Path, err)
	}
	return container.K.Raw(), nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(opts.NewScope("defaults", 0), configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults")),
		opts.NewLayer(opts.NewScope("config", 10), configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config")),
		opts.NewLayer(opts.NewScope("runtime", 20), configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime")),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.Transactions.RetentionSeconds != 0 {
		layer["transactions"] = map[string]any{
			"retention_seconds": cfg.Transactions.RetentionSeconds,
		}
	}

	hasher := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Hasher.Algorithm) != "" {
		hasher["algorithm"] = cfg.Hasher.Algorithm
	}
	if includeZero || cfg.Hasher.PBKDF2Iterations != 0 {
		hasher["pbkdf2_iterations"] = cfg.Hasher.PBKDF2Iterations
	}
	if includeZero || cfg.Hasher.BcryptCost != 0 {
		hasher["bcrypt_cost"] = cfg.Hasher.BcryptCost
	}
	if len(hasher) > 0 {
		layer["hasher"] = hasher
	}

	if includeZero || cfg.ProfileCache.TTLSeconds != 0 {
		layer["profile_cache"] = map[string]any{
			"ttl_seconds": cfg.ProfileCache.TTLSeconds,
		}
	}
	return layer
}
