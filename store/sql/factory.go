package sqlstore

import (
	"fmt"
	"time"

	"github.com/goliatone/go-accounttx/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	profileCache    repositorycache.CacheService
	profileCacheTTL time.Duration
	cacheFromConfig bool

	userDirectory *UserDirectory
	profileReader core.ProfileReader
}

type FactoryOption func(*RepositoryFactory)

// WithProfileCache fronts the profile reader with cacheService.
func WithProfileCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.profileCache = cacheService
	}
}

// WithConfiguredProfileCache fronts the profile reader with a cache sized
// from profile_cache.ttl_seconds of the service config. A zero TTL leaves the
// reader uncached. WithProfileCache takes precedence.
func WithConfiguredProfileCache() FactoryOption {
	return func(f *RepositoryFactory) {
		f.cacheFromConfig = true
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// NewProfileCacheService builds a go-repository-cache service with ttl.
func NewProfileCacheService(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: profile cache service: %w", err)
	}
	return service, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.userDirectory != nil && f.profileReader != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

// ConfigureStores applies the resolved service config. It only has an effect
// before the stores are built.
func (f *RepositoryFactory) ConfigureStores(cfg core.Config) error {
	if f == nil || !f.cacheFromConfig || f.profileCache != nil || f.userDirectory != nil {
		return nil
	}
	ttl := cfg.ProfileCache.TTL()
	if ttl <= 0 {
		return nil
	}
	cacheService, err := NewProfileCacheService(ttl)
	if err != nil {
		return err
	}
	f.profileCache = cacheService
	f.profileCacheTTL = ttl
	return nil
}

// ProfileCacheTTL reports the TTL applied by ConfigureStores, zero when the
// profile reader is uncached or was given an explicit cache service.
func (f *RepositoryFactory) ProfileCacheTTL() time.Duration {
	if f == nil {
		return 0
	}
	return f.profileCacheTTL
}

func (f *RepositoryFactory) UserDirectory() core.UserDirectory {
	if f == nil || f.userDirectory == nil {
		return nil
	}
	return f.userDirectory
}

func (f *RepositoryFactory) ProfileReader() core.ProfileReader {
	if f == nil {
		return nil
	}
	return f.profileReader
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	directory, err := NewUserDirectory(f.db)
	if err != nil {
		return err
	}
	reader, err := NewProfileReader(directory)
	if err != nil {
		return err
	}
	f.userDirectory = directory
	f.profileReader = reader
	if f.profileCache != nil {
		cached, cacheErr := NewCachedProfileReader(reader, f.profileCache)
		if cacheErr != nil {
			return cacheErr
		}
		f.profileReader = cached
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
