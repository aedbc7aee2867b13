package sqlstore

import "github.com/goliatone/go-accounttx/core"

var (
	_ core.UserDirectory            = (*UserDirectory)(nil)
	_ core.DirectoryPinger          = (*UserDirectory)(nil)
	_ core.UnitOfWork               = (*unitOfWork)(nil)
	_ core.ProfileReader            = (*ProfileReader)(nil)
	_ core.ProfileReader            = (*CachedProfileReader)(nil)
	_ core.ProfileInvalidator       = (*CachedProfileReader)(nil)
	_ core.StoreProvider            = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory   = (*RepositoryFactory)(nil)
	_ core.ConfigurableStoreFactory = (*RepositoryFactory)(nil)
)
