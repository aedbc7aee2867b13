package sqlstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goliatone/go-accounttx/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const userProfileCacheKeyPrefix = "go-accounttx::user_profile::v1"

// ProfileReader projects committed users into public profiles.
type ProfileReader struct {
	directory core.UserDirectory
}

func NewProfileReader(directory core.UserDirectory) (*ProfileReader, error) {
	if directory == nil {
		return nil, fmt.Errorf("sqlstore: user directory is required")
	}
	return &ProfileReader{directory: directory}, nil
}

func (r *ProfileReader) GetUserProfile(ctx context.Context, id int64) (core.UserProfile, error) {
	if r == nil || r.directory == nil {
		return core.UserProfile{}, fmt.Errorf("sqlstore: profile reader is not configured")
	}
	user, found, err := r.directory.FindByID(ctx, id)
	if err != nil {
		return core.UserProfile{}, err
	}
	if !found {
		return core.UserProfile{}, fmt.Errorf("%w: %d", core.ErrUserNotFound, id)
	}
	return user.Profile(), nil
}

// CachedProfileReader fronts a ProfileReader with go-repository-cache.
// Misses are not cached.
type CachedProfileReader struct {
	base  core.ProfileReader
	cache repositorycache.CacheService
}

func NewCachedProfileReader(
	base core.ProfileReader,
	cacheService repositorycache.CacheService,
) (*CachedProfileReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base profile reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: profile cache service is required")
	}
	return &CachedProfileReader{base: base, cache: cacheService}, nil
}

// UserProfileCacheKey returns go-accounttx::user_profile::v1::<id>.
func UserProfileCacheKey(id int64) string {
	return userProfileCacheKeyPrefix + "::" + strconv.FormatInt(id, 10)
}

func (r *CachedProfileReader) GetUserProfile(ctx context.Context, id int64) (core.UserProfile, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.UserProfile{}, fmt.Errorf("sqlstore: cached profile reader is not configured")
	}
	return repositorycache.GetOrFetch(ctx, r.cache, UserProfileCacheKey(id), func(ctx context.Context) (core.UserProfile, error) {
		return r.base.GetUserProfile(ctx, id)
	})
}

func (r *CachedProfileReader) InvalidateUserProfile(ctx context.Context, id int64) error {
	if r == nil || r.cache == nil {
		return fmt.Errorf("sqlstore: cached profile reader is not configured")
	}
	return r.cache.Delete(ctx, UserProfileCacheKey(id))
}
