package licensing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hrplane/services/license"
)

type fakeLicenseRepo struct {
	getByTenantFn func(ctx context.Context, tenantID string) (*license.License, error)
	calls         int
}

func (f *fakeLicenseRepo) GetByTenant(ctx context.Context, tenantID string) (*license.License, error) {
	f.calls++
	if f.getByTenantFn != nil {
		return f.getByTenantFn(ctx, tenantID)
	}
	return nil, nil
}

func (f *fakeLicenseRepo) Create(context.Context, *license.License) error { return nil }
func (f *fakeLicenseRepo) Save(context.Context, *license.License) error   { return nil }
func (f *fakeLicenseRepo) FindExpiring(context.Context, time.Duration) ([]license.ExpiringGrant, error) {
	return nil, nil
}

func TestLicenseCacheServesFromCacheWithinTTL(t *testing.T) {
	lic := &license.License{ID: "lic-1", TenantID: "tenant-1"}
	repo := &fakeLicenseRepo{getByTenantFn: func(context.Context, string) (*license.License, error) {
		return lic, nil
	}}
	cache := NewLicenseCache(repo, time.Minute)

	for i := 0; i < 5; i++ {
		got, err := cache.Get(context.Background(), "tenant-1")
		require.NoError(t, err)
		require.Equal(t, "lic-1", got.ID)
	}
	require.Equal(t, 1, repo.calls)
}

func TestLicenseCacheCachesMissingRecords(t *testing.T) {
	repo := &fakeLicenseRepo{}
	cache := NewLicenseCache(repo, time.Minute)

	for i := 0; i < 5; i++ {
		got, err := cache.Get(context.Background(), "tenant-1")
		require.NoError(t, err)
		require.Nil(t, got)
	}
	require.Equal(t, 1, repo.calls)
}

func TestLicenseCacheExpiresAfterTTL(t *testing.T) {
	repo := &fakeLicenseRepo{}
	cache := NewLicenseCache(repo, 10*time.Millisecond)

	_, err := cache.Get(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	time.Sleep(20 * time.Millisecond)

	_, err = cache.Get(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestLicenseCacheInvalidateForcesReload(t *testing.T) {
	repo := &fakeLicenseRepo{}
	cache := NewLicenseCache(repo, time.Minute)

	_, err := cache.Get(context.Background(), "tenant-1")
	require.NoError(t, err)

	cache.Invalidate("tenant-1")

	_, err = cache.Get(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestLicenseCachePropagatesStoreErrors(t *testing.T) {
	repo := &fakeLicenseRepo{getByTenantFn: func(context.Context, string) (*license.License, error) {
		return nil, errors.New("connection refused")
	}}
	cache := NewLicenseCache(repo, time.Minute)

	_, err := cache.Get(context.Background(), "tenant-1")
	require.Error(t, err)

	// errors are not cached; the next read hits the store again
	_, err = cache.Get(context.Background(), "tenant-1")
	require.Error(t, err)
	require.Equal(t, 2, repo.calls)
}
