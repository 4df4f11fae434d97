package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hrplane/internal/config"
	"hrplane/pkg/db/option"
	"hrplane/pkg/db/pagination"
	"hrplane/pkg/errutil"
	"hrplane/pkg/repository"
	"hrplane/services/license"
	"hrplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockTenantRepository struct {
	findFn    func(ctx context.Context, query *Tenant, opts ...option.QueryOption) ([]*Tenant, error)
	findOneFn func(ctx context.Context, query *Tenant, opts ...option.QueryOption) (*Tenant, error)
}

func (m *mockTenantRepository) WithTrx(tx *gorm.DB) repository.Repository[Tenant] {
	return m
}

func (m *mockTenantRepository) Find(ctx context.Context, query *Tenant, opts ...option.QueryOption) ([]*Tenant, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *mockTenantRepository) FindOne(ctx context.Context, query *Tenant, opts ...option.QueryOption) (*Tenant, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *mockTenantRepository) Create(context.Context, *Tenant) error         { return nil }
func (m *mockTenantRepository) Update(context.Context, string, any) error     { return nil }
func (m *mockTenantRepository) BatchCreate(context.Context, []*Tenant) error  { return nil }
func (m *mockTenantRepository) BatchUpdate(context.Context, []*Tenant) error  { return nil }
func (m *mockTenantRepository) Count(context.Context, *Tenant) (int64, error) { return 0, nil }

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return nil, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{RootDomain: "example.com"}
	cfg.Licensing.CoreModuleKey = "core-hr"
	return cfg
}

func TestListTenantsSuccess(t *testing.T) {
	now := time.Now()
	repo := &mockTenantRepository{}
	repo.findFn = func(ctx context.Context, _ *Tenant, _ ...option.QueryOption) ([]*Tenant, error) {
		return []*Tenant{
			{ID: "tenant-1", Name: "Tenant One", Slug: "tenant-one", CreatedAt: now, UpdatedAt: now},
			{ID: "tenant-2", Name: "Tenant Two", Slug: "tenant-two", CreatedAt: now, UpdatedAt: now},
		}, nil
	}
	svc := &Service{repo: repo}

	resp, err := svc.ListTenants(context.Background(), pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Tenants, 2)
	require.Equal(t, "tenant-one", resp.Tenants[0].Slug)
	require.False(t, resp.PageInfo.HasMore)
}

func TestListTenantsRepositoryError(t *testing.T) {
	repo := &mockTenantRepository{}
	repo.findFn = func(ctx context.Context, _ *Tenant, _ ...option.QueryOption) ([]*Tenant, error) {
		return nil, errors.New("boom")
	}
	svc := &Service{repo: repo}

	_, err := svc.ListTenants(context.Background(), pagination.Pagination{Limit: 10})
	require.Error(t, err)

	var baseErr errutil.BaseError
	require.True(t, errors.As(err, &baseErr))
	require.Equal(t, errutil.StatusInternal, baseErr.Code)
}

func TestCreateTenantRootDomainMissing(t *testing.T) {
	svc := &Service{config: &config.Config{RootDomain: ""}}
	_, err := svc.CreateTenant(context.Background(), CreateTenantRequest{Name: "Tenant"})
	require.Error(t, err)

	var baseErr errutil.BaseError
	require.True(t, errors.As(err, &baseErr))
	require.Equal(t, errutil.StatusInternal, baseErr.Code)
}

func TestCreateTenantSlugExists(t *testing.T) {
	repo := &mockTenantRepository{}
	repo.findOneFn = func(ctx context.Context, _ *Tenant, _ ...option.QueryOption) (*Tenant, error) {
		return &Tenant{ID: "existing"}, nil
	}
	svc := &Service{
		config: testConfig(),
		repo:   repo,
	}

	_, err := svc.CreateTenant(context.Background(), CreateTenantRequest{Name: "Tenant", Slug: "tenant"})
	require.Error(t, err)

	var baseErr errutil.BaseError
	require.True(t, errors.As(err, &baseErr))
	require.Equal(t, errutil.StatusConflict, baseErr.Code)
}

func TestGetTenantNotFound(t *testing.T) {
	repo := &mockTenantRepository{}
	repo.findOneFn = func(ctx context.Context, _ *Tenant, _ ...option.QueryOption) (*Tenant, error) {
		return nil, nil
	}
	svc := &Service{repo: repo}

	_, err := svc.GetTenant(context.Background(), "unknown")
	require.Error(t, err)

	var baseErr errutil.BaseError
	require.True(t, errors.As(err, &baseErr))
	require.Equal(t, errutil.StatusNotFound, baseErr.Code)
}

func TestCreateTenantSuccess(t *testing.T) {
	db := testutil.NewTestDB(t, &Tenant{}, &license.License{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	enqueuer := &fakeEnqueuer{}
	cfg := testConfig()

	licenses := license.NewService(license.ServiceParams{DB: db, Node: node, Config: cfg})
	svc := NewService(ServiceParams{DB: db, Node: node, Config: cfg, Asynq: enqueuer, Licenses: licenses})

	created, err := svc.CreateTenant(context.Background(), CreateTenantRequest{
		Name:           "Tenant Name",
		CountryCode:    "US",
		Timezone:       "America/New_York",
		Type:           "company",
		SubscriptionID: "sub-1",
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	require.Equal(t, "tenant-name", created.Slug)
	require.Equal(t, Active, created.Status)

	var count int64
	require.NoError(t, db.Model(&Tenant{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.Len(t, enqueuer.tasks, 3)

	lic, err := licenses.GetLicense(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, lic.Grant("core-hr"))
	require.True(t, lic.Grant("core-hr").Enabled)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	svc := &Service{}
	_, err := svc.SetStatus(context.Background(), "tenant-1", TenantStatus("bogus"))
	require.Error(t, err)
}
