package license

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hrplane/internal/config"
	"hrplane/pkg/errutil"
	"hrplane/pkg/task"
)

// CacheInvalidator is implemented by whatever caching layer sits in front of
// the license store. Every administrative mutation goes through it.
type CacheInvalidator interface {
	Invalidate(tenantID string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(string) {}

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	config *config.Config
	repo   Repository
	cache  CacheInvalidator
	asynq  task.Enqueuer
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
	Cache  CacheInvalidator `optional:"true"`
	Asynq  task.Enqueuer    `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	cache := p.Cache
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &Service{
		db:     p.DB,
		node:   p.Node,
		config: p.Config,
		repo:   NewRepository(p.DB),
		cache:  cache,
		asynq:  p.Asynq,
	}
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	return zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

// Provision creates the license for a freshly created tenant with the core
// module granted. It participates in the caller's transaction when tx is
// non-nil.
func (s *Service) Provision(ctx context.Context, tx *gorm.DB, tenantID, subscriptionID string) (*License, error) {
	repo := s.repo
	if tx != nil {
		repo = NewRepository(tx)
	}

	lic := &License{
		ID:             s.node.Generate().String(),
		TenantID:       tenantID,
		SubscriptionID: subscriptionID,
		Status:         StatusActive,
		Modules: []ModuleGrant{{
			Key:         s.config.Licensing.CoreModuleKey,
			Enabled:     true,
			Tier:        TierStarter,
			ActivatedAt: time.Now(),
		}},
	}

	if err := repo.Create(ctx, lic); err != nil {
		return nil, err
	}
	return lic, nil
}

func (s *Service) GetLicense(ctx context.Context, tenantID string) (*License, error) {
	lic, err := s.repo.GetByTenant(ctx, tenantID)
	if err != nil {
		s.log(ctx).Error("failed query get license by tenant", zap.Error(err))
		return nil, errutil.Internal("failed to get license", errutil.WithErr(err))
	}
	if lic == nil {
		return nil, errutil.NotFound("license not found")
	}
	return lic, nil
}

// mutate loads the tenant's license, applies fn, persists it and invalidates
// the grant cache for that tenant.
func (s *Service) mutate(ctx context.Context, tenantID string, fn func(*License) error) (*License, error) {
	lic, err := s.repo.GetByTenant(ctx, tenantID)
	if err != nil {
		s.log(ctx).Error("failed query get license by tenant", zap.Error(err))
		return nil, errutil.Internal("failed to get license", errutil.WithErr(err))
	}
	if lic == nil {
		return nil, errutil.NotFound("license not found")
	}

	if err := fn(lic); err != nil {
		return nil, err
	}

	lic.UpdatedAt = time.Now()
	if err := s.repo.Save(ctx, lic); err != nil {
		s.log(ctx).Error("failed to save license", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errutil.Internal("failed to save license", errutil.WithErr(err))
	}

	s.cache.Invalidate(tenantID)
	return lic, nil
}

type EnableModuleRequest struct {
	ModuleKey string `json:"module_key" binding:"required"`
	Tier      Tier   `json:"tier"`
	Limits    Limits `json:"limits"`
	ExpiresAt string `json:"expires_at"` // RFC3339, empty means never
}

func (s *Service) EnableModule(ctx context.Context, tenantID string, req EnableModuleRequest) (*License, error) {
	tier := req.Tier
	if tier.String() == "" {
		tier = TierStarter
	}

	var expiresAt time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return nil, errutil.ValidationFailed("invalid expires_at", errutil.WithErr(err))
		}
		expiresAt = t
	}

	return s.mutate(ctx, tenantID, func(lic *License) error {
		grant := ModuleGrant{
			Key:         req.ModuleKey,
			Enabled:     true,
			Tier:        tier,
			Limits:      req.Limits,
			ActivatedAt: time.Now(),
			ExpiresAt:   expiresAt,
		}
		if existing := lic.Grant(req.ModuleKey); existing != nil {
			grant.ActivatedAt = existing.ActivatedAt
		}
		lic.SetGrant(grant)
		return nil
	})
}

func (s *Service) DisableModule(ctx context.Context, tenantID, moduleKey string) (*License, error) {
	if moduleKey == s.config.Licensing.CoreModuleKey {
		return nil, errutil.ValidationFailed("core module cannot be disabled")
	}

	return s.mutate(ctx, tenantID, func(lic *License) error {
		grant := lic.Grant(moduleKey)
		if grant == nil {
			return errutil.NotFound("module not granted")
		}
		grant.Enabled = false
		return nil
	})
}

func (s *Service) UpdateLimits(ctx context.Context, tenantID, moduleKey string, limits Limits) (*License, error) {
	return s.mutate(ctx, tenantID, func(lic *License) error {
		grant := lic.Grant(moduleKey)
		if grant == nil {
			return errutil.NotFound("module not granted")
		}
		grant.Limits = limits
		return nil
	})
}

func (s *Service) Renew(ctx context.Context, tenantID, moduleKey string, until time.Time) (*License, error) {
	if !until.IsZero() && until.Before(time.Now()) {
		return nil, errutil.ValidationFailed("renewal date is in the past")
	}

	return s.mutate(ctx, tenantID, func(lic *License) error {
		grant := lic.Grant(moduleKey)
		if grant == nil {
			return errutil.NotFound("module not granted")
		}
		grant.ExpiresAt = until
		return nil
	})
}

func (s *Service) ChangeTier(ctx context.Context, tenantID, moduleKey string, tier Tier) (*License, error) {
	if tier.String() == "" {
		return nil, errutil.ValidationFailed("unknown tier")
	}

	return s.mutate(ctx, tenantID, func(lic *License) error {
		grant := lic.Grant(moduleKey)
		if grant == nil {
			return errutil.NotFound("module not granted")
		}
		grant.Tier = tier
		return nil
	})
}
