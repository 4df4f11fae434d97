package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hrplane/internal/config"
	"hrplane/pkg/db/option"
	"hrplane/pkg/db/pagination"
	"hrplane/pkg/errutil"
	"hrplane/pkg/repository"
	"hrplane/pkg/task"
	"hrplane/services/license"
)

type Service struct {
	db       *gorm.DB
	asynq    task.Enqueuer
	node     *snowflake.Node
	config   *config.Config
	repo     repository.Repository[Tenant]
	licenses *license.Service
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Asynq    task.Enqueuer `optional:"true"`
	Node     *snowflake.Node
	Config   *config.Config
	Licenses *license.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		asynq:    p.Asynq,
		node:     p.Node,
		config:   p.Config,
		repo:     repository.ProvideStore[Tenant](p.DB),
		licenses: p.Licenses,
	}
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	return zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

type CreateTenantRequest struct {
	Name           string `json:"name" binding:"required"`
	Slug           string `json:"slug"`
	Type           string `json:"type"`
	CountryCode    string `json:"country_code"`
	Timezone       string `json:"timezone"`
	SubscriptionID string `json:"subscription_id"`
}

type ListTenantsResponse struct {
	Tenants  []*Tenant            `json:"tenants"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

func (s *Service) ListTenants(ctx context.Context, p pagination.Pagination) (*ListTenantsResponse, error) {
	zapLog := s.log(ctx)

	opts := []option.QueryOption{
		option.ApplyPagination(p),
	}

	tenants, err := s.repo.Find(ctx, &Tenant{}, opts...)
	if err != nil {
		zapLog.Error("failed to list tenants", zap.Error(err))
		return nil, errutil.Internal("failed to list tenants", errutil.WithErr(err))
	}

	pageInfo := pagination.BuildCursorPageInfo(tenants, p.Limit, func(t *Tenant) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{ID: t.ID})
		return cursor
	})

	if len(tenants) > p.Limit {
		tenants = tenants[:p.Limit]
	}

	return &ListTenantsResponse{
		Tenants:  tenants,
		PageInfo: pageInfo,
	}, nil
}

func (s *Service) CreateTenant(ctx context.Context, req CreateTenantRequest) (*Tenant, error) {
	zapLog := s.log(ctx)

	if s.config.RootDomain == "" {
		zapLog.Error("failed to create tenant, root domain not configured")
		return nil, errutil.Internal("failed to create tenant, root domain not configured")
	}

	slugName := req.Slug
	if slugName == "" {
		slugName = slug.Make(req.Name)
	}

	exist, err := s.repo.FindOne(ctx, &Tenant{
		Slug: slugName,
	})
	if err != nil {
		zapLog.Error("failed query get tenant by slug", zap.Error(err))
		return nil, errutil.Internal("failed to check existing tenant", errutil.WithErr(err))
	}

	if exist != nil {
		zapLog.Warn("tenant already exists", zap.String("slug", slugName))
		return nil, errutil.Conflict("tenant already exists")
	}

	tenantType := TenantType(req.Type)
	if tenantType.String() == "" {
		tenantType = Company
	}

	tenantID := s.node.Generate().String()

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		tenant := &Tenant{
			ID:          tenantID,
			Type:        tenantType,
			Name:        req.Name,
			Slug:        slugName,
			CountryCode: req.CountryCode,
			Timezone:    req.Timezone,
			Status:      Active,
		}

		if err := tx.Create(tenant).Error; err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}

		if _, err := s.licenses.Provision(ctx, tx, tenantID, req.SubscriptionID); err != nil {
			return fmt.Errorf("failed to provision license: %w", err)
		}

		if s.asynq != nil {
			payload := ProvisionPayload{
				TenantID: tenantID,
				Slug:     slugName,
				Name:     req.Name,
				Domain:   fmt.Sprintf("%s.%s", slugName, s.config.RootDomain),
			}
			for _, t := range NewProvisionTasks(payload) {
				if _, err := s.asynq.Enqueue(t); err != nil {
					zapLog.Error("failed enqueue provisioning task", zap.String("task_type", t.Type()), zap.Error(err))
					return fmt.Errorf("failed to enqueue provisioning task: %w", err)
				}
			}
		}

		return nil
	}); err != nil {
		zapLog.Error("failed to create tenant transaction", zap.Error(err))
		return nil, errutil.Internal("failed to create tenant", errutil.WithErr(err))
	}

	return s.GetTenant(ctx, tenantID)
}

func (s *Service) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	zapLog := s.log(ctx)

	tenant, err := s.repo.FindOne(ctx, &Tenant{
		ID: tenantID,
	})
	if err != nil {
		zapLog.Error("failed query get tenant by id", zap.Error(err))
		return nil, errutil.Internal("failed to get tenant", errutil.WithErr(err))
	}

	if tenant == nil {
		zapLog.Warn("failed get tenant, tenant not found", zap.String("tenant_id", tenantID))
		return nil, errutil.NotFound("tenant not found")
	}

	return tenant, nil
}

// SetStatus transitions a tenant between lifecycle statuses. Suspended
// tenants keep their license rows; enforcement treats them like any other
// tenant until the license itself is mutated.
func (s *Service) SetStatus(ctx context.Context, tenantID string, status TenantStatus) (*Tenant, error) {
	if status.String() == "" {
		return nil, errutil.ValidationFailed("unknown tenant status")
	}

	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	tenant.Status = status
	tenant.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, tenant.ID, map[string]any{
		"status":     tenant.Status,
		"updated_at": tenant.UpdatedAt,
	}); err != nil {
		s.log(ctx).Error("failed to update tenant status", zap.Error(err))
		return nil, errutil.Internal("failed to update tenant status", errutil.WithErr(err))
	}

	return tenant, nil
}
