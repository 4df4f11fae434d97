package license

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository describes database operations available for licenses.
type Repository interface {
	GetByTenant(ctx context.Context, tenantID string) (*License, error)
	Create(ctx context.Context, lic *License) error
	Save(ctx context.Context, lic *License) error
	FindExpiring(ctx context.Context, within time.Duration) ([]ExpiringGrant, error)
}

// ExpiringGrant is a flattened (tenant, grant) pair returned by FindExpiring.
type ExpiringGrant struct {
	TenantID  string
	ModuleKey string
	ExpiresAt time.Time
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// GetByTenant returns (nil, nil) when the tenant has no license record.
func (r *gormRepository) GetByTenant(ctx context.Context, tenantID string) (*License, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var lic License
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&lic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lic, nil
}

func (r *gormRepository) Create(ctx context.Context, lic *License) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Create(lic).Error
}

func (r *gormRepository) Save(ctx context.Context, lic *License) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Save(lic).Error
}

// FindExpiring scans active licenses for grants whose expiry falls within the
// given horizon. Grants live in a JSON column, so the filter runs in process;
// the licenses table is one row per tenant and stays small.
func (r *gormRepository) FindExpiring(ctx context.Context, within time.Duration) ([]ExpiringGrant, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var licenses []License
	if err := r.db.WithContext(ctx).
		Where("status = ?", StatusActive).
		Find(&licenses).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	horizon := now.Add(within)

	var out []ExpiringGrant
	for i := range licenses {
		for _, g := range licenses[i].Modules {
			if !g.Enabled || g.ExpiresAt.IsZero() {
				continue
			}
			if g.ExpiresAt.After(now) && g.ExpiresAt.Before(horizon) {
				out = append(out, ExpiringGrant{
					TenantID:  licenses[i].TenantID,
					ModuleKey: g.Key,
					ExpiresAt: g.ExpiresAt,
				})
			}
		}
	}
	return out, nil
}
