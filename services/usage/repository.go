package usage

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hrplane/services/license"
)

// Repository describes database operations for usage tracking records.
type Repository interface {
	FindByPeriod(ctx context.Context, tenantID, moduleKey, period string) (*Tracking, error)
	GetOrCreate(ctx context.Context, tenantID, moduleKey, period string, limits license.Limits) (*Tracking, error)
	Increment(ctx context.Context, tenantID, moduleKey, period, limitType string, delta int64) error
	Reset(ctx context.Context, tenantID, moduleKey, period, limitType string, value int64) error
}

type gormRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB, node *snowflake.Node) Repository {
	return &gormRepository{db: db, node: node}
}

// FindByPeriod returns (nil, nil) when no record exists for the bucket.
func (r *gormRepository) FindByPeriod(ctx context.Context, tenantID, moduleKey, period string) (*Tracking, error) {
	var t Tracking
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND module_key = ? AND period = ?", tenantID, moduleKey, period).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// GetOrCreate lazily creates the period record, snapshotting the limits in
// force at creation time. A concurrent create losing the unique-index race
// falls back to reading the winner's row.
func (r *gormRepository) GetOrCreate(ctx context.Context, tenantID, moduleKey, period string, limits license.Limits) (*Tracking, error) {
	t, err := r.FindByPeriod(ctx, tenantID, moduleKey, period)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}

	t = &Tracking{
		ID:        r.node.Generate().String(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		TenantID:  tenantID,
		ModuleKey: moduleKey,
		Period:    period,
		Usage:     datatypes.NewJSONType(Counters{}),
		Limits:    datatypes.NewJSONType(limits),
	}
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		existing, findErr := r.FindByPeriod(ctx, tenantID, moduleKey, period)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return t, nil
}

// Increment commits delta to a counter. Counters are soft quotas; the
// read-modify-write runs in a transaction but concurrent increments may
// interleave across instances, which is accepted.
func (r *gormRepository) Increment(ctx context.Context, tenantID, moduleKey, period, limitType string, delta int64) error {
	if delta == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t Tracking
		if err := tx.
			Where("tenant_id = ? AND module_key = ? AND period = ?", tenantID, moduleKey, period).
			First(&t).Error; err != nil {
			return err
		}

		counters := t.Usage.Data()
		if counters == nil {
			counters = Counters{}
		}
		counters[limitType] += delta
		t.Usage = datatypes.NewJSONType(counters)
		t.UpdatedAt = time.Now()

		return tx.Save(&t).Error
	})
}

// Reset is an explicit correction; it is the only way a counter moves backward
// within a period.
func (r *gormRepository) Reset(ctx context.Context, tenantID, moduleKey, period, limitType string, value int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t Tracking
		if err := tx.
			Where("tenant_id = ? AND module_key = ? AND period = ?", tenantID, moduleKey, period).
			First(&t).Error; err != nil {
			return err
		}

		counters := t.Usage.Data()
		if counters == nil {
			counters = Counters{}
		}
		counters[limitType] = value
		t.Usage = datatypes.NewJSONType(counters)
		t.UpdatedAt = time.Now()

		return tx.Save(&t).Error
	})
}
