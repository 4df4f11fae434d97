package usage

import (
	"time"

	"gorm.io/datatypes"

	"hrplane/services/license"
)

// Counters maps a limit type to its running total for the period.
type Counters map[string]int64

// Tracking is the per (tenant, module, period) usage record. Limits are a
// snapshot of the license at record creation, not a live join.
type Tracking struct {
	ID        string                            `gorm:"column:id;primaryKey"`
	CreatedAt time.Time                         `gorm:"column:created_at"`
	UpdatedAt time.Time                         `gorm:"column:updated_at"`
	TenantID  string                            `gorm:"column:tenant_id;not null;uniqueIndex:idx_usage_tenant_module_period"`
	ModuleKey string                            `gorm:"column:module_key;not null;uniqueIndex:idx_usage_tenant_module_period"`
	Period    string                            `gorm:"column:period;not null;uniqueIndex:idx_usage_tenant_module_period"`
	Usage     datatypes.JSONType[Counters]      `gorm:"column:usage"`
	Limits    datatypes.JSONType[license.Limits] `gorm:"column:limits"`
}

func (Tracking) TableName() string { return "usage_tracking" }

// Current returns the counter for limitType, zero when never touched.
func (t *Tracking) Current(limitType string) int64 {
	return t.Usage.Data()[limitType]
}

// PeriodOf returns the calendar-month bucket for ts, in UTC.
func PeriodOf(ts time.Time) string {
	return ts.UTC().Format("2006-01")
}

// CurrentPeriod returns the bucket for the present moment.
func CurrentPeriod() string {
	return PeriodOf(time.Now())
}
