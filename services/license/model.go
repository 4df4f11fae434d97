package license

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func (s Status) String() string {
	switch s {
	case StatusActive, StatusSuspended, StatusCancelled, StatusExpired:
		return string(s)
	default:
		return ""
	}
}

type Tier string

const (
	TierStarter    Tier = "starter"
	TierBusiness   Tier = "business"
	TierEnterprise Tier = "enterprise"
)

func (t Tier) String() string {
	switch t {
	case TierStarter, TierBusiness, TierEnterprise:
		return string(t)
	default:
		return ""
	}
}

// Limit types accepted by the usage checks.
const (
	LimitEmployees = "employees"
	LimitStorage   = "storage"
	LimitAPICalls  = "api_calls"
)

// Limits holds per-module quota ceilings. A nil field means unlimited.
type Limits struct {
	Employees *int64 `json:"employees,omitempty"`
	Storage   *int64 `json:"storage,omitempty"`
	APICalls  *int64 `json:"api_calls,omitempty"`
}

// For returns the ceiling for the given limit type, nil when unlimited.
func (l Limits) For(limitType string) *int64 {
	switch limitType {
	case LimitEmployees:
		return l.Employees
	case LimitStorage:
		return l.Storage
	case LimitAPICalls:
		return l.APICalls
	default:
		return nil
	}
}

// ModuleGrant is the entitlement of one module for one tenant.
type ModuleGrant struct {
	Key         string    `json:"key"`
	Enabled     bool      `json:"enabled"`
	Tier        Tier      `json:"tier"`
	Limits      Limits    `json:"limits"`
	ActivatedAt time.Time `json:"activated_at"`
	ExpiresAt   time.Time `json:"expires_at"` // zero means never expires
}

// Expired reports whether the grant's expiry has passed. Grants without an
// expiry never expire.
func (g ModuleGrant) Expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && g.ExpiresAt.Before(now)
}

// License is the per-tenant entitlement record. Grants are stored as a JSON
// column; at most one grant exists per module key.
type License struct {
	ID             string                           `gorm:"column:id;primaryKey"`
	CreatedAt      time.Time                        `gorm:"column:created_at"`
	UpdatedAt      time.Time                        `gorm:"column:updated_at"`
	TenantID       string                           `gorm:"column:tenant_id;uniqueIndex;not null"`
	SubscriptionID string                           `gorm:"column:subscription_id"`
	Status         Status                           `gorm:"column:status"`
	Modules        datatypes.JSONSlice[ModuleGrant] `gorm:"column:modules"`
}

func (License) TableName() string { return "licenses" }

// Grant returns the grant for key, or nil when the module was never granted.
func (l *License) Grant(key string) *ModuleGrant {
	for i := range l.Modules {
		if l.Modules[i].Key == key {
			return &l.Modules[i]
		}
	}
	return nil
}

// SetGrant inserts or replaces the grant for g.Key, keeping one grant per key.
func (l *License) SetGrant(g ModuleGrant) {
	for i := range l.Modules {
		if l.Modules[i].Key == g.Key {
			l.Modules[i] = g
			return
		}
	}
	l.Modules = append(l.Modules, g)
}
