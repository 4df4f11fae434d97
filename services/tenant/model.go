package tenant

import (
	"time"
)

type TenantType string

var (
	Company    TenantType = "company"
	Enterprise TenantType = "enterprise"
)

func (t TenantType) String() string {
	switch t {
	case Company, Enterprise:
		return string(t)
	default:
		return ""
	}
}

type TenantStatus string

var (
	Pending      TenantStatus = "pending"
	Provisioning TenantStatus = "provisioning"
	Active       TenantStatus = "active"
	Suspended    TenantStatus = "suspended"
	Archived     TenantStatus = "archived"
)

func (t TenantStatus) String() string {
	switch t {
	case Pending, Provisioning, Active, Suspended, Archived:
		return string(t)
	default:
		return ""
	}
}

type Tenant struct {
	ID          string       `gorm:"column:id;primaryKey" json:"tenant_id"`
	CreatedAt   time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at" json:"updated_at"`
	Type        TenantType   `gorm:"column:type" json:"type"`
	Name        string       `gorm:"column:name" json:"name"`
	Slug        string       `gorm:"column:slug;uniqueIndex" json:"slug"`
	CountryCode string       `gorm:"column:country_code" json:"country_code"`
	Timezone    string       `gorm:"column:timezone" json:"timezone"`
	Status      TenantStatus `gorm:"column:status" json:"status"`
}

func (Tenant) TableName() string {
	return "tenants"
}
