package audit

import (
	"time"

	"gorm.io/datatypes"
)

type EventType string

const (
	EventValidationFailure EventType = "VALIDATION_FAILURE"
	EventValidationSuccess EventType = "VALIDATION_SUCCESS"
	EventRateLimited       EventType = "RATE_LIMITED"
)

// Context carries best-effort request metadata. Nothing here is trusted input.
type Context struct {
	Path      string `json:"path,omitempty"`
	Method    string `json:"method,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// Record is one append-only audit trail entry.
type Record struct {
	ID        string                      `gorm:"column:id;primaryKey"`
	CreatedAt time.Time                   `gorm:"column:created_at;index"`
	TenantID  string                      `gorm:"column:tenant_id;index"`
	ModuleKey string                      `gorm:"column:module_key"`
	EventType EventType                   `gorm:"column:event_type"`
	Context   datatypes.JSONType[Context] `gorm:"column:context"`
}

func (Record) TableName() string { return "audit_records" }
