package licensing

import (
	"time"

	"hrplane/pkg/errutil"
	"hrplane/services/license"
)

// DenyKind is the typed reason carried by a denial. The string value doubles
// as the stable `error` code on the wire.
type DenyKind string

const (
	DenyTenantIDRequired  DenyKind = "TENANT_ID_REQUIRED"
	DenyModuleNotLicensed DenyKind = "MODULE_NOT_LICENSED"
	DenyLicenseExpired    DenyKind = "LICENSE_EXPIRED"
	DenyLimitExceeded     DenyKind = "LIMIT_EXCEEDED"
	DenyRateLimitExceeded DenyKind = "RATE_LIMIT_EXCEEDED"
	DenyValidationTimeout DenyKind = "VALIDATION_TIMEOUT"
)

// CoreStatus maps the denial reason onto the shared status taxonomy.
func (k DenyKind) CoreStatus() errutil.CoreStatus {
	switch k {
	case DenyTenantIDRequired:
		return errutil.StatusBadRequest
	case DenyModuleNotLicensed, DenyLicenseExpired:
		return errutil.StatusForbidden
	case DenyLimitExceeded, DenyRateLimitExceeded:
		return errutil.StatusTooManyRequests
	case DenyValidationTimeout:
		return errutil.StatusGatewayTimeout
	default:
		return errutil.StatusInternal
	}
}

// Verdict is the engine's allow/deny decision. Zero-valued optional fields are
// omitted from serialized responses.
type Verdict struct {
	Allowed bool     `json:"-"`
	Kind    DenyKind `json:"error,omitempty"`
	Message string   `json:"message,omitempty"`

	ModuleKey string               `json:"module_key,omitempty"`
	Grant     *license.ModuleGrant `json:"-"`

	UpgradeURL        string    `json:"upgrade_url,omitempty"`
	RetryAfterSeconds int64     `json:"retry_after_seconds,omitempty"`
	LimitType         string    `json:"limit_type,omitempty"`
	CurrentUsage      int64     `json:"current_usage,omitempty"`
	Limit             int64     `json:"limit,omitempty"`
	ExpiresAt         time.Time `json:"expires_at,omitzero"`
}

// Allow builds a passing verdict carrying the resolved grant.
func Allow(moduleKey string, grant *license.ModuleGrant) Verdict {
	return Verdict{
		Allowed:   true,
		ModuleKey: moduleKey,
		Grant:     grant,
	}
}

// Deny builds a failing verdict for the given reason.
func Deny(kind DenyKind, moduleKey, message string) Verdict {
	return Verdict{
		Kind:      kind,
		Message:   message,
		ModuleKey: moduleKey,
	}
}
