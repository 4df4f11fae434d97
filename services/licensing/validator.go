package licensing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"hrplane/internal/config"
	"hrplane/pkg/errutil"
	"hrplane/services/audit"
	"hrplane/services/license"
	"hrplane/services/usage"
)

var decisions = promauto.NewCounterVec(
	prometheus.CounterOpts{Name: "licensing_decisions_total"},
	[]string{"result", "kind"},
)

// LicenseSource is what the validator reads licenses through; in production it
// is the LicenseCache, in tests a fake.
type LicenseSource interface {
	Get(ctx context.Context, tenantID string) (*license.License, error)
}

// Recorder receives audit events. Implementations must not block.
type Recorder interface {
	Record(tenantID, moduleKey string, eventType audit.EventType, c audit.Context)
}

// RequestMeta is best-effort request context forwarded to the audit trail and
// used for rate-limit keying.
type RequestMeta struct {
	IP        string
	Path      string
	Method    string
	UserAgent string
}

func (m RequestMeta) auditContext() audit.Context {
	return audit.Context{
		Path:      m.Path,
		Method:    m.Method,
		UserAgent: m.UserAgent,
		IP:        m.IP,
	}
}

// Validator is the license decision core. It is HTTP-agnostic; the gin guards
// in this package translate its verdicts to responses.
type Validator struct {
	cfg      config.Licensing
	licenses LicenseSource
	usage    usage.Repository
	limiter  *RateLimiter
	audit    Recorder
}

func NewValidator(cfg config.Licensing, licenses LicenseSource, usageRepo usage.Repository, limiter *RateLimiter, recorder Recorder) *Validator {
	return &Validator{
		cfg:      cfg,
		licenses: licenses,
		usage:    usageRepo,
		limiter:  limiter,
		audit:    recorder,
	}
}

func (v *Validator) log(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	return zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

func (v *Validator) pricingURL(moduleKey string) string {
	return fmt.Sprintf("%s?module=%s", v.cfg.PricingPath, url.QueryEscape(moduleKey))
}

func (v *Validator) renewURL() string {
	return v.cfg.LicensePath + "?action=renew"
}

func (v *Validator) upgradeURL() string {
	return v.cfg.LicensePath + "?action=upgrade"
}

func (v *Validator) deny(verdict Verdict, eventType audit.EventType, tenantID string, meta RequestMeta) Verdict {
	decisions.WithLabelValues("deny", string(verdict.Kind)).Inc()
	v.audit.Record(tenantID, verdict.ModuleKey, eventType, meta.auditContext())
	return verdict
}

func (v *Validator) allow(verdict Verdict, tenantID string, meta RequestMeta) Verdict {
	decisions.WithLabelValues("allow", "").Inc()
	if v.cfg.AuditSuccess {
		v.audit.Record(tenantID, verdict.ModuleKey, audit.EventValidationSuccess, meta.auditContext())
	}
	return verdict
}

// Validate decides whether the tenant may use the module right now. The error
// return is reserved for store/infra failure: callers must surface it as a
// 5xx, never as a licensing denial.
func (v *Validator) Validate(ctx context.Context, tenantID, moduleKey string, meta RequestMeta) (Verdict, error) {
	// Core access is unconditional: no rate limit, no audit, no store read.
	if moduleKey == v.cfg.CoreModuleKey {
		decisions.WithLabelValues("allow", "").Inc()
		return Allow(moduleKey, nil), nil
	}

	if tenantID == "" {
		verdict := Deny(DenyTenantIDRequired, moduleKey, "tenant identity is required")
		return v.deny(verdict, audit.EventValidationFailure, tenantID, meta), nil
	}

	// Rate limiting runs before any store read so abusive callers cannot
	// turn the license store into the bottleneck.
	key := tenantID + "|" + moduleKey + "|" + meta.IP
	if allowed, retryAfter := v.limiter.CheckAndIncrement(key); !allowed {
		verdict := Deny(DenyRateLimitExceeded, moduleKey, "too many requests, slow down")
		verdict.RetryAfterSeconds = int64(retryAfter.Seconds())
		if verdict.RetryAfterSeconds < 1 {
			verdict.RetryAfterSeconds = 1
		}
		return v.deny(verdict, audit.EventRateLimited, tenantID, meta), nil
	}

	lic, err := v.licenses.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			verdict := Deny(DenyValidationTimeout, moduleKey, "license validation timed out")
			return v.deny(verdict, audit.EventValidationFailure, tenantID, meta), nil
		}
		v.log(ctx).Error("license store read failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return Verdict{}, errutil.Internal("failed to read license", errutil.WithErr(err))
	}

	// Absence equals disabled: no record, no grant and a disabled grant all
	// report the same reason. The expiry check only runs for enabled grants,
	// so disabled-and-expired reports MODULE_NOT_LICENSED.
	var grant *license.ModuleGrant
	if lic != nil {
		grant = lic.Grant(moduleKey)
	}
	if grant == nil || !grant.Enabled {
		verdict := Deny(DenyModuleNotLicensed, moduleKey, fmt.Sprintf("module %q is not licensed for this tenant", moduleKey))
		verdict.UpgradeURL = v.pricingURL(moduleKey)
		return v.deny(verdict, audit.EventValidationFailure, tenantID, meta), nil
	}

	if grant.Expired(time.Now()) {
		verdict := Deny(DenyLicenseExpired, moduleKey, fmt.Sprintf("license for module %q expired", moduleKey))
		verdict.ExpiresAt = grant.ExpiresAt
		verdict.UpgradeURL = v.renewURL()
		return v.deny(verdict, audit.EventValidationFailure, tenantID, meta), nil
	}

	return v.allow(Allow(moduleKey, grant), tenantID, meta), nil
}

// CheckUsageLimit answers "may I consume increment more units" without
// committing anything. The caller commits through CommitUsage once the guarded
// operation succeeds, so denials never move a counter.
func (v *Validator) CheckUsageLimit(ctx context.Context, tenantID, moduleKey, limitType string, incrementFn func() int64, meta RequestMeta) (Verdict, error) {
	if moduleKey == v.cfg.CoreModuleKey {
		decisions.WithLabelValues("allow", "").Inc()
		return Allow(moduleKey, nil), nil
	}

	if tenantID == "" {
		verdict := Deny(DenyTenantIDRequired, moduleKey, "tenant identity is required")
		return v.deny(verdict, audit.EventValidationFailure, tenantID, meta), nil
	}

	increment := int64(1)
	if incrementFn != nil {
		increment = incrementFn()
	}

	// Limits are snapshotted on the period record at creation; the license
	// is only consulted when the record does not exist yet.
	var limits license.Limits
	lic, err := v.licenses.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			verdict := Deny(DenyValidationTimeout, moduleKey, "license validation timed out")
			return v.deny(verdict, audit.EventValidationFailure, tenantID, meta), nil
		}
		return Verdict{}, errutil.Internal("failed to read license", errutil.WithErr(err))
	}
	if lic != nil {
		if grant := lic.Grant(moduleKey); grant != nil {
			limits = grant.Limits
		}
	}

	tracking, err := v.usage.GetOrCreate(ctx, tenantID, moduleKey, usage.CurrentPeriod(), limits)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			verdict := Deny(DenyValidationTimeout, moduleKey, "license validation timed out")
			return v.deny(verdict, audit.EventValidationFailure, tenantID, meta), nil
		}
		v.log(ctx).Error("usage store read failed",
			zap.String("tenant_id", tenantID),
			zap.String("module_key", moduleKey),
			zap.Error(err))
		return Verdict{}, errutil.Internal("failed to read usage tracking", errutil.WithErr(err))
	}

	limit := tracking.Limits.Data().For(limitType)
	if limit == nil {
		decisions.WithLabelValues("allow", "").Inc()
		return Allow(moduleKey, nil), nil
	}

	current := tracking.Current(limitType)
	if current+increment > *limit {
		verdict := Deny(DenyLimitExceeded, moduleKey, fmt.Sprintf("%s limit reached", limitType))
		verdict.LimitType = limitType
		verdict.CurrentUsage = current
		verdict.Limit = *limit
		verdict.UpgradeURL = v.upgradeURL()
		return v.deny(verdict, audit.EventValidationFailure, tenantID, meta), nil
	}

	decisions.WithLabelValues("allow", "").Inc()
	return Allow(moduleKey, nil), nil
}

// CommitUsage records consumption after the guarded operation succeeded.
func (v *Validator) CommitUsage(ctx context.Context, tenantID, moduleKey, limitType string, delta int64) error {
	if moduleKey == v.cfg.CoreModuleKey || delta == 0 {
		return nil
	}
	return v.usage.Increment(ctx, tenantID, moduleKey, usage.CurrentPeriod(), limitType, delta)
}

// RateLimitStats exposes the limiter table for observability endpoints.
func (v *Validator) RateLimitStats() Stats {
	return v.limiter.Stats()
}
