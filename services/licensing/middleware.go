package licensing

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hrplane/pkg/errutil"
	"hrplane/pkg/middleware"
	"hrplane/services/license"
)

// ContextGrantKey is where guards store the resolved grant on the gin context.
const ContextGrantKey = "licensing.grant"

type grantKey struct{}

// GrantFrom returns the module grant resolved for this request, if any.
func GrantFrom(ctx context.Context) *license.ModuleGrant {
	grant, _ := ctx.Value(grantKey{}).(*license.ModuleGrant)
	return grant
}

// Guard translates validator verdicts into HTTP responses. It is the only
// piece of the engine that knows about gin.
type Guard struct {
	v *Validator
}

func NewGuard(v *Validator) *Guard {
	return &Guard{v: v}
}

func requestMeta(c *gin.Context) RequestMeta {
	return RequestMeta{
		IP:        c.ClientIP(),
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
		UserAgent: c.Request.UserAgent(),
	}
}

func abortDeny(c *gin.Context, verdict Verdict) {
	if verdict.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.FormatInt(verdict.RetryAfterSeconds, 10))
	}
	c.AbortWithStatusJSON(verdict.Kind.CoreStatus().HTTPStatus(), verdict)
}

// abortInternal surfaces store/infra failure as a 5xx. Masking it as a
// licensing denial would tell the tenant they lack an entitlement they have.
func abortInternal(c *gin.Context, err error) {
	var base errutil.BaseError
	if errors.As(err, &base) {
		c.AbortWithStatusJSON(base.Code.HTTPStatus(), base.JSON())
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":   errutil.StatusInternal,
		"message": "license validation unavailable",
	})
}

func attachGrant(c *gin.Context, grant *license.ModuleGrant) {
	c.Set(ContextGrantKey, grant)
	if grant != nil {
		ctx := context.WithValue(c.Request.Context(), grantKey{}, grant)
		c.Request = c.Request.WithContext(ctx)
	}
}

// RequireModuleLicense denies the request unless the tenant holds an enabled,
// unexpired grant for moduleKey.
func (g *Guard) RequireModuleLicense(moduleKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := middleware.TenantFrom(c.Request.Context())

		verdict, err := g.v.Validate(c.Request.Context(), tenantID, moduleKey, requestMeta(c))
		if err != nil {
			abortInternal(c, err)
			return
		}
		if !verdict.Allowed {
			abortDeny(c, verdict)
			return
		}

		attachGrant(c, verdict.Grant)
		c.Next()
	}
}

// CheckUsageLimit guards quota-consuming operations. The increment is
// committed only after the wrapped handler completed without error, keeping
// "may I" separate from "I did".
func (g *Guard) CheckUsageLimit(moduleKey, limitType string, incrementFn func() int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := middleware.TenantFrom(c.Request.Context())

		increment := int64(1)
		if incrementFn != nil {
			increment = incrementFn()
		}

		verdict, err := g.v.CheckUsageLimit(c.Request.Context(), tenantID, moduleKey, limitType, func() int64 { return increment }, requestMeta(c))
		if err != nil {
			abortInternal(c, err)
			return
		}
		if !verdict.Allowed {
			abortDeny(c, verdict)
			return
		}

		c.Next()

		if c.IsAborted() || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		if err := g.v.CommitUsage(c.Request.Context(), tenantID, moduleKey, limitType, increment); err != nil {
			zap.L().Error("failed to commit usage",
				zap.String("tenant_id", tenantID),
				zap.String("module_key", moduleKey),
				zap.String("limit_type", limitType),
				zap.Error(err))
		}
	}
}

// AttachLicenseInfo annotates the request with the resolved grant without ever
// denying. Informational surfaces only; enforcement goes through
// RequireModuleLicense.
func (g *Guard) AttachLicenseInfo(moduleKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := middleware.TenantFrom(c.Request.Context())
		if tenantID == "" {
			c.Next()
			return
		}

		lic, err := g.v.licenses.Get(c.Request.Context(), tenantID)
		if err == nil && lic != nil {
			if grant := lic.Grant(moduleKey); grant != nil {
				attachGrant(c, grant)
			}
		}

		c.Next()
	}
}
