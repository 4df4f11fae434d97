package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// Key type biar aman di context (tidak bentrok)
type tenantKey struct{}

var TenantContextKey = tenantKey{}

const TenantHeader = "X-Tenant-ID"

// deriveTenantFromHost extracts the tenant slug from a subdomain of the
// platform root domain, e.g. acme.hrplane.app -> acme.
func deriveTenantFromHost(host, rootDomain string) string {
	if rootDomain == "" {
		return ""
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	suffix := "." + rootDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}

// ResolveTenant attaches the caller's tenant identity to the request context.
// The header wins over the subdomain; resolution order is the platform's call,
// the licensing engine only consumes the result.
func ResolveTenant(rootDomain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(TenantHeader)
		if tenantID == "" {
			tenantID = deriveTenantFromHost(c.Request.Host, rootDomain)
		}

		if tenantID != "" {
			ctx := context.WithValue(c.Request.Context(), TenantContextKey, tenantID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

// TenantFrom returns the tenant id attached to the context, if any.
func TenantFrom(ctx context.Context) string {
	tenantID, _ := ctx.Value(TenantContextKey).(string)
	return tenantID
}
