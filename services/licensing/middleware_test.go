package licensing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"hrplane/internal/config"
	"hrplane/pkg/middleware"
	"hrplane/services/license"
	"hrplane/services/usage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(cfg config.Licensing, src LicenseSource, repo usage.Repository) (*gin.Engine, *Guard) {
	v, _ := newTestValidator(cfg, src, repo)
	guard := NewGuard(v)

	r := gin.New()
	r.Use(middleware.ResolveTenant("example.com"))
	return r, guard
}

func doRequest(r *gin.Engine, method, path, tenantID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if tenantID != "" {
		req.Header.Set(middleware.TenantHeader, tenantID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequireModuleLicenseAllows(t *testing.T) {
	lic := licenseWith(license.ModuleGrant{Key: "payroll", Enabled: true, Tier: license.TierBusiness})
	src := &fakeLicenseSource{getFn: func(context.Context, string) (*license.License, error) {
		return lic, nil
	}}

	r, guard := newTestEngine(testLicensingConfig(), src, &fakeUsageRepo{})
	r.GET("/api/payroll/runs", guard.RequireModuleLicense("payroll"), func(c *gin.Context) {
		grant := GrantFrom(c.Request.Context())
		require.NotNil(t, grant)
		require.Equal(t, license.TierBusiness, grant.Tier)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := doRequest(r, http.MethodGet, "/api/payroll/runs", "tenant-1")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireModuleLicenseDeniesUnlicensed(t *testing.T) {
	src := &fakeLicenseSource{}
	r, guard := newTestEngine(testLicensingConfig(), src, &fakeUsageRepo{})
	r.GET("/api/payroll/runs", guard.RequireModuleLicense("payroll"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := doRequest(r, http.MethodGet, "/api/payroll/runs", "tenant-1")
	require.Equal(t, http.StatusForbidden, w.Code)

	body := decodeBody(t, w)
	require.Equal(t, "MODULE_NOT_LICENSED", body["error"])
	require.Equal(t, "payroll", body["module_key"])
	require.Contains(t, body["upgrade_url"], "/pricing")
	require.Contains(t, body["upgrade_url"], "payroll")
	require.NotContains(t, body, "allowed")
	require.NotContains(t, body, "expires_at")
}

func TestRequireModuleLicenseDeniesMissingTenant(t *testing.T) {
	r, guard := newTestEngine(testLicensingConfig(), &fakeLicenseSource{}, &fakeUsageRepo{})
	r.GET("/api/payroll/runs", guard.RequireModuleLicense("payroll"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := doRequest(r, http.MethodGet, "/api/payroll/runs", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "TENANT_ID_REQUIRED", decodeBody(t, w)["error"])
}

func TestRequireModuleLicenseExpiredBody(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lic := licenseWith(license.ModuleGrant{Key: "payroll", Enabled: true, ExpiresAt: expiry})
	src := &fakeLicenseSource{getFn: func(context.Context, string) (*license.License, error) {
		return lic, nil
	}}

	r, guard := newTestEngine(testLicensingConfig(), src, &fakeUsageRepo{})
	r.GET("/api/payroll/runs", guard.RequireModuleLicense("payroll"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := doRequest(r, http.MethodGet, "/api/payroll/runs", "tenant-1")
	require.Equal(t, http.StatusForbidden, w.Code)

	body := decodeBody(t, w)
	require.Equal(t, "LICENSE_EXPIRED", body["error"])
	require.Equal(t, "/settings/license?action=renew", body["upgrade_url"])
	require.Contains(t, body, "expires_at")
}

func TestRequireModuleLicenseRateLimitHeaders(t *testing.T) {
	lic := licenseWith(license.ModuleGrant{Key: "payroll", Enabled: true})
	src := &fakeLicenseSource{getFn: func(context.Context, string) (*license.License, error) {
		return lic, nil
	}}

	cfg := testLicensingConfig()
	cfg.RateLimitMax = 1
	r, guard := newTestEngine(cfg, src, &fakeUsageRepo{})
	r.GET("/api/payroll/runs", guard.RequireModuleLicense("payroll"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := doRequest(r, http.MethodGet, "/api/payroll/runs", "tenant-1")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/payroll/runs", "tenant-1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))

	body := decodeBody(t, w)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"])
	require.GreaterOrEqual(t, body["retry_after_seconds"].(float64), float64(1))
}

func TestRequireModuleLicenseStoreFailureIs500(t *testing.T) {
	src := &fakeLicenseSource{getFn: func(context.Context, string) (*license.License, error) {
		return nil, errors.New("connection refused")
	}}

	r, guard := newTestEngine(testLicensingConfig(), src, &fakeUsageRepo{})
	r.GET("/api/payroll/runs", guard.RequireModuleLicense("payroll"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := doRequest(r, http.MethodGet, "/api/payroll/runs", "tenant-1")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	// never disguised as a licensing denial
	body := decodeBody(t, w)
	require.NotEqual(t, "MODULE_NOT_LICENSED", body["error"])
}

func TestCheckUsageLimitCommitsAfterSuccess(t *testing.T) {
	limit := int64(10)
	repo := &fakeUsageRepo{getOrCreateFn: func(_ context.Context, _, _, _ string, _ license.Limits) (*usage.Tracking, error) {
		return trackingWith(usage.Counters{license.LimitAPICalls: 0}, license.Limits{APICalls: &limit}), nil
	}}

	r, guard := newTestEngine(testLicensingConfig(), &fakeLicenseSource{}, repo)
	r.POST("/api/payroll/runs", guard.CheckUsageLimit("payroll", license.LimitAPICalls, nil), func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	})

	w := doRequest(r, http.MethodPost, "/api/payroll/runs", "tenant-1")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, 1, repo.incrementCalls)
	require.Equal(t, int64(1), repo.lastDelta)
}

func TestCheckUsageLimitDoesNotCommitOnHandlerFailure(t *testing.T) {
	limit := int64(10)
	repo := &fakeUsageRepo{getOrCreateFn: func(_ context.Context, _, _, _ string, _ license.Limits) (*usage.Tracking, error) {
		return trackingWith(usage.Counters{}, license.Limits{APICalls: &limit}), nil
	}}

	r, guard := newTestEngine(testLicensingConfig(), &fakeLicenseSource{}, repo)
	r.POST("/api/payroll/runs", guard.CheckUsageLimit("payroll", license.LimitAPICalls, nil), func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bad payload"})
	})

	w := doRequest(r, http.MethodPost, "/api/payroll/runs", "tenant-1")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Zero(t, repo.incrementCalls)
}

func TestCheckUsageLimitDeniesOverLimit(t *testing.T) {
	limit := int64(3)
	repo := &fakeUsageRepo{getOrCreateFn: func(_ context.Context, _, _, _ string, _ license.Limits) (*usage.Tracking, error) {
		return trackingWith(usage.Counters{license.LimitEmployees: 3}, license.Limits{Employees: &limit}), nil
	}}

	r, guard := newTestEngine(testLicensingConfig(), &fakeLicenseSource{}, repo)
	r.POST("/api/people/employees", guard.CheckUsageLimit("people", license.LimitEmployees, nil), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "created"})
	})

	w := doRequest(r, http.MethodPost, "/api/people/employees", "tenant-1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Zero(t, repo.incrementCalls)

	body := decodeBody(t, w)
	require.Equal(t, "LIMIT_EXCEEDED", body["error"])
	require.Equal(t, "employees", body["limit_type"])
	require.Equal(t, float64(3), body["current_usage"])
	require.Equal(t, float64(3), body["limit"])
	require.Equal(t, "/settings/license?action=upgrade", body["upgrade_url"])
}

func TestAttachLicenseInfoNeverDenies(t *testing.T) {
	src := &fakeLicenseSource{getFn: func(context.Context, string) (*license.License, error) {
		return nil, errors.New("store down")
	}}

	r, guard := newTestEngine(testLicensingConfig(), src, &fakeUsageRepo{})
	r.GET("/api/dashboard", guard.AttachLicenseInfo("payroll"), func(c *gin.Context) {
		require.Nil(t, GrantFrom(c.Request.Context()))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := doRequest(r, http.MethodGet, "/api/dashboard", "tenant-1")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAttachLicenseInfoAttachesGrant(t *testing.T) {
	lic := licenseWith(license.ModuleGrant{Key: "payroll", Enabled: true, Tier: license.TierEnterprise})
	src := &fakeLicenseSource{getFn: func(context.Context, string) (*license.License, error) {
		return lic, nil
	}}
	r, guard := newTestEngine(testLicensingConfig(), src, &fakeUsageRepo{})
	r.GET("/api/dashboard", guard.AttachLicenseInfo("payroll"), func(c *gin.Context) {
		grant := GrantFrom(c.Request.Context())
		require.NotNil(t, grant)
		require.Equal(t, license.TierEnterprise, grant.Tier)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := doRequest(r, http.MethodGet, "/api/dashboard", "tenant-1")
	require.Equal(t, http.StatusOK, w.Code)
}
