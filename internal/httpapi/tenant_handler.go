package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hrplane/pkg/db/pagination"
	"hrplane/pkg/errutil"
	"hrplane/services/license"
	"hrplane/services/tenant"
)

// registerAdminRoutes exposes the provisioning and license administration
// surface. These routes are for the platform operator, not tenant end users,
// so they sit outside the module guards.
func registerAdminRoutes(r *gin.Engine, p RouterParams) {
	v1 := r.Group("/v1")

	v1.POST("/tenants", createTenant(p.Tenants))
	v1.GET("/tenants", listTenants(p.Tenants))
	v1.GET("/tenants/:tenant_id", getTenant(p.Tenants))
	v1.PATCH("/tenants/:tenant_id/status", setTenantStatus(p.Tenants))

	v1.GET("/tenants/:tenant_id/license", getLicense(p.Licenses))
	v1.POST("/tenants/:tenant_id/license/modules", enableModule(p.Licenses))
	v1.DELETE("/tenants/:tenant_id/license/modules/:module_key", disableModule(p.Licenses))
	v1.PUT("/tenants/:tenant_id/license/modules/:module_key/limits", updateLimits(p.Licenses))
	v1.POST("/tenants/:tenant_id/license/modules/:module_key/renew", renewModule(p.Licenses))
	v1.POST("/tenants/:tenant_id/license/modules/:module_key/tier", changeTier(p.Licenses))
}

func createTenant(svc *tenant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tenant.CreateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.ValidationFailed("invalid request body", errutil.WithErr(err)))
			return
		}

		created, err := svc.CreateTenant(c.Request.Context(), req)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, created)
	}
}

func listTenants(svc *tenant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p pagination.Pagination
		if err := c.ShouldBindQuery(&p); err != nil {
			c.Error(errutil.ValidationFailed("invalid pagination", errutil.WithErr(err)))
			return
		}
		if p.Limit <= 0 {
			p.Limit = 10
		}

		resp, err := svc.ListTenants(c.Request.Context(), p)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func getTenant(svc *tenant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := svc.GetTenant(c.Request.Context(), c.Param("tenant_id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func setTenantStatus(svc *tenant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.ValidationFailed("invalid request body", errutil.WithErr(err)))
			return
		}

		t, err := svc.SetStatus(c.Request.Context(), c.Param("tenant_id"), tenant.TenantStatus(req.Status))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func getLicense(svc *license.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		lic, err := svc.GetLicense(c.Request.Context(), c.Param("tenant_id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, lic)
	}
}
