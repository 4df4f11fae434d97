package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hrplane/pkg/middleware"
	"hrplane/services/license"
	"hrplane/services/licensing"
)

// Module keys of the product surfaces guarded by the licensing engine. The
// core HR module is configured, not hardcoded, because the engine bypasses it.
const (
	ModulePayroll   = "payroll"
	ModuleLeave     = "leave"
	ModuleDocuments = "documents"
	ModulePeople    = "people"
)

// registerModuleRoutes wires the tenant-facing API groups behind the license
// guards. Each group resolves the tenant first, then enforces the module
// entitlement, and quota-consuming operations add a usage check on top.
func registerModuleRoutes(r *gin.Engine, p RouterParams) {
	api := r.Group("/api", middleware.ResolveTenant(p.Config.RootDomain))

	payroll := api.Group("/payroll", p.Guard.RequireModuleLicense(ModulePayroll))
	payroll.GET("/runs", listPayrollRuns())
	payroll.POST("/runs",
		p.Guard.CheckUsageLimit(ModulePayroll, license.LimitAPICalls, nil),
		createPayrollRun())

	leave := api.Group("/leave", p.Guard.RequireModuleLicense(ModuleLeave))
	leave.GET("/requests", listLeaveRequests())
	leave.POST("/requests", createLeaveRequest())

	documents := api.Group("/documents", p.Guard.RequireModuleLicense(ModuleDocuments))
	documents.GET("", listDocuments())
	documents.POST("",
		p.Guard.CheckUsageLimit(ModuleDocuments, license.LimitStorage, nil),
		uploadDocument())

	people := api.Group("/people", p.Guard.RequireModuleLicense(ModulePeople))
	people.GET("/employees", listEmployees())
	people.POST("/employees",
		p.Guard.CheckUsageLimit(ModulePeople, license.LimitEmployees, nil),
		createEmployee())

	// Read-only surface that annotates instead of enforcing. The frontend
	// uses the attached grant to grey out features it should not offer.
	api.GET("/modules/:module_key/entitlement", attachEntitlement(p.Guard), moduleEntitlement())
}

func attachEntitlement(g *licensing.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		g.AttachLicenseInfo(c.Param("module_key"))(c)
	}
}

func moduleEntitlement() gin.HandlerFunc {
	return func(c *gin.Context) {
		grant := licensing.GrantFrom(c.Request.Context())
		if grant == nil {
			c.JSON(http.StatusOK, gin.H{
				"module_key": c.Param("module_key"),
				"licensed":   false,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"module_key": grant.Key,
			"licensed":   grant.Enabled,
			"tier":       grant.Tier,
			"limits":     grant.Limits,
			"expires_at": grant.ExpiresAt,
		})
	}
}

// The handlers below stand in for the real product services. The engine does
// not care what runs behind a guard, only that the guard ran first.

func listPayrollRuns() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"runs": []gin.H{}})
	}
}

func createPayrollRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	}
}

func listLeaveRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"requests": []gin.H{}})
	}
}

func createLeaveRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "pending_approval"})
	}
}

func listDocuments() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"documents": []gin.H{}})
	}
}

func uploadDocument() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "stored"})
	}
}

func listEmployees() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"employees": []gin.H{}})
	}
}

func createEmployee() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "created"})
	}
}
