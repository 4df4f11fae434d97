package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hrplane/pkg/errutil"
	"hrplane/services/license"
)

func enableModule(svc *license.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req license.EnableModuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.ValidationFailed("invalid request body", errutil.WithErr(err)))
			return
		}

		lic, err := svc.EnableModule(c.Request.Context(), c.Param("tenant_id"), req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, lic)
	}
}

func disableModule(svc *license.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		lic, err := svc.DisableModule(c.Request.Context(), c.Param("tenant_id"), c.Param("module_key"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, lic)
	}
}

func updateLimits(svc *license.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var limits license.Limits
		if err := c.ShouldBindJSON(&limits); err != nil {
			c.Error(errutil.ValidationFailed("invalid request body", errutil.WithErr(err)))
			return
		}

		lic, err := svc.UpdateLimits(c.Request.Context(), c.Param("tenant_id"), c.Param("module_key"), limits)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, lic)
	}
}

func renewModule(svc *license.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ExpiresAt string `json:"expires_at"` // RFC3339, empty clears expiry
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.ValidationFailed("invalid request body", errutil.WithErr(err)))
			return
		}

		var until time.Time
		if req.ExpiresAt != "" {
			t, err := time.Parse(time.RFC3339, req.ExpiresAt)
			if err != nil {
				c.Error(errutil.ValidationFailed("invalid expires_at", errutil.WithErr(err)))
				return
			}
			until = t
		}

		lic, err := svc.Renew(c.Request.Context(), c.Param("tenant_id"), c.Param("module_key"), until)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, lic)
	}
}

func changeTier(svc *license.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Tier string `json:"tier" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.ValidationFailed("invalid request body", errutil.WithErr(err)))
			return
		}

		lic, err := svc.ChangeTier(c.Request.Context(), c.Param("tenant_id"), c.Param("module_key"), license.Tier(req.Tier))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, lic)
	}
}
