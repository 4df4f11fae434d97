package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"hrplane/internal/config"
	"hrplane/pkg/health"
	"hrplane/pkg/middleware"
	"hrplane/services/audit"
	"hrplane/services/license"
	"hrplane/services/licensing"
	"hrplane/services/tenant"
)

var Module = fx.Module("httpapi",
	fx.Provide(ProvideRouter),
)

type RouterParams struct {
	fx.In
	Config    *config.Config
	Health    health.HealthService
	Tenants   *tenant.Service
	Licenses  *license.Service
	Guard     *licensing.Guard
	Validator *licensing.Validator
	Audit     *audit.Emitter
}

// ProvideRouter builds the gin engine with every public and internal route.
func ProvideRouter(p RouterParams) http.Handler {
	if p.Config.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Error())

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerAdminRoutes(r, p)
	registerModuleRoutes(r, p)
	registerOpsRoutes(r, p)

	return r
}
