package main

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"hrplane/internal/config"
	"hrplane/internal/logger"
	"hrplane/pkg/db"
	"hrplane/pkg/gen"
	"hrplane/pkg/task"
	"hrplane/services/license"
	"hrplane/services/tenant"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		gen.Module,
		task.Client,
		task.Server,
		license.Module,
		tenant.Module,
		fx.Provide(license.NewScheduler),
		fx.Invoke(
			registerHandlers,
			license.StartScheduler,
		),
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "development" {
		return &fxevent.ZapLogger{Logger: logger}
	}
	return fxevent.NopLogger
})

func registerHandlers(mux *asynq.ServeMux, licenses *license.Service, tenants *tenant.Service) {
	mux.HandleFunc(license.TaskLicenseExpiryScan, licenses.HandleExpiryScan)
	mux.HandleFunc(license.TaskLicenseRenewalNotice, licenses.HandleRenewalNotice)
	mux.HandleFunc(tenant.TaskTenantProvisionWorkspace, tenants.HandleProvisionWorkspace)
	mux.HandleFunc(tenant.TaskTenantProvisionDirectory, tenants.HandleProvisionDirectory)
	mux.HandleFunc(tenant.TaskTenantPostSetup, tenants.HandlePostSetup)
}
