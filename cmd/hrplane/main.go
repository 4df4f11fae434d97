package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"hrplane/internal/config"
	"hrplane/internal/httpapi"
	"hrplane/internal/logger"
	"hrplane/internal/server"
	"hrplane/pkg/db"
	"hrplane/pkg/gen"
	"hrplane/pkg/health"
	"hrplane/pkg/otelcol"
	"hrplane/pkg/otelcol/exporters"
	"hrplane/pkg/profiling"
	"hrplane/pkg/redis"
	"hrplane/pkg/task"
	"hrplane/services/audit"
	"hrplane/services/license"
	"hrplane/services/licensing"
	"hrplane/services/tenant"
	"hrplane/services/usage"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		exporters.GrpcModule,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		task.Client,
		health.Module,
		audit.Module,
		license.Module,
		usage.Module,
		licensing.Module,
		tenant.Module,
		httpapi.Module,
		server.HTTPModule,
		server.GRPCModule,
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
