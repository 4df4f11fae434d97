package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"hrplane/internal/config"
)

var Module = fx.Module("logger",
	fx.Provide(Provide),
	fx.Invoke(ReplaceGlobals),
)

// Provide returns a zap logger appropriate for the current environment.
func Provide(cfg *config.Config) (*zap.Logger, error) {
	if cfg.AppEnv == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func ReplaceGlobals(logger *zap.Logger) {
	zap.ReplaceGlobals(logger)
}
