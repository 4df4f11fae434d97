package licensing

import (
	"context"

	"go.uber.org/fx"

	"hrplane/internal/config"
	"hrplane/services/audit"
	"hrplane/services/license"
	"hrplane/services/usage"
)

var Module = fx.Module("licensing.module",
	fx.Provide(
		provideRateLimiter,
		provideLicenseCache,
		provideLicenseSource,
		provideCacheInvalidator,
		provideRecorder,
		provideValidator,
		NewGuard,
	),
)

func provideRateLimiter(lc fx.Lifecycle, cfg *config.Config) *RateLimiter {
	rl := NewRateLimiter(cfg.Licensing.RateLimitWindow, cfg.Licensing.RateLimitMax, cfg.Licensing.SweepInterval)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			rl.StartSweep()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			rl.StopSweep()
			return nil
		},
	})
	return rl
}

func provideLicenseCache(repo license.Repository, cfg *config.Config) *LicenseCache {
	return NewLicenseCache(repo, cfg.Licensing.CacheTTL)
}

func provideLicenseSource(c *LicenseCache) LicenseSource {
	return c
}

func provideCacheInvalidator(c *LicenseCache) license.CacheInvalidator {
	return c
}

func provideRecorder(e *audit.Emitter) Recorder {
	return e
}

func provideValidator(cfg *config.Config, licenses LicenseSource, usageRepo usage.Repository, limiter *RateLimiter, recorder Recorder) *Validator {
	return NewValidator(cfg.Licensing, licenses, usageRepo, limiter, recorder)
}
