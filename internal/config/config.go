package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

// Config represents application configuration. Values come from an optional
// config.yaml plus environment variables (dots replaced by underscores).
type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	RootDomain string `mapstructure:"ROOT_DOMAIN"`
	Server     struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Grpc struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"GRPC_SERVER"`
	TLS struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBName         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConn     int           `mapstructure:"MAX_OPEN_CONN"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Otel struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Licensing Licensing `mapstructure:"LICENSING"`
}

// Licensing holds the knobs of the license validation engine.
type Licensing struct {
	CoreModuleKey   string        `mapstructure:"CORE_MODULE_KEY"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitMax    int           `mapstructure:"RATE_LIMIT_MAX"`
	SweepInterval   time.Duration `mapstructure:"SWEEP_INTERVAL"`
	CacheTTL        time.Duration `mapstructure:"CACHE_TTL"`
	AuditSuccess    bool          `mapstructure:"AUDIT_SUCCESS"`
	AuditBuffer     int           `mapstructure:"AUDIT_BUFFER"`
	PricingPath     string        `mapstructure:"PRICING_PATH"`
	LicensePath     string        `mapstructure:"LICENSE_PATH"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func setDefaults() {
	config.SetDefault("APP_ENV", "development")
	config.SetDefault("APP_NAME", "hrplane")
	config.SetDefault("HTTP_SERVER.ADDR", ":8080")
	config.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	config.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	config.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	config.SetDefault("GRPC_SERVER.ADDR", ":9090")
	config.SetDefault("DATABASE.TYPE", "postgres")
	config.SetDefault("DATABASE.SSLMODE", "disable")
	config.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 5)
	config.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONN", 25)
	config.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)
	config.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME", 10*time.Minute)
	config.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	config.SetDefault("REDIS.POOL_SIZE", 10)
	config.SetDefault("REDIS.POOL_TIMEOUT", 30*time.Second)
	config.SetDefault("LICENSING.CORE_MODULE_KEY", "core-hr")
	config.SetDefault("LICENSING.RATE_LIMIT_WINDOW", time.Minute)
	config.SetDefault("LICENSING.RATE_LIMIT_MAX", 100)
	config.SetDefault("LICENSING.SWEEP_INTERVAL", 5*time.Minute)
	config.SetDefault("LICENSING.CACHE_TTL", 5*time.Minute)
	config.SetDefault("LICENSING.AUDIT_SUCCESS", false)
	config.SetDefault("LICENSING.AUDIT_BUFFER", 1024)
	config.SetDefault("LICENSING.PRICING_PATH", "/pricing")
	config.SetDefault("LICENSING.LICENSE_PATH", "/settings/license")
}

// LoadConfig reads configuration with sensible defaults. A missing config file
// is not an error; the environment alone is enough to run.
func LoadConfig() (*Config, error) {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()
	setDefaults()

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		zap.L().Info("no config file found, using environment and defaults")
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
