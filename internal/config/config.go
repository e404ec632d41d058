package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/platform/logger"
)

const (
	StorageDriverMongo  = "mongo"
	StorageDriverMemory = "memory"

	MediaDriverS3    = "s3"
	MediaDriverLocal = "local"

	insecureDefaultSecret = "change-me-listing-service-secret"
)

// Config holds all configuration for the service.
type Config struct {
	ServiceName           string `mapstructure:"SERVICE_NAME"`
	HTTPPort              string `mapstructure:"HTTP_PORT"`
	GRPCPort              string `mapstructure:"GRPC_PORT"`
	PrometheusMetricsPort string `mapstructure:"PROMETHEUS_METRICS_PORT"`

	StorageDriver       string        `mapstructure:"STORAGE_DRIVER"`
	MongoURI            string        `mapstructure:"MONGO_URI"`
	MongoDatabase       string        `mapstructure:"MONGO_DATABASE"`
	MongoConnectTimeout time.Duration `mapstructure:"MONGO_CONNECT_TIMEOUT"`

	// RedisAddress left empty disables the read cache.
	RedisAddress  string        `mapstructure:"REDIS_ADDRESS"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	// NATSURL left empty disables event publishing.
	NATSURL string `mapstructure:"NATS_URL"`

	MediaDriver    string `mapstructure:"MEDIA_DRIVER"`
	MediaLocalDir  string `mapstructure:"MEDIA_LOCAL_DIR"`
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AuthCookieName string `mapstructure:"AUTH_COOKIE_NAME"`

	ListingMaxAge time.Duration `mapstructure:"LISTING_MAX_AGE"`
	SweepSchedule string        `mapstructure:"SWEEP_SCHEDULE"`
	SweepTimeout  time.Duration `mapstructure:"SWEEP_TIMEOUT"`
	SweepOnStart  bool          `mapstructure:"SWEEP_ON_START"`

	MaxUploadSizeMB   int64  `mapstructure:"MAX_UPLOAD_SIZE_MB"`
	CORSAllowedOrigin string `mapstructure:"CORS_ALLOWED_ORIGIN"`

	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelStdout   bool   `mapstructure:"OTEL_STDOUT"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	LogFormat    string `mapstructure:"LOG_FORMAT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "listing-service")
	v.SetDefault("HTTP_PORT", "4000")
	v.SetDefault("GRPC_PORT", "50052")
	v.SetDefault("PROMETHEUS_METRICS_PORT", "9092")

	v.SetDefault("STORAGE_DRIVER", StorageDriverMongo)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "urbanestate")
	v.SetDefault("MONGO_CONNECT_TIMEOUT", "10s")

	v.SetDefault("REDIS_ADDRESS", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("NATS_URL", "")

	v.SetDefault("MEDIA_DRIVER", MediaDriverLocal)
	v.SetDefault("MEDIA_LOCAL_DIR", "uploads")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "listing-media")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("JWT_SECRET", insecureDefaultSecret)
	v.SetDefault("AUTH_COOKIE_NAME", "token")

	v.SetDefault("LISTING_MAX_AGE", "720h")
	v.SetDefault("SWEEP_SCHEDULE", "0 * * * *")
	v.SetDefault("SWEEP_TIMEOUT", "2m")
	v.SetDefault("SWEEP_ON_START", false)

	v.SetDefault("MAX_UPLOAD_SIZE_MB", 32)
	v.SetDefault("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_STDOUT", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// LoadConfig reads configuration from environment variables. A .env file, if
// any, is loaded into the environment by main before this is called.
func LoadConfig(appLogger *logger.Logger) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == insecureDefaultSecret {
		appLogger.Warn("JWT_SECRET is set to its insecure default. Set a strong secret in the environment.")
	}

	appLogger.Debug("configuration loaded",
		zap.String("service_name", cfg.ServiceName),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCPort),
		zap.String("storage_driver", cfg.StorageDriver),
		zap.String("mongo_database", cfg.MongoDatabase),
		zap.Bool("cache_enabled", cfg.RedisAddress != ""),
		zap.Bool("events_enabled", cfg.NATSURL != ""),
		zap.String("media_driver", cfg.MediaDriver),
		zap.Duration("listing_max_age", cfg.ListingMaxAge),
		zap.String("sweep_schedule", cfg.SweepSchedule),
		zap.String("prometheus_port", cfg.PrometheusMetricsPort),
		zap.String("otel_endpoint", cfg.OTelEndpoint),
	)
	return &cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo storage driver"))
		}
		if c.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGO_DATABASE is required for the mongo storage driver"))
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	switch c.MediaDriver {
	case MediaDriverS3:
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for the s3 media driver"))
		}
	case MediaDriverLocal:
		if c.MediaLocalDir == "" {
			errs = append(errs, errors.New("MEDIA_LOCAL_DIR is required for the local media driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MEDIA_DRIVER %q", c.MediaDriver))
	}

	if c.HTTPPort == "" {
		errs = append(errs, errors.New("HTTP_PORT is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.ListingMaxAge <= 0 {
		errs = append(errs, errors.New("LISTING_MAX_AGE must be positive"))
	}
	if c.SweepSchedule == "" {
		errs = append(errs, errors.New("SWEEP_SCHEDULE is required"))
	}
	if c.SweepTimeout <= 0 {
		errs = append(errs, errors.New("SWEEP_TIMEOUT must be positive"))
	}
	if c.MaxUploadSizeMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_SIZE_MB must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// MaxUploadBytes is MaxUploadSizeMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSizeMB << 20
}
