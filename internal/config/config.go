package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// Empty host switches the service into local-only degraded mode:
	// no cross-process relay, no distributed identity bindings.
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379" validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"pairdraw_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"pairdraw_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"pairdraw_db"`

	AuthSecret string `env:"AUTH_SECRET" envDefault:"dev-secret" validate:"min=4"`

	StrokeRateLimit int `env:"STROKE_RATE_LIMIT" envDefault:"60" validate:"min=1"`
	ClearRateLimit  int `env:"CLEAR_RATE_LIMIT"  envDefault:"5"  validate:"min=1"`

	PresenceTTLSeconds int `env:"PRESENCE_TTL_SECONDS" envDefault:"90" validate:"min=10"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8086" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
