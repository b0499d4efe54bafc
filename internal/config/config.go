package config

import (
	"errors"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Env string `yaml:"env" env:"APP_ENV" env-default:"development"`

	HTTP struct {
		Port            int           `yaml:"port" env:"PORT" env-default:"3001"`
		AllowedOrigins  []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
	} `yaml:"http"`

	Database struct {
		Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"` // sqlite or pgx
		URL    string `yaml:"url" env:"DATABASE_URL" env-default:"tasks.db"`
	} `yaml:"database"`

	JWT struct {
		Secret    string        `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
		ExpiresIn time.Duration `yaml:"expires_in" env:"JWT_EXPIRES_IN" env-default:"24h"`
		Issuer    string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"tasktracker"`
	} `yaml:"jwt"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY" env-default:"true"`
	} `yaml:"log"`

	BcryptCost int `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from an optional YAML file, then the environment.
// A .env file in the working directory is loaded first if present; variables
// already set in the process environment win over it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return nil, err
		}
		// No config file: fall back to env only.
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
