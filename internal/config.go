package internal

import (
	"fmt"

	"github.com/hbomb79/Marquee/internal/api"
	"github.com/hbomb79/Marquee/internal/database"
	"github.com/hbomb79/Marquee/internal/ingest"
	"github.com/ilyakaznacheev/cleanenv"
)

// MarqueeConfig is the struct used to contain the
// various user config supplied by file, or
// manually inside the code.
type MarqueeConfig struct {
	Services      ServiceConfig           `yaml:"docker_services"`
	Database      database.DatabaseConfig `yaml:"database" env-required:"true"`
	IngestService ingest.Config           `yaml:"ingestion"`
	RestConfig    api.RestConfig          `yaml:"api"`
	Auth          AuthConfig              `yaml:"auth"`
}

// AuthConfig carries the secrets used to sign the auth and refresh JWTs.
// The two secrets must differ and should be >= 256 bits each.
type AuthConfig struct {
	AuthTokenSecret    string `yaml:"auth_token_secret" env:"AUTH_TOKEN_SECRET" env-required:"true"`
	RefreshTokenSecret string `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
}

// ServiceConfig is used to enable/disable the internal initialisation of
// supporting services for Marquee. By default, these will be enabled so that
// Marquee will initialise them automatically.
type ServiceConfig struct {
	EnablePostgres bool `yaml:"enable_postgres" env:"SERVICE_ENABLE_POSTGRES" env-default:"true"`
	EnablePgAdmin  bool `yaml:"enable_pg_admin" env:"SERVICE_ENABLE_PGADMIN" env-default:"true"`
}

// LoadFromFile loads a configuration file formatted in YAML in to a
// MarqueeConfig struct ready to be passed to the service container.
func (config *MarqueeConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if config.Auth.AuthTokenSecret == config.Auth.RefreshTokenSecret {
		return fmt.Errorf("failed to load configuration: auth and refresh token secrets must differ")
	}

	return nil
}
