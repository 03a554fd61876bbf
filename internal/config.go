package internal

import (
	"fmt"

	"github.com/davguerra/filmoteca/internal/api"
	"github.com/davguerra/filmoteca/internal/blob"
	"github.com/davguerra/filmoteca/internal/database"
	"github.com/ilyakaznacheev/cleanenv"
)

// FilmotecaConfig is the struct used to contain the various user config
// supplied by file, or manually inside the code.
type FilmotecaConfig struct {
	Rest     api.RestConfig          `yaml:"api"`
	Database database.DatabaseConfig `yaml:"database" env-required:"true"`
	Blob     blob.Config             `yaml:"blob_storage" env-required:"true"`
	Services ServiceConfig           `yaml:"docker_services"`
}

// ServiceConfig is used to enable/disable the internal initialisation of
// supporting services. With the embedded postgres enabled the server spawns
// its own database container on startup; disable it to point at an
// externally managed database instead.
type ServiceConfig struct {
	EnablePostgres bool `yaml:"enable_postgres" env:"SERVICE_ENABLE_POSTGRES" env-default:"true"`
}

// LoadFromFile reads a YAML configuration file in to a FilmotecaConfig,
// applying environment variable overrides and defaults.
func (config *FilmotecaConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration - %v", err.Error())
	}

	return nil
}
