package metrics

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds OTEL exporter configuration. It is read from the
// environment only: FOCUSLENS_OTEL_ENABLED, FOCUSLENS_OTEL_ENDPOINT and
// FOCUSLENS_OTEL_INSECURE.
type Config struct {
	Endpoint string `envconfig:"ENDPOINT"`
	Enabled  bool   `envconfig:"ENABLED"`
	Insecure bool   `envconfig:"INSECURE"`
}

// LoadConfig loads OTEL configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("focuslens_otel", &cfg); err != nil {
		return Config{}, fmt.Errorf("reading otel environment: %w", err)
	}
	return cfg, nil
}
