package config

import (
	"fmt"

	"github.com/yndnr/picoretain/internal/infra/confloader"
)

// Load reads the configuration file at path (optional) and the
// PICORETAIN_ environment over the defaults, then verifies the result.
func Load(path string) (*AgentConfig, error) {
	cfg := Default()
	l := confloader.NewLoader(confloader.WithConfigFile(path))
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
