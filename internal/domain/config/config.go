// Package config defines the daemon's own static configuration shape,
// loaded from YAML at startup.
package config

import (
	"errors"
	"fmt"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/service"
)

// Config is the root daemon configuration.
type Config struct {
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
	Services []service.Spec `yaml:"services"`

	// ConfigPath is filled in by the loader after a successful Load; it is
	// not itself part of the YAML document.
	ConfigPath string `yaml:"-"`
}

// Validate checks structural invariants: every service needs a unique
// id, services that declare a port (non-zero) must not share it, and the
// daemon needs somewhere to bind.
//
// Params:
//   - cfg: the configuration to validate.
//
// Returns:
//   - error: nil if cfg is well-formed, a descriptive error otherwise.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil configuration")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", cfg.Port)
	}
	seenID := make(map[string]bool, len(cfg.Services))
	seenPort := make(map[int]bool, len(cfg.Services))
	for _, svc := range cfg.Services {
		if svc.ID == "" {
			return errors.New("config: service id must not be empty")
		}
		if seenID[svc.ID] {
			return fmt.Errorf("config: duplicate service id %q", svc.ID)
		}
		seenID[svc.ID] = true
		if svc.Port != 0 {
			if seenPort[svc.Port] {
				return fmt.Errorf("config: duplicate service port %d", svc.Port)
			}
			seenPort[svc.Port] = true
		}
	}
	return nil
}

// ServiceByID returns the spec for id, or false if unknown.
//
// Params:
//   - id: the service id to look up.
//
// Returns:
//   - service.Spec: the matching spec, or the zero value if not found.
//   - bool: true if id was found.
func (c *Config) ServiceByID(id string) (service.Spec, bool) {
	for _, svc := range c.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return service.Spec{}, false
}
