// Package yaml loads the daemon's configuration from a YAML file:
// defaults applied first, environment overrides layered last, and a
// Reload that remembers the last-loaded path.
package yaml

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/config"
)

// Defaults applied before environment overrides.
const (
	defaultHost    = "0.0.0.0"
	defaultPort    = 8766
	defaultDataDir = "./data"
)

// Environment variables that override the file's host/port.
const (
	envHost = "VOICELEARN_MGMT_HOST"
	envPort = "VOICELEARN_MGMT_PORT"
)

// ErrNoConfigurationLoaded is returned by Reload before any Load.
var ErrNoConfigurationLoaded = errors.New("yaml: no configuration loaded yet")

// Loader loads and reloads DaemonConfig from a YAML file on disk.
type Loader struct {
	lastPath string
}

// New constructs a Loader.
//
// Returns:
//   - *Loader: the constructed, not-yet-loaded loader.
func New() *Loader { return &Loader{} }

// Load reads path, applies defaults and environment overrides, validates,
// and remembers path for a subsequent Reload.
//
// Params:
//   - path: the YAML config file path.
//
// Returns:
//   - *config.Config: the parsed, validated configuration.
//   - error: nil on success, a read/parse/validation error otherwise.
func (l *Loader) Load(path string) (*config.Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config path is operator-supplied, not request input
	if err != nil {
		return nil, fmt.Errorf("yaml: reading config file: %w", err)
	}
	cfg, err := l.Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = path
	l.lastPath = path
	return cfg, nil
}

// Parse parses data into a validated DaemonConfig without touching disk,
// used directly by tests and indirectly by Load.
//
// Params:
//   - data: the raw YAML document to parse.
//
// Returns:
//   - *config.Config: the parsed, validated configuration.
//   - error: nil on success, a parse/validation error otherwise.
func (l *Loader) Parse(data []byte) (*config.Config, error) {
	cfg := &config.Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("yaml: parsing config: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("yaml: validating config: %w", err)
	}
	return cfg, nil
}

// Reload re-reads the last-loaded path. A caller that gets an error
// here should keep using its previous config rather than crash; Reload
// itself carries no such fallback state since that decision belongs to
// the watcher driving it.
//
// Returns:
//   - *config.Config: the freshly reloaded configuration.
//   - error: nil on success, ErrNoConfigurationLoaded or a load error otherwise.
func (l *Loader) Reload() (*config.Config, error) {
	if l.lastPath == "" {
		return nil, ErrNoConfigurationLoaded
	}
	return l.Load(l.lastPath)
}

// applyDefaults fills in the three ambient defaults host/port/data_dir
// before validation, so a minimal config file needs only its services.
//
// Params:
//   - cfg: the config mutated in place.
func applyDefaults(cfg *config.Config) {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
}

// applyEnvOverrides layers VOICELEARN_MGMT_HOST/PORT on top of the
// file's (possibly defaulted) values.
//
// Params:
//   - cfg: the config mutated in place.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv(envHost); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(envPort); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			cfg.Port = port
		}
	}
}
