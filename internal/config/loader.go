// Package config provides configuration loading and management.
//
// Values are layered: defaults, then an optional YAML file, then INJECTOR_*
// environment variables. Command-line arguments are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/injector/internal/constants"
)

// DefaultPath returns the per-user config file, ~/.injector/config.yaml, or ""
// when there is no home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, constants.DefaultDir, constants.ConfigFile)
}

// Load builds the configuration from defaults, a YAML file and the
// environment. The file is path, else INJECTOR_CONFIG, else DefaultPath. A
// named file that does not exist is an error; a missing default file is not.
func Load(path string) (*Config, error) {
	optional := false
	if path == "" {
		path = os.Getenv(constants.ConfigEnvVar)
	}
	if path == "" {
		path = DefaultPath()
		optional = true
	}

	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			if !optional || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := MergeFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	//nolint:gosec // G304: Path is supplied by the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}
