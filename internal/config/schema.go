package config

import (
	"github.com/coral-mesh/injector/internal/logging"
)

// Config is the injector configuration.
type Config struct {
	Target  TargetConfig  `yaml:"target"`
	Module  ModuleConfig  `yaml:"module"`
	Logging LoggingConfig `yaml:"logging"`
}

// TargetConfig names the process to attach to.
type TargetConfig struct {
	// PID is the target identifier; the HotSpot facility expects a process id.
	PID string `yaml:"pid,omitempty" env:"INJECTOR_TARGET_PID"`
}

// ModuleConfig names the agent to load.
type ModuleConfig struct {
	Path    string `yaml:"path,omitempty" env:"INJECTOR_MODULE_PATH"`
	Options string `yaml:"options,omitempty" env:"INJECTOR_AGENT_OPTIONS"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"INJECTOR_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"INJECTOR_LOG_PRETTY"`
}

// Default returns the default configuration.
func Default() *Config {
	logCfg := logging.DefaultConfig()
	return &Config{
		Logging: LoggingConfig{
			Level:  logCfg.Level,
			Pretty: logCfg.Pretty,
		},
	}
}

// LoggerConfig converts the logging section for the logging package.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Pretty = c.Logging.Pretty
	return cfg
}
