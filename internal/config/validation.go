package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/coral-mesh/injector/internal/logging"
)

// Validate checks that a configuration is complete enough to run.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Target.PID) == "" {
		problems = append(problems, "target pid is required")
	}
	if strings.TrimSpace(c.Module.Path) == "" {
		problems = append(problems, "module path is required")
	}
	if !slices.Contains(logging.Levels, c.Logging.Level) {
		problems = append(problems, fmt.Sprintf("invalid log level %q (valid: %s)", c.Logging.Level, strings.Join(logging.Levels, ", ")))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
