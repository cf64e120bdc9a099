// Package cli implements the injector command line.
package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/injector/internal/attacher"
	"github.com/coral-mesh/injector/internal/config"
	"github.com/coral-mesh/injector/internal/hotspot"
	"github.com/coral-mesh/injector/internal/logging"
)

// FacilityFactory builds the attach facility for one run.
type FacilityFactory func(logger zerolog.Logger) attacher.Facility

func hotspotFacility(logger zerolog.Logger) attacher.Facility {
	return hotspot.New(logger)
}

// NewRootCmd creates the injector root command over the facility returned by
// newFacility.
func NewRootCmd(newFacility FacilityFactory) *cobra.Command {
	var (
		configPath string
		options    string
		logLevel   string
		pretty     bool
		output     string
	)

	cmd := &cobra.Command{
		Use:   "injector [flags] <target-pid> <module-path>",
		Short: "Load an agent into a running JVM",
		Long: `Attach to a running JVM on this host, ask it to load an agent and detach.

A .jar module is loaded as a Java agent through the instrument library; any
other file is loaded as a native JVMTI agent. Relative module paths are
resolved against the current directory.

The target and module may also come from the config file (--config,
INJECTOR_CONFIG or ~/.injector/config.yaml) or from INJECTOR_TARGET_PID and
INJECTOR_MODULE_PATH.
Positional arguments take precedence.`,
		Example: `  injector 19892 ../AgentDemo1/target/AgentDemo1-1.0-SNAPSHOT.jar
  injector -o verbose=true --output json 19892 /opt/agents/agent.jar`,
		Args:          cobra.RangeArgs(0, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				cfg.Target.PID = args[0]
			}
			if len(args) > 1 {
				cfg.Module.Path = args[1]
			}
			if cmd.Flags().Changed("options") {
				cfg.Module.Options = options
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if cmd.Flags().Changed("pretty") {
				cfg.Logging.Pretty = pretty
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w\n\nUsage: %s", err, cmd.UseLine())
			}

			sessionID := uuid.NewString()
			logCfg := cfg.LoggerConfig()
			logCfg.Output = cmd.ErrOrStderr()
			logger := logging.New(logCfg).With().Str("session_id", sessionID).Logger()

			a := attacher.New(newFacility(logger), logger)
			result, err := a.Run(cmd.Context(), attacher.Request{
				TargetID:   cfg.Target.PID,
				ModulePath: cfg.Module.Path,
				Options:    cfg.Module.Options,
			})
			if err != nil {
				return err
			}

			return writeReport(cmd.OutOrStdout(), format, newReport(sessionID, result))
		},
	}

	cmd.Flags().StringVarP(&options, "options", "o", "", "Options passed to the agent's entry point")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: $INJECTOR_CONFIG or ~/.injector/config.yaml)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Human-readable log output (default: enabled when stderr is a terminal)")
	cmd.Flags().StringVar(&output, "output", string(outputText), "Report format (text, json)")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command against the HotSpot attach facility.
func Execute() error {
	return NewRootCmd(hotspotFacility).Execute()
}
