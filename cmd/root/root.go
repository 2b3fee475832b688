// Package root implements the command line interface for pxedeck.
package root

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/cmd/deployment"
	"github.com/pxedeck/pxedeck/cmd/device"
	"github.com/pxedeck/pxedeck/cmd/observe"
	"github.com/pxedeck/pxedeck/cmd/output"
	"github.com/pxedeck/pxedeck/cmd/server"
	"github.com/pxedeck/pxedeck/cmd/version"
	"github.com/pxedeck/pxedeck/config"
	"github.com/pxedeck/pxedeck/logging"
)

func Execute() {
	if err := NewCmdRoot(config.GetDefaultDataDir()).Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCmdRoot(defaultDataDir string) *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "pxedeck",
		Short: "Fleet imaging operations dashboard",
		Long: `pxedeck schedules and tracks PXE imaging deployments across a device fleet.
It manages one-shot and recurring deployment schedules, post-deployment
tasks and a live event feed for dashboard observers.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize configuration for CLI with data directory override
			cfg, err := config.NewConfigForCLI(dataDir)
			if err != nil {
				log.Fatalf("Failed to initialize configuration: %s", err)
			}

			// Initialize colors (CLI flag overrides config)
			colorDisabled := !cfg.ColorEnabled
			if output.NoColor.IsSet() {
				colorDisabled = true // --no-color flag overrides config
			}
			output.InitColors(colorDisabled)

			// Initialize logging (CLI flag overrides config)
			logLevel := cfg.LogLevel
			if logging.LogLevel.IsSet() {
				logLevel = logging.LogLevel.String()
			}
			logging.InitLogging(logLevel)

			// Initialize application with config
			if err := app.InitializeWithConfig(cfg); err != nil {
				log.Fatalf("Failed to initialize application: %s", err)
			}
		},
	}

	cmd.PersistentFlags().
		StringVarP(&dataDir, "data-dir", "d", defaultDataDir, "Data directory for pxedeck state")
	cmd.PersistentFlags().VarP(logging.LogLevel, "log-level", "l", "Set log verbosity level")
	cmd.PersistentFlags().VarP(output.NoColor, "no-color", "n", "Disable colored terminal output")

	cmd.AddCommand(deployment.NewCmdDeployment())
	cmd.AddCommand(device.NewCmdDevice())
	cmd.AddCommand(observe.NewCmdObserve())
	cmd.AddCommand(server.NewCmdServer())
	cmd.AddCommand(version.NewCmdVersion())
	return cmd
}
