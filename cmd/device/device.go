// Package device provides commands for inspecting device state in pxedeck.
package device

import (
	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/cmd/output"
	"github.com/pxedeck/pxedeck/cmd/utils"
)

func NewCmdDevice() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Inspect managed devices",
	}

	cmd.AddCommand(NewCmdDeviceStatus())
	return cmd
}

func NewCmdDeviceStatus() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the latest deployment state per device",
		Long:  "Display each device with the status and progress of its most recent deployment.",
		Run: func(cmd *cobra.Command, args []string) {
			statuses, err := app.GetSchedulerService().DeviceStatuses()
			if err != nil {
				utils.HandleCommandError("listing device statuses", err)
				return
			}

			out, err := output.PrintDeviceStatusList(statuses)
			if err != nil {
				utils.HandleCommandError("printing device status table", err)
				return
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				utils.HandleCommandError("printing device status output", err)
			}
		},
	}
}
