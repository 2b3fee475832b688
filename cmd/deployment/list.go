package deployment

import (
	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/cmd/output"
	"github.com/pxedeck/pxedeck/cmd/utils"
)

func NewCmdDeploymentList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all imaging deployments",
		Long: `Display all imaging deployments in a table format including:
- Target device and image
- Current status and progress (with color coding)
- Schedule type and next fire time`,
		Run: func(cmd *cobra.Command, args []string) {
			deployments, err := app.GetSchedulerService().List()
			if err != nil {
				utils.HandleCommandError("listing deployments", err)
				return
			}

			out, err := output.PrintDeploymentList(deployments)
			if err != nil {
				utils.HandleCommandError("printing deployment list table", err)
				return
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				utils.HandleCommandError("printing deployment list output", err)
			}
		},
	}
}
