// Package deployment provides commands for managing fleet imaging deployments in pxedeck.
package deployment

import "github.com/spf13/cobra"

func NewCmdDeployment() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployment",
		Short: "Manage imaging deployments",
	}

	cmd.AddCommand(NewCmdDeploymentList())
	cmd.AddCommand(NewCmdDeploymentSchedule())
	cmd.AddCommand(NewCmdDeploymentShow())
	cmd.AddCommand(NewCmdDeploymentCancel())
	cmd.AddCommand(NewCmdDeploymentTasks())
	return cmd
}
