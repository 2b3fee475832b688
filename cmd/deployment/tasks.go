package deployment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/cmd/output"
)

func NewCmdDeploymentTasks() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <deployment-id>",
		Short: "List post-deployment task runs",
		Long:  "Display the post-deployment tasks of a deployment with their status and progress.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return cmd.Help()
			}

			deploymentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid deployment ID '%s': must be a valid UUID", args[0])
			}

			if _, err := app.GetSchedulerService().Get(deploymentID); err != nil {
				return fmt.Errorf("failed to retrieve deployment %s: %w", deploymentID, err)
			}

			runs, err := app.GetSchedulerService().ListTaskRuns(deploymentID)
			if err != nil {
				return fmt.Errorf("failed to list task runs for %s: %w", deploymentID, err)
			}

			out, err := output.PrintTaskRunList(runs)
			if err != nil {
				return fmt.Errorf("failed to format task run list: %w", err)
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				return fmt.Errorf("failed to print task run list: %w", err)
			}

			return nil
		},
	}
}
