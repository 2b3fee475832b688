package deployment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/cmd/output"
)

func NewCmdDeploymentShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <deployment-id>",
		Short: "Show detailed deployment information",
		Long:  "Display comprehensive information about a deployment including schedule, progress and run history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return cmd.Help()
			}

			deploymentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid deployment ID '%s': must be a valid UUID", args[0])
			}

			deployment, err := app.GetSchedulerService().Get(deploymentID)
			if err != nil {
				return fmt.Errorf("failed to retrieve deployment %s: %w", deploymentID, err)
			}

			out, err := output.PrintDeploymentDetails(deployment)
			if err != nil {
				return fmt.Errorf("failed to format deployment details: %w", err)
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				return fmt.Errorf("failed to print deployment details: %w", err)
			}

			return nil
		},
	}
}
