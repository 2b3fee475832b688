package deployment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/cmd/output"
)

func NewCmdDeploymentCancel() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <deployment-id>",
		Short: "Cancel a deployment",
		Long: `Cancel a deployment regardless of its current stage.

Cancelling is idempotent: cancelling an already cancelled deployment is a
no-op. Cancelling a recurring deployment stops all future cycles.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return cmd.Help()
			}

			deploymentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid deployment ID '%s': must be a valid UUID", args[0])
			}

			if err := app.GetSchedulerService().Cancel(cmd.Context(), deploymentID); err != nil {
				return fmt.Errorf("failed to cancel deployment %s: %w", deploymentID, err)
			}

			if err := output.FprintPlain(cmd, "%s",
				output.PrintMessage(output.Success, "Deployment %s cancelled", deploymentID)); err != nil {
				return fmt.Errorf("failed to print cancellation message: %w", err)
			}

			return nil
		},
	}
}
