package deployment

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/cmd/output"
	"github.com/pxedeck/pxedeck/cmd/utils"
	"github.com/pxedeck/pxedeck/domain"
	"github.com/pxedeck/pxedeck/scheduler"
)

func NewCmdDeploymentSchedule() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule an imaging deployment for a device",
		Long: `Schedule a PXE imaging deployment.

The deployment fires immediately, at a fixed future time (--at), or on a
cron schedule (--every). Post-deployment tasks run in order after imaging
completes.`,
		Run: func(cmd *cobra.Command, args []string) {
			device, _ := cmd.Flags().GetString("device")
			image, _ := cmd.Flags().GetString("image")
			at, _ := cmd.Flags().GetString("at")
			pattern, _ := cmd.Flags().GetString("every")
			postTasks, _ := cmd.Flags().GetStringArray("post-task")

			req := scheduler.ScheduleRequest{
				DeviceID:  device,
				ImageID:   image,
				PostTasks: postTasks,
			}

			switch {
			case at != "" && pattern != "":
				utils.HandleCommandError("scheduling deployment",
					fmt.Errorf("--at and --every are mutually exclusive"))
				return
			case at != "":
				fireAt, err := time.Parse(time.RFC3339, at)
				if err != nil {
					utils.HandleCommandError("scheduling deployment",
						fmt.Errorf("invalid --at value %q: expected RFC 3339 timestamp", at))
					return
				}
				req.ScheduleType = domain.ScheduleTypeDelayed
				req.ScheduledFor = &fireAt
			case pattern != "":
				req.ScheduleType = domain.ScheduleTypeRecurring
				req.RecurringPattern = pattern
			default:
				req.ScheduleType = domain.ScheduleTypeImmediate
			}

			deployment, err := app.GetSchedulerService().Schedule(req)
			if err != nil {
				utils.HandleCommandError("scheduling deployment", err, "device", device)
				return
			}

			out, err := output.PrintDeploymentDetails(deployment)
			if err != nil {
				utils.HandleCommandError("printing deployment details table", err)
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				utils.HandleCommandError("printing deployment details", err)
			}
		},
	}

	cmd.Flags().StringP("device", "d", "", "Target device identifier")
	cmd.Flags().StringP("image", "i", "", "Image identifier to deploy")
	cmd.Flags().String("at", "", "Fire at a fixed future time (RFC 3339)")
	cmd.Flags().String("every", "", "Fire on a cron schedule, e.g. '0 2 * * *'")
	cmd.Flags().StringArrayP("post-task", "t", nil, "Post-deployment task to run after imaging (repeatable)")
	for _, flag := range []string{"device", "image"} {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			slog.Error("Failed to mark flag as required", "flag", flag, "error", err)
			panic(fmt.Sprintf("CLI setup error: %v", err))
		}
	}
	return cmd
}
