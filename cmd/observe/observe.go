// Package observe provides the live dashboard follower command for pxedeck.
package observe

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/cmd/output"
	"github.com/pxedeck/pxedeck/cmd/utils"
	"github.com/pxedeck/pxedeck/domain"
	"github.com/pxedeck/pxedeck/observer"
)

// NewCmdObserve creates a command that follows a pxedeck server's event
// stream and prints device state as it changes.
func NewCmdObserve() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Follow a pxedeck server's live event stream",
		Long: `Connect to a running pxedeck server and follow its deployment events.

The connection reconnects with exponential backoff; on every reconnect the
device state is re-queried, since missed events are never replayed.`,
		Run: func(cmd *cobra.Command, args []string) {
			serverURL, _ := cmd.Flags().GetString("server")
			if err := runObserve(cmd, serverURL); err != nil {
				utils.HandleCommandError("observing event stream", err, "server", serverURL)
			}
		},
	}

	cmd.Flags().StringP("server", "s", "http://127.0.0.1:8080", "Base URL of the pxedeck server")
	return cmd
}

func runObserve(cmd *cobra.Command, serverURL string) error {
	cfg := app.GetConfig()

	client := observer.NewClient(
		&observer.SSEDialer{URL: serverURL + "/events"},
		&observer.HTTPFetcher{BaseURL: serverURL},
		observer.Config{
			BackoffBase: cfg.ObserverBackoffBase,
			MaxAttempts: cfg.ObserverMaxAttempts,
		},
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	go func() {
		for state := range client.States() {
			_ = output.FprintPlain(cmd, "%s",
				output.PrintMessage(output.Plain, "connection: %s", state))
			if state == observer.StateConnected {
				printDevices(cmd, client.Cache())
			}
		}
	}()

	err := client.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printDevices(cmd *cobra.Command, cache *observer.Cache) {
	devices := cache.Devices()
	statuses := make([]domain.DeviceStatus, 0, len(devices))
	for _, d := range devices {
		status, err := domain.ParseDeploymentStatus(d.Status)
		if err != nil {
			status = domain.DeploymentStatusUnknown
		}
		statuses = append(statuses, domain.DeviceStatus{
			DeviceID:     d.DeviceID,
			ImageID:      d.ImageID,
			DeploymentID: d.DeploymentID,
			Status:       status,
			Progress:     d.Progress,
		})
	}

	out, err := output.PrintDeviceStatusList(statuses)
	if err != nil {
		utils.HandleCommandError("printing device status table", err)
		return
	}
	_ = output.FprintPlain(cmd, "%s", out)
}
