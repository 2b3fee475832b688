// Package version provides the version command for pxedeck.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/app"
)

// NewCmdVersion creates the version command
func NewCmdVersion() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version information for pxedeck.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion()
		},
	}

	return cmd
}

func runVersion() error {
	fmt.Println(app.Version)
	return nil
}
