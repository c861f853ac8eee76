package run

import (
	"github.com/spf13/cobra"

	"github.com/tinyland-inc/maibridge/cmd/maibridge/internal"
)

func NewRunCommand() *cobra.Command {
	var debug bool
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bridge",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCmd(configPath, debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().StringVarP(&configPath, "config", "c", internal.GetConfigPath(), "Path to config file")

	return cmd
}
