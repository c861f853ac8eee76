package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/maibridge/cmd/maibridge/internal/run"
	"github.com/tinyland-inc/maibridge/cmd/maibridge/internal/version"
)

func NewMaibridgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "maibridge",
		Short:   "maibridge - Discord to MaiBot bridge",
		Example: "maibridge run",
	}

	cmd.AddCommand(
		run.NewRunCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewMaibridgeCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
