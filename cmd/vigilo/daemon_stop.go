package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/cmd"
	"github.com/vigilo-io/vigilo/pkg/watch"
)

// daemonStopMain is the entry point for the daemon stop command.
func daemonStopMain(_ *cobra.Command, _ []string) error {
	// Invoke shutdown. We don't check the response or error, because the
	// daemon may terminate before it has a chance to send the response.
	watch.Invoke(context.Background(), &watch.Request{
		Operation: watch.OperationStop,
	})

	// Success.
	return nil
}

// daemonStopCommand is the daemon stop command.
var daemonStopCommand = &cobra.Command{
	Use:          "stop",
	Short:        "Stop the Vigilo daemon if it's running",
	Args:         cmd.DisallowArguments,
	RunE:         daemonStopMain,
	SilenceUsage: true,
}

// daemonStopConfiguration stores configuration for the daemon stop command.
var daemonStopConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := daemonStopCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&daemonStopConfiguration.help, "help", "h", false, "Show help information")
}
