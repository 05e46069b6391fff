package main

import (
	"github.com/spf13/cobra"
)

func daemonMain(command *cobra.Command, arguments []string) error {
	// If no commands were given, then print help information and bail.
	command.Help()

	// Success.
	return nil
}

// daemonCommand is the daemon command.
var daemonCommand = &cobra.Command{
	Use:          "daemon",
	Short:        "Control the lifecycle of the Vigilo daemon",
	RunE:         daemonMain,
	SilenceUsage: true,
}

// daemonConfiguration stores configuration for the daemon command.
var daemonConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := daemonCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&daemonConfiguration.help, "help", "h", false, "Show help information")

	// Register commands.
	daemonCommand.AddCommand(
		daemonRunCommand,
		daemonStartCommand,
		daemonStopCommand,
	)
}
