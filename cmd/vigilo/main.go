package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/cmd"
)

func rootMain(command *cobra.Command, arguments []string) error {
	// If no commands were given, then print help information and bail. We
	// don't have to worry about warning about arguments being present here
	// (which would be incorrect usage) because arguments can't even reach this
	// point (they will be mistaken for subcommands and an error will be
	// displayed).
	command.Help()

	// Success.
	return nil
}

// rootCommand is the root command.
var rootCommand = &cobra.Command{
	Use:          "vigilo",
	Short:        "Vigilo watches filesystem roots and runs commands when files change",
	RunE:         rootMain,
	SilenceUsage: true,
}

// rootConfiguration stores configuration for the root command.
var rootConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := rootCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")

	// Register commands.
	rootCommand.AddCommand(
		daemonCommand,
		watchCommand,
		watchDelCommand,
		watchListCommand,
		triggerCommand,
		triggerDelCommand,
		triggerListCommand,
		monitorCommand,
		versionCommand,
	)
}

func main() {
	// Handle terminal compatibility issues. We avoid doing this if a shell
	// completion is being performed since the check would add latency to every
	// completion request.
	if !cmd.PerformingShellCompletion {
		cmd.HandleTerminalCompatibility()
	}

	// Execute the root command.
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
