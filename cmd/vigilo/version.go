package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/cmd"
	"github.com/vigilo-io/vigilo/pkg/vigilo"
)

// versionMain is the entry point for the version command.
func versionMain(command *cobra.Command, arguments []string) error {
	// Print version information.
	fmt.Println(vigilo.Version)

	// Success.
	return nil
}

// versionCommand is the version command.
var versionCommand = &cobra.Command{
	Use:          "version",
	Short:        "Show version information",
	Args:         cmd.DisallowArguments,
	RunE:         versionMain,
	SilenceUsage: true,
}

// versionConfiguration stores configuration for the version command.
var versionConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := versionCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&versionConfiguration.help, "help", "h", false, "Show help information")
}
