package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/pkg/watch"
)

// watchMain is the entry point for the watch command.
func watchMain(_ *cobra.Command, arguments []string) error {
	// Validate arguments.
	if len(arguments) != 1 {
		return errors.New("exactly one root path must be specified")
	}

	// Register the watch.
	_, err := watch.Invoke(context.Background(), &watch.Request{
		Operation: watch.OperationWatch,
		Root:      arguments[0],
	})
	return err
}

// watchCommand is the watch command.
var watchCommand = &cobra.Command{
	Use:          "watch <root>",
	Short:        "Start watching a filesystem root",
	RunE:         watchMain,
	SilenceUsage: true,
}

// watchConfiguration stores configuration for the watch command.
var watchConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := watchCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&watchConfiguration.help, "help", "h", false, "Show help information")
}
