package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/cmd"
	"github.com/vigilo-io/vigilo/pkg/watch"
)

// watchDelMain is the entry point for the watch-del command.
func watchDelMain(_ *cobra.Command, arguments []string) error {
	// Validate arguments.
	if len(arguments) != 1 {
		return errors.New("exactly one root path must be specified")
	}

	// Remove the watch.
	response, err := watch.Invoke(context.Background(), &watch.Request{
		Operation: watch.OperationWatchDel,
		Root:      arguments[0],
	})
	if err != nil {
		return err
	}
	if !response.Deleted {
		cmd.Warning("root was not being watched")
	}

	// Success.
	return nil
}

// watchDelCommand is the watch-del command.
var watchDelCommand = &cobra.Command{
	Use:          "watch-del <root>",
	Short:        "Stop watching a filesystem root",
	RunE:         watchDelMain,
	SilenceUsage: true,
}

// watchDelConfiguration stores configuration for the watch-del command.
var watchDelConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := watchDelCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&watchDelConfiguration.help, "help", "h", false, "Show help information")
}
