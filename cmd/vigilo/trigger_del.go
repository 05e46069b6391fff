package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/cmd"
	"github.com/vigilo-io/vigilo/pkg/watch"
)

// triggerDelMain is the entry point for the trigger-del command.
func triggerDelMain(_ *cobra.Command, arguments []string) error {
	// Validate arguments.
	if len(arguments) != 2 {
		return errors.New("a root path and trigger name must be specified")
	}

	// Remove the trigger.
	response, err := watch.Invoke(context.Background(), &watch.Request{
		Operation: watch.OperationTriggerDel,
		Root:      arguments[0],
		Name:      arguments[1],
	})
	if err != nil {
		return err
	}
	if !response.Deleted {
		cmd.Warning("trigger was not defined")
	}

	// Success.
	return nil
}

// triggerDelCommand is the trigger-del command.
var triggerDelCommand = &cobra.Command{
	Use:          "trigger-del <root> <name>",
	Short:        "Remove a trigger from a watched root",
	RunE:         triggerDelMain,
	SilenceUsage: true,
}

// triggerDelConfiguration stores configuration for the trigger-del command.
var triggerDelConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := triggerDelCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&triggerDelConfiguration.help, "help", "h", false, "Show help information")
}
