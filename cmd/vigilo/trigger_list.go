package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/pkg/watch"
)

// triggerListMain is the entry point for the trigger-list command.
func triggerListMain(_ *cobra.Command, arguments []string) error {
	// Validate arguments.
	if len(arguments) != 1 {
		return errors.New("exactly one root path must be specified")
	}

	// Query the daemon.
	response, err := watch.Invoke(context.Background(), &watch.Request{
		Operation: watch.OperationTriggerList,
		Root:      arguments[0],
	})
	if err != nil {
		return err
	}

	// Print the definitions.
	if len(response.Triggers) == 0 {
		fmt.Println("No triggers are defined")
		return nil
	}
	for _, definition := range response.Triggers {
		fmt.Printf("%s: %s -> %s\n",
			definition.Name,
			definition.Expression,
			strings.Join(definition.Command, " "),
		)
	}

	// Success.
	return nil
}

// triggerListCommand is the trigger-list command.
var triggerListCommand = &cobra.Command{
	Use:          "trigger-list <root>",
	Short:        "List the triggers defined on a watched root",
	RunE:         triggerListMain,
	SilenceUsage: true,
}

// triggerListConfiguration stores configuration for the trigger-list command.
var triggerListConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := triggerListCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&triggerListConfiguration.help, "help", "h", false, "Show help information")
}
