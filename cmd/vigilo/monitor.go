package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/cmd"
	"github.com/vigilo-io/vigilo/pkg/watch"
)

// monitorMain is the entry point for the monitor command.
func monitorMain(_ *cobra.Command, arguments []string) error {
	// Validate arguments.
	if len(arguments) > 1 {
		return errors.New("at most one root path may be specified")
	}
	var root string
	if len(arguments) == 1 {
		root = arguments[0]
	}

	// Create a status line printer and defer a line break so that the shell
	// prompt doesn't land mid-line.
	printer := &cmd.StatusLinePrinter{}
	defer printer.BreakIfNonEmpty()

	// Loop and print monitoring information indefinitely.
	var previous uint64
	for {
		// Perform a long-polling state query.
		response, err := watch.Invoke(context.Background(), &watch.Request{
			Operation: watch.OperationMonitor,
			Previous:  previous,
		})
		if err != nil {
			printer.BreakIfNonEmpty()
			return err
		}
		previous = response.Index

		// Build the status line. If a root was specified, show its state
		// alone, otherwise summarize the registry.
		var status string
		if root != "" {
			status = "Root: not watched"
			for _, state := range response.Watches {
				if state.Path != root {
					continue
				}
				status = fmt.Sprintf("Tick: %d | Triggers: %d", state.Tick, state.Triggers)
				if state.Failure != "" {
					status += " | Failed: " + state.Failure
				}
				break
			}
		} else {
			var triggers int
			var failures int
			for _, state := range response.Watches {
				triggers += state.Triggers
				if state.Failure != "" {
					failures++
				}
			}
			status = fmt.Sprintf("Watches: %d | Triggers: %d", len(response.Watches), triggers)
			if failures > 0 {
				status += fmt.Sprintf(" | Failed: %d", failures)
			}
		}

		// Print the status.
		printer.Print(status)
	}
}

// monitorCommand is the monitor command.
var monitorCommand = &cobra.Command{
	Use:          "monitor [<root>]",
	Short:        "Continuously display watch state",
	RunE:         monitorMain,
	SilenceUsage: true,
}

// monitorConfiguration stores configuration for the monitor command.
var monitorConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := monitorCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&monitorConfiguration.help, "help", "h", false, "Show help information")
}
