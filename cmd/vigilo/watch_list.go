package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/cmd"
	"github.com/vigilo-io/vigilo/pkg/watch"
)

// watchListMain is the entry point for the watch-list command.
func watchListMain(_ *cobra.Command, _ []string) error {
	// Query the daemon.
	response, err := watch.Invoke(context.Background(), &watch.Request{
		Operation: watch.OperationWatchList,
	})
	if err != nil {
		return err
	}

	// Print the registry.
	if len(response.Watches) == 0 {
		fmt.Println("No roots are being watched")
		return nil
	}
	for _, state := range response.Watches {
		fmt.Printf("%s (tick %d, triggers %d)\n", state.Path, state.Tick, state.Triggers)
		if state.Failure != "" {
			fmt.Printf("\tfailure: %s\n", state.Failure)
		}
	}

	// Success.
	return nil
}

// watchListCommand is the watch-list command.
var watchListCommand = &cobra.Command{
	Use:          "watch-list",
	Short:        "List watched filesystem roots",
	Args:         cmd.DisallowArguments,
	RunE:         watchListMain,
	SilenceUsage: true,
}

// watchListConfiguration stores configuration for the watch-list command.
var watchListConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := watchListCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&watchListConfiguration.help, "help", "h", false, "Show help information")
}
