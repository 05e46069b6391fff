package main

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/cmd"
	"github.com/vigilo-io/vigilo/pkg/process"
)

// daemonStartMain is the entry point for the daemon start command.
func daemonStartMain(_ *cobra.Command, _ []string) error {
	// Compute the path to the current executable.
	executablePath, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "unable to determine executable path")
	}

	// Restart in the background.
	daemonProcess := &exec.Cmd{
		Path:        executablePath,
		Args:        []string{"vigilo", "daemon", "run"},
		SysProcAttr: process.DetachedProcessAttributes(),
	}
	if err := daemonProcess.Start(); err != nil {
		return errors.Wrap(err, "unable to fork daemon")
	}

	// Success.
	return nil
}

// daemonStartCommand is the daemon start command.
var daemonStartCommand = &cobra.Command{
	Use:          "start",
	Short:        "Start the Vigilo daemon if it's not already running",
	Args:         cmd.DisallowArguments,
	RunE:         daemonStartMain,
	SilenceUsage: true,
}

// daemonStartConfiguration stores configuration for the daemon start command.
var daemonStartConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := daemonStartCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&daemonStartConfiguration.help, "help", "h", false, "Show help information")
}
