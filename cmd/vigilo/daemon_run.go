package main

import (
	"log"
	"os"
	"os/signal"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/cmd"
	"github.com/vigilo-io/vigilo/pkg/daemon"
	"github.com/vigilo-io/vigilo/pkg/ipc"
	"github.com/vigilo-io/vigilo/pkg/logging"
	"github.com/vigilo-io/vigilo/pkg/vigilo"
	"github.com/vigilo-io/vigilo/pkg/watch"
)

// daemonRunMain is the entry point for the daemon run command.
func daemonRunMain(_ *cobra.Command, _ []string) error {
	// Attempt to acquire the daemon lock and defer its release.
	lock, err := daemon.AcquireLock()
	if err != nil {
		return errors.Wrap(err, "unable to acquire daemon lock")
	}
	defer lock.Release()

	// Redirect logging to the daemon log. When debugging is enabled, logging
	// stays on standard error so that it's visible on the console.
	if !vigilo.DebugEnabled {
		logFile, err := daemon.OpenLog()
		if err != nil {
			return errors.Wrap(err, "unable to open daemon log")
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	// Create a channel to track termination signals. We do this before
	// creating and starting other infrastructure so that we can ensure things
	// terminate smoothly, not mid-initialization.
	signalTermination := make(chan os.Signal, 1)
	signal.Notify(signalTermination, cmd.TerminationSignals...)

	// Load the global configuration.
	configuration, err := watch.LoadGlobalConfiguration()
	if err != nil {
		return errors.Wrap(err, "unable to load global configuration")
	}

	// Compute the path to the daemon IPC endpoint.
	endpoint, err := daemon.IPCEndpointPath()
	if err != nil {
		return errors.Wrap(err, "unable to compute endpoint path")
	}

	// Compute the path to the registry.
	registryPath, err := daemon.RegistryPath()
	if err != nil {
		return errors.Wrap(err, "unable to compute registry path")
	}

	// Create the watch service, defer its shutdown, and restore any watches
	// persisted by previous runs.
	service := watch.NewService(endpoint, registryPath, configuration, logging.RootLogger.Sublogger("watch"))
	defer service.Shutdown()
	if err := service.Load(); err != nil {
		logging.RootLogger.Warn(errors.Wrap(err, "unable to restore saved state"))
	}

	// Create the daemon listener and defer its closure. Since we hold the
	// daemon lock, we preemptively remove any existing socket since it
	// (should) be stale.
	os.Remove(endpoint)
	listener, err := ipc.NewListener(endpoint)
	if err != nil {
		return errors.Wrap(err, "unable to create daemon listener")
	}
	defer listener.Close()

	// Create the control server and serve incoming connections in a separate
	// Goroutine, watching for serving failure.
	server := watch.NewServer(service, listener, logging.RootLogger.Sublogger("control"))
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Serve()
	}()

	// Wait for termination from a signal, a client stop request, or the
	// control server. We treat termination via a stop request as a non-error.
	select {
	case sig := <-signalTermination:
		return errors.Errorf("terminated by signal: %s", sig)
	case <-server.StopRequests():
		return nil
	case err = <-serverErrors:
		return errors.Wrap(err, "control server termination")
	}
}

// daemonRunCommand is the daemon run command.
var daemonRunCommand = &cobra.Command{
	Use:          "run",
	Short:        "Run the Vigilo daemon",
	Args:         cmd.DisallowArguments,
	Hidden:       true,
	RunE:         daemonRunMain,
	SilenceUsage: true,
}

// daemonRunConfiguration stores configuration for the daemon run command.
var daemonRunConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := daemonRunCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&daemonRunConfiguration.help, "help", "h", false, "Show help information")
}
