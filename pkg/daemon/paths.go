package daemon

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/vigilo-io/vigilo/pkg/filesystem"
)

const (
	// lockName is the name of the daemon lock file. It resides within the
	// daemon subdirectory of the Vigilo directory.
	lockName = "daemon.lock"

	// ipcEndpointName is the name of the daemon IPC endpoint. It resides
	// within the daemon subdirectory of the Vigilo directory.
	ipcEndpointName = "daemon.sock"

	// logName is the name of the daemon log file. It resides within the
	// daemon subdirectory of the Vigilo directory.
	logName = "daemon.log"

	// registryName is the name of the watch registry state file. It resides
	// within the daemon subdirectory of the Vigilo directory.
	registryName = "state.json"
)

// subpath computes a subpath of the daemon subdirectory, creating the daemon
// subdirectory in the process.
func subpath(name string) (string, error) {
	// Compute the daemon root directory path and ensure it exists.
	daemonRoot, err := filesystem.Vigilo(true, filesystem.VigiloDaemonDirectoryName)
	if err != nil {
		return "", errors.Wrap(err, "unable to compute daemon directory")
	}

	// Compute the combined path.
	return filepath.Join(daemonRoot, name), nil
}

// IPCEndpointPath computes the path to the daemon IPC endpoint, creating any
// intermediate directories as necessary.
func IPCEndpointPath() (string, error) {
	return subpath(ipcEndpointName)
}

// logPath computes the path to the daemon log, creating any intermediate
// directories as necessary.
func logPath() (string, error) {
	return subpath(logName)
}

// RegistryPath computes the path to the watch registry state file, creating
// any intermediate directories as necessary.
func RegistryPath() (string, error) {
	return subpath(registryName)
}
