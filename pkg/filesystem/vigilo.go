package filesystem

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// VigiloDataDirectoryName is the name of the global Vigilo data directory
	// inside the user's home directory.
	VigiloDataDirectoryName = ".vigilo"

	// VigiloConfigurationName is the name of the global Vigilo configuration
	// file inside the user's home directory.
	VigiloConfigurationName = ".vigilo.toml"

	// VigiloDaemonDirectoryName is the name of the daemon storage directory
	// within the Vigilo data directory.
	VigiloDaemonDirectoryName = "daemon"
)

// Vigilo computes (and optionally creates) subdirectories inside the Vigilo
// data directory.
func Vigilo(create bool, subpath ...string) (string, error) {
	// Compute the target path.
	root := filepath.Join(HomeDirectory, VigiloDataDirectoryName)
	result := filepath.Join(append([]string{root}, subpath...)...)

	// Create the directory hierarchy if requested. We use user-only
	// permissions since this directory can house sockets and state.
	if create {
		if err := os.MkdirAll(result, 0700); err != nil {
			return "", errors.Wrap(err, "unable to create data directory")
		}
	}

	// Success.
	return result, nil
}
