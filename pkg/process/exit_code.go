package process

import (
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
)

// ExitCodeForError extracts the process exit code from an error returned by
// the os/exec package's Run or Wait methods.
func ExitCodeForError(err error) (int, error) {
	// Ensure that we have a non-nil error.
	if err == nil {
		return 0, errors.New("nil error provided")
	}

	// Ensure that the error is an exit error.
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return 0, errors.New("error is not an exit error")
	}

	// Extract the wait status from the process state.
	waitStatus, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return 0, errors.New("unable to extract wait status")
	}

	// Success.
	return waitStatus.ExitStatus(), nil
}
