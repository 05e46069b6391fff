//go:build !windows

package watching

import (
	"github.com/pkg/errors"
)

// newBatchWatcher creates a new asynchronous batch-read watcher. The batch
// backend is unavailable on this platform.
func newBatchWatcher(root string, filter Filter, controller Controller) (Watcher, error) {
	return nil, errors.New("batch watching not supported on this platform")
}
