package watching

import (
	"github.com/pkg/errors"
)

// Kind identifies a watching backend variant.
type Kind uint8

const (
	// KindDefault represents an unspecified backend and resolves to the
	// platform default at watch creation time.
	KindDefault Kind = iota
	// KindBatch is the asynchronous batch-read backend. It is only available
	// on Windows.
	KindBatch
	// KindNotify is the kernel-queue notification backend.
	KindNotify
	// KindPoll is the periodic scanning backend.
	KindPoll
)

// ParseKind parses a backend specification string.
func ParseKind(text string) (Kind, error) {
	switch text {
	case "", "default":
		return KindDefault, nil
	case "batch":
		return KindBatch, nil
	case "notify":
		return KindNotify, nil
	case "poll":
		return KindPoll, nil
	default:
		return KindDefault, errors.Errorf("unknown watcher specification: %s", text)
	}
}

// String returns a human-readable backend description.
func (k Kind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindBatch:
		return "batch"
	case KindNotify:
		return "notify"
	case KindPoll:
		return "poll"
	default:
		return "unknown"
	}
}

// New creates a watcher for the specified root using the specified backend,
// resolving KindDefault to the platform default. The filter excludes paths
// from observation before they are buffered, and the controller receives
// out-of-band watch conditions. The markers argument optionally names a
// directory whose direct contents must remain observable even when the
// filter excludes the directory itself; roots use it to pass
// synchronization markers through the notification path. It may be empty.
// The batch backend's recursive watch covers the full tree inherently, so
// it requires no marker handling.
func New(root string, kind Kind, filter Filter, markers string, controller Controller) (Watcher, error) {
	if kind == KindDefault {
		kind = defaultKind
	}
	switch kind {
	case KindBatch:
		return newBatchWatcher(root, filter, controller)
	case KindNotify:
		return newNotifyWatcher(root, filter, markers, controller)
	case KindPoll:
		return newPollWatcher(root, filter, markers, controller, DefaultPollingInterval), nil
	default:
		return nil, errors.New("unsupported watcher kind")
	}
}
