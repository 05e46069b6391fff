package watching

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/fsnotify/fsnotify"

	"github.com/golang/groupcache/lru"
)

const (
	// notifyDefaultMaximumWatches is the default maximum number of directory
	// watches that will be allowed to exist per notify watcher. Watches are
	// evicted on an LRU-basis once the limit is reached.
	notifyDefaultMaximumWatches = 4096
)

// notifyWatcher implements Watcher using the platform's kernel notification
// queue, establishing one watch per directory and evicting watches on an
// LRU-basis if the directory count exceeds capacity.
type notifyWatcher struct {
	// buffer provides event buffering and shutdown signalling.
	*buffer
	// root is the watched root path.
	root string
	// filter excludes paths from watching and observation.
	filter Filter
	// markers is an optional directory watched regardless of filtering so
	// that synchronization markers written into it remain observable. It may
	// be empty.
	markers string
	// controller receives out-of-band watch conditions.
	controller Controller
	// watcher is the underlying kernel-queue watcher. It is created in Start.
	watcher *fsnotify.Watcher
	// evictor performs LRU-based watch eviction. Only the owner of the run
	// loop may touch it once the run loop has started.
	evictor *lru.Cache
}

// newNotifyWatcher creates a new kernel-queue watcher for the specified root.
func newNotifyWatcher(root string, filter Filter, markers string, controller Controller) (Watcher, error) {
	return &notifyWatcher{
		buffer:     newBuffer(filter),
		root:       root,
		filter:     filter,
		markers:    markers,
		controller: controller,
	}, nil
}

// Start implements Watcher.Start.
func (w *notifyWatcher) Start() error {
	// Create the underlying watcher.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "unable to create notification watcher")
	}
	w.watcher = watcher

	// Create the evictor and set its eviction handler.
	w.evictor = lru.New(notifyDefaultMaximumWatches)
	w.evictor.OnEvicted = func(key lru.Key, _ interface{}) {
		if path, ok := key.(string); !ok {
			panic("invalid key type in watch path cache")
		} else {
			w.watcher.Remove(path)
		}
	}

	// Establish watches on the root and all non-excluded directories beneath
	// it. Doing this before the run loop starts means that no change occurring
	// after Start returns can be missed.
	if err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if w.filter != nil && path != w.root && w.filter(path) {
			return filepath.SkipDir
		}
		return w.watchDirectory(path)
	}); err != nil {
		watcher.Close()
		return errors.Wrap(err, "unable to establish directory watches")
	}

	// Watch the marker directory. The walk will have skipped it if the
	// filter excludes it, but markers written into it must still flow
	// through the notification path.
	if w.markers != "" && w.markers != w.root {
		if err := w.watchDirectory(w.markers); err != nil {
			watcher.Close()
			return errors.Wrap(err, "unable to watch marker directory")
		}
	}

	// Start the run loop.
	go w.run()

	// Success.
	return nil
}

// watchDirectory establishes a watch on a single directory, registering it
// with the evictor.
func (w *notifyWatcher) watchDirectory(path string) error {
	// Attempt to evict the path if already watched, that way we can establish
	// a clean watch and make the path the most-recently-added record. If the
	// path isn't currently watched, then this is a no-op.
	w.evictor.Remove(path)

	// Establish the watch. Non-existence isn't an error since the directory
	// may have been removed between observation and watching.
	if err := w.watcher.Add(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	w.evictor.Add(path, 0)
	return nil
}

// scanNewDirectory records the contents of a newly created directory and
// establishes watches on any subdirectories. Entries created between the
// directory's creation and the establishment of its watch would otherwise go
// unobserved.
func (w *notifyWatcher) scanNewDirectory(path string) {
	filepath.Walk(path, func(entry string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if w.filter != nil && entry != path && w.filter(entry) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry != path {
			w.append(entry)
		}
		if info.IsDir() && entry != path {
			w.watchDirectory(entry)
		}
		return nil
	})
}

// run is the watcher's event processing loop.
func (w *notifyWatcher) run() {
	for {
		select {
		case <-w.shutdown:
			w.watcher.Close()
			return
		case event, ok := <-w.watcher.Events:
			// Watch for unexpected event channel closures.
			if !ok {
				w.controller.CancelWatch(errors.New("events channel closed unexpectedly"))
				return
			}

			// Buffer the observation.
			w.append(event.Name)

			// If a directory was created, watch it and record its contents.
			// The marker directory is rewatched on recreation even though the
			// filter excludes it.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
					if w.filter == nil || event.Name == w.markers || !w.filter(event.Name) {
						if err := w.watchDirectory(event.Name); err != nil {
							w.controller.CancelWatch(errors.Wrap(err, "unable to watch created directory"))
							return
						}
						w.scanNewDirectory(event.Name)
					}
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.controller.CancelWatch(errors.New("errors channel closed unexpectedly"))
				return
			}
			if !w.handleStreamError(err) {
				return
			}
		}
	}
}

// handleStreamError processes a value received on the underlying watcher's
// error channel, returning whether or not the watch can continue. A
// notification queue overflow means that events were dropped but that the
// stream itself remains intact, so it converts to a recrawl request rather
// than a cancellation.
func (w *notifyWatcher) handleStreamError(err error) bool {
	if err == fsnotify.ErrEventOverflow {
		w.controller.ScheduleRecrawl("notification queue overflow")
		return true
	}
	w.controller.CancelWatch(errors.Wrap(err, "watch error"))
	return false
}
