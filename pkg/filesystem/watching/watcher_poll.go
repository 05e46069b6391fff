package watching

import (
	"os"
	"path/filepath"
	"time"
)

// pollEntry records the metadata compared between successive scans.
type pollEntry struct {
	// modificationTime is the entry's modification time.
	modificationTime time.Time
	// size is the entry's size in bytes.
	size int64
	// mode is the entry's mode.
	mode os.FileMode
}

// pollWatcher implements Watcher by periodically scanning the root and
// diffing entry metadata between scans. It is the fallback backend for
// platforms or filesystems where native notification is unavailable.
type pollWatcher struct {
	// buffer provides event buffering and shutdown signalling.
	*buffer
	// root is the watched root path.
	root string
	// filter excludes paths from scanning.
	filter Filter
	// markers is an optional directory scanned regardless of filtering so
	// that synchronization markers written into it remain observable. It may
	// be empty.
	markers string
	// controller receives out-of-band watch conditions.
	controller Controller
	// interval is the polling interval.
	interval time.Duration
	// snapshot is the most recent scan result, keyed by absolute path.
	snapshot map[string]pollEntry
}

// newPollWatcher creates a new poll-based watcher for the specified root.
func newPollWatcher(root string, filter Filter, markers string, controller Controller, interval time.Duration) Watcher {
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	return &pollWatcher{
		buffer:     newBuffer(filter),
		root:       root,
		filter:     filter,
		markers:    markers,
		controller: controller,
		interval:   interval,
	}
}

// scan walks the root and records entry metadata. Per-entry errors are
// ignored since entries may disappear mid-scan.
func (w *pollWatcher) scan() map[string]pollEntry {
	snapshot := make(map[string]pollEntry, len(w.snapshot))
	filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if w.filter != nil && path != w.root && w.filter(path) {
			if !info.IsDir() {
				return nil
			}
			// Descend into the marker directory so that markers written into
			// it remain observable, but don't record the directory itself.
			if path == w.markers {
				return nil
			}
			return filepath.SkipDir
		}
		snapshot[path] = pollEntry{
			modificationTime: info.ModTime(),
			size:             info.Size(),
			mode:             info.Mode(),
		}
		return nil
	})
	return snapshot
}

// Start implements Watcher.Start.
func (w *pollWatcher) Start() error {
	// Establish the baseline snapshot so that the first polling pass only
	// reports changes occurring after Start returns.
	w.snapshot = w.scan()

	// Start the polling loop.
	go w.run()

	// Success.
	return nil
}

// run is the watcher's polling loop.
func (w *pollWatcher) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.shutdown:
			return
		case <-ticker.C:
			// Perform a scan and diff it against the previous snapshot.
			current := w.scan()
			var changed []string
			for path, entry := range current {
				if previous, ok := w.snapshot[path]; !ok {
					changed = append(changed, path)
				} else if !entry.modificationTime.Equal(previous.modificationTime) ||
					entry.size != previous.size ||
					entry.mode != previous.mode {
					changed = append(changed, path)
				}
			}
			for path := range w.snapshot {
				if _, ok := current[path]; !ok {
					changed = append(changed, path)
				}
			}

			// Record the new snapshot and buffer any observations.
			w.snapshot = current
			if len(changed) > 0 {
				w.append(changed...)
			}
		}
	}
}
