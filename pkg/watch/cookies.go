package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/google/uuid"
)

const (
	// cookiePrefix is the file name prefix for consistency cookie markers.
	cookiePrefix = "vigilo-cookie-"

	// DefaultCookieTimeout is the default bound on waiting for a cookie to be
	// observed through the notification path.
	DefaultCookieTimeout = 10 * time.Second
)

// cookieJar implements the consistency cookie protocol for a single root. A
// cookie is a uniquely named empty marker file written into the jar's
// directory and awaited through the root's normal notification flow;
// observing it proves that all prior notification-source events have been
// delivered. A cookieJar is safe for concurrent usage.
type cookieJar struct {
	// directory is the directory into which cookies are written.
	directory string
	// lock guards waiters.
	lock sync.Mutex
	// waiters maps outstanding cookie paths to their observation channels.
	waiters map[string]chan struct{}
}

// newCookieJar creates a cookie jar writing into the specified directory.
func newCookieJar(directory string) *cookieJar {
	return &cookieJar{
		directory: directory,
		waiters:   make(map[string]chan struct{}),
	}
}

// isCookiePath returns whether or not the specified path is a cookie marker
// within the jar's directory.
func (j *cookieJar) isCookiePath(path string) bool {
	return filepath.Dir(path) == j.directory &&
		strings.HasPrefix(filepath.Base(path), cookiePrefix)
}

// observe reports a path observed through the notification flow. It returns
// whether or not the path was a cookie marker (and thus should be withheld
// from settled batches). Observing a cookie releases its waiter, if any.
func (j *cookieJar) observe(path string) bool {
	if !j.isCookiePath(path) {
		return false
	}
	j.lock.Lock()
	defer j.lock.Unlock()
	if waiter, ok := j.waiters[path]; ok {
		close(waiter)
		delete(j.waiters, path)
	}
	return true
}

// SyncToNow writes a cookie marker and blocks (boundedly) until it is
// observed through the notification flow, proving that the notification
// source has drained all events up to the point of the write. The marker is
// removed before returning regardless of outcome.
func (j *cookieJar) SyncToNow(timeout time.Duration) error {
	// Compute a unique cookie path and register its waiter.
	name := cookiePrefix + uuid.NewString()
	path := filepath.Join(j.directory, name)
	waiter := make(chan struct{})
	j.lock.Lock()
	j.waiters[path] = waiter
	j.lock.Unlock()

	// Ensure waiter deregistration and marker removal on all paths.
	defer func() {
		j.lock.Lock()
		delete(j.waiters, path)
		j.lock.Unlock()
		os.Remove(path)
	}()

	// Write the marker.
	if err := os.WriteFile(path, nil, 0600); err != nil {
		return errors.Wrap(err, "unable to write cookie")
	}

	// Wait for observation.
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-waiter:
		return nil
	case <-timer.C:
		return errors.New("timed out waiting for cookie observation")
	}
}

// designateCookieDirectory selects the directory for cookie placement: the
// first existing version control metadata directory if there is one (keeping
// cookie traffic away from user-visible paths), otherwise the root itself.
func designateCookieDirectory(root string, vcsPaths []string) string {
	for _, path := range vcsPaths {
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			return path
		}
	}
	return root
}
