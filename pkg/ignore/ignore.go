package ignore

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// DefaultVCSDirectoryNames are the names of version control metadata
// directories that are ignored by default when VCS ignores are enabled.
var DefaultVCSDirectoryNames = []string{".git", ".svn", ".hg"}

// entry represents a single ignored directory prefix.
type entry struct {
	// path is the absolute, separator-aligned directory path.
	path string
	// vcs indicates whether the entry excludes a version control metadata
	// subtree (as opposed to a generic configured ignore).
	vcs bool
}

// Set matches paths against a collection of ignored directory prefixes. The
// zero value is not usable; use NewSet. Set is not safe for concurrent
// mutation, but lookups may proceed concurrently once construction completes.
type Set struct {
	// entries are the registered ignore prefixes in registration order.
	entries []entry
}

// NewSet creates an empty ignore set.
func NewSet() *Set {
	return &Set{}
}

// Add registers a directory prefix with the set. The path must be absolute
// and must not carry a trailing separator. The vcs flag marks the entry as a
// version control metadata exclusion.
func (s *Set) Add(path string, vcs bool) error {
	// Validate the path.
	if path == "" {
		return errors.New("empty ignore path")
	} else if strings.HasSuffix(path, string(os.PathSeparator)) {
		return errors.New("ignore path has trailing separator")
	}

	// Avoid duplicate registration, upgrading the VCS flag if necessary.
	for i := range s.entries {
		if s.entries[i].path == path {
			if vcs {
				s.entries[i].vcs = true
			}
			return nil
		}
	}

	// Register the entry.
	s.entries = append(s.entries, entry{path: path, vcs: vcs})

	// Success.
	return nil
}

// IsIgnored returns whether or not the specified path is equal to or beneath
// a registered ignore prefix. Prefix matching is separator-aligned, so an
// entry never matches a sibling path that merely shares leading characters.
func (s *Set) IsIgnored(path string) bool {
	for _, e := range s.entries {
		if path == e.path {
			return true
		}
		if strings.HasPrefix(path, e.path) &&
			len(path) > len(e.path) &&
			path[len(e.path)] == os.PathSeparator {
			return true
		}
	}
	return false
}

// IsIgnoreDirectory returns whether or not the specified path is itself a
// registered ignore prefix (as opposed to a descendant of one).
func (s *Set) IsIgnoreDirectory(path string) bool {
	for _, e := range s.entries {
		if path == e.path {
			return true
		}
	}
	return false
}

// VCSPaths returns the registered VCS exclusion paths in registration order.
func (s *Set) VCSPaths() []string {
	var paths []string
	for _, e := range s.entries {
		if e.vcs {
			paths = append(paths, e.path)
		}
	}
	return paths
}

// Paths returns all registered ignore paths in registration order.
func (s *Set) Paths() []string {
	paths := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		paths = append(paths, e.path)
	}
	return paths
}
