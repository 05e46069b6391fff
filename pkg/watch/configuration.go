package watch

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/vigilo-io/vigilo/pkg/encoding"
	"github.com/vigilo-io/vigilo/pkg/filesystem"
	"github.com/vigilo-io/vigilo/pkg/filesystem/watching"
)

const (
	// RootConfigurationName is the name of the per-root configuration file,
	// resolved relative to the watched root.
	RootConfigurationName = ".vigilo.json"

	// defaultSettleWindow is the settle window used when unconfigured.
	defaultSettleWindow = 20 * time.Millisecond
)

// GlobalConfiguration represents the daemon-wide configuration file
// (~/.vigilo.toml). Zero values mean "unconfigured."
type GlobalConfiguration struct {
	// Watch contains watching defaults.
	Watch struct {
		// Watcher is the default backend specification.
		Watcher string `toml:"watcher"`
		// SettleMilliseconds is the default settle window in milliseconds.
		SettleMilliseconds uint32 `toml:"settle_ms"`
	} `toml:"watch"`
	// Ignore contains ignore defaults applied to every root.
	Ignore struct {
		// VCS controls version control metadata exclusion. A nil value means
		// enabled.
		VCS *bool `toml:"vcs"`
		// Directories are root-relative directories to exclude.
		Directories []string `toml:"dirs"`
	} `toml:"ignore"`
}

// LoadGlobalConfiguration loads the daemon-wide configuration, returning a
// zero-valued configuration if none exists.
func LoadGlobalConfiguration() (*GlobalConfiguration, error) {
	configuration := &GlobalConfiguration{}
	path := filepath.Join(filesystem.HomeDirectory, filesystem.VigiloConfigurationName)
	if err := encoding.LoadAndUnmarshalTOML(path, configuration); err != nil {
		if os.IsNotExist(err) {
			return configuration, nil
		}
		return nil, err
	}
	return configuration, nil
}

// RootConfiguration represents a root's configuration file (.vigilo.json at
// the root). Its settings override the global configuration for that root.
type RootConfiguration struct {
	// Watcher is the backend specification for the root.
	Watcher string `json:"watcher,omitempty"`
	// SettleMilliseconds is the settle window in milliseconds.
	SettleMilliseconds uint32 `json:"settle_ms,omitempty"`
	// IgnoreVCS controls version control metadata exclusion. A nil value
	// defers to the global configuration.
	IgnoreVCS *bool `json:"ignore_vcs,omitempty"`
	// IgnoreDirectories are root-relative directories to exclude.
	IgnoreDirectories []string `json:"ignore_dirs,omitempty"`
}

// loadRootConfiguration loads a root's configuration file, returning a
// zero-valued configuration if none exists.
func loadRootConfiguration(root string) (*RootConfiguration, error) {
	configuration := &RootConfiguration{}
	path := filepath.Join(root, RootConfigurationName)
	if err := encoding.LoadAndUnmarshalJSON(path, configuration); err != nil {
		if os.IsNotExist(err) {
			return configuration, nil
		}
		return nil, errors.Wrap(err, "unable to load root configuration")
	}
	return configuration, nil
}

// effectiveConfiguration is the merged result of global and per-root
// configuration for a single root.
type effectiveConfiguration struct {
	// kind is the watching backend.
	kind watching.Kind
	// settle is the settle window.
	settle time.Duration
	// ignoreVCS controls version control metadata exclusion.
	ignoreVCS bool
	// ignoreDirectories are root-relative directories to exclude.
	ignoreDirectories []string
}

// resolveConfiguration merges global and per-root configuration, with the
// per-root configuration taking precedence.
func resolveConfiguration(global *GlobalConfiguration, root *RootConfiguration) (*effectiveConfiguration, error) {
	// Start with defaults.
	resolved := &effectiveConfiguration{
		kind:      watching.KindDefault,
		settle:    defaultSettleWindow,
		ignoreVCS: true,
	}

	// Apply the global configuration.
	if global != nil {
		if global.Watch.Watcher != "" {
			kind, err := watching.ParseKind(global.Watch.Watcher)
			if err != nil {
				return nil, err
			}
			resolved.kind = kind
		}
		if global.Watch.SettleMilliseconds != 0 {
			resolved.settle = time.Duration(global.Watch.SettleMilliseconds) * time.Millisecond
		}
		if global.Ignore.VCS != nil {
			resolved.ignoreVCS = *global.Ignore.VCS
		}
		resolved.ignoreDirectories = append(resolved.ignoreDirectories, global.Ignore.Directories...)
	}

	// Apply the per-root configuration.
	if root != nil {
		if root.Watcher != "" {
			kind, err := watching.ParseKind(root.Watcher)
			if err != nil {
				return nil, err
			}
			resolved.kind = kind
		}
		if root.SettleMilliseconds != 0 {
			resolved.settle = time.Duration(root.SettleMilliseconds) * time.Millisecond
		}
		if root.IgnoreVCS != nil {
			resolved.ignoreVCS = *root.IgnoreVCS
		}
		resolved.ignoreDirectories = append(resolved.ignoreDirectories, root.IgnoreDirectories...)
	}

	// Success.
	return resolved, nil
}
