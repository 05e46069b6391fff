package watch

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/vigilo-io/vigilo/pkg/pending"
	"github.com/vigilo-io/vigilo/pkg/trigger"
)

// testGlobalConfiguration returns a configuration forcing the notify backend
// with a short settle window.
func testGlobalConfiguration() *GlobalConfiguration {
	configuration := &GlobalConfiguration{}
	configuration.Watch.Watcher = "notify"
	configuration.Watch.SettleMilliseconds = 20
	return configuration
}

// startTestRoot creates and starts a root over a temporary directory,
// registering cleanup.
func startTestRoot(t *testing.T) *Root {
	t.Helper()
	root, err := NewRoot(t.TempDir(), "/tmp/test.sock", testGlobalConfiguration(), nil)
	if err != nil {
		t.Fatal("unable to create root:", err)
	}
	if err := root.Start(); err != nil {
		t.Fatal("unable to start root:", err)
	}
	t.Cleanup(root.Stop)
	return root
}

func TestRootCookieSync(t *testing.T) {
	root := startTestRoot(t)
	if err := root.SyncToNow(5 * time.Second); err != nil {
		t.Error("cookie synchronization failed:", err)
	}
}

func TestRootCookieSyncVCSDirectory(t *testing.T) {
	// Create a root containing a version control metadata directory, which
	// becomes the cookie placement target despite being ignored.
	path := t.TempDir()
	if err := os.Mkdir(filepath.Join(path, ".git"), 0700); err != nil {
		t.Fatal("unable to create VCS directory:", err)
	}
	root, err := NewRoot(path, "/tmp/test.sock", testGlobalConfiguration(), nil)
	if err != nil {
		t.Fatal("unable to create root:", err)
	}
	if root.cookies.directory != filepath.Join(path, ".git") {
		t.Fatal("cookie directory not designated to VCS directory")
	}
	if err := root.Start(); err != nil {
		t.Fatal("unable to start root:", err)
	}
	t.Cleanup(root.Stop)

	// Synchronization must succeed even though cookies now land inside an
	// ignored directory.
	if err := root.SyncToNow(5 * time.Second); err != nil {
		t.Error("cookie synchronization failed:", err)
	}
}

func TestRootPublishesSettledBatches(t *testing.T) {
	root := startTestRoot(t)
	subscription := root.publisher.Subscribe()

	// Make a change.
	target := filepath.Join(root.Path(), "file.txt")
	if err := os.WriteFile(target, []byte("hello"), 0600); err != nil {
		t.Fatal("unable to create test file:", err)
	}

	// Wait for a settled batch containing the change, verifying that ticks
	// are non-decreasing along the way.
	expiry := time.Now().Add(5 * time.Second)
	var lastTick uint64
	for time.Now().Before(expiry) {
		select {
		case <-subscription.Signal():
		case <-time.After(100 * time.Millisecond):
			continue
		}
		for _, item := range subscription.Drain() {
			batch := item.(*pending.Batch)
			if batch.Tick < lastTick {
				t.Fatal("ticks regressed:", batch.Tick, "<", lastTick)
			}
			lastTick = batch.Tick
			for _, change := range batch.Changes {
				if change.Path == target {
					if !batch.Settled {
						t.Error("change delivered in unsettled batch")
					}
					if !change.New {
						t.Error("first observation not marked new")
					}
					return
				}
			}
		}
	}
	t.Error("settled batch containing change never published")
}

func TestRootIgnoredChanges(t *testing.T) {
	// Create a root directory with an ignored subdirectory configured via the
	// root configuration file.
	path := t.TempDir()
	configuration := []byte(`{"ignore_dirs": ["logs"]}`)
	if err := os.WriteFile(filepath.Join(path, RootConfigurationName), configuration, 0600); err != nil {
		t.Fatal("unable to write root configuration:", err)
	}
	if err := os.Mkdir(filepath.Join(path, "logs"), 0700); err != nil {
		t.Fatal("unable to create ignored directory:", err)
	}

	// Create and start the root.
	root, err := NewRoot(path, "/tmp/test.sock", testGlobalConfiguration(), nil)
	if err != nil {
		t.Fatal("unable to create root:", err)
	}
	if err := root.Start(); err != nil {
		t.Fatal("unable to start root:", err)
	}
	t.Cleanup(root.Stop)
	subscription := root.publisher.Subscribe()

	// Change a file in the ignored subtree, then a visible file.
	ignored := filepath.Join(path, "logs", "debug.log")
	if err := os.WriteFile(ignored, []byte("x"), 0600); err != nil {
		t.Fatal("unable to create ignored file:", err)
	}
	visible := filepath.Join(path, "visible.txt")
	if err := os.WriteFile(visible, []byte("x"), 0600); err != nil {
		t.Fatal("unable to create visible file:", err)
	}

	// Wait for the visible change and verify that the ignored one never
	// appears.
	expiry := time.Now().Add(5 * time.Second)
	sawVisible := false
	for time.Now().Before(expiry) && !sawVisible {
		select {
		case <-subscription.Signal():
		case <-time.After(100 * time.Millisecond):
			continue
		}
		for _, item := range subscription.Drain() {
			batch := item.(*pending.Batch)
			for _, change := range batch.Changes {
				if change.Path == ignored {
					t.Error("ignored change published")
				}
				if change.Path == visible {
					sawVisible = true
				}
			}
		}
	}
	if !sawVisible {
		t.Error("visible change never published")
	}
}

func TestRootTriggerEndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell environment")
	}

	// Create and start a root with an echo trigger for text files.
	root := startTestRoot(t)
	definition := &trigger.Definition{
		Name:        "echo-txt",
		Expression:  "*.txt",
		Command:     []string{"echo"},
		AppendFiles: true,
		Stdout:      ">spawned.log",
	}
	if disposition, err := root.SetTrigger(definition); err != nil {
		t.Fatal("unable to set trigger:", err)
	} else if disposition != TriggerCreated {
		t.Fatal("unexpected disposition:", disposition)
	}

	// Modify a non-matching file, synchronize, and verify that no spawn
	// occurred.
	if err := os.WriteFile(filepath.Join(root.Path(), "notes.md"), []byte("x"), 0600); err != nil {
		t.Fatal("unable to create non-matching file:", err)
	}
	if err := root.SyncToNow(5 * time.Second); err != nil {
		t.Fatal("cookie synchronization failed:", err)
	}
	time.Sleep(200 * time.Millisecond)
	output := filepath.Join(root.Path(), "spawned.log")
	if _, err := os.Lstat(output); !os.IsNotExist(err) {
		t.Fatal("non-matching change produced a spawn")
	}

	// Modify a matching file and verify that exactly one spawn occurs with
	// the file name conveyed via the argument list.
	if err := os.WriteFile(filepath.Join(root.Path(), "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal("unable to create matching file:", err)
	}
	expiry := time.Now().Add(5 * time.Second)
	for time.Now().Before(expiry) {
		if content, err := os.ReadFile(output); err == nil && len(content) > 0 {
			if strings.TrimSpace(string(content)) != "notes.txt" {
				t.Error("unexpected spawn output:", string(content))
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("matching change never produced a spawn")
}

func TestRootTriggerRedefinition(t *testing.T) {
	root := startTestRoot(t)

	// Create a trigger.
	definition := &trigger.Definition{
		Name:       "build",
		Expression: "**/*.go",
		Command:    []string{"make", "build"},
	}
	if disposition, err := root.SetTrigger(definition); err != nil {
		t.Fatal("unable to set trigger:", err)
	} else if disposition != TriggerCreated {
		t.Error("unexpected disposition:", disposition)
	}

	// An identical redefinition must leave it untouched.
	identical := *definition
	if disposition, err := root.SetTrigger(&identical); err != nil {
		t.Fatal("unable to redefine trigger:", err)
	} else if disposition != TriggerAlreadyDefined {
		t.Error("unexpected disposition:", disposition)
	}

	// A differing redefinition must replace it.
	differing := *definition
	differing.Command = []string{"make", "test"}
	if disposition, err := root.SetTrigger(&differing); err != nil {
		t.Fatal("unable to redefine trigger:", err)
	} else if disposition != TriggerReplaced {
		t.Error("unexpected disposition:", disposition)
	}

	// An invalid redefinition must fail without touching the existing
	// trigger.
	invalid := *definition
	invalid.Command = nil
	if _, err := root.SetTrigger(&invalid); err == nil {
		t.Error("invalid redefinition succeeded")
	}
	if triggers := root.Triggers(); len(triggers) != 1 {
		t.Error("unexpected trigger count:", len(triggers))
	} else if triggers[0].Command[1] != "test" {
		t.Error("failed redefinition modified existing trigger")
	}

	// Deletion must report existence correctly.
	if !root.DeleteTrigger("build") {
		t.Error("deletion of existing trigger reported missing")
	}
	if root.DeleteTrigger("build") {
		t.Error("deletion of missing trigger reported success")
	}
}
