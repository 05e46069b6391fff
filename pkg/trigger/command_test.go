package trigger

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/vigilo-io/vigilo/pkg/pending"
	"github.com/vigilo-io/vigilo/pkg/state"
)

// awaitFileContent polls for the specified file to appear and returns its
// content, failing the test if the deadline elapses.
func awaitFileContent(t *testing.T, path string, deadline time.Duration) string {
	t.Helper()
	expiry := time.Now().Add(deadline)
	for time.Now().Before(expiry) {
		if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
			return string(content)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for file:", path)
	return ""
}

func TestCommandSpawnsOnMatch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell environment")
	}

	// Create a root with a matching file.
	root := t.TempDir()
	matching := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(matching, []byte("hello"), 0600); err != nil {
		t.Fatal("unable to create test file:", err)
	}

	// Create a command that echoes matched names into a redirection target.
	definition := &Definition{
		Name:        "echo-txt",
		Expression:  "*.txt",
		Command:     []string{"echo"},
		AppendFiles: true,
		Stdout:      ">out.log",
	}
	command, err := NewCommand(root, "/tmp/test.sock", definition, nil)
	if err != nil {
		t.Fatal("unable to create command:", err)
	}

	// Start the command against a publisher and defer its stop.
	publisher := state.NewPublisher()
	command.Start(publisher.Subscribe())
	defer command.Stop()

	// Publish a settled batch containing only a non-matching change, then one
	// containing the matching change.
	publisher.Publish(&pending.Batch{
		Tick:    1,
		Settled: true,
		Changes: []*pending.Change{
			{Path: filepath.Join(root, "notes.log"), ObservedAt: time.Now()},
		},
	})
	publisher.Publish(&pending.Batch{
		Tick:    2,
		Settled: true,
		Changes: []*pending.Change{
			{Path: matching, ObservedAt: time.Now()},
		},
	})

	// The second batch should produce exactly one spawn with the matched name
	// appended to the argument list.
	content := awaitFileContent(t, filepath.Join(root, "out.log"), 5*time.Second)
	if strings.TrimSpace(content) != "notes.txt" {
		t.Error("unexpected spawn output:", content)
	}
}

func TestCommandIgnoresUnsettledBatches(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell environment")
	}

	// Create a root with a matching file.
	root := t.TempDir()
	matching := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(matching, []byte("hello"), 0600); err != nil {
		t.Fatal("unable to create test file:", err)
	}

	// Create and start a command, deferring its stop.
	definition := &Definition{
		Name:        "echo-txt",
		Expression:  "*.txt",
		Command:     []string{"echo"},
		AppendFiles: true,
		Stdout:      ">out.log",
	}
	command, err := NewCommand(root, "/tmp/test.sock", definition, nil)
	if err != nil {
		t.Fatal("unable to create command:", err)
	}
	publisher := state.NewPublisher()
	command.Start(publisher.Subscribe())
	defer command.Stop()

	// Publish an unsettled batch containing the matching change and ensure
	// that no spawn occurs.
	publisher.Publish(&pending.Batch{
		Tick: 1,
		Changes: []*pending.Change{
			{Path: matching, ObservedAt: time.Now()},
		},
	})
	time.Sleep(500 * time.Millisecond)
	if _, err := os.Lstat(filepath.Join(root, "out.log")); !os.IsNotExist(err) {
		t.Error("unsettled batch produced a spawn")
	}
}

func TestCommandStdinNamesBounded(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell environment")
	}

	// Create a root with two matching files.
	root := t.TempDir()
	first := filepath.Join(root, "a.go")
	second := filepath.Join(root, "b.go")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte("package main"), 0600); err != nil {
			t.Fatal("unable to create test file:", err)
		}
	}

	// Create a command that copies standard input to a file, bounded to a
	// single enumerated name.
	definition := &Definition{
		Name:          "collect",
		Expression:    "*.go",
		Command:       []string{"sh", "-c", "cat > received.txt"},
		Stdin:         StdinModeNames,
		MaxFilesStdin: 1,
	}
	command, err := NewCommand(root, "/tmp/test.sock", definition, nil)
	if err != nil {
		t.Fatal("unable to create command:", err)
	}
	publisher := state.NewPublisher()
	command.Start(publisher.Subscribe())
	defer command.Stop()

	// Publish a settled batch with both changes.
	publisher.Publish(&pending.Batch{
		Tick:    1,
		Settled: true,
		Changes: []*pending.Change{
			{Path: first, ObservedAt: time.Now()},
			{Path: second, ObservedAt: time.Now()},
		},
	})

	// Only the first name should have been enumerated.
	content := awaitFileContent(t, filepath.Join(root, "received.txt"), 5*time.Second)
	if strings.TrimSpace(content) != "a.go" {
		t.Error("unexpected stdin enumeration:", content)
	}
}

func TestCommandInjectsEnvironment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell environment")
	}

	// Create a root with a matching file.
	root := t.TempDir()
	matching := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(matching, []byte("hello"), 0600); err != nil {
		t.Fatal("unable to create test file:", err)
	}

	// Create a command that records the injected environment.
	definition := &Definition{
		Name:       "env-probe",
		Expression: "*.txt",
		Command:    []string{"sh", "-c", `echo "$VIGILO_ROOT|$VIGILO_SOCK|$VIGILO_TRIGGER" > env.txt`},
	}
	command, err := NewCommand(root, "/tmp/test.sock", definition, nil)
	if err != nil {
		t.Fatal("unable to create command:", err)
	}
	publisher := state.NewPublisher()
	command.Start(publisher.Subscribe())
	defer command.Stop()

	// Publish a settled batch with the matching change.
	publisher.Publish(&pending.Batch{
		Tick:    1,
		Settled: true,
		Changes: []*pending.Change{
			{Path: matching, ObservedAt: time.Now()},
		},
	})

	// Verify the environment contract.
	content := strings.TrimSpace(awaitFileContent(t, filepath.Join(root, "env.txt"), 5*time.Second))
	expected := root + "|/tmp/test.sock|env-probe"
	if content != expected {
		t.Error("unexpected environment:", content, "!=", expected)
	}
}

func TestCommandStopIsSynchronous(t *testing.T) {
	// Create a command and start it.
	definition := validDefinition()
	command, err := NewCommand(t.TempDir(), "/tmp/test.sock", definition, nil)
	if err != nil {
		t.Fatal("unable to create command:", err)
	}
	publisher := state.NewPublisher()
	command.Start(publisher.Subscribe())

	// Stop it and ensure that it can be safely discarded afterward.
	command.Stop()
	command.Drop()
}

func TestCommandDropWithoutStart(t *testing.T) {
	definition := validDefinition()
	command, err := NewCommand(t.TempDir(), "/tmp/test.sock", definition, nil)
	if err != nil {
		t.Fatal("unable to create command:", err)
	}
	command.Drop()
}
