package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vigilo-io/vigilo/pkg/encoding"
	"github.com/vigilo-io/vigilo/pkg/trigger"
)

func TestServiceWatchLifecycle(t *testing.T) {
	// Create a service.
	service := NewService("/tmp/test.sock", "", testGlobalConfiguration(), nil)
	defer service.Shutdown()

	// Register a watch.
	path := t.TempDir()
	if err := service.Watch(path); err != nil {
		t.Fatal("unable to watch root:", err)
	}

	// Re-registration must fail.
	if err := service.Watch(path); err == nil {
		t.Error("duplicate watch succeeded")
	}

	// The watch must be listed.
	if watches := service.WatchList(); len(watches) != 1 {
		t.Fatal("unexpected watch count:", len(watches))
	} else if watches[0].Path != path {
		t.Error("unexpected watch path:", watches[0].Path)
	}

	// Define a trigger and list it.
	definition := &trigger.Definition{
		Name:       "build",
		Expression: "**/*.go",
		Command:    []string{"make", "build"},
	}
	if disposition, err := service.Trigger(path, definition); err != nil {
		t.Fatal("unable to define trigger:", err)
	} else if disposition != TriggerCreated {
		t.Error("unexpected disposition:", disposition)
	}
	if triggers, err := service.TriggerList(path); err != nil {
		t.Fatal("unable to list triggers:", err)
	} else if len(triggers) != 1 || triggers[0].Name != "build" {
		t.Error("unexpected trigger listing")
	}

	// Trigger operations against unwatched roots must fail.
	if _, err := service.Trigger(t.TempDir(), definition); err == nil {
		t.Error("trigger operation against unwatched root succeeded")
	}

	// Delete the trigger.
	if deleted, err := service.TriggerDel(path, "build"); err != nil {
		t.Fatal("unable to delete trigger:", err)
	} else if !deleted {
		t.Error("deletion of existing trigger reported missing")
	}
	if deleted, err := service.TriggerDel(path, "build"); err != nil {
		t.Fatal("unable to re-delete trigger:", err)
	} else if deleted {
		t.Error("deletion of missing trigger reported success")
	}

	// Remove the watch.
	if deleted, err := service.WatchDel(path); err != nil {
		t.Fatal("unable to delete watch:", err)
	} else if !deleted {
		t.Error("deletion of existing watch reported missing")
	}
	if watches := service.WatchList(); len(watches) != 0 {
		t.Error("watch still listed after deletion")
	}
}

func TestServicePersistence(t *testing.T) {
	// Create a service persisting to a registry file in a temporary
	// directory.
	registry := filepath.Join(t.TempDir(), "state.json")
	service := NewService("/tmp/test.sock", registry, testGlobalConfiguration(), nil)
	defer service.Shutdown()

	// Register a watch and define a trigger, both of which must persist.
	path := t.TempDir()
	if err := service.Watch(path); err != nil {
		t.Fatal("unable to watch root:", err)
	}
	definition := &trigger.Definition{
		Name:       "build",
		Expression: "**/*.go",
		Command:    []string{"make", "build"},
	}
	if _, err := service.Trigger(path, definition); err != nil {
		t.Fatal("unable to define trigger:", err)
	}
	if _, err := os.Lstat(registry); err != nil {
		t.Fatal("trigger definition not persisted:", err)
	}

	// An identical redefinition must not rewrite the registry.
	if err := os.Remove(registry); err != nil {
		t.Fatal("unable to remove registry:", err)
	}
	identical := *definition
	if disposition, err := service.Trigger(path, &identical); err != nil {
		t.Fatal("unable to redefine trigger:", err)
	} else if disposition != TriggerAlreadyDefined {
		t.Fatal("unexpected disposition:", disposition)
	}
	if _, err := os.Lstat(registry); !os.IsNotExist(err) {
		t.Error("identical redefinition rewrote the registry")
	}

	// A differing redefinition must persist the replacement.
	differing := *definition
	differing.Command = []string{"make", "test"}
	if disposition, err := service.Trigger(path, &differing); err != nil {
		t.Fatal("unable to redefine trigger:", err)
	} else if disposition != TriggerReplaced {
		t.Fatal("unexpected disposition:", disposition)
	}
	saved := &savedState{}
	if err := encoding.LoadAndUnmarshalJSON(registry, saved); err != nil {
		t.Fatal("unable to load registry:", err)
	}
	if len(saved.Watches) != 1 || len(saved.Watches[0].Triggers) != 1 {
		t.Fatal("unexpected registry contents")
	} else if saved.Watches[0].Triggers[0].Command[1] != "test" {
		t.Error("registry does not reflect replacement")
	}

	// Deleting a missing trigger must not rewrite the registry.
	if err := os.Remove(registry); err != nil {
		t.Fatal("unable to remove registry:", err)
	}
	if deleted, err := service.TriggerDel(path, "missing"); err != nil {
		t.Fatal("unable to attempt deletion:", err)
	} else if deleted {
		t.Error("deletion of missing trigger reported success")
	}
	if _, err := os.Lstat(registry); !os.IsNotExist(err) {
		t.Error("failed deletion rewrote the registry")
	}

	// Deleting an existing trigger must persist.
	if deleted, err := service.TriggerDel(path, "build"); err != nil {
		t.Fatal("unable to delete trigger:", err)
	} else if !deleted {
		t.Fatal("deletion of existing trigger reported missing")
	}
	if _, err := os.Lstat(registry); err != nil {
		t.Error("deletion not persisted:", err)
	}
}

func TestServiceLoad(t *testing.T) {
	// Populate a registry with a first service instance.
	registry := filepath.Join(t.TempDir(), "state.json")
	path := t.TempDir()
	first := NewService("/tmp/test.sock", registry, testGlobalConfiguration(), nil)
	if err := first.Watch(path); err != nil {
		t.Fatal("unable to watch root:", err)
	}
	definition := &trigger.Definition{
		Name:       "build",
		Expression: "**/*.go",
		Command:    []string{"make", "build"},
	}
	if _, err := first.Trigger(path, definition); err != nil {
		t.Fatal("unable to define trigger:", err)
	}
	first.Shutdown()

	// A second instance must restore the watch and trigger from it.
	second := NewService("/tmp/test.sock", registry, testGlobalConfiguration(), nil)
	defer second.Shutdown()
	if err := second.Load(); err != nil {
		t.Fatal("unable to load state:", err)
	}
	if watches := second.WatchList(); len(watches) != 1 || watches[0].Path != path {
		t.Error("watch not restored")
	}
	if triggers, err := second.TriggerList(path); err != nil {
		t.Fatal("unable to list triggers:", err)
	} else if len(triggers) != 1 || triggers[0].Name != "build" {
		t.Error("trigger not restored")
	}
}

func TestServiceMonitorImmediate(t *testing.T) {
	// Create a service.
	service := NewService("/tmp/test.sock", "", testGlobalConfiguration(), nil)
	defer service.Shutdown()

	// A monitor request with no previous index must return immediately.
	index, watches, err := service.Monitor(context.Background(), 0)
	if err != nil {
		t.Fatal("monitor failed:", err)
	}
	if index == 0 {
		t.Error("monitor returned zero index")
	}
	if len(watches) != 0 {
		t.Error("monitor returned unexpected watches")
	}
}

func TestServiceMonitorCancellation(t *testing.T) {
	// Create a service.
	service := NewService("/tmp/test.sock", "", testGlobalConfiguration(), nil)
	defer service.Shutdown()

	// Compute the current index.
	index, _, err := service.Monitor(context.Background(), 0)
	if err != nil {
		t.Fatal("monitor failed:", err)
	}

	// A monitor request for a future index must unblock on context
	// cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := service.Monitor(ctx, index); err == nil {
		t.Error("cancelled monitor succeeded")
	}
}
