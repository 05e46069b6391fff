package pending

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCollectionEmpty(t *testing.T) {
	var collection Collection
	if !collection.Empty() {
		t.Error("zero-valued collection not empty")
	}
	if changes := collection.DrainAll(); changes != nil {
		t.Error("drain of empty collection returned entries")
	}
}

func TestCollectionCoalescing(t *testing.T) {
	// Create a collection and record two observations of the same path with
	// one other path in between.
	var collection Collection
	first := time.Now()
	second := first.Add(time.Second)
	collection.Add("/root/a", first, ViaNotify)
	collection.Add("/root/b", first, ViaNotify)
	collection.Add("/root/a", second, ViaCrawl)

	// Drain and verify coalescing behavior.
	changes := collection.DrainAll()
	if len(changes) != 2 {
		t.Fatal("coalescing failed: expected 2 entries, got", len(changes))
	}
	if changes[0].Path != "/root/a" || changes[1].Path != "/root/b" {
		t.Error("first-arrival ordering not preserved")
	}
	if !changes[0].ObservedAt.Equal(second) {
		t.Error("re-observation did not supersede observation time")
	}
	if changes[0].Flags != ViaNotify|ViaCrawl {
		t.Error("re-observation did not merge source flags")
	}

	// Ensure the drain emptied the collection.
	if !collection.Empty() {
		t.Error("collection not empty after drain")
	}
}

func TestCollectionDrainResets(t *testing.T) {
	// Drain a populated collection and ensure that a subsequent add for a
	// previously drained path creates a fresh entry.
	var collection Collection
	collection.Add("/root/a", time.Now(), ViaNotify)
	collection.DrainAll()
	collection.Add("/root/a", time.Now(), ViaNotify)
	if changes := collection.DrainAll(); len(changes) != 1 {
		t.Error("add after drain did not create a fresh entry")
	}
}

func TestCollectionConcurrentAdds(t *testing.T) {
	// Perform concurrent adds across a fixed path set with interleaved drains
	// and ensure that no path is ever lost or duplicated within a batch.
	var collection Collection
	var wait sync.WaitGroup
	for w := 0; w < 4; w++ {
		wait.Add(1)
		go func(w int) {
			defer wait.Done()
			for i := 0; i < 100; i++ {
				collection.Add(fmt.Sprintf("/root/%d", i%10), time.Now(), ViaNotify)
			}
		}(w)
	}
	wait.Wait()

	// Verify per-path uniqueness.
	seen := make(map[string]bool)
	for _, change := range collection.DrainAll() {
		if seen[change.Path] {
			t.Fatal("duplicate entry for path:", change.Path)
		}
		seen[change.Path] = true
	}
	if len(seen) != 10 {
		t.Error("unexpected number of coalesced paths:", len(seen))
	}
}
