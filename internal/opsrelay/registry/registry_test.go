package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dimasma0305/opsrelay/internal/opsrelay/testutil"
)

func registryPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "subscribers.json")
}

func readPersisted(t *testing.T, path string) []int64 {
	t.Helper()
	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err, "reading persisted registry")
	var ids []int64
	testutil.AssertNoError(t, json.Unmarshal(data, &ids), "parsing persisted registry")
	return ids
}

func TestRegistry_AddPersistsSorted(t *testing.T) {
	path := registryPath(t)
	r := New(path)

	for _, id := range []int64{300, 100, 200} {
		changed, err := r.Add(id)
		testutil.AssertNoError(t, err, "adding subscriber")
		if !changed {
			t.Errorf("Add(%d) reported no change for a new subscriber", id)
		}
	}

	want := []int64{100, 200, 300}
	if diff := cmp.Diff(want, readPersisted(t, path)); diff != "" {
		t.Errorf("Persisted subscribers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, r.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_AddExistingDoesNotRewrite(t *testing.T) {
	path := registryPath(t)
	r := New(path)

	_, err := r.Add(100)
	testutil.AssertNoError(t, err, "adding subscriber")

	// Delete the backing file so any rewrite becomes observable.
	testutil.AssertNoError(t, os.Remove(path), "removing backing file")

	changed, err := r.Add(100)
	testutil.AssertNoError(t, err, "re-adding subscriber")
	if changed {
		t.Error("Add reported a change for an existing subscriber")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Adding an existing subscriber rewrote the backing file")
	}
}

func TestRegistry_RemovePersists(t *testing.T) {
	path := registryPath(t)
	r := New(path)

	for _, id := range []int64{100, 200} {
		_, err := r.Add(id)
		testutil.AssertNoError(t, err, "adding subscriber")
	}

	changed, err := r.Remove(100)
	testutil.AssertNoError(t, err, "removing subscriber")
	if !changed {
		t.Error("Remove reported no change for a present subscriber")
	}
	if diff := cmp.Diff([]int64{200}, readPersisted(t, path)); diff != "" {
		t.Errorf("Persisted subscribers mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_RemoveUnknownDoesNotRewrite(t *testing.T) {
	path := registryPath(t)
	r := New(path)

	_, err := r.Add(100)
	testutil.AssertNoError(t, err, "adding subscriber")
	testutil.AssertNoError(t, os.Remove(path), "removing backing file")

	changed, err := r.Remove(999)
	testutil.AssertNoError(t, err, "removing unknown subscriber")
	if changed {
		t.Error("Remove reported a change for an unknown subscriber")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Removing an unknown subscriber rewrote the backing file")
	}
}

func TestRegistry_LoadRoundTrip(t *testing.T) {
	path := registryPath(t)

	first := New(path)
	for _, id := range []int64{42, 7, 1000} {
		_, err := first.Add(id)
		testutil.AssertNoError(t, err, "adding subscriber")
	}

	second := New(path)
	testutil.AssertNoError(t, second.Load(), "loading persisted registry")
	if diff := cmp.Diff(first.Snapshot(), second.Snapshot()); diff != "" {
		t.Errorf("Reloaded subscribers mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_LoadMissingFile(t *testing.T) {
	r := New(registryPath(t))
	testutil.AssertNoError(t, r.Load(), "loading missing file")
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d subscribers", r.Len())
	}
}

func TestRegistry_LoadCorruptFile(t *testing.T) {
	path := registryPath(t)
	testutil.AssertNoError(t, os.WriteFile(path, []byte("{not json"), 0600), "writing corrupt file")

	r := New(path)
	err := r.Load()
	testutil.AssertError(t, err, "loading corrupt file")
	testutil.AssertContains(t, err.Error(), "parsing subscribers file")
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := New(registryPath(t))
	for _, id := range []int64{1, 2, 3} {
		_, err := r.Add(id)
		testutil.AssertNoError(t, err, "adding subscriber")
	}

	snap := r.Snapshot()
	snap[0] = 999

	if diff := cmp.Diff([]int64{1, 2, 3}, r.Snapshot()); diff != "" {
		t.Errorf("Mutating a snapshot changed the registry (-want +got):\n%s", diff)
	}
}

func TestRegistry_ConcurrentMutations(t *testing.T) {
	r := New(registryPath(t))

	const (
		concurrency = 8
		iterations  = 20
	)
	testutil.ConcurrentTest(t, concurrency, iterations, func(id int, iteration int) error {
		chatID := int64(id*1000 + iteration)
		if _, err := r.Add(chatID); err != nil {
			return err
		}
		_ = r.Snapshot()
		if iteration%2 == 1 {
			if _, err := r.Remove(chatID); err != nil {
				return err
			}
		}
		return nil
	})

	// Each worker keeps its even iterations.
	want := concurrency * iterations / 2
	if r.Len() != want {
		t.Errorf("Expected %d subscribers after concurrent mutations, got %d", want, r.Len())
	}
}
