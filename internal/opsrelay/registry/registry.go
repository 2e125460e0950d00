// Package registry tracks broadcast subscribers and persists them between runs.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dimasma0305/opsrelay/internal/opsrelay/errors"
)

// Registry is the set of chat IDs that receive scheduled broadcasts.
// Every mutation rewrites the backing file so the set survives restarts.
type Registry struct {
	path string

	mu  sync.Mutex
	ids map[int64]struct{}
}

// New creates a registry backed by the given file. Call Load to read
// any previously persisted subscribers.
func New(path string) *Registry {
	return &Registry{
		path: path,
		ids:  make(map[int64]struct{}),
	}
}

// Load reads the persisted subscriber set. A missing file is not an
// error and leaves the set empty.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "reading subscribers file")
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return errors.Wrap(err, "parsing subscribers file")
	}

	r.ids = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
	return nil
}

// Add inserts a chat ID and rewrites the backing file. It reports
// whether the set changed; adding an existing subscriber is a no-op
// and does not touch the file.
func (r *Registry) Add(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; ok {
		return false, nil
	}
	r.ids[id] = struct{}{}
	return true, r.persistLocked()
}

// Remove deletes a chat ID and rewrites the backing file. Removing an
// unknown subscriber is a no-op and does not touch the file.
func (r *Registry) Remove(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; !ok {
		return false, nil
	}
	delete(r.ids, id)
	return true, r.persistLocked()
}

// Snapshot returns the current subscribers sorted by chat ID. The
// returned slice is a copy and stays valid while the set mutates.
func (r *Registry) Snapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked()
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *Registry) sortedLocked() []int64 {
	ids := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) persistLocked() error {
	data, err := json.Marshal(r.sortedLocked())
	if err != nil {
		return errors.Wrap(err, "encoding subscribers")
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.Wrap(err, "creating subscribers directory")
		}
	}
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return errors.Wrap(err, "writing subscribers file")
	}
	return nil
}
