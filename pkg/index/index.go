package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const indexFile = "events.json"

// EventIndex maps task IDs to the calendar events created for them.
type EventIndex struct {
	Mappings map[int]string `json:"mappings"`
	Path     string         `json:"-"`
	mu       sync.RWMutex
	dirty    bool
}

// NewEventIndex opens the index in dir, loading it if it already exists.
func NewEventIndex(dir string) (*EventIndex, error) {
	idx := &EventIndex{
		Mappings: make(map[int]string),
		Path:     filepath.Join(dir, indexFile),
	}

	if _, err := os.Stat(idx.Path); err == nil {
		if err := idx.Load(); err != nil {
			return nil, err
		}
	}

	return idx, nil
}

func (idx *EventIndex) Load() error {
	f, err := os.Open(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	return json.NewDecoder(f).Decode(&idx.Mappings)
}

// Save writes the index if anything changed since the last load or save.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(idx.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(idx.Mappings); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

func (idx *EventIndex) Get(taskID int) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Mappings[taskID]
}

func (idx *EventIndex) Set(taskID int, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.Mappings[taskID] != eventID {
		idx.Mappings[taskID] = eventID
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(taskID int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.Mappings[taskID]; exists {
		delete(idx.Mappings, taskID)
		idx.dirty = true
	}
}

// Stale returns the task IDs in the index that are not in live, sorted.
func (idx *EventIndex) Stale(live map[int]bool) []int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var stale []int
	for taskID := range idx.Mappings {
		if !live[taskID] {
			stale = append(stale, taskID)
		}
	}
	sort.Ints(stale)
	return stale
}
