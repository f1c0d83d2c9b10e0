package index

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/semlink/semlink/internal/persistence"
)

// Store holds the id → Entry mapping. Mutations preserve insertion order
// so similarity ties rank deterministically; All returns a snapshot copy
// so a Save racing a scan never observes partial state.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
	blobs   persistence.Store
}

// Item pairs an id with its entry for iteration.
type Item struct {
	ID    string
	Entry Entry
}

// NewStore creates an empty Store persisting through blobs.
func NewStore(blobs persistence.Store) *Store {
	return &Store{
		entries: make(map[string]Entry),
		blobs:   blobs,
	}
}

// Load replaces the in-memory mapping with the persisted snapshot. A
// missing blob leaves the store empty. Scan order after a load is sorted
// by id; insertion order is only meaningful within a session.
func (s *Store) Load() error {
	blob, err := s.blobs.Load()
	if err != nil {
		return fmt.Errorf("index load: %w", err)
	}

	entries := make(map[string]Entry)
	if blob != nil && len(blob.Index) > 0 {
		if err := json.Unmarshal(blob.Index, &entries); err != nil {
			return fmt.Errorf("index load: decode snapshot: %w", err)
		}
	}

	order := make([]string, 0, len(entries))
	for id := range entries {
		order = append(order, id)
	}
	sort.Strings(order)

	s.mu.Lock()
	s.entries = entries
	s.order = order
	s.mu.Unlock()

	log.Debug().Int("entries", len(entries)).Msg("index loaded")
	return nil
}

// Save writes the whole current mapping into the blob, preserving
// whatever settings the blob already carries.
func (s *Store) Save() error {
	s.mu.RLock()
	snapshot := make(map[string]Entry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = e
	}
	s.mu.RUnlock()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("index save: marshal snapshot: %w", err)
	}

	blob, err := s.blobs.Load()
	if err != nil {
		return fmt.Errorf("index save: %w", err)
	}
	if blob == nil {
		blob = &persistence.Blob{}
	}
	blob.Index = raw

	if err := s.blobs.Save(blob); err != nil {
		return fmt.Errorf("index save: %w", err)
	}
	return nil
}

// Get returns the entry for id.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Put creates or overwrites the entry for id.
func (s *Store) Put(id string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; !exists {
		s.order = append(s.order, id)
	}
	s.entries[id] = e
}

// Rename moves the entry from oldID to newID, keeping its position in
// the scan order. Renaming an absent id is a logged no-op.
func (s *Store) Rename(oldID, newID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[oldID]
	if !ok {
		log.Debug().Str("old", oldID).Str("new", newID).Msg("rename of unindexed note ignored")
		return
	}

	// If the target already exists the rename collapses two entries;
	// drop the target's old scan position.
	if _, exists := s.entries[newID]; exists {
		s.removeFromOrder(newID)
	}

	delete(s.entries, oldID)
	s.entries[newID] = e
	for i, id := range s.order {
		if id == oldID {
			s.order[i] = newID
			break
		}
	}
}

// Remove deletes the entry for id, if present.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return
	}
	delete(s.entries, id)
	s.removeFromOrder(id)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// All returns a snapshot of every entry in scan order.
func (s *Store) All() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, Item{ID: id, Entry: s.entries[id]})
	}
	return items
}

// removeFromOrder must be called with the write lock held.
func (s *Store) removeFromOrder(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
