package keystore

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrEmptyKey is returned when upserting an empty key.
	ErrEmptyKey = errors.New("keystore: key cannot be empty")

	// ErrInvalidStatus is returned for statuses other than valid or blocked.
	ErrInvalidStatus = errors.New("keystore: invalid status")
)

// Entry is the stored state of one key.
type Entry struct {
	Status Status
	// UpdatedAt carries a monotonic clock reading.
	UpdatedAt time.Time
}

// Store is a concurrent key → status table.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Entries are replaced whole under the write lock, so readers see either
//     the old or the new entry.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Lookup returns the key's status, or StatusUnknown if it was never seen.
func (s *Store) Lookup(key string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key].Status
}

// Get returns the full entry for key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Upsert records status for key. Repeating the same status is harmless.
//
// Returns:
//   - Entry: The entry now stored
//   - error: ErrEmptyKey or ErrInvalidStatus; the store is unchanged on error
func (s *Store) Upsert(key string, status Status) (Entry, error) {
	if key == "" {
		return Entry{}, ErrEmptyKey
	}
	if status != StatusValid && status != StatusBlocked {
		return Entry{}, ErrInvalidStatus
	}

	e := Entry{Status: status, UpdatedAt: s.now()}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()

	return e, nil
}

// Len returns the number of known keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Counts returns the number of valid and blocked keys.
func (s *Store) Counts() (valid, blocked int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		switch e.Status {
		case StatusValid:
			valid++
		case StatusBlocked:
			blocked++
		}
	}
	return valid, blocked
}

// Keys returns the keys currently in the given status, sorted.
func (s *Store) Keys(status Status) []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if e.Status == status {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}
