// Package requests holds the request collection of a single workspace.
package requests

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

// RecentLimit is how many requests Recent yields.
const RecentLimit = 3

// Store is an ordered collection of requests plus a selected-request
// pointer. All methods are safe for concurrent use; every mutation is a
// read-modify-write of the whole collection under one lock.
type Store struct {
	mu       sync.RWMutex
	requests []domain.Request
	selected *int64
	nextID   func() int64
	onChange func()
}

// NewStore creates a store seeded with requests (copied) and selection.
// Duplicate ids keep their first occurrence.
func NewStore(requests []domain.Request, selected *int64) *Store {
	s := &Store{nextID: domain.NextRequestID}
	s.replace(requests, selected)
	return s
}

// SetOnChange registers fn to run after every mutation. fn runs outside
// the store lock and may read the store.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Store) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Create appends a default request with a fresh id, selects it and
// returns it.
func (s *Store) Create() domain.Request {
	s.mu.Lock()
	r := domain.NewRequest(s.allocID())
	s.requests = append(s.requests, r)
	s.selected = &r.ID
	s.mu.Unlock()

	s.notify()
	return r.Clone()
}

// allocID returns an id not yet used in the store. Callers hold s.mu.
func (s *Store) allocID() int64 {
	for {
		id := s.nextID()
		if s.indexOf(id) < 0 {
			return id
		}
	}
}

// Select points the selection at id without checking that it exists.
// A dangling selection reads as no selection.
func (s *Store) Select(id int64) {
	s.mu.Lock()
	s.selected = &id
	s.mu.Unlock()
	s.notify()
}

// SelectExisting is Select that fails when id is not in the store.
func (s *Store) SelectExisting(id int64) error {
	s.mu.Lock()
	if s.indexOf(id) < 0 {
		s.mu.Unlock()
		return apperrors.New(apperrors.KindInvalidInput, "Request Not Found",
			fmt.Errorf("%w: %d", apperrors.ErrRequestNotFound, id))
	}
	s.selected = &id
	s.mu.Unlock()
	s.notify()
	return nil
}

// ClearSelection unsets the selected request.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.notify()
}

// Selected returns the selected request. A selection naming a request
// that no longer exists is cleared and reported as none.
func (s *Store) Selected() (domain.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return domain.Request{}, false
	}
	i := s.indexOf(*s.selected)
	if i < 0 {
		s.selected = nil
		return domain.Request{}, false
	}
	return s.requests[i].Clone(), true
}

// SelectedID returns the raw selection pointer value, dangling or not.
func (s *Store) SelectedID() *int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyID(s.selected)
}

// Get returns the request with the given id.
func (s *Store) Get(id int64) (domain.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.Request{}, false
	}
	return s.requests[i].Clone(), true
}

// Update applies updates to the request with the given id. It reports
// false, and changes nothing, when no such request exists.
func (s *Store) Update(id int64, updates ...domain.Update) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.requests[i] = domain.Apply(s.requests[i], updates...)
	s.mu.Unlock()

	s.notify()
	return true
}

// Delete removes the request with the given id, clearing the selection
// when it pointed there. It reports whether anything was removed.
func (s *Store) Delete(id int64) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.requests = slices.Delete(s.requests, i, i+1)
	if s.selected != nil && *s.selected == id {
		s.selected = nil
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// Duplicate inserts a copy of the request right after it, under a new id
// and a "(copy)" name, and selects the copy.
func (s *Store) Duplicate(id int64) (domain.Request, bool) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.Request{}, false
	}
	dup := s.requests[i].Clone()
	dup.ID = s.allocID()
	dup.Name = dup.Name + " (copy)"
	dup.CreatedAt = domain.Timestamp(time.Now())
	s.requests = slices.Insert(s.requests, i+1, dup)
	s.selected = &dup.ID
	s.mu.Unlock()

	s.notify()
	return dup.Clone(), true
}

// Move places the request at index, clamped to the collection bounds.
func (s *Store) Move(id int64, index int) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	r := s.requests[i]
	s.requests = slices.Delete(s.requests, i, i+1)
	index = max(0, min(index, len(s.requests)))
	s.requests = slices.Insert(s.requests, index, r)
	s.mu.Unlock()

	s.notify()
	return true
}

// Replace swaps the whole collection and selection, as after an import.
func (s *Store) Replace(requests []domain.Request, selected *int64) {
	s.mu.Lock()
	s.replace(requests, selected)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) replace(requests []domain.Request, selected *int64) {
	seen := make(map[int64]bool, len(requests))
	out := make([]domain.Request, 0, len(requests))
	for _, r := range requests {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		domain.ObserveRequestID(r.ID)
		out = append(out, r.Clone())
	}
	s.requests = out
	s.selected = copyID(selected)
}

// List returns a copy of all requests in store order.
func (s *Store) List() []domain.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyAll()
}

// Len returns the number of requests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

// Snapshot returns the collection and the selection in one consistent read.
func (s *Store) Snapshot() ([]domain.Request, *int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyAll(), copyID(s.selected)
}

// Favorites yields the favorite requests in store order. Each range over
// the sequence is a fresh pass over the collection as it is at that time.
func (s *Store) Favorites() iter.Seq[domain.Request] {
	return func(yield func(domain.Request) bool) {
		for _, r := range s.List() {
			if r.Favorite && !yield(r) {
				return
			}
		}
	}
}

// Recent yields the first RecentLimit requests in store order. This is
// insertion order, not creation time.
func (s *Store) Recent() iter.Seq[domain.Request] {
	return func(yield func(domain.Request) bool) {
		all := s.List()
		for _, r := range all[:min(RecentLimit, len(all))] {
			if !yield(r) {
				return
			}
		}
	}
}

// Search returns the requests whose name, method or URL fuzzily match
// term, best match first. An empty term matches everything in store order.
func (s *Store) Search(term string) []domain.Request {
	all := s.List()
	term = strings.TrimSpace(term)
	if term == "" {
		return all
	}

	targets := make([]string, len(all))
	for i, r := range all {
		targets[i] = strings.Join([]string{r.Name, string(r.Method), r.URL}, " ")
	}

	ranks := fuzzy.RankFindNormalizedFold(term, targets)
	slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.OriginalIndex, b.OriginalIndex))
	})

	out := make([]domain.Request, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, all[rank.OriginalIndex])
	}
	return out
}

func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.requests, func(r domain.Request) bool { return r.ID == id })
}

func (s *Store) copyAll() []domain.Request {
	out := make([]domain.Request, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.Clone()
	}
	return out
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
