package domain

import (
	"sync"
	"time"
)

// IDSource hands out request identifiers derived from the wall clock in
// Unix milliseconds. Ids are strictly increasing: when the clock has not
// moved past the last id, the next one is last+1.
type IDSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDSource creates an IDSource backed by time.Now.
func NewIDSource() *IDSource {
	return &IDSource{now: time.Now}
}

// Next returns a fresh identifier.
func (s *IDSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

// Observe makes sure future ids are greater than id. Used after loading
// persisted requests whose ids may be ahead of the local clock.
func (s *IDSource) Observe(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.last {
		s.last = id
	}
}

var defaultIDs = NewIDSource()

// NextRequestID returns an id from the process-wide IDSource.
func NextRequestID() int64 {
	return defaultIDs.Next()
}

// ObserveRequestID feeds id into the process-wide IDSource.
func ObserveRequestID(id int64) {
	defaultIDs.Observe(id)
}
