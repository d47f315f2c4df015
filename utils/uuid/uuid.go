// Package uuid generates scan and trace identifiers.
package uuid

import (
	"sync"

	"github.com/google/uuid"
)

// IDer generates identifiers.
type IDer interface {
	ID() string
}

// UUID generates random (version 4) UUIDs.
type UUID struct{}

// NewUUID creates a new UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// ID returns a new random UUID string.
func (u *UUID) ID() string {
	return uuid.NewString()
}

// StaticIDs cycles through a fixed list of IDs.
// It is safe for concurrent use, so it can also stand in for trace IDs.
type StaticIDs struct {
	mu  sync.Mutex
	ids []string
	i   int
}

// NewStaticIDs creates a generator cycling through ids.
func NewStaticIDs(ids ...string) *StaticIDs {
	return &StaticIDs{ids: ids}
}

// ID returns the next ID, wrapping around at the end of the list.
// An empty list yields empty IDs.
func (s *StaticIDs) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) < 1 {
		return ""
	}
	id := s.ids[s.i%len(s.ids)]
	s.i++
	return id
}
