package scan

import (
	"context"

	"github.com/micromdm/nanoprobe/runner"
)

// Session holds the operator's backend selection and the last report.
// It is used from a single goroutine.
type Session struct {
	scanner *Scanner
	backend runner.Backend
	last    *Report
}

// NewSession creates a new session scanning against b.
func NewSession(s *Scanner, b runner.Backend) *Session {
	return &Session{scanner: s, backend: b}
}

// Backend returns the selected backend.
func (s *Session) Backend() runner.Backend {
	return s.backend
}

// SetBackend selects b and drops every result gathered against the
// previous backend, even when b is unchanged.
func (s *Session) SetBackend(b runner.Backend) {
	s.backend = b
	s.last = nil
}

// Last returns the most recent report, or nil.
func (s *Session) Last() *Report {
	return s.last
}

// Scan runs a scan against the selected backend and keeps its report.
func (s *Session) Scan(ctx context.Context) (*Report, error) {
	r, err := s.scanner.Scan(ctx, s.backend)
	if r != nil {
		s.last = r
	}
	return r, err
}
