// Package session holds stateful interactive debug sessions over a
// precomputed Lang-B trace, and interprets step/next/out/continue/
// setBreakpoint commands against them.
package session

import (
	"sync"

	"github.com/vru6650/tracehost/internal/idgen"
	"github.com/vru6650/tracehost/internal/traceapi"
	"github.com/vru6650/tracehost/pkg/logflags"
)

// Session is one debugger's worth of state over an already-produced
// TraceDocument: a navigation pointer and a set of breakpoint lines, each
// with an optional Starlark condition.
type Session struct {
	ID     string
	Events []traceapi.TraceEvent

	mu          sync.Mutex
	pointer     int
	breakpoints map[uint32]string // line -> condition ("" means unconditional)
}

// newSession seeds its breakpoint set from lines, unconditional (empty
// condition), so breakpoints supplied at start time behave the same as
// ones added later via setBreakpoint.
func newSession(events []traceapi.TraceEvent, lines []uint32) *Session {
	breakpoints := make(map[uint32]string, len(lines))
	for _, line := range lines {
		breakpoints[line] = ""
	}
	return &Session{
		ID:          idgen.New(),
		Events:      events,
		pointer:     -1,
		breakpoints: breakpoints,
	}
}

// Store is a process-wide, concurrency-safe registry of debug sessions,
// grounded on delve's Debugger pairing a coarse map-level lock (here, the
// store's RWMutex) with a finer per-object lock (here, each Session's own
// mutex guarding its pointer and breakpoint set).
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: map[string]*Session{}}
}

// Create registers a new session over events, seeded with breakpoints at
// the given lines, and returns it.
func (s *Store) Create(events []traceapi.TraceEvent, breakpoints []uint32) *Session {
	sess := newSession(events, breakpoints)
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	logflags.SessionLogger().WithField("sessionId", sess.ID).Debug("created debug session")
	return sess
}

// Lookup returns the session for id, or nil if none exists.
func (s *Store) Lookup(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Destroy removes a session from the store, if present.
func (s *Store) Destroy(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}
