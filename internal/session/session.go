package session

import (
	"log"
	"sync"

	"clickart/internal/generate"
)

// Session is the explicit session-wide state object: the submission
// store plus the attempted counter. Created empty at session start,
// emptied again by Reset. No ambient globals.
type Session struct {
	mu        sync.Mutex
	store     *Store
	attempted int
}

// New returns an empty session.
func New() *Session {
	return &Session{store: NewStore()}
}

// Store returns the session's submission store.
func (s *Session) Store() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// NoteAttempt counts a submission toward the global loading indicator.
// Callers invoke it only once a store record exists, so every counted
// attempt will eventually stream or fail and release the indicator.
func (s *Session) NoteAttempt() {
	s.mu.Lock()
	s.attempted++
	s.mu.Unlock()
}

// Attempted returns the total submissions attempted this session.
func (s *Session) Attempted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempted
}

// Reset tears the session down to its initial empty state. The previous
// store keeps serving any in-flight pumps but is no longer displayed.
func (s *Session) Reset() {
	s.mu.Lock()
	old := s.store
	old.mu.Lock()
	onChange := old.onChange
	old.mu.Unlock()
	next := NewStore()
	next.onChange = onChange
	s.store = next
	s.attempted = 0
	s.mu.Unlock()
}

// Track consumes a generation stream into the store until the terminal
// event or until the stream is abandoned. Errors from individual events
// are logged and skipped: a stale frame must not kill the stream, and a
// stream for a submission the store no longer knows simply drains.
func (s *Session) Track(id string, h *generate.Handle) {
	go func() {
		defer h.Close()
		store := s.Store()
		for ev := range h.Events() {
			var err error
			switch ev.Kind {
			case generate.EventFrame:
				err = store.RecordFrame(id, ev.Index, ev.Image)
			case generate.EventDone:
				err = store.RecordTerminal(id, StatusComplete, "")
			case generate.EventFailed:
				err = store.RecordTerminal(id, StatusFailed, ev.Reason)
			}
			if err != nil {
				log.Printf("[session] submission %s: %v", id, err)
			}
		}
	}()
}
