package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"clickart/internal/upload"
)

var (
	// ErrDuplicateSubmission signals that an identical (prompt, image)
	// pair is already in flight. Expected control flow, not a failure.
	ErrDuplicateSubmission = errors.New("identical submission already in progress")
	// ErrUnknownSubmission is returned for ids the store has never seen.
	ErrUnknownSubmission = errors.New("unknown submission")
	// ErrStaleFrame rejects a frame whose index is not the next expected
	// one; the store is unchanged.
	ErrStaleFrame = errors.New("stale or out-of-order frame")
	// ErrAlreadyTerminal rejects mutations of a finished submission.
	ErrAlreadyTerminal = errors.New("submission already terminal")
	// ErrTerminalConflict reports an attempt to flip a terminal
	// submission to a different terminal outcome, which is a logic error.
	ErrTerminalConflict = errors.New("conflicting terminal outcome")
)

// Store is the ordered collection of all submissions made during the
// session. All operations are atomic with respect to each other.
type Store struct {
	mu    sync.Mutex
	subs  map[string]*Submission
	order []string // ids in creation order
	seq   int

	// onChange, when set, runs after every successful mutation, outside
	// the lock. Used to push live updates to preview clients.
	onChange func()
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[string]*Submission)}
}

// OnChange registers a hook invoked after every successful mutation.
func (st *Store) OnChange(fn func()) {
	st.mu.Lock()
	st.onChange = fn
	st.mu.Unlock()
}

func (st *Store) notify() {
	st.mu.Lock()
	fn := st.onChange
	st.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Create inserts a new pending submission at the head of display order
// and returns its id. An existing non-terminal submission with the same
// (prompt, image) pair rejects the call with ErrDuplicateSubmission and
// leaves the store unchanged.
func (st *Store) Create(prompt string, image upload.AssetRef) (string, error) {
	st.mu.Lock()
	for _, id := range st.order {
		s := st.subs[id]
		if !s.Status.Terminal() && s.Prompt == prompt && s.Input == image {
			st.mu.Unlock()
			return "", ErrDuplicateSubmission
		}
	}

	sub := &Submission{
		ID:      uuid.NewString(),
		Prompt:  prompt,
		Input:   image,
		Status:  StatusPending,
		Seq:     st.seq,
		Created: time.Now(),
	}
	st.seq++
	st.subs[sub.ID] = sub
	st.order = append(st.order, sub.ID)
	st.mu.Unlock()

	log.Printf("[store] created submission %s (seq %d)", sub.ID, sub.Seq)
	st.notify()
	return sub.ID, nil
}

// Attach records the server-assigned id for a submission, used for
// shareable links.
func (st *Store) Attach(id, serverID string) error {
	st.mu.Lock()
	s, ok := st.subs[id]
	if !ok {
		st.mu.Unlock()
		return fmt.Errorf("attach %q: %w", id, ErrUnknownSubmission)
	}
	s.ServerID = serverID
	st.mu.Unlock()
	st.notify()
	return nil
}

// RecordFrame appends one output frame. The index must equal the current
// frame count (strict append); anything else is rejected with
// ErrStaleFrame and the store is unchanged. The first frame moves the
// submission from pending to streaming.
func (st *Store) RecordFrame(id string, index int, image upload.AssetRef) error {
	st.mu.Lock()
	s, ok := st.subs[id]
	if !ok {
		st.mu.Unlock()
		return fmt.Errorf("frame for %q: %w", id, ErrUnknownSubmission)
	}
	if s.Status.Terminal() {
		st.mu.Unlock()
		return fmt.Errorf("frame %d for %q: %w", index, id, ErrAlreadyTerminal)
	}
	if index != len(s.Frames) {
		st.mu.Unlock()
		return fmt.Errorf("frame %d for %q (have %d): %w", index, id, len(s.Frames), ErrStaleFrame)
	}
	s.Frames = append(s.Frames, image)
	if s.Status == StatusPending {
		s.Status = StatusStreaming
	}
	st.mu.Unlock()
	st.notify()
	return nil
}

// RecordTerminal moves a submission to complete or failed. Repeating the
// same outcome is idempotent; flipping a terminal submission to the
// other terminal state is rejected with ErrTerminalConflict.
func (st *Store) RecordTerminal(id string, outcome Status, reason string) error {
	if !outcome.Terminal() {
		return fmt.Errorf("record terminal %q: %s is not a terminal status", id, outcome)
	}
	st.mu.Lock()
	s, ok := st.subs[id]
	if !ok {
		st.mu.Unlock()
		return fmt.Errorf("terminal for %q: %w", id, ErrUnknownSubmission)
	}
	if s.Status.Terminal() {
		prev := s.Status
		st.mu.Unlock()
		if prev == outcome {
			return nil
		}
		return fmt.Errorf("terminal for %q: %s then %s: %w", id, prev, outcome, ErrTerminalConflict)
	}
	s.Status = outcome
	if outcome == StatusFailed {
		s.Reason = reason
	}
	st.mu.Unlock()

	log.Printf("[store] submission %s -> %s", id, outcome)
	st.notify()
	return nil
}

// Get returns a copy of the submission with the given local or
// server-assigned id.
func (st *Store) Get(id string) (Submission, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.subs[id]; ok {
		return s.clone(), true
	}
	for _, s := range st.subs {
		if s.ServerID != "" && s.ServerID == id {
			return s.clone(), true
		}
	}
	return Submission{}, false
}

// ListForDisplay returns copies of all submissions, newest first. The
// ordering is fixed at creation time: a submission never moves in the
// list as frames stream in.
func (st *Store) ListForDisplay() []Submission {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Submission, 0, len(st.order))
	for i := len(st.order) - 1; i >= 0; i-- {
		out = append(out, st.subs[st.order[i]].clone())
	}
	return out
}

// Len returns the number of submissions in the store.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.order)
}

// Progressed counts submissions that have reached at least streaming.
// The presentation layer compares it against the attempted count to
// decide whether a global loading indicator is warranted.
func (st *Store) Progressed() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for _, s := range st.subs {
		if s.Status >= StatusStreaming {
			n++
		}
	}
	return n
}
