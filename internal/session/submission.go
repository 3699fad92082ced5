// Package session tracks every generation submission made during one
// browsing session. The store is the single source of truth: frames are
// append-only, states move forward only, and the display list is fixed
// at creation time, so a presentation layer can re-render idempotently
// from any snapshot without coordinating with in-flight network work.
package session

import (
	"time"

	"clickart/internal/upload"
)

// Status describes a submission's lifecycle state.
type Status uint8

const (
	// StatusPending: submitted, no frames yet.
	StatusPending Status = iota
	// StatusStreaming: at least one frame received, not terminal.
	StatusStreaming
	// StatusComplete: terminal, generation succeeded.
	StatusComplete
	// StatusFailed: terminal, generation failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusStreaming:
		return "streaming"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Submission is one user-initiated generation request: a rasterized
// sketch reference paired with a prompt, tracked through its lifecycle.
type Submission struct {
	ID       string // locally generated at submit time
	ServerID string // attached later if the remote service issues one
	Prompt   string
	Input    upload.AssetRef   // uploaded raster reference
	Frames   []upload.AssetRef // append-only output sequence
	Status   Status
	Reason   string // failure reason, StatusFailed only
	Seq      int    // creation order index
	Created  time.Time
}

// Latest returns the current best output: the last recorded frame.
func (s *Submission) Latest() (upload.AssetRef, bool) {
	if len(s.Frames) == 0 {
		return "", false
	}
	return s.Frames[len(s.Frames)-1], true
}

func (s *Submission) clone() Submission {
	out := *s
	out.Frames = make([]upload.AssetRef, len(s.Frames))
	copy(out.Frames, s.Frames)
	return out
}
