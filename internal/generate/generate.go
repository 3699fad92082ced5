// Package generate submits an uploaded sketch plus a text prompt to the
// external generative-image service and streams its multi-step output.
package generate

import (
	"context"

	"clickart/internal/upload"
)

// EventKind discriminates the events of a submission stream.
type EventKind int

const (
	// EventFrame carries one intermediate or final output image.
	EventFrame EventKind = iota
	// EventDone terminates a successful stream.
	EventDone
	// EventFailed terminates a failed stream with a reason.
	EventFailed
)

// Event is one element of a submission stream: zero or more frames with
// strictly increasing indices from 0, then exactly one terminal event.
type Event struct {
	Kind   EventKind
	Index  int             // frame index, EventFrame only
	Image  upload.AssetRef // frame image, EventFrame only
	Reason string          // failure reason, EventFailed only
}

// Client submits generation requests. The returned handle owns the
// polling resources; abandoning it via Close never errors.
type Client interface {
	Submit(ctx context.Context, prompt string, image upload.AssetRef) (*Handle, error)
}

// Handle is one submission's event stream. Events are delivered in
// order on the channel returned by Events, which closes after the
// terminal event or when the handle is abandoned.
type Handle struct {
	id     string
	cancel context.CancelFunc
	events chan Event
}

// ID returns the server-assigned submission id.
func (h *Handle) ID() string { return h.id }

// Events returns the ordered event stream.
func (h *Handle) Events() <-chan Event { return h.events }

// Close abandons the stream and releases the underlying poll loop.
// Safe to call multiple times and concurrently with stream delivery.
func (h *Handle) Close() { h.cancel() }
