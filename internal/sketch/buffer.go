package sketch

import "sync"

// PathBuffer holds the ordered strokes of the current sketch. It is
// append-only except for Undo, which removes exactly the most recently
// appended stroke. The drawing surface is the single writer, but access
// is guarded so readers (rasterization, persistence) can snapshot safely.
type PathBuffer struct {
	mu      sync.Mutex
	strokes []Stroke
	rev     uint64
}

// NewPathBuffer returns an empty buffer.
func NewPathBuffer() *PathBuffer {
	return &PathBuffer{}
}

// Append records a completed stroke. It never fails.
func (b *PathBuffer) Append(s Stroke) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.strokes = append(b.strokes, s.clone())
	b.rev++
}

// Undo removes the last stroke. On an empty buffer it is a no-op and
// returns false.
func (b *PathBuffer) Undo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.strokes) == 0 {
		return false
	}
	b.strokes = b.strokes[:len(b.strokes)-1]
	b.rev++
	return true
}

// Clear empties the buffer unconditionally.
func (b *PathBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.strokes = nil
	b.rev++
}

// IsEmpty reports whether the buffer holds no strokes. Used to gate
// submission eligibility.
func (b *PathBuffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.strokes) == 0
}

// Len returns the number of recorded strokes.
func (b *PathBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.strokes)
}

// Revision increments on every mutation. Callers use it to tell whether
// the sketch changed since they last looked.
func (b *PathBuffer) Revision() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rev
}

// Snapshot returns an independently owned copy of the current strokes.
func (b *PathBuffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(Snapshot, len(b.strokes))
	for i, s := range b.strokes {
		out[i] = s.clone()
	}
	return out
}

// Load replaces the buffer contents with the given snapshot. Round-trip
// law: Load(Snapshot()) restores the same stroke sequence.
func (b *PathBuffer) Load(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.strokes = make([]Stroke, len(snap))
	for i, s := range snap {
		b.strokes[i] = s.clone()
	}
	b.rev++
}
