package sketch

import (
	"testing"
	"time"
)

func testStroke(x float32) Stroke {
	return Stroke{
		Points: []Point{{X: x, Y: 1}, {X: x + 10, Y: 20}},
		Width:  4,
		Color:  "#000000",
		Time:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAppendAndLen(t *testing.T) {
	b := NewPathBuffer()
	if !b.IsEmpty() {
		t.Fatal("new buffer should be empty")
	}
	b.Append(testStroke(0))
	b.Append(testStroke(5))
	if b.Len() != 2 {
		t.Fatalf("Len: got %d want 2", b.Len())
	}
	if b.IsEmpty() {
		t.Error("buffer with strokes reported empty")
	}
}

func TestUndoRemovesLast(t *testing.T) {
	b := NewPathBuffer()
	b.Append(testStroke(0))
	b.Append(testStroke(5))

	if !b.Undo() {
		t.Fatal("Undo on non-empty buffer should report true")
	}
	snap := b.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("after undo: got %d strokes want 1", len(snap))
	}
	if snap[0].Points[0].X != 0 {
		t.Errorf("undo removed the wrong stroke")
	}
}

func TestUndoOnEmptyIsNoop(t *testing.T) {
	b := NewPathBuffer()
	if b.Undo() {
		t.Error("Undo on empty buffer should report false")
	}
	if !b.IsEmpty() {
		t.Error("buffer should stay empty")
	}
}

func TestClear(t *testing.T) {
	b := NewPathBuffer()
	b.Append(testStroke(0))
	b.Clear()
	if !b.IsEmpty() {
		t.Error("Clear should empty the buffer")
	}
	b.Clear() // clearing an empty buffer is fine too
	if !b.IsEmpty() {
		t.Error("second Clear should be a no-op")
	}
}

func TestRevisionAdvancesOnMutation(t *testing.T) {
	b := NewPathBuffer()
	r0 := b.Revision()
	b.Append(testStroke(0))
	r1 := b.Revision()
	if r1 == r0 {
		t.Error("Append should advance the revision")
	}
	if b.Revision() != r1 {
		t.Error("Revision should be stable without mutation")
	}
	b.Undo()
	if b.Revision() == r1 {
		t.Error("Undo should advance the revision")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	b := NewPathBuffer()
	b.Append(testStroke(0))
	snap := b.Snapshot()

	// Mutating the snapshot must not reach the buffer.
	snap[0].Points[0].X = 999
	if b.Snapshot()[0].Points[0].X == 999 {
		t.Error("snapshot shares point storage with the buffer")
	}

	// Mutating the buffer must not reach an earlier snapshot.
	snap2 := b.Snapshot()
	b.Undo()
	if len(snap2) != 1 {
		t.Error("snapshot changed after buffer mutation")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	b := NewPathBuffer()
	b.Append(testStroke(0))
	b.Append(Stroke{
		Points: []Point{{X: 3.5, Y: 7.25}},
		Width:  1.5,
		Color:  "#ff8800",
		Time:   time.Date(2024, 3, 1, 12, 0, 1, 500000000, time.UTC),
	})

	data, err := b.Snapshot().Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	restored := NewPathBuffer()
	restored.Load(decoded)
	if !restored.Snapshot().Equal(b.Snapshot()) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", restored.Snapshot(), b.Snapshot())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Error("Decode should reject malformed input")
	}
}

func TestEncodeEmptySnapshot(t *testing.T) {
	data, err := (Snapshot{}).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	snap, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("empty snapshot round trip: got %d strokes", len(snap))
	}
}
