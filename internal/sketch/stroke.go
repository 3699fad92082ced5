package sketch

import "time"

// Point is a single canvas coordinate.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Stroke is one continuous freehand gesture: an ordered point sequence
// plus width, color and the time it was recorded. Immutable once recorded.
type Stroke struct {
	Points []Point   `json:"points"`
	Width  float32   `json:"width"`
	Color  string    `json:"color"` // "#rrggbb"
	Time   time.Time `json:"time"`
}

func (s Stroke) clone() Stroke {
	out := s
	out.Points = make([]Point, len(s.Points))
	copy(out.Points, s.Points)
	return out
}

// Equal reports whether two strokes have the same points, width, color
// and recording time.
func (s Stroke) Equal(o Stroke) bool {
	if s.Width != o.Width || s.Color != o.Color || !s.Time.Equal(o.Time) {
		return false
	}
	if len(s.Points) != len(o.Points) {
		return false
	}
	for i := range s.Points {
		if s.Points[i] != o.Points[i] {
			return false
		}
	}
	return true
}
