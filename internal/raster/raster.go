// Package raster converts a sketch snapshot into a fixed-size PNG.
// Rendering is deterministic: identical snapshots produce byte-identical
// output, so the encoded bytes double as an identity for the sketch.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"clickart/internal/sketch"
)

// ErrMalformedStroke is returned when a stroke carries data the renderer
// cannot interpret (e.g. an unparseable color). The buffer contract makes
// this unreachable in normal operation.
var ErrMalformedStroke = errors.New("malformed stroke data")

// Image is an encoded raster derived from a snapshot. It has no identity
// beyond its byte content.
type Image struct {
	Data []byte // PNG-encoded
	Size int    // square edge length in pixels
}

// Rasterize renders the snapshot onto a white size×size canvas. Strokes
// are drawn in order with round caps and joins. An empty snapshot yields
// a blank canvas, not an error.
func Rasterize(snap sketch.Snapshot, size int) (Image, error) {
	if size <= 0 {
		return Image{}, fmt.Errorf("rasterize: invalid size %d", size)
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	stroker := rasterx.NewStroker(size, size, scanner)

	for i, st := range snap {
		if len(st.Points) == 0 {
			continue
		}
		col, err := parseHexColor(st.Color)
		if err != nil {
			return Image{}, fmt.Errorf("stroke %d: %w", i, err)
		}
		width := st.Width
		if width <= 0 {
			width = 1
		}

		stroker.SetColor(col)
		stroker.SetStroke(
			fixed.Int26_6(width*64), 4<<6,
			rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.Round,
		)

		stroker.Start(toFixed(st.Points[0]))
		if len(st.Points) == 1 {
			// A tap has no extent; nudge it so the round cap renders a dot.
			p := st.Points[0]
			stroker.Line(toFixed(sketch.Point{X: p.X + 0.01, Y: p.Y}))
		}
		for _, p := range st.Points[1:] {
			stroker.Line(toFixed(p))
		}
		stroker.Stop(false)
		stroker.Draw()
		stroker.Clear()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, fmt.Errorf("encode png: %w", err)
	}
	return Image{Data: buf.Bytes(), Size: size}, nil
}

func toFixed(p sketch.Point) fixed.Point26_6 {
	return fixed.Point26_6{
		X: fixed.Int26_6(p.X * 64),
		Y: fixed.Int26_6(p.Y * 64),
	}
}

// parseHexColor parses "#rrggbb" (or "#rgb"). An empty color means black.
func parseHexColor(s string) (color.RGBA, error) {
	if s == "" {
		return color.RGBA{A: 0xff}, nil
	}
	if len(s) == 0 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("%w: color %q", ErrMalformedStroke, s)
	}
	hex := func(c byte) (uint8, bool) {
		switch {
		case c >= '0' && c <= '9':
			return c - '0', true
		case c >= 'a' && c <= 'f':
			return c - 'a' + 10, true
		case c >= 'A' && c <= 'F':
			return c - 'A' + 10, true
		}
		return 0, false
	}
	byteAt := func(i int) (uint8, bool) {
		hi, ok1 := hex(s[i])
		lo, ok2 := hex(s[i+1])
		return hi<<4 | lo, ok1 && ok2
	}
	switch len(s) {
	case 7:
		r, ok1 := byteAt(1)
		g, ok2 := byteAt(3)
		b, ok3 := byteAt(5)
		if !ok1 || !ok2 || !ok3 {
			return color.RGBA{}, fmt.Errorf("%w: color %q", ErrMalformedStroke, s)
		}
		return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
	case 4:
		r, ok1 := hex(s[1])
		g, ok2 := hex(s[2])
		b, ok3 := hex(s[3])
		if !ok1 || !ok2 || !ok3 {
			return color.RGBA{}, fmt.Errorf("%w: color %q", ErrMalformedStroke, s)
		}
		return color.RGBA{R: r * 17, G: g * 17, B: b * 17, A: 0xff}, nil
	}
	return color.RGBA{}, fmt.Errorf("%w: color %q", ErrMalformedStroke, s)
}
