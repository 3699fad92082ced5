package export

import (
	"clickart/internal/sketch"

	"github.com/jung-kurt/gofpdf"
)

// pdfScale maps canvas pixels to millimeters on an A4 page.
const pdfScale = 3

// PDF writes the sketch to an A4 PDF at path, one polyline per stroke.
func PDF(path string, snap sketch.Snapshot) error {
	p := gofpdf.New("P", "mm", "A4", "")
	p.AddPage()
	p.SetDrawColor(0, 0, 0)

	for _, st := range snap {
		w := float64(st.Width) / pdfScale
		if w <= 0 {
			w = 0.5
		}
		p.SetLineWidth(w)
		for i := 1; i < len(st.Points); i++ {
			p.Line(
				float64(st.Points[i-1].X/pdfScale), float64(st.Points[i-1].Y/pdfScale),
				float64(st.Points[i].X/pdfScale), float64(st.Points[i].Y/pdfScale),
			)
		}
	}
	return p.OutputFileAndClose(path)
}
