package extract

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/chaoyuebeta/areacalc-hk/pkg/geo"
)

// One PDF point on paper.
const mmPerPoint = 25.4 / 72.0

const (
	pdfLineTol  = 3.0  // points; same-baseline tolerance when grouping
	pdfWordGap  = 15.0 // points; larger horizontal gaps split phrases
	pdfCharJoin = 0.5  // fraction of font size; glyph gaps below this join a word
)

// parsePDFVector extracts labels from a PDF's embedded text layer.
// Vector PDFs of floor plans carry labels and annotations but no room
// polygons, so a printed annotation wins; without one the label's own
// bounding box is scaled into a rough area for manual verification.
func parsePDFVector(path string, opts Options) ([]Unit, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	cfg := opts.filter()
	var units []Unit
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageW, pageH := pageSize(page)
		words := pdfWords(page, pageH)
		if len(words) == 0 {
			continue
		}
		units = append(units, vectorUnits(words, pageW, pageH, cfg, opts)...)
	}
	return units, nil
}

// vectorUnits turns one page's words into units. A printed area annotation
// is authoritative; otherwise the phrase bounding box is scaled through the
// page calibration into a rough estimate flagged for manual verification.
func vectorUnits(words []Word, pageW, pageH float64, cfg FilterConfig, opts Options) []Unit {
	cal := Calibrate(words, pageW, pageH, cfg, opts.scale(), mmPerPoint)
	scaleNote := fmt.Sprintf("drawing scale 1:%d (%s)", cal.Denominator, cal.Source)

	var units []Unit
	for _, phrase := range groupWords(words, pdfLineTol, pdfWordGap) {
		c := phrase.BBox.Center()
		if cfg.IsTitleBlock(phrase.Text, c.X, c.Y, pageW, pageH) {
			continue
		}
		area, hasArea := AreaAnnotation(phrase.Text)
		label := CleanLabel(phrase.Text)
		if isNoiseLabel(label) {
			continue
		}
		u := Unit{
			Label:      label,
			AreaM2:     area,
			Source:     SourcePDFVector,
			Confidence: 1.0,
			BBox:       phrase.BBox,
			Floor:      opts.Floor,
		}
		if !hasArea {
			u.AreaM2 = round4(cal.AreaM2(phrase.BBox.Area()))
			u.Notes = "area estimated from label bbox, verify manually (" + scaleNote + ")"
		}
		units = append(units, u)
	}
	return units
}

// isScannedPDF reports whether a PDF has no usable text layer, judged by
// the word yield of its first pages.
func isScannedPDF(path string) (bool, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return false, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := r.NumPage()
	if pages > 3 {
		pages = 3
	}
	count := 0
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		_, pageH := pageSize(page)
		count += len(pdfWords(page, pageH))
		if count >= scannedWordThreshold {
			return false, nil
		}
	}
	return count < scannedWordThreshold, nil
}

// pageSize resolves the page MediaBox, walking up the page tree when the
// box is inherited.
func pageSize(p pdf.Page) (w, h float64) {
	v := p.V
	for !v.IsNull() {
		if box := v.Key("MediaBox"); !box.IsNull() && box.Len() == 4 {
			return box.Index(2).Float64() - box.Index(0).Float64(),
				box.Index(3).Float64() - box.Index(1).Float64()
		}
		v = v.Key("Parent")
	}
	// A1 landscape in points, the usual HK plan sheet
	return 2384, 1684
}

// pdfWords assembles the page's glyph runs into words with top-left origin
// coordinates. PDF y grows upward from the bottom edge, so positions are
// flipped here once and the rest of the pipeline sees a single convention.
func pdfWords(p pdf.Page, pageH float64) []Word {
	texts := p.Content().Text
	if len(texts) == 0 {
		return nil
	}

	var words []Word
	var cur *Word
	var lastEnd, lastY float64

	flush := func() {
		if cur != nil && cur.Text != "" {
			words = append(words, *cur)
		}
		cur = nil
	}

	for _, t := range texts {
		if t.S == "" {
			continue
		}
		yTop := pageH - (t.Y + t.FontSize)
		box := geo.Rect{X0: t.X, Y0: yTop, X1: t.X + t.W, Y1: yTop + t.FontSize}

		join := cur != nil &&
			yTop == lastY &&
			t.X >= lastEnd &&
			t.X-lastEnd <= t.FontSize*pdfCharJoin
		if join {
			cur.Text += t.S
			cur.BBox = cur.BBox.Union(box)
		} else {
			flush()
			cur = &Word{Text: t.S, BBox: box, Confidence: 1.0}
		}
		lastEnd = t.X + t.W
		lastY = yTop
	}
	flush()
	return words
}
