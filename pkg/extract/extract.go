// Package extract turns heterogeneous floor-plan documents (vector CAD,
// vector PDF, scanned PDF, raster images) into a normalised list of
// candidate rooms with areas in square metres.
//
// One adapter per source format shares a common contract: document in,
// []Unit out. Extraction is a pure pipeline over its inputs, no package
// state is mutated, so adapters are safe to call from concurrent workers.
package extract

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/chaoyuebeta/areacalc-hk/pkg/geo"
	"github.com/chaoyuebeta/areacalc-hk/pkg/report"
)

// SourceKind identifies which adapter produced a unit.
type SourceKind string

const (
	SourceCAD       SourceKind = "cad"
	SourcePDFVector SourceKind = "pdf_vector"
	SourcePDFOCR    SourceKind = "pdf_ocr"
	SourceImageOCR  SourceKind = "image_ocr"
)

// Unit is one candidate room as produced by extraction, before
// classification. Created once per extraction pass and never mutated.
type Unit struct {
	Label      string     `json:"label"`
	AreaM2     float64    `json:"area_m2"` // 0 if undeterminable
	Source     SourceKind `json:"source"`
	Confidence float64    `json:"confidence"` // 1.0 for vector/CAD, OCR confidence otherwise
	BBox       geo.Rect   `json:"bbox,omitempty"`
	Layer      string     `json:"layer,omitempty"` // CAD layer name, empty elsewhere
	Floor      string     `json:"floor,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Word is a positioned text fragment, the common currency of the PDF and
// OCR adapters. Coordinates are top-left origin.
type Word struct {
	Text       string
	BBox       geo.Rect
	Confidence float64
}

// Options controls a single extraction pass.
type Options struct {
	// Floor is the floor label attached to every extracted unit.
	Floor string
	// Scale is the fallback drawing scale denominator (1:Scale) used when
	// neither dimension annotations nor scale text can be found.
	// Defaults to 100; HK firms typically draw at 1:100 in millimetres.
	Scale int
	// ForceOCR routes PDFs to the OCR adapter even when they carry a
	// text layer.
	ForceOCR bool
	// Filter overrides the default noise / title-block thresholds.
	Filter *FilterConfig
}

func (o Options) scale() int {
	if o.Scale > 0 {
		return o.Scale
	}
	return 100
}

func (o Options) filter() FilterConfig {
	if o.Filter != nil {
		return *o.Filter
	}
	return DefaultFilterConfig()
}

// scannedWordThreshold: a PDF whose first pages yield fewer extractable
// words than this is treated as a scan and routed to OCR.
const scannedWordThreshold = 10

// Parse extracts candidate rooms from a floor-plan file. The adapter is
// chosen by extension (.dxf, .pdf, or a raster image format); PDFs with no
// usable text layer are routed to OCR.
//
// Extraction failures abort the call: *UnsupportedFormatError for unknown
// extensions, *CapabilityError for missing backends, and ErrNoUnits when
// the document parsed but contained nothing usable.
func Parse(path string, opts Options) ([]Unit, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		units []Unit
		err   error
	)
	switch ext {
	case ".dxf":
		units, err = parseDXF(path, opts)
	case ".dwg":
		return nil, fmt.Errorf("DWG files must be converted to DXF before parsing (see the convert command): %s", path)
	case ".pdf":
		if opts.ForceOCR {
			units, err = parsePDFOCR(path, opts)
			break
		}
		scanned, derr := isScannedPDF(path)
		if derr != nil {
			return nil, derr
		}
		if scanned {
			units, err = parsePDFOCR(path, opts)
		} else {
			units, err = parsePDFVector(path, opts)
		}
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp":
		units, err = parseImageOCR(path, opts)
	default:
		return nil, &UnsupportedFormatError{Ext: ext}
	}
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoUnits)
	}
	return units, nil
}

// lowConfidenceThreshold: units below this OCR confidence get a manual
// verification warning attached downstream.
const lowConfidenceThreshold = 0.5

// RoomInputs converts extracted units into classifier inputs. Labels fall
// back to the CAD layer name and then to "Unidentified Space"; room ids are
// sequential per floor. The returned warnings flag low-confidence units for
// human review.
func RoomInputs(units []Unit) ([]report.RoomInput, []string) {
	inputs := make([]report.RoomInput, 0, len(units))
	var warnings []string
	for i, u := range units {
		label := u.Label
		if (label == "" || label == "Unidentified Space") && u.Layer != "" {
			label = u.Layer
		}
		if label == "" {
			label = "Unidentified Space"
		}
		if u.Confidence < lowConfidenceThreshold {
			warnings = append(warnings, fmt.Sprintf(
				"Low OCR confidence (%.0f%%) for %q on floor %s, verify manually.",
				u.Confidence*100, label, u.Floor))
		}
		inputs = append(inputs, report.RoomInput{
			Label:  label,
			AreaM2: u.AreaM2,
			Floor:  u.Floor,
			RoomID: fmt.Sprintf("%s-%04d", u.Floor, i),
		})
	}
	return inputs, warnings
}

// pureSymbolRe matches fragments that are only digits, punctuation and
// whitespace, coordinates, dimension strings and similar non-labels.
var pureSymbolRe = regexp.MustCompile(`^[\d\s.,:/\\-]+$`)

// isNoiseLabel reports whether a cleaned label should be discarded rather
// than become a unit.
func isNoiseLabel(label string) bool {
	if len([]rune(label)) < 2 {
		return true
	}
	return pureSymbolRe.MatchString(label)
}

// groupIntoLines buckets words into horizontal lines by y-proximity and
// orders each line left to right.
func groupIntoLines(words []Word, yTol float64) [][]Word {
	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].BBox.Y0 < sorted[j].BBox.Y0
	})

	var lines [][]Word
	for _, w := range sorted {
		placed := false
		for i := range lines {
			last := lines[i][len(lines[i])-1]
			if math.Abs(w.BBox.Y0-last.BBox.Y0) <= yTol {
				lines[i] = append(lines[i], w)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, []Word{w})
		}
	}
	for i := range lines {
		sort.Slice(lines[i], func(a, b int) bool {
			return lines[i][a].BBox.X0 < lines[i][b].BBox.X0
		})
	}
	return lines
}

// groupWords merges words on the same line within a horizontal gap into
// phrases. Phrase confidence is the mean of the member words.
func groupWords(words []Word, yTol, xGap float64) []Word {
	var phrases []Word
	for _, line := range groupIntoLines(words, yTol) {
		cur := line[0]
		count := 1
		confSum := line[0].Confidence
		for _, w := range line[1:] {
			if w.BBox.X0-cur.BBox.X1 <= xGap {
				cur.Text += " " + w.Text
				cur.BBox = cur.BBox.Union(w.BBox)
				confSum += w.Confidence
				count++
				continue
			}
			cur.Confidence = confSum / float64(count)
			phrases = append(phrases, cur)
			cur = w
			count = 1
			confSum = w.Confidence
		}
		cur.Confidence = confSum / float64(count)
		phrases = append(phrases, cur)
	}
	return phrases
}
