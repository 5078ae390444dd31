package extract

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/chaoyuebeta/areacalc-hk/pkg/geo"
)

// DXF drawing units per $INSUNITS header value, as a factor converting
// squared drawing units to square metres.
const (
	areaFactorMM = 1e-6 // mm² to m²
	areaFactorCM = 1e-4
	areaFactorM  = 1.0
)

type dxfText struct {
	text  string
	layer string
	at    geo.Point
}

// dxfShape is one boundary entity. A hatch may carry several boundary
// paths (outer loop plus islands); area sums over the paths and the
// association centroid averages the per-path centroids.
type dxfShape struct {
	layer string
	paths []geo.Polygon
}

func (s dxfShape) area() float64 {
	var sum float64
	for _, p := range s.paths {
		sum += p.Area()
	}
	return sum
}

func (s dxfShape) centroid() geo.Point {
	var c geo.Point
	for _, p := range s.paths {
		c = c.Add(p.Centroid())
	}
	return c.Scale(1 / float64(len(s.paths)))
}

func (s dxfShape) boundingBox() geo.Rect {
	box := s.paths[0].BoundingBox()
	for _, p := range s.paths[1:] {
		box = box.Union(p.BoundingBox())
	}
	return box
}

type dxfDoc struct {
	areaFactor float64
	texts      []dxfText
	shapes     []dxfShape
}

func parseDXF(path string, opts Options) ([]Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dxf: %w", err)
	}
	defer f.Close()
	doc, err := readDXF(f)
	if err != nil {
		return nil, fmt.Errorf("parse dxf %s: %w", path, err)
	}
	return associateDXF(doc, opts), nil
}

// readDXF scans an ASCII DXF stream. DXF is a flat list of (group code,
// value) line pairs; entities begin at a 0 group and run until the next
// one, so a single pass with a small amount of entity-local state covers
// everything the area pipeline needs: closed polylines, hatch boundaries
// and text entities, plus the $INSUNITS header variable.
func readDXF(r io.Reader) (*dxfDoc, error) {
	doc := &dxfDoc{areaFactor: areaFactorMM}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		section    string
		entity     string
		headerVar  string
		layer      string
		xs, ys     []float64
		paths      []geo.Polygon
		pendingX   float64
		havePend   bool
		textVal    string
		mtextParts []string
		textAt     geo.Point
	)

	// closePath ends the boundary path being accumulated. Hatches start a
	// new path at every 92 group; polylines have exactly one.
	closePath := func() {
		if len(xs) >= 3 && len(xs) == len(ys) {
			pts := make([]geo.Point, len(xs))
			for i := range xs {
				pts[i] = geo.Pt(xs[i], ys[i])
			}
			paths = append(paths, geo.NewPolygon(pts...))
		}
		xs, ys = nil, nil
		havePend = false
	}

	flush := func() {
		switch entity {
		case "LWPOLYLINE", "HATCH", "POLYLINE", "VERTEX":
			closePath()
			if len(paths) > 0 {
				doc.shapes = append(doc.shapes, dxfShape{layer: layer, paths: paths})
			}
		case "TEXT", "MTEXT":
			full := textVal
			if len(mtextParts) > 0 {
				full = strings.Join(mtextParts, "") + full
			}
			full = decodeMText(full)
			if strings.TrimSpace(full) != "" {
				doc.texts = append(doc.texts, dxfText{text: full, layer: layer, at: textAt})
			}
		}
		entity, layer, textVal = "", "", ""
		xs, ys, paths, mtextParts = nil, nil, nil, nil
		havePend = false
		textAt = geo.Point{}
	}

	for sc.Scan() {
		codeLine := strings.TrimSpace(sc.Text())
		if !sc.Scan() {
			break
		}
		value := strings.TrimSpace(sc.Text())
		code, err := strconv.Atoi(codeLine)
		if err != nil {
			continue
		}

		if code == 0 {
			// classic POLYLINE vertices arrive as separate VERTEX
			// entities; keep accumulating until SEQEND
			inPolyline := entity == "POLYLINE" || entity == "VERTEX"
			if section == "ENTITIES" && value == "VERTEX" && inPolyline {
				entity = "VERTEX"
				continue
			}
			if section == "ENTITIES" && value == "SEQEND" && inPolyline {
				flush()
				continue
			}

			flush()
			switch value {
			case "SECTION":
				section = ""
			case "ENDSEC":
				section = ""
				continue
			case "EOF":
				return doc, nil
			}
			if section == "ENTITIES" {
				switch value {
				case "LWPOLYLINE", "HATCH", "POLYLINE", "TEXT", "MTEXT":
					entity = value
				}
			}
			continue
		}

		if section == "" && code == 2 && (value == "HEADER" || value == "ENTITIES" || value == "TABLES" || value == "BLOCKS" || value == "OBJECTS") {
			section = value
			continue
		}

		switch section {
		case "HEADER":
			if code == 9 {
				headerVar = value
			} else if headerVar == "$INSUNITS" && code == 70 {
				switch value {
				case "4":
					doc.areaFactor = areaFactorMM
				case "5":
					doc.areaFactor = areaFactorCM
				case "6":
					doc.areaFactor = areaFactorM
				}
			}
		case "ENTITIES":
			switch entity {
			case "LWPOLYLINE", "HATCH", "POLYLINE", "VERTEX":
				switch code {
				case 8:
					layer = value
				case 92:
					if entity == "HATCH" {
						closePath()
					}
				case 10:
					if v, err := strconv.ParseFloat(value, 64); err == nil {
						pendingX, havePend = v, true
					}
				case 20:
					if v, err := strconv.ParseFloat(value, 64); err == nil && havePend {
						xs = append(xs, pendingX)
						ys = append(ys, v)
						havePend = false
					}
				}
			case "TEXT", "MTEXT":
				switch code {
				case 1:
					textVal = value
				case 3:
					mtextParts = append(mtextParts, value)
				case 8:
					layer = value
				case 10:
					if v, err := strconv.ParseFloat(value, 64); err == nil {
						textAt.X = v
					}
				case 20:
					if v, err := strconv.ParseFloat(value, 64); err == nil {
						textAt.Y = v
					}
				}
			}
		}
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

var mtextFormatRe = regexp.MustCompile(`\\[A-Za-z][^;\\]*;|[{}]`)

// decodeMText strips inline MTEXT formatting codes, keeping the visible
// text. \P is a paragraph break.
func decodeMText(s string) string {
	s = strings.ReplaceAll(s, `\P`, " ")
	s = mtextFormatRe.ReplaceAllString(s, "")
	return s
}

// associateDXF pairs text labels with room polygons by nearest centroid.
// Each polygon is claimed at most once; leftovers surface as unidentified
// spaces rather than being dropped, since an unlabelled enclosed area on a
// submission plan still counts toward GFA until a reviewer says otherwise.
func associateDXF(doc *dxfDoc, opts Options) []Unit {
	cfg := opts.filter()

	type candidate struct {
		label    string
		at       geo.Point
		areaNote float64
		hasArea  bool
	}
	var labels []candidate
	for _, t := range doc.texts {
		if cfg.HasAdminKeyword(t.text) {
			continue
		}
		annotated, hasArea := AreaAnnotation(t.text)
		label := CleanLabel(t.text)
		if isNoiseLabel(label) {
			continue
		}
		labels = append(labels, candidate{label: label, at: t.at, areaNote: annotated, hasArea: hasArea})
	}

	sort.Slice(labels, func(i, j int) bool {
		if labels[i].at.Y != labels[j].at.Y {
			return labels[i].at.Y < labels[j].at.Y
		}
		return labels[i].at.X < labels[j].at.X
	})

	used := make(map[int]bool, len(doc.shapes))
	var units []Unit
	for _, lb := range labels {
		best, bestDist := -1, math.MaxFloat64
		for i, p := range doc.shapes {
			if used[i] {
				continue
			}
			d := lb.at.Distance(p.centroid())
			if d < bestDist {
				best, bestDist = i, d
			}
		}

		u := Unit{
			Label:      lb.label,
			Source:     SourceCAD,
			Confidence: 1.0,
			Floor:      opts.Floor,
		}
		if best >= 0 {
			used[best] = true
			p := doc.shapes[best]
			u.AreaM2 = round4(p.area() * doc.areaFactor)
			u.BBox = p.boundingBox()
			u.Layer = p.layer
		}
		if lb.hasArea {
			// An explicit printed area beats the measured polygon.
			if best >= 0 && u.AreaM2 != lb.areaNote {
				u.Notes = "area from annotation"
			}
			u.AreaM2 = lb.areaNote
		} else if best < 0 {
			u.Notes = "no enclosing boundary found"
		}
		units = append(units, u)
	}

	for i, p := range doc.shapes {
		if used[i] {
			continue
		}
		area := round4(p.area() * doc.areaFactor)
		if area <= 0 {
			continue
		}
		units = append(units, Unit{
			Label:      "Unidentified Space",
			AreaM2:     area,
			Source:     SourceCAD,
			Confidence: 1.0,
			BBox:       p.boundingBox(),
			Layer:      p.layer,
			Floor:      opts.Floor,
			Notes:      "boundary with no nearby label",
		})
	}
	return units
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
