package extract

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Calibration relates drawing coordinate units to real-world millimetres.
type Calibration struct {
	// MMPerUnit is real-world millimetres per coordinate unit.
	MMPerUnit float64
	// Denominator is the inferred drawing scale denominator (1:N).
	Denominator int
	// Source records how the calibration was obtained: "dimensions",
	// "scale_text" or "fallback".
	Source string
}

// AreaM2 converts an area in squared coordinate units to square metres.
func (c Calibration) AreaM2(units2 float64) float64 {
	side := c.MMPerUnit / 1000.0
	return units2 * side * side
}

// LengthM converts a length in coordinate units to metres.
func (c Calibration) LengthM(units float64) float64 {
	return units * c.MMPerUnit / 1000.0
}

// Plausible scale denominators for bare "1:N" fragments. Free-standing
// ratios on a plan are often grid references or flat numbers, so only the
// denominators actually used on building plans are accepted without the
// word "scale" nearby.
var bareScaleRe = regexp.MustCompile(`1\s*:\s*(50|100|200|500)\b`)

// "SCALE 1:N" or the bilingual equivalent accepts any denominator.
var labelledScaleRe = regexp.MustCompile(`(?i)(?:scale|比例)\s*[:：]?\s*1\s*[:：]\s*(\d{1,5})`)

// dimension tokens: bare 3 to 5 digit integers, the typical mm dimension
// annotations on HK plans.
var dimensionTokenRe = regexp.MustCompile(`^\d{3,5}$`)

const (
	minDimensionMM = 200
	maxDimensionMM = 50000

	// A 1:1 drawing would be absurd; plans sit between 1:20 and 1:500.
	minScaleDenominator = 20
	maxScaleDenominator = 500

	dimensionBandTol = 12.0
)

// Calibrate determines millimetres-per-unit for a page. mmPerUnitAt1to1 is
// the paper size of one coordinate unit (0.3528 mm for a PDF point, 25.4/dpi
// for a raster). The strategies run in order of reliability:
//
//  1. Dimension annotation inference: numeric dimension strings measured
//     against their own printed span give the true scale regardless of
//     what the title block claims.
//  2. Explicit scale text ("SCALE 1:100", "比例 1:100", bare "1:100").
//  3. The caller-supplied fallback denominator.
func Calibrate(words []Word, pageW, pageH float64, filter FilterConfig, fallback int, mmPerUnitAt1to1 float64) Calibration {
	if fallback <= 0 {
		fallback = 100
	}

	if mm, ok := inferFromDimensions(words, pageW, pageH, filter, mmPerUnitAt1to1); ok {
		denom := int(math.Round(mm / mmPerUnitAt1to1))
		return Calibration{MMPerUnit: mm, Denominator: denom, Source: "dimensions"}
	}

	if denom, ok := scaleFromText(words); ok {
		return Calibration{
			MMPerUnit:   mmPerUnitAt1to1 * float64(denom),
			Denominator: denom,
			Source:      "scale_text",
		}
	}

	return Calibration{
		MMPerUnit:   mmPerUnitAt1to1 * float64(fallback),
		Denominator: fallback,
		Source:      "fallback",
	}
}

type dimToken struct {
	value float64 // annotated dimension in mm
	x, y  float64 // centre of the token on the page
	width float64
}

// inferFromDimensions recovers mm-per-unit from dimension annotations.
// Tokens along one dimension chain sit on a shared baseline; the distance
// between adjacent tokens approximates the printed span of the dimension
// between them, so value/gap (and chain-sum/total-span) are candidate
// mm-per-unit readings. The median of all in-window candidates wins.
func inferFromDimensions(words []Word, pageW, pageH float64, filter FilterConfig, mmPerUnitAt1to1 float64) (float64, bool) {
	var tokens []dimToken
	for _, w := range words {
		t := strings.TrimSpace(w.Text)
		if !dimensionTokenRe.MatchString(t) {
			continue
		}
		v, err := strconv.ParseFloat(t, 64)
		if err != nil || v < minDimensionMM || v > maxDimensionMM {
			continue
		}
		c := w.BBox.Center()
		if filter.IsTitleBlock(t, c.X, c.Y, pageW, pageH) {
			continue
		}
		tokens = append(tokens, dimToken{value: v, x: c.X, y: c.Y, width: w.BBox.Width()})
	}
	if len(tokens) < 2 {
		return 0, false
	}

	lo := mmPerUnitAt1to1 * minScaleDenominator
	hi := mmPerUnitAt1to1 * maxScaleDenominator

	var candidates []float64
	for _, band := range bandByY(tokens, dimensionBandTol) {
		if len(band) < 2 {
			continue
		}
		sort.Slice(band, func(i, j int) bool { return band[i].x < band[j].x })

		var sum float64
		for i := 0; i < len(band)-1; i++ {
			gap := band[i+1].x - band[i].x
			if gap <= 0 {
				continue
			}
			if r := band[i].value / gap; r >= lo && r <= hi {
				candidates = append(candidates, r)
			}
		}
		for _, t := range band {
			sum += t.value
		}
		span := band[len(band)-1].x - band[0].x + band[len(band)-1].width
		if span > 0 {
			if r := sum / span; r >= lo && r <= hi {
				candidates = append(candidates, r)
			}
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}

	sort.Float64s(candidates)
	return candidates[len(candidates)/2], true
}

// bandByY groups tokens whose y centres lie within tol of each other,
// approximating dimension chains along a shared baseline.
func bandByY(tokens []dimToken, tol float64) [][]dimToken {
	sorted := make([]dimToken, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].y < sorted[j].y })

	var bands [][]dimToken
	for _, t := range sorted {
		if n := len(bands); n > 0 {
			last := bands[n-1]
			if math.Abs(t.y-last[len(last)-1].y) <= tol {
				bands[n-1] = append(last, t)
				continue
			}
		}
		bands = append(bands, []dimToken{t})
	}
	return bands
}

func scaleFromText(words []Word) (int, bool) {
	for _, w := range words {
		if m := labelledScaleRe.FindStringSubmatch(w.Text); m != nil {
			if d, err := strconv.Atoi(m[1]); err == nil && d > 0 {
				return d, true
			}
		}
	}
	for _, w := range words {
		if m := bareScaleRe.FindStringSubmatch(w.Text); m != nil {
			d, _ := strconv.Atoi(m[1])
			return d, true
		}
	}
	return 0, false
}
