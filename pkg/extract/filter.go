package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// FilterConfig holds the noise / title-block thresholds. Floor-plan labels
// and title-block administrivia share character shapes but occupy disjoint
// page regions and lexicons; the positional and lexical rules here are
// heuristics tuned against HK submission drawings, kept as configuration
// rather than constants baked into logic.
type FilterConfig struct {
	// TitleBlockXFrac/YFrac define the bottom-right quadrant holding the
	// title block: the right X fraction by the bottom Y fraction of the page.
	TitleBlockXFrac float64
	TitleBlockYFrac float64
	// FooterYFrac is the bottom strip holding footers and revision stamps.
	FooterYFrac float64
	// CodeZoneXFrac is the right fraction of the page where short
	// all-caps code tokens (grid refs, revision letters) are dropped.
	CodeZoneXFrac float64
	// MaxCodeLen is the longest token treated as a code in the code zone.
	MaxCodeLen int
	// Keywords are drawing-admin terms that exclude a fragment anywhere
	// on the page. Matched case-insensitively as substrings.
	Keywords []string
}

// DefaultFilterConfig returns the thresholds used for HK submission drawings.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		TitleBlockXFrac: 0.25,
		TitleBlockYFrac: 0.20,
		FooterYFrac:     0.08,
		CodeZoneXFrac:   0.30,
		MaxCodeLen:      6,
		Keywords: []string{
			"revision", "rev.", "drawn by", "checked by", "approved by",
			"designed by", "drawing no", "dwg no", "drawing title",
			"sheet no", "scale", "date", "project no", "job no",
			"legend", "notes", "copyright", "all rights reserved",
			"consultant", "architect", "engineer", "authorized person",
			// Bilingual drawing-admin terms.
			"比例", "日期", "圖號", "修訂", "圖例",
		},
	}
}

// IsTitleBlock reports whether a text fragment at (x, y) on a page of the
// given size is drawing furniture rather than a room label. Coordinates are
// top-left origin (y grows downward). Any one rule triggers exclusion.
func (c FilterConfig) IsTitleBlock(text string, x, y, pageW, pageH float64) bool {
	if pageW <= 0 || pageH <= 0 {
		return false
	}

	// Bottom-right quadrant: the title block itself.
	if x >= pageW*(1-c.TitleBlockXFrac) && y >= pageH*(1-c.TitleBlockYFrac) {
		return true
	}
	// Bottom strip: footers, stamps.
	if y >= pageH*(1-c.FooterYFrac) {
		return true
	}

	if c.HasAdminKeyword(text) {
		return true
	}

	// Short code-like tokens (grid references, revision letters) along
	// the right edge.
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= c.MaxCodeLen && x >= pageW*(1-c.CodeZoneXFrac) && isCodeToken(trimmed) {
		return true
	}

	return false
}

// HasAdminKeyword reports whether the text contains a drawing-admin term,
// independent of position. Useful for CAD sources with no page geometry.
func (c FilterConfig) HasAdminKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range c.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isCodeToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) && r != '-' && r != '.' {
			return false
		}
	}
	return true
}

// areaAnnotationRe pulls explicit area annotations from text,
// e.g. "14.2 m²" or "14.20m2".
var areaAnnotationRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:m²|m2|sq\.?\s*m|sqm)`)

// AreaAnnotation extracts an explicit area value in square metres from a
// text fragment, if present.
func AreaAnnotation(text string) (float64, bool) {
	m := areaAnnotationRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// labelNoiseRe strips embedded annotations from a raw label: floor tags
// like "3/F", scale ratios, drawing-admin noise words, and numbers with or
// without an area unit. Floor tags must precede the bare-number alternative
// or "3/F" loses only its digit.
var labelNoiseRe = regexp.MustCompile(`(?i)(\d{1,2}\s*/\s*f\b|1\s*:\s*\d+|\bscale\b|\bratio\b|\bfl\b|\bfloor\b|\d+(?:\.\d+)?\s*(?:m²|m2|sqm|sq\.?\s*m)?)`)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// CleanLabel strips embedded annotations and noise from a raw text fragment
// and collapses whitespace. Leading/trailing punctuation is trimmed without
// damaging non-Latin scripts.
func CleanLabel(raw string) string {
	label := labelNoiseRe.ReplaceAllString(raw, "")
	label = strings.Trim(label, " \t\n\r.,;:-_/\\")
	label = multiSpaceRe.ReplaceAllString(label, " ")
	return label
}
