package extract

import (
	"math"
	"strings"
	"testing"
)

func TestVectorUnitsAnnotatedArea(t *testing.T) {
	words := []Word{
		wordAt("KITCHEN 14.2 m²", 300, 300, 100, 10),
	}

	units := vectorUnits(words, 1000, 800, DefaultFilterConfig(), Options{})
	if len(units) != 1 {
		t.Fatalf("units = %d, want 1", len(units))
	}
	u := units[0]
	if u.Label != "KITCHEN" {
		t.Errorf("label = %q, want KITCHEN", u.Label)
	}
	if math.Abs(u.AreaM2-14.2) > 1e-9 {
		t.Errorf("area = %v, want annotated 14.2", u.AreaM2)
	}
	if u.Notes != "" {
		t.Errorf("notes = %q, want none for an annotated area", u.Notes)
	}
}

// Without a printed annotation the label's bounding box is converted
// through the page scale into an estimate.
func TestVectorUnitsBBoxEstimate(t *testing.T) {
	words := []Word{
		wordAt("SCALE 1:100", 100, 100, 80, 10),
		wordAt("BEDROOM", 300, 300, 72, 10),
	}

	units := vectorUnits(words, 1000, 800, DefaultFilterConfig(), Options{})
	if len(units) != 1 {
		t.Fatalf("units = %d, want 1 (scale text filtered)", len(units))
	}
	u := units[0]
	if u.Label != "BEDROOM" {
		t.Errorf("label = %q, want BEDROOM", u.Label)
	}

	// 72 x 10 pt bbox at 1:100, mm per point at paper size
	side := mmPerPoint * 100 / 1000
	want := round4(720 * side * side)
	if math.Abs(u.AreaM2-want) > 1e-9 {
		t.Errorf("area = %v, want bbox estimate %v", u.AreaM2, want)
	}
	if !strings.Contains(u.Notes, "estimated from label bbox") {
		t.Errorf("notes = %q, want bbox-estimate note", u.Notes)
	}
	if !strings.Contains(u.Notes, "1:100 (scale_text)") {
		t.Errorf("notes = %q, want scale provenance", u.Notes)
	}
}
