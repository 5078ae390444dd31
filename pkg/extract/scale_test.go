package extract

import (
	"math"
	"testing"

	"github.com/chaoyuebeta/areacalc-hk/pkg/geo"
)

func wordAt(text string, x, y, w, h float64) Word {
	return Word{
		Text:       text,
		BBox:       geo.Rect{X0: x, Y0: y, X1: x + w, Y1: y + h},
		Confidence: 1.0,
	}
}

func TestCalibrateFallback(t *testing.T) {
	cal := Calibrate(nil, 1000, 800, DefaultFilterConfig(), 100, mmPerPoint)

	if cal.Source != "fallback" {
		t.Errorf("source = %q, want fallback", cal.Source)
	}
	if cal.Denominator != 100 {
		t.Errorf("denominator = %d, want 100", cal.Denominator)
	}
	if math.Abs(cal.MMPerUnit-mmPerPoint*100) > 1e-9 {
		t.Errorf("mm/unit = %v, want %v", cal.MMPerUnit, mmPerPoint*100)
	}
}

func TestCalibrateFromScaleText(t *testing.T) {
	words := []Word{
		wordAt("SCALE 1:200", 100, 100, 80, 10),
		wordAt("Bedroom", 300, 300, 60, 10),
	}
	cal := Calibrate(words, 1000, 800, DefaultFilterConfig(), 100, mmPerPoint)

	if cal.Source != "scale_text" {
		t.Errorf("source = %q, want scale_text", cal.Source)
	}
	if cal.Denominator != 200 {
		t.Errorf("denominator = %d, want 200", cal.Denominator)
	}
}

func TestCalibrateBareRatio(t *testing.T) {
	words := []Word{wordAt("1:50", 100, 100, 30, 10)}
	cal := Calibrate(words, 1000, 800, DefaultFilterConfig(), 100, mmPerPoint)

	if cal.Source != "scale_text" || cal.Denominator != 50 {
		t.Errorf("got %q 1:%d, want scale_text 1:50", cal.Source, cal.Denominator)
	}
}

// Bare ratios with implausible denominators are grid refs or flat numbers,
// not scales.
func TestCalibrateRejectsOddBareRatio(t *testing.T) {
	words := []Word{wordAt("1:37", 100, 100, 30, 10)}
	cal := Calibrate(words, 1000, 800, DefaultFilterConfig(), 100, mmPerPoint)

	if cal.Source != "fallback" {
		t.Errorf("source = %q, want fallback", cal.Source)
	}
}

func TestCalibrateFromDimensions(t *testing.T) {
	// Three 3000 mm dimension annotations along one chain. At a true
	// 1:100, 3000 mm of building prints as 30 mm of paper = 85.04 pt,
	// so token centres sit 85 pt apart.
	const gap = 85.0
	words := []Word{
		wordAt("3000", 100, 495, 20, 10),
		wordAt("3000", 100+gap, 495, 20, 10),
		wordAt("3000", 100+2*gap, 495, 20, 10),
		// explicit scale text must lose to measured dimensions
		wordAt("SCALE 1:200", 200, 700, 80, 10),
	}
	cal := Calibrate(words, 2000, 1000, DefaultFilterConfig(), 100, mmPerPoint)

	if cal.Source != "dimensions" {
		t.Fatalf("source = %q, want dimensions", cal.Source)
	}
	want := 3000.0 / gap
	if math.Abs(cal.MMPerUnit-want) > 0.5 {
		t.Errorf("mm/unit = %v, want ~%v", cal.MMPerUnit, want)
	}
	if cal.Denominator != 100 {
		t.Errorf("denominator = %d, want 100", cal.Denominator)
	}
}

// A single dimension token is not enough evidence to calibrate on.
func TestCalibrateIgnoresLoneDimension(t *testing.T) {
	words := []Word{wordAt("3000", 100, 500, 20, 10)}
	cal := Calibrate(words, 2000, 1000, DefaultFilterConfig(), 100, mmPerPoint)

	if cal.Source != "fallback" {
		t.Errorf("source = %q, want fallback", cal.Source)
	}
}

// Implausible ratios (tokens too close or too far apart for any real
// drawing scale) must not poison the calibration.
func TestCalibrateDimensionWindow(t *testing.T) {
	words := []Word{
		wordAt("3000", 100, 500, 20, 10),
		wordAt("3000", 101, 500, 20, 10), // 1 pt apart: 3000 mm/pt is absurd
	}
	cal := Calibrate(words, 2000, 1000, DefaultFilterConfig(), 100, mmPerPoint)

	if cal.Source != "fallback" {
		t.Errorf("source = %q, want fallback", cal.Source)
	}
}

func TestCalibrationAreaM2(t *testing.T) {
	cal := Calibration{MMPerUnit: mmPerPoint * 100}

	// a 100 x 100 pt square at 1:100 is 3.5278 m on a side
	got := cal.AreaM2(100 * 100)
	want := math.Pow(100*mmPerPoint*100/1000, 2)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("area = %v, want %v", got, want)
	}
}
