package geo

import (
	"math"
	"testing"
)

func TestPointOps(t *testing.T) {
	p := Pt(3, 4)

	if d := p.Distance(Pt(0, 0)); math.Abs(d-5) > 1e-9 {
		t.Errorf("distance = %v, want 5", d)
	}
	if got := p.Add(Pt(1, 1)); got != Pt(4, 5) {
		t.Errorf("add = %v, want (4,5)", got)
	}
	if got := p.Sub(Pt(1, 1)); got != Pt(2, 3) {
		t.Errorf("sub = %v, want (2,3)", got)
	}
	if got := p.Scale(2); got != Pt(6, 8) {
		t.Errorf("scale = %v, want (6,8)", got)
	}
}

func TestRect(t *testing.T) {
	r := Rect{X0: 1, Y0: 2, X1: 5, Y1: 10}

	if w := r.Width(); w != 4 {
		t.Errorf("width = %v, want 4", w)
	}
	if h := r.Height(); h != 8 {
		t.Errorf("height = %v, want 8", h)
	}
	if a := r.Area(); a != 32 {
		t.Errorf("area = %v, want 32", a)
	}
	if c := r.Center(); c != Pt(3, 6) {
		t.Errorf("center = %v, want (3,6)", c)
	}

	u := r.Union(Rect{X0: 0, Y0: 4, X1: 3, Y1: 12})
	want := Rect{X0: 0, Y0: 2, X1: 5, Y1: 12}
	if u != want {
		t.Errorf("union = %v, want %v", u, want)
	}

	if !(Rect{}).IsZero() {
		t.Error("zero rect should report IsZero")
	}
	if r.IsZero() {
		t.Error("non-zero rect reported IsZero")
	}
}

func TestPolygonArea(t *testing.T) {
	// 4 x 3 rectangle, counterclockwise
	rect := NewPolygon(Pt(0, 0), Pt(4, 0), Pt(4, 3), Pt(0, 3))
	if a := rect.Area(); math.Abs(a-12) > 1e-9 {
		t.Errorf("rect area = %v, want 12", a)
	}

	// clockwise winding gives a negative signed area but the same area
	cw := NewPolygon(Pt(0, 0), Pt(0, 3), Pt(4, 3), Pt(4, 0))
	if s := cw.SignedArea(); s >= 0 {
		t.Errorf("signed area = %v, want negative", s)
	}
	if a := cw.Area(); math.Abs(a-12) > 1e-9 {
		t.Errorf("cw area = %v, want 12", a)
	}

	tri := NewPolygon(Pt(0, 0), Pt(6, 0), Pt(0, 4))
	if a := tri.Area(); math.Abs(a-12) > 1e-9 {
		t.Errorf("triangle area = %v, want 12", a)
	}
}

func TestPolygonAreaDegenerate(t *testing.T) {
	if a := (Polygon{}).Area(); a != 0 {
		t.Errorf("empty polygon area = %v, want 0", a)
	}
	line := NewPolygon(Pt(0, 0), Pt(5, 0))
	if a := line.Area(); a != 0 {
		t.Errorf("two-vertex area = %v, want 0", a)
	}
}

func TestPolygonCentroid(t *testing.T) {
	rect := NewPolygon(Pt(0, 0), Pt(4, 0), Pt(4, 2), Pt(0, 2))
	c := rect.Centroid()
	if math.Abs(c.X-2) > 1e-9 || math.Abs(c.Y-1) > 1e-9 {
		t.Errorf("centroid = %v, want (2,1)", c)
	}
}

func TestPolygonBoundingBox(t *testing.T) {
	p := NewPolygon(Pt(1, 5), Pt(7, 2), Pt(3, 9))
	got := p.BoundingBox()
	want := Rect{X0: 1, Y0: 2, X1: 7, Y1: 9}
	if got != want {
		t.Errorf("bbox = %v, want %v", got, want)
	}
}

func TestPolygonContains(t *testing.T) {
	rect := NewPolygon(Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(0, 10))

	if !rect.Contains(Pt(5, 5)) {
		t.Error("interior point reported outside")
	}
	if rect.Contains(Pt(15, 5)) {
		t.Error("exterior point reported inside")
	}
	if rect.Contains(Pt(-1, -1)) {
		t.Error("exterior corner point reported inside")
	}
}
