package geo

import "math"

// Polygon is a closed polygon defined by its vertices in order.
type Polygon struct {
	Vertices []Point
}

// NewPolygon creates a polygon from a list of vertices.
func NewPolygon(pts ...Point) Polygon {
	return Polygon{Vertices: pts}
}

// Len returns the number of vertices.
func (p Polygon) Len() int {
	return len(p.Vertices)
}

// IsEmpty returns true if the polygon has fewer than 3 vertices.
func (p Polygon) IsEmpty() bool {
	return len(p.Vertices) < 3
}

// SignedArea returns the signed area using the shoelace formula.
// Positive for counterclockwise winding, negative for clockwise.
func (p Polygon) SignedArea() float64 {
	n := len(p.Vertices)
	if n < 3 {
		return 0
	}
	area := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += p.Vertices[i].X * p.Vertices[j].Y
		area -= p.Vertices[j].X * p.Vertices[i].Y
	}
	return area / 2
}

// Area returns the unsigned area of the polygon.
func (p Polygon) Area() float64 {
	return math.Abs(p.SignedArea())
}

// Centroid returns the mean of the polygon's vertices. Room footprints
// from drawings are near-convex, so the vertex mean is close enough to
// the true centroid for nearest-label association.
func (p Polygon) Centroid() Point {
	n := len(p.Vertices)
	if n == 0 {
		return Point{}
	}
	sum := Point{}
	for _, v := range p.Vertices {
		sum = sum.Add(v)
	}
	return sum.Scale(1.0 / float64(n))
}

// BoundingBox returns the axis-aligned bounding box of the polygon.
func (p Polygon) BoundingBox() Rect {
	if len(p.Vertices) == 0 {
		return Rect{}
	}
	r := Rect{
		X0: p.Vertices[0].X, Y0: p.Vertices[0].Y,
		X1: p.Vertices[0].X, Y1: p.Vertices[0].Y,
	}
	for _, v := range p.Vertices[1:] {
		if v.X < r.X0 {
			r.X0 = v.X
		}
		if v.Y < r.Y0 {
			r.Y0 = v.Y
		}
		if v.X > r.X1 {
			r.X1 = v.X
		}
		if v.Y > r.Y1 {
			r.Y1 = v.Y
		}
	}
	return r
}

// Contains returns true if the point is inside the polygon using ray casting.
func (p Polygon) Contains(pt Point) bool {
	n := len(p.Vertices)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi := p.Vertices[i]
		vj := p.Vertices[j]
		if (vi.Y > pt.Y) != (vj.Y > pt.Y) &&
			pt.X < (vj.X-vi.X)*(pt.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}
