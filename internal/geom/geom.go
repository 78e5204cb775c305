// Package geom provides the 2D line and segment geometry used by the
// calibration heuristics and sample residuals. Points are mgl64.Vec2; field
// coordinates are millimeters, image coordinates pixels.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Line is an infinite line through Base with unit Direction.
type Line struct {
	Base      mgl64.Vec2
	Direction mgl64.Vec2
}

// NewLine builds a line through a and b. Direction is normalized; a degenerate
// segment (a == b) yields a zero direction and callers must not pass one.
func NewLine(a, b mgl64.Vec2) Line {
	return Line{Base: a, Direction: b.Sub(a).Normalize()}
}

// SignedDistance returns the perpendicular distance from p to the line, with
// the sign given by the side of the line (positive to the left of Direction).
func (l Line) SignedDistance(p mgl64.Vec2) float64 {
	d := p.Sub(l.Base)
	return l.Direction.X()*d.Y() - l.Direction.Y()*d.X()
}

// Distance returns the absolute perpendicular distance from p to the line.
func (l Line) Distance(p mgl64.Vec2) float64 {
	return math.Abs(l.SignedDistance(p))
}

// Segment is a bounded line between two endpoints.
type Segment struct {
	A, B mgl64.Vec2
}

// Midpoint returns the segment center.
func (s Segment) Midpoint() mgl64.Vec2 {
	return s.A.Add(s.B).Mul(0.5)
}

// DistanceToPoint returns the distance from p to the nearest point of the
// segment, clamped to the endpoints.
func (s Segment) DistanceToPoint(p mgl64.Vec2) float64 {
	dir := s.B.Sub(s.A)
	lenSq := dir.Dot(dir)
	if lenSq == 0 {
		return p.Sub(s.A).Len()
	}
	t := p.Sub(s.A).Dot(dir) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return p.Sub(s.A.Add(dir.Mul(t))).Len()
}

// AngleBetween returns the angle in [0, pi] between the directions a1->a2 and
// b1->b2. The dot product is clamped against rounding drift before acos.
func AngleBetween(a1, a2, b1, b2 mgl64.Vec2) float64 {
	da := a1.Sub(a2).Normalize()
	db := b1.Sub(b2).Normalize()
	dot := da.Dot(db)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return math.Acos(dot)
}

// IsPointLeft reports whether p lies strictly to the left of the directed line
// from a to b.
func IsPointLeft(a, b, p mgl64.Vec2) bool {
	return (b.X()-a.X())*(p.Y()-a.Y())-(b.Y()-a.Y())*(p.X()-a.X()) > 0
}

// Hyperplane is a line in normal form: the set of points x with
// dot(Normal, x) == dot(Normal, point-on-line). Normal is unit length.
type Hyperplane struct {
	Normal mgl64.Vec2
	Offset float64
}

// NewHyperplane builds the normal form from a unit normal and a point on the
// line.
func NewHyperplane(normal, point mgl64.Vec2) Hyperplane {
	return Hyperplane{Normal: normal, Offset: normal.Dot(point)}
}

// SignedDistance returns the signed distance from p to the hyperplane.
func (h Hyperplane) SignedDistance(p mgl64.Vec2) float64 {
	return h.Normal.Dot(p) - h.Offset
}

// AbsDistance returns the absolute distance from p to the hyperplane.
func (h Hyperplane) AbsDistance(p mgl64.Vec2) float64 {
	return math.Abs(h.SignedDistance(p))
}

// Intersection returns the point common to two hyperplanes. Parallel planes
// have no intersection; ok is false in that case.
func (h Hyperplane) Intersection(o Hyperplane) (mgl64.Vec2, bool) {
	det := h.Normal.X()*o.Normal.Y() - h.Normal.Y()*o.Normal.X()
	if math.Abs(det) < 1e-12 {
		return mgl64.Vec2{}, false
	}
	x := (h.Offset*o.Normal.Y() - o.Offset*h.Normal.Y()) / det
	y := (h.Normal.X()*o.Offset - o.Normal.X()*h.Offset) / det
	return mgl64.Vec2{x, y}, true
}
