package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSignedDistance(t *testing.T) {
	// x axis: points above are positive, below negative
	l := NewLine(mgl64.Vec2{0, 0}, mgl64.Vec2{10, 0})
	if d := l.SignedDistance(mgl64.Vec2{5, 3}); math.Abs(d-3) > 1e-12 {
		t.Fatalf("expected +3 got %v", d)
	}
	if d := l.SignedDistance(mgl64.Vec2{-2, -4}); math.Abs(d+4) > 1e-12 {
		t.Fatalf("expected -4 got %v", d)
	}
	if d := l.Distance(mgl64.Vec2{7, -2}); math.Abs(d-2) > 1e-12 {
		t.Fatalf("expected 2 got %v", d)
	}
}

func TestSegmentDistanceToPoint(t *testing.T) {
	s := Segment{A: mgl64.Vec2{0, 0}, B: mgl64.Vec2{10, 0}}
	// perpendicular foot inside the segment
	if d := s.DistanceToPoint(mgl64.Vec2{5, 2}); math.Abs(d-2) > 1e-12 {
		t.Fatalf("inside foot: expected 2 got %v", d)
	}
	// beyond endpoint B: clamps to endpoint distance
	if d := s.DistanceToPoint(mgl64.Vec2{13, 4}); math.Abs(d-5) > 1e-12 {
		t.Fatalf("clamped: expected 5 got %v", d)
	}
	// degenerate segment
	p := Segment{A: mgl64.Vec2{1, 1}, B: mgl64.Vec2{1, 1}}
	if d := p.DistanceToPoint(mgl64.Vec2{4, 5}); math.Abs(d-5) > 1e-12 {
		t.Fatalf("degenerate: expected 5 got %v", d)
	}
}

func TestAngleBetween(t *testing.T) {
	// perpendicular directions
	a := AngleBetween(mgl64.Vec2{0, 0}, mgl64.Vec2{1, 0}, mgl64.Vec2{0, 0}, mgl64.Vec2{0, 1})
	if math.Abs(a-math.Pi/2) > 1e-9 {
		t.Fatalf("expected pi/2 got %v", a)
	}
	// antiparallel directions give pi
	a = AngleBetween(mgl64.Vec2{0, 0}, mgl64.Vec2{1, 0}, mgl64.Vec2{1, 0}, mgl64.Vec2{0, 0})
	if math.Abs(a-math.Pi) > 1e-9 {
		t.Fatalf("expected pi got %v", a)
	}
}

func TestIsPointLeft(t *testing.T) {
	a, b := mgl64.Vec2{0, 0}, mgl64.Vec2{10, 0}
	if !IsPointLeft(a, b, mgl64.Vec2{5, 1}) {
		t.Fatal("point above x axis should be left")
	}
	if IsPointLeft(a, b, mgl64.Vec2{5, -1}) {
		t.Fatal("point below x axis should not be left")
	}
}

func TestHyperplaneIntersection(t *testing.T) {
	// vertical line x=3 and horizontal line y=4
	h1 := NewHyperplane(mgl64.Vec2{1, 0}, mgl64.Vec2{3, 0})
	h2 := NewHyperplane(mgl64.Vec2{0, 1}, mgl64.Vec2{0, 4})
	p, ok := h1.Intersection(h2)
	if !ok {
		t.Fatal("expected intersection")
	}
	if math.Abs(p.X()-3) > 1e-12 || math.Abs(p.Y()-4) > 1e-12 {
		t.Fatalf("expected (3,4) got %v", p)
	}

	// parallel planes do not intersect
	h3 := NewHyperplane(mgl64.Vec2{1, 0}, mgl64.Vec2{5, 0})
	if _, ok := h1.Intersection(h3); ok {
		t.Fatal("parallel planes must not intersect")
	}

	if d := h1.SignedDistance(mgl64.Vec2{7, 0}); math.Abs(d-4) > 1e-12 {
		t.Fatalf("signed distance expected 4 got %v", d)
	}
	if d := h1.AbsDistance(mgl64.Vec2{-1, 0}); math.Abs(d-4) > 1e-12 {
		t.Fatalf("abs distance expected 4 got %v", d)
	}
}
