package vision

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/fieldrobotics/autocal/internal/camera"
	"github.com/fieldrobotics/autocal/internal/units"
)

// drawBand paints a bright band of the given half width around the centerline
// y = yMid + slope*(x-xMid) onto a dark frame.
func drawBand(im *Image8, xMid, yMid, slope, halfWidth float64, value uint8) {
	for x := 0; x < im.Width; x++ {
		center := yMid + slope*(float64(x)-xMid)
		for y := int(math.Ceil(center - halfWidth)); y <= int(math.Floor(center + halfWidth)); y++ {
			if y >= 0 && y < im.Height {
				im.Set(x, y, value)
			}
		}
	}
}

func testRefiner(t *testing.T, im *Image8) *Refiner {
	t.Helper()
	info := camera.DefaultInfo(camera.Lower)
	cm := camera.Matrix(camera.Translation(mgl64.Vec3{0, 0, 260}), 0, 0,
		camera.DefaultMount(camera.Lower), camera.Lower, camera.Calibration{})
	return NewRefiner(im, info, cm, 25)
}

func TestFitLineHorizontalBand(t *testing.T) {
	im := NewImage8(640, 480)
	drawBand(im, 320, 245, 0, 10, 255)
	r := testRefiner(t, im)

	cl, ok := r.FitLine(mgl64.Vec2{200, 244}, mgl64.Vec2{440, 246})
	if !ok {
		t.Fatal("expected a refined line")
	}

	dir := cl.BInImage.Sub(cl.AInImage)
	angle := math.Abs(math.Atan2(dir.Y(), dir.X()))
	if angle > units.Deg(1) {
		t.Fatalf("refined angle %v deg, want within 1 deg of horizontal", units.ToDeg(angle))
	}

	if math.Abs(cl.Offset) != 25 {
		t.Fatalf("offset magnitude %v, want 25", cl.Offset)
	}
	// The refined line sits on one edge of the band; the sign says on which
	// side the paired edge was found. Image y grows downward, the accumulator
	// normal points toward +y, so a primary edge above the band center pairs
	// with a positive offset.
	midY := cl.AInImage.Add(cl.BInImage).Mul(0.5).Y()
	if midY < 245 && cl.Offset < 0 {
		t.Fatalf("primary upper edge (y=%v) should carry a positive offset, got %v", midY, cl.Offset)
	}
	if midY > 245 && cl.Offset > 0 {
		t.Fatalf("primary lower edge (y=%v) should carry a negative offset, got %v", midY, cl.Offset)
	}

	// Edges are 10px from the centerline; the refined line must sit on one of
	// them.
	if math.Abs(math.Abs(midY-245)-10) > 2 {
		t.Fatalf("refined line at y=%v, want near 235 or 255", midY)
	}
}

func TestFitLineSlopedBand(t *testing.T) {
	im := NewImage8(640, 480)
	slope := 0.05
	drawBand(im, 320, 240, slope, 10, 255)
	r := testRefiner(t, im)

	cl, ok := r.FitLine(mgl64.Vec2{200, 234}, mgl64.Vec2{440, 246})
	if !ok {
		t.Fatal("expected a refined line")
	}
	dir := cl.BInImage.Sub(cl.AInImage)
	got := math.Atan2(dir.Y(), dir.X())
	want := math.Atan(slope)
	if math.Abs(got-want) > units.Deg(1) {
		t.Fatalf("refined angle %v deg, want %v deg within 1 deg",
			units.ToDeg(got), units.ToDeg(want))
	}
}

func TestFitLineVerticalBand(t *testing.T) {
	im := NewImage8(640, 480)
	// A vertical band has edge normals near 0 degrees, so the restricted
	// sector wraps around the end of the angle axis.
	for y := 0; y < im.Height; y++ {
		for x := 310; x <= 330; x++ {
			im.Set(x, y, 255)
		}
	}
	r := testRefiner(t, im)

	cl, ok := r.FitLine(mgl64.Vec2{319, 100}, mgl64.Vec2{321, 380})
	if !ok {
		t.Fatal("expected a refined line")
	}

	dir := cl.BInImage.Sub(cl.AInImage)
	tilt := math.Atan2(math.Abs(dir.X()), math.Abs(dir.Y()))
	if tilt > units.Deg(1) {
		t.Fatalf("refined line tilted %v deg off vertical", units.ToDeg(tilt))
	}

	if math.Abs(cl.Offset) != 25 {
		t.Fatalf("offset magnitude %v, want 25", cl.Offset)
	}
	// Edges sit at x=310 and x=330; the refined line must land on one.
	midX := cl.AInImage.Add(cl.BInImage).Mul(0.5).X()
	if math.Abs(midX-310) > 2 && math.Abs(midX-330) > 2 {
		t.Fatalf("refined line at x=%v, want near 310 or 330", midX)
	}
}

func TestFitLineNoPairedEdge(t *testing.T) {
	im := NewImage8(640, 480)
	// A single step edge: only one gradient line exists, so no opposite edge
	// can be paired.
	for y := 250; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			im.Set(x, y, 255)
		}
	}
	r := testRefiner(t, im)
	if _, ok := r.FitLine(mgl64.Vec2{200, 249}, mgl64.Vec2{440, 251}); ok {
		t.Fatal("single edge must not produce a corrected line")
	}
}

func TestFitLineEmptyPatch(t *testing.T) {
	im := NewImage8(640, 480)
	r := testRefiner(t, im)
	if _, ok := r.FitLine(mgl64.Vec2{200, 240}, mgl64.Vec2{440, 240}); ok {
		t.Fatal("empty patch must not produce a corrected line")
	}
}

func TestExtractPatchClamping(t *testing.T) {
	im := NewImage8(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			im.Set(x, y, 200)
		}
	}
	patch := im.ExtractPatch(-2, -2, 6, 6)
	if patch.At(0, 0) != 0 {
		t.Fatal("out-of-image pixels must stay zero")
	}
	if patch.At(3, 3) != 200 {
		t.Fatal("in-image pixels must be copied")
	}
}

func TestSobelStepEdge(t *testing.T) {
	im := NewImage8(8, 8)
	for y := 4; y < 8; y++ {
		for x := 0; x < 8; x++ {
			im.Set(x, y, 100)
		}
	}
	g := Sobel(im)
	// Vertical gradient across the horizontal edge, none along it.
	i := 4*g.Width + 4
	if g.Y[i] == 0 {
		t.Fatal("expected vertical response on the edge")
	}
	if g.X[i] != 0 {
		t.Fatalf("expected no horizontal response, got %d", g.X[i])
	}
	// Border rows stay zero.
	if g.MagSq(4, 0) != 0 {
		t.Fatal("border must stay zero")
	}
}
