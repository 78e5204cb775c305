package vision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/fieldrobotics/autocal/internal/camera"
	"github.com/fieldrobotics/autocal/internal/geom"
	"github.com/fieldrobotics/autocal/internal/units"
)

// CorrectedLine is a sub-pixel refined field line: the refined image
// endpoints, their ground-plane projections and the signed lateral offset of
// the detected edge from the line centerline. Once built it is never changed.
type CorrectedLine struct {
	AInImage, BInImage mgl64.Vec2
	AOnField, BOnField mgl64.Vec2
	Offset             float64
}

// Refiner recovers edge-accurate replacement lines for coarse line percepts.
// One refiner serves one frame: it holds that frame's grayscale image and
// camera pose.
type Refiner struct {
	Image        *Image8
	Info         camera.Info
	CameraMatrix camera.Pose3

	// HalfLineWidth is the magnitude assigned to CorrectedLine.Offset.
	HalfLineWidth float64
	// ThresholdFraction scales the strongest gradient magnitude in the patch
	// to the vote threshold.
	ThresholdFraction float64
	// MinEdgeSeparation is the minimum pixel distance between the two edges
	// of a line.
	MinEdgeSeparation float64
	// SectorHalfWidth restricts the Hough angle search around the known
	// approximate edge direction.
	SectorHalfWidth float64

	numAngles int
	sin, cos  []float64
}

// NewRefiner builds a refiner with the default tuning.
func NewRefiner(img *Image8, info camera.Info, cameraMatrix camera.Pose3, halfLineWidth float64) *Refiner {
	r := &Refiner{
		Image:             img,
		Info:              info,
		CameraMatrix:      cameraMatrix,
		HalfLineWidth:     halfLineWidth,
		ThresholdFraction: 0.25,
		MinEdgeSeparation: 2,
		SectorHalfWidth:   units.Deg(10),
		numAngles:         360,
	}
	r.sin = make([]float64, r.numAngles)
	r.cos = make([]float64, r.numAngles)
	for i := 0; i < r.numAngles; i++ {
		a := float64(i) * math.Pi / float64(r.numAngles)
		r.sin[i] = math.Sin(a)
		r.cos[i] = math.Cos(a)
	}
	return r
}

// FitLine refines the coarse segment a-b. It returns false when no paired
// edge is found or a refined endpoint does not project onto the ground.
func (r *Refiner) FitLine(a, b mgl64.Vec2) (CorrectedLine, bool) {
	if b.X() < a.X() {
		a, b = b, a
	}

	// Patch bounds: padded to 32x32 minimum, width rounded up to blocks of 16.
	mid := a.Add(b).Mul(0.5)
	sizeX := (max(32, int(b.X()-a.X())) + 15) / 16 * 16
	sizeY := max(32, abs(int(b.Y()-a.Y())))
	startX := int(mid.X()) - sizeX/2
	startY := int(mid.Y()) - sizeY/2
	origin := mgl64.Vec2{float64(startX), float64(startY)}

	patch := r.Image.ExtractPatch(startX, startY, sizeX, sizeY)
	gradient := Sobel(patch)

	// The line direction is known approximately, so only edge normals within
	// a narrow sector around its perpendicular are considered.
	dir := b.Sub(a).Normalize()
	perp := mgl64.Vec2{-dir.Y(), dir.X()}
	angle := units.Mod180(math.Atan2(perp.Y(), perp.X()))
	minIndex := r.angleIndex(units.Mod180(angle - r.SectorHalfWidth))
	maxIndex := r.angleIndex(units.Mod180(angle + r.SectorHalfWidth))

	// A featureless patch has no edges to vote for; without this check the
	// zero threshold would let every pixel vote and fabricate a line.
	threshold := r.voteThreshold(gradient)
	if threshold == 0 {
		return CorrectedLine{}, false
	}

	dMax := int(math.Ceil(math.Hypot(float64(gradient.Height), float64(gradient.Width))))
	space := newHoughSpace(r.numAngles, dMax, r.sin, r.cos)
	space.accumulate(gradient, minIndex, maxIndex, threshold)

	maxima := space.localMaxima(minIndex, maxIndex)
	if len(maxima) < 2 {
		return CorrectedLine{}, false
	}
	sortByVotes(maxima)

	// The strongest maximum is the primary edge.
	primary := r.edgePlane(maxima[0], dMax, origin)

	// Perpendiculars through the coarse endpoints cut both edges to the
	// segment extent.
	var norm mgl64.Vec2
	if math.Abs(a.X()-b.X()) < math.Abs(a.Y()-b.Y()) {
		norm = mgl64.Vec2{0, 1}
	} else {
		norm = mgl64.Vec2{1, 0}
	}
	planeA := geom.NewHyperplane(norm, a)
	planeB := geom.NewHyperplane(norm, b)

	var cl CorrectedLine
	var ok bool
	if cl.AInImage, ok = primary.Intersection(planeA); !ok {
		return CorrectedLine{}, false
	}
	if cl.BInImage, ok = primary.Intersection(planeB); !ok {
		return CorrectedLine{}, false
	}

	// Find the opposite edge: the first remaining maximum whose cut lies
	// consistently on one side of the primary edge and far enough away.
	for _, m := range maxima[1:] {
		opposite := r.edgePlane(m, dMax, origin)
		startOpp, okA := opposite.Intersection(planeA)
		endOpp, okB := opposite.Intersection(planeB)
		if !okA || !okB {
			continue
		}
		if (primary.SignedDistance(startOpp) < 0) != (primary.SignedDistance(endOpp) < 0) ||
			primary.AbsDistance(startOpp) < r.MinEdgeSeparation ||
			primary.AbsDistance(endOpp) < r.MinEdgeSeparation {
			continue
		}
		midOpp := startOpp.Add(endOpp).Mul(0.5)
		if primary.SignedDistance(midOpp) > 0 {
			cl.Offset = r.HalfLineWidth
		} else {
			cl.Offset = -r.HalfLineWidth
		}
		return cl, r.projectEndpoints(&cl)
	}
	return CorrectedLine{}, false
}

// voteThreshold derives the squared-magnitude vote threshold from the
// strongest gradient in the patch.
func (r *Refiner) voteThreshold(g *GradientImage) float64 {
	var maxSq int32
	for y := 1; y < g.Height-1; y++ {
		for x := 1; x < g.Width-1; x++ {
			if v := g.MagSq(x, y); v > maxSq {
				maxSq = v
			}
		}
	}
	t := math.Sqrt(float64(maxSq)) * r.ThresholdFraction
	return t * t
}

// angleIndex maps an angle in [0, pi) to its accumulator bin.
func (r *Refiner) angleIndex(a float64) int {
	return int(a*float64(r.numAngles)/math.Pi) % r.numAngles
}

// edgePlane converts an accumulator maximum into an image-space hyperplane.
func (r *Refiner) edgePlane(m maximum, dMax int, origin mgl64.Vec2) geom.Hyperplane {
	distance := float64(m.distanceIndex - dMax)
	normal := mgl64.Vec2{r.cos[m.angleIndex], r.sin[m.angleIndex]}
	point := normal.Mul(distance).Add(origin)
	return geom.NewHyperplane(normal, point)
}

// projectEndpoints fills in the ground-plane projections of both refined
// endpoints. It fails when either projection is invalid.
func (r *Refiner) projectEndpoints(cl *CorrectedLine) bool {
	var ok bool
	if cl.AOnField, ok = camera.ImageToRobot(cl.AInImage, r.CameraMatrix, r.Info); !ok {
		return false
	}
	cl.BOnField, ok = camera.ImageToRobot(cl.BInImage, r.CameraMatrix, r.Info)
	return ok
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
