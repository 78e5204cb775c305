package sample

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/fieldrobotics/autocal/internal/camera"
	"github.com/fieldrobotics/autocal/internal/field"
	"github.com/fieldrobotics/autocal/internal/geom"
	"github.com/fieldrobotics/autocal/internal/vision"
)

// InvalidError is the sentinel a residual returns when a stored feature does
// not project onto the ground under the candidate calibration. Any residual
// at or above this value makes the optimizer treat the step as divergence.
const InvalidError = 1e9

// Env carries the field geometry and error-shaping tolerances shared by all
// samples of a session.
type Env struct {
	Field field.Dimensions
	// AngleErrorDivisor scales angular residuals (radians) into the common
	// error unit.
	AngleErrorDivisor float64
	// DistanceErrorDivisor scales distance residuals (millimeters) into the
	// common error unit.
	DistanceErrorDivisor float64
	// PixelInaccuracyPerMeter slackens distance residuals by the expected
	// per-meter detection inaccuracy.
	PixelInaccuracyPerMeter float64
}

// DefaultEnv returns the environment with standard field dimensions and the
// default tolerances.
func DefaultEnv() Env {
	return Env{
		Field:                   field.Default(),
		AngleErrorDivisor:       0.1,
		DistanceErrorDivisor:    100,
		PixelInaccuracyPerMeter: 5,
	}
}

// Capture freezes the robot pose the moment a sample was taken. Residuals
// re-derive the camera matrix from it for every candidate calibration.
type Capture struct {
	Torso             camera.Pose3
	HeadPan, HeadTilt float64
	Info              camera.Info
	Mount             camera.Mount
}

// CameraMatrix derives the camera pose under a candidate calibration.
func (c Capture) CameraMatrix(calib camera.Calibration) camera.Pose3 {
	return camera.Matrix(c.Torso, c.HeadPan, c.HeadTilt, c.Mount, c.Info.Camera, calib)
}

// Sample is one accepted measurement. ComputeError re-projects the stored
// image-space features under the candidate calibration and measures the
// deviation from the geometric expectation of the sample type. Samples are
// immutable after construction.
type Sample interface {
	Type() Type
	ComputeError(calib camera.Calibration) float64
}

// reproject recomputes the ground projections of a corrected line's refined
// endpoints under a candidate camera matrix.
func reproject(cl vision.CorrectedLine, cm camera.Pose3, info camera.Info) (a, b mgl64.Vec2, ok bool) {
	if a, ok = camera.ImageToRobot(cl.AInImage, cm, info); !ok {
		return
	}
	b, ok = camera.ImageToRobot(cl.BInImage, cm, info)
	return
}

// CornerAngleSample expects the short connecting line and the reference long
// line to be perpendicular on the ground.
type CornerAngleSample struct {
	Env     Env
	Capture Capture
	Short   vision.CorrectedLine
	Ref     vision.CorrectedLine
}

func (s *CornerAngleSample) Type() Type { return CornerAngle }

func (s *CornerAngleSample) ComputeError(calib camera.Calibration) float64 {
	cm := s.Capture.CameraMatrix(calib)
	a1, b1, ok := reproject(s.Short, cm, s.Capture.Info)
	if !ok {
		return InvalidError
	}
	a2, b2, ok := reproject(s.Ref, cm, s.Capture.Info)
	if !ok {
		return InvalidError
	}
	angle := geom.AngleBetween(a1, b1, a2, b2)
	return math.Abs(math.Pi/2-angle) / s.Env.AngleErrorDivisor
}

// ParallelAngleSample expects two long lines to be parallel on the ground.
type ParallelAngleSample struct {
	Env          Env
	Capture      Capture
	Line1, Line2 vision.CorrectedLine
}

func (s *ParallelAngleSample) Type() Type { return ParallelAngle }

func (s *ParallelAngleSample) ComputeError(calib camera.Calibration) float64 {
	cm := s.Capture.CameraMatrix(calib)
	a1, b1, ok := reproject(s.Line1, cm, s.Capture.Info)
	if !ok {
		return InvalidError
	}
	a2, b2, ok := reproject(s.Line2, cm, s.Capture.Info)
	if !ok {
		return InvalidError
	}
	angle := geom.AngleBetween(a1, b1, a2, b2)
	return math.Min(angle, math.Pi-angle) / s.Env.AngleErrorDivisor
}

// ParallelLinesDistanceSample expects the ground line and the front goal area
// line to run at the known spacing.
type ParallelLinesDistanceSample struct {
	Env          Env
	Capture      Capture
	Line1, Line2 vision.CorrectedLine
}

func (s *ParallelLinesDistanceSample) Type() Type { return ParallelLinesDistance }

func (s *ParallelLinesDistanceSample) ComputeError(calib camera.Calibration) float64 {
	cm := s.Capture.CameraMatrix(calib)
	a1, b1, ok := reproject(s.Line1, cm, s.Capture.Info)
	if !ok {
		return InvalidError
	}
	a2, b2, ok := reproject(s.Line2, cm, s.Capture.Info)
	if !ok {
		return InvalidError
	}
	line1 := geom.NewLine(a1, b1)
	line2 := geom.NewLine(a2, b2)

	d1 := line1.SignedDistance(a2)
	d2 := line1.SignedDistance(b2)
	d3 := line2.SignedDistance(a1)
	d4 := line2.SignedDistance(b1)

	// Each endpoint gets a distance slack that grows with its range from the
	// robot, absorbing detection inaccuracy of far features.
	slack := func(p mgl64.Vec2) float64 {
		return p.Len() / 1000 * s.Env.PixelInaccuracyPerMeter
	}

	combinedOffset := s.Line2.Offset - s.Line1.Offset
	if d1 > 0 {
		combinedOffset = s.Line1.Offset - s.Line2.Offset
	}
	optimal := s.Env.Field.ParallelLinesDistance() + combinedOffset

	err := 0.0
	for _, c := range []struct {
		d float64
		p mgl64.Vec2
	}{{d1, a2}, {d2, b2}, {d3, a1}, {d4, b1}} {
		e := math.Max(0, math.Abs(math.Abs(c.d)-optimal)-slack(c.p))
		if e > err {
			err = e
		}
	}
	return err / s.Env.DistanceErrorDivisor
}

// markDistanceError measures the perpendicular distance between a refined
// line and the penalty mark against an expected value.
func markDistanceError(env Env, capture Capture, cl vision.CorrectedLine,
	markInImage mgl64.Vec2, expected float64, calib camera.Calibration) float64 {

	cm := capture.CameraMatrix(calib)
	a, b, ok := reproject(cl, cm, capture.Info)
	if !ok {
		return InvalidError
	}
	mark, ok := camera.ImageToRobot(markInImage, cm, capture.Info)
	if !ok {
		return InvalidError
	}
	distance := geom.NewLine(a, b).Distance(mark)
	return math.Abs(distance-(expected+cl.Offset)) / env.DistanceErrorDivisor
}

// GoalAreaDistanceSample expects the front goal area line at the known
// distance from the penalty mark.
type GoalAreaDistanceSample struct {
	Env         Env
	Capture     Capture
	MarkInImage mgl64.Vec2
	Line        vision.CorrectedLine
}

func (s *GoalAreaDistanceSample) Type() Type { return GoalAreaDistance }

func (s *GoalAreaDistanceSample) ComputeError(calib camera.Calibration) float64 {
	return markDistanceError(s.Env, s.Capture, s.Line, s.MarkInImage,
		s.Env.Field.GoalAreaToPenaltyMark(), calib)
}

// GroundLineDistanceSample expects the ground line at the known distance from
// the penalty mark.
type GroundLineDistanceSample struct {
	Env         Env
	Capture     Capture
	MarkInImage mgl64.Vec2
	Line        vision.CorrectedLine
}

func (s *GroundLineDistanceSample) Type() Type { return GroundLineDistance }

func (s *GroundLineDistanceSample) ComputeError(calib camera.Calibration) float64 {
	return markDistanceError(s.Env, s.Capture, s.Line, s.MarkInImage,
		s.Env.Field.GroundLineToPenaltyMark(), calib)
}
