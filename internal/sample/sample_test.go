package sample

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/fieldrobotics/autocal/internal/camera"
	"github.com/fieldrobotics/autocal/internal/vision"
)

// testCapture returns a standing pose with the lower camera.
func testCapture() Capture {
	return Capture{
		Torso: camera.Translation(mgl64.Vec3{0, 0, 260}),
		Info:  camera.DefaultInfo(camera.Lower),
		Mount: camera.DefaultMount(camera.Lower),
	}
}

// syntheticLine projects a field-space segment into the image under the given
// calibration, building the corrected line a perfect refiner would emit.
func syntheticLine(t *testing.T, capture Capture, calib camera.Calibration, a, b mgl64.Vec2, offset float64) vision.CorrectedLine {
	t.Helper()
	cm := capture.CameraMatrix(calib)
	ai, ok := camera.RobotToImage(a, cm, capture.Info)
	if !ok {
		t.Fatalf("cannot project %v", a)
	}
	bi, ok := camera.RobotToImage(b, cm, capture.Info)
	if !ok {
		t.Fatalf("cannot project %v", b)
	}
	return vision.CorrectedLine{AInImage: ai, BInImage: bi, AOnField: a, BOnField: b, Offset: offset}
}

func TestCornerAngleError(t *testing.T) {
	env := DefaultEnv()
	capture := testCapture()
	truth := camera.Calibration{}

	short := syntheticLine(t, capture, truth, mgl64.Vec2{900, -200}, mgl64.Vec2{1600, -200}, 0)
	ref := syntheticLine(t, capture, truth, mgl64.Vec2{1600, -300}, mgl64.Vec2{1600, 300}, 0)
	s := &CornerAngleSample{Env: env, Capture: capture, Short: short, Ref: ref}

	if err := s.ComputeError(truth); err > 1e-6 {
		t.Fatalf("perpendicular lines under true calibration: error %v", err)
	}

	// A tilted candidate shears the reprojection and breaks the right angle.
	tilted := camera.Calibration{LowerCamera: camera.RotationCorrection{Roll: 0.03}}
	if err := s.ComputeError(tilted); err < 1e-4 {
		t.Fatalf("expected positive error under wrong calibration, got %v", err)
	}
}

func TestParallelAngleError(t *testing.T) {
	env := DefaultEnv()
	capture := testCapture()
	truth := camera.Calibration{}

	l1 := syntheticLine(t, capture, truth, mgl64.Vec2{1200, -400}, mgl64.Vec2{1200, 400}, 0)
	l2 := syntheticLine(t, capture, truth, mgl64.Vec2{1800, -400}, mgl64.Vec2{1800, 400}, 0)
	s := &ParallelAngleSample{Env: env, Capture: capture, Line1: l1, Line2: l2}

	if err := s.ComputeError(truth); err > 1e-6 {
		t.Fatalf("parallel lines under true calibration: error %v", err)
	}

	// Antiparallel endpoint order must not matter.
	l2Rev := vision.CorrectedLine{AInImage: l2.BInImage, BInImage: l2.AInImage}
	sRev := &ParallelAngleSample{Env: env, Capture: capture, Line1: l1, Line2: l2Rev}
	if err := sRev.ComputeError(truth); err > 1e-6 {
		t.Fatalf("reversed parallel line: error %v", err)
	}
}

func TestParallelLinesDistanceError(t *testing.T) {
	env := DefaultEnv()
	capture := testCapture()
	truth := camera.Calibration{}
	spacing := env.Field.ParallelLinesDistance()

	// Two lateral lines at exactly the goal-area spacing, detected edges
	// without offset.
	l1 := syntheticLine(t, capture, truth, mgl64.Vec2{1200, -400}, mgl64.Vec2{1200, 400}, 0)
	l2 := syntheticLine(t, capture, truth, mgl64.Vec2{1200 + spacing, -400}, mgl64.Vec2{1200 + spacing, 400}, 0)
	s := &ParallelLinesDistanceSample{Env: env, Capture: capture, Line1: l1, Line2: l2}

	if err := s.ComputeError(truth); err > 1e-6 {
		t.Fatalf("correct spacing under true calibration: error %v", err)
	}
}

func TestMarkDistanceErrors(t *testing.T) {
	env := DefaultEnv()
	capture := testCapture()
	truth := camera.Calibration{}
	cm := capture.CameraMatrix(truth)

	mark := mgl64.Vec2{1000, 0}
	markImg, ok := camera.RobotToImage(mark, cm, capture.Info)
	if !ok {
		t.Fatal("cannot project mark")
	}

	goalArea := syntheticLine(t, capture, truth,
		mgl64.Vec2{1000 + env.Field.GoalAreaToPenaltyMark(), -400},
		mgl64.Vec2{1000 + env.Field.GoalAreaToPenaltyMark(), 400}, 0)
	ground := syntheticLine(t, capture, truth,
		mgl64.Vec2{1000 + env.Field.GroundLineToPenaltyMark(), -400},
		mgl64.Vec2{1000 + env.Field.GroundLineToPenaltyMark(), 400}, 0)

	ga := &GoalAreaDistanceSample{Env: env, Capture: capture, MarkInImage: markImg, Line: goalArea}
	gl := &GroundLineDistanceSample{Env: env, Capture: capture, MarkInImage: markImg, Line: ground}

	if err := ga.ComputeError(truth); err > 1e-6 {
		t.Fatalf("goal area distance under true calibration: error %v", err)
	}
	if err := gl.ComputeError(truth); err > 1e-6 {
		t.Fatalf("ground line distance under true calibration: error %v", err)
	}
}

func TestComputeErrorInvalidProjection(t *testing.T) {
	env := DefaultEnv()
	capture := testCapture()
	truth := camera.Calibration{}

	// An image point far above the horizon cannot be reprojected; the sample
	// must report the sentinel rather than a finite error.
	bad := vision.CorrectedLine{AInImage: mgl64.Vec2{320, -5000}, BInImage: mgl64.Vec2{400, -5000}}
	good := syntheticLine(t, capture, truth, mgl64.Vec2{1200, -300}, mgl64.Vec2{1200, 300}, 0)
	s := &ParallelAngleSample{Env: env, Capture: capture, Line1: bad, Line2: good}

	if err := s.ComputeError(truth); err < InvalidError {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestOffsetShiftsExpectedDistance(t *testing.T) {
	env := DefaultEnv()
	capture := testCapture()
	truth := camera.Calibration{}

	expected := env.Field.GoalAreaToPenaltyMark()
	mark := mgl64.Vec2{1000, 0}
	cm := capture.CameraMatrix(truth)
	markImg, _ := camera.RobotToImage(mark, cm, capture.Info)

	// The detected edge is half a line width beyond the centerline, and the
	// sample carries that offset, so the expectation shifts with it.
	off := env.Field.HalfLineWidth()
	line := syntheticLine(t, capture, truth,
		mgl64.Vec2{1000 + expected + off, -400},
		mgl64.Vec2{1000 + expected + off, 400}, off)
	s := &GoalAreaDistanceSample{Env: env, Capture: capture, MarkInImage: markImg, Line: line}

	if err := s.ComputeError(truth); err > 1e-6 {
		t.Fatalf("offset-corrected distance should be exact, got error %v", err)
	}

	// Dropping the offset misses by exactly half a line width.
	noOff := line
	noOff.Offset = 0
	s2 := &GoalAreaDistanceSample{Env: env, Capture: capture, MarkInImage: markImg, Line: noOff}
	want := off / env.DistanceErrorDivisor
	if err := s2.ComputeError(truth); math.Abs(err-want) > 1e-6 {
		t.Fatalf("expected error %v, got %v", want, err)
	}
}
