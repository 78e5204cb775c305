package calibrate

import (
	"math"

	"github.com/fieldrobotics/autocal/internal/camera"
	"github.com/fieldrobotics/autocal/internal/geom"
	"github.com/fieldrobotics/autocal/internal/monitoring"
	"github.com/fieldrobotics/autocal/internal/sample"
	"github.com/fieldrobotics/autocal/internal/units"
	"github.com/fieldrobotics/autocal/internal/vision"
)

// Heuristic constants of the sample builder. Distances are field
// millimeters.
const (
	// maxEndpointDistance bounds how far a connecting line's endpoint may be
	// from the long line it is supposed to touch.
	maxEndpointDistance = 100
	minLinesForTriple   = 3
	minLinesForPair     = 2
	maxLines            = 8
)

// recordSamples evaluates one frame's percepts against the active
// configuration, marking feature visibility and recording samples when
// requested.
func (s *Session) recordSamples(frame FramePercept, req Request) {
	cfg := s.currentConfig
	if frame.Camera != cfg.Camera {
		return
	}

	capture := sample.Capture{
		Torso:    frame.Torso,
		HeadPan:  frame.HeadPan,
		HeadTilt: frame.HeadTilt,
		Info:     camera.DefaultInfo(frame.Camera),
		Mount:    camera.DefaultMount(frame.Camera),
	}
	refiner := vision.NewRefiner(frame.Image, capture.Info,
		capture.CameraMatrix(s.published), s.dims.HalfLineWidth())
	refiner.ThresholdFraction = s.params.SobelThresholdFraction
	refiner.MinEdgeSeparation = s.params.MinEdgeSeparation
	refiner.SectorHalfWidth = s.params.SectorHalfWidth

	s.allRequiredFeaturesVisible = false

	needAngleOrDistance := cfg.NeedToRecord(s.samples, sample.CornerAngle) ||
		cfg.NeedToRecord(s.samples, sample.ParallelAngle) ||
		cfg.NeedToRecord(s.samples, sample.ParallelLinesDistance)
	needMarkDistance := cfg.NeedToRecord(s.samples, sample.GoalAreaDistance) ||
		cfg.NeedToRecord(s.samples, sample.GroundLineDistance)

	if len(frame.Lines) >= minLinesForTriple && len(frame.Lines) <= maxLines &&
		needAngleOrDistance && !needMarkDistance {
		s.recordTriples(frame, req, capture, refiner)
	}

	if frame.PenaltyMark.Seen && len(frame.Lines) >= minLinesForPair &&
		len(frame.Lines) <= maxLines && needMarkDistance {
		s.recordPairs(frame, req, capture, refiner)
	}

	// An exhausted configuration stops waiting: nothing left to record means
	// the head may move on.
	if cfg.AllRecorded(s.samples) {
		for cam := 0; cam < 2; cam++ {
			s.parallelRange[cam].discarded = 0
			s.goalAreaRange[cam].discarded = 0
			s.groundLineRange[cam].discarded = 0
		}
		s.allRequiredFeaturesVisible = true
	}
}

// fieldSegment returns the ground-projected extent of a percept line.
func fieldSegment(l LinePercept) geom.Segment {
	return geom.Segment{A: l.AOnField, B: l.BOnField}
}

// recordTriples searches for a short connecting line spanning two roughly
// parallel long lines (the goal area corner structure) and records corner
// angle, parallel angle and parallel distance samples.
func (s *Session) recordTriples(frame FramePercept, req Request, capture sample.Capture, refiner *vision.Refiner) {
	cfg := s.currentConfig
	lines := frame.Lines
	discarded, found := false, false
	parallel := &s.parallelRange[cfg.Camera]

	for i := range lines {
		for j := range lines {
			if j == i {
				continue
			}
			for k := j + 1; k < len(lines); k++ {
				if k == i {
					continue
				}
				// The short line i must end on both long lines. This uses
				// field coordinates of a not-yet-calibrated projection, which
				// is tolerable at these thresholds.
				sj, sk := fieldSegment(lines[j]), fieldSegment(lines[k])
				if math.Min(sj.DistanceToPoint(lines[i].AOnField), sj.DistanceToPoint(lines[i].BOnField)) > maxEndpointDistance {
					continue
				}
				if math.Min(sk.DistanceToPoint(lines[i].AOnField), sk.DistanceToPoint(lines[i].BOnField)) > maxEndpointDistance {
					continue
				}

				// The connecting line is the closest of the three as seen
				// from the robot.
				di := fieldSegment(lines[i]).Midpoint().Dot(fieldSegment(lines[i]).Midpoint())
				dj := sj.Midpoint().Dot(sj.Midpoint())
				dk := sk.Midpoint().Dot(sk.Midpoint())
				if dj < di || dk < di {
					continue
				}

				// Angles are checked in image space.
				angleIJ := geom.AngleBetween(lines[i].AInImage, lines[i].BInImage, lines[j].AInImage, lines[j].BInImage)
				angleIK := geom.AngleBetween(lines[i].AInImage, lines[i].BInImage, lines[k].AInImage, lines[k].BInImage)
				angleJK := geom.AngleBetween(lines[j].AInImage, lines[j].BInImage, lines[k].AInImage, lines[k].BInImage)
				if angleIJ < units.Deg(20) || angleIJ > units.Deg(160) ||
					angleIK < units.Deg(20) || angleIK > units.Deg(160) ||
					angleJK > units.Deg(40) {
					continue
				}

				s.allRequiredFeaturesVisible = true
				if !req.Configuration.Record {
					continue
				}

				cl1, ok1 := refiner.FitLine(lines[i].AInImage, lines[i].BInImage)
				cl2, ok2 := refiner.FitLine(lines[j].AInImage, lines[j].BInImage)
				cl3, ok3 := refiner.FitLine(lines[k].AInImage, lines[k].BInImage)
				if !ok1 || !ok2 || !ok3 {
					continue
				}

				line2 := geom.NewLine(cl2.AOnField, cl2.BOnField)
				distance := line2.SignedDistance(cl3.AOnField.Add(cl3.BOnField).Mul(0.5))
				combinedOffset := cl3.Offset - cl2.Offset
				if distance > 0 {
					combinedOffset = cl2.Offset - cl3.Offset
				}

				if !parallel.value.Contains(math.Abs(distance) - combinedOffset) {
					discarded = true
					continue
				}
				found = true
				monitoring.Debugf("calibrate: parallel lines distance %.1f, combined offset %.1f",
					math.Abs(distance), combinedOffset)

				// The longer of the two long lines is the more reliable
				// reference for the corner angle.
				ref := cl2
				if lengthSq(cl3) > lengthSq(cl2) {
					ref = cl3
				}
				if cfg.NeedToRecord(s.samples, sample.CornerAngle) {
					cfg.Record(s.samples, sample.CornerAngle,
						&sample.CornerAngleSample{Env: s.env, Capture: capture, Short: cl1, Ref: ref})
				}
				if cfg.NeedToRecord(s.samples, sample.ParallelAngle) {
					cfg.Record(s.samples, sample.ParallelAngle,
						&sample.ParallelAngleSample{Env: s.env, Capture: capture, Line1: cl2, Line2: cl3})
				}
				if cfg.NeedToRecord(s.samples, sample.ParallelLinesDistance) {
					cfg.Record(s.samples, sample.ParallelLinesDistance,
						&sample.ParallelLinesDistanceSample{Env: s.env, Capture: capture, Line1: cl2, Line2: cl3})
				}
			}
		}
	}

	if req.Configuration.Record {
		parallel.adjust(discarded, found, s.params.DiscardsUntilWiden, s.params.RangeWidenStep)
	}
}

// recordPairs searches for the ground line and the front goal area line
// behind a seen penalty mark and records the distance samples plus the
// parallel samples the pair also provides.
func (s *Session) recordPairs(frame FramePercept, req Request, capture sample.Capture, refiner *vision.Refiner) {
	cfg := s.currentConfig
	lines := frame.Lines
	mark := frame.PenaltyMark
	goalAreaRange := &s.goalAreaRange[cfg.Camera]
	groundLineRange := &s.groundLineRange[cfg.Camera]
	discardedGoal, foundGoal := false, false
	discardedGround, foundGround := false, false

	markDistSq := mark.OnField.Dot(mark.OnField)
	halfWidth := float64(capture.Info.Width) / 2

	for i := range lines {
		for j := i + 1; j < len(lines); j++ {
			// Both lines should span at least half the image width.
			if math.Abs(lines[i].AInImage.X()-lines[i].BInImage.X()) < halfWidth ||
				math.Abs(lines[j].AInImage.X()-lines[j].BInImage.X()) < halfWidth {
				continue
			}
			// They must not intersect within the projected extents.
			if geom.IsPointLeft(lines[i].AOnField, lines[i].BOnField, lines[j].AOnField) !=
				geom.IsPointLeft(lines[i].AOnField, lines[i].BOnField, lines[j].BOnField) {
				continue
			}
			// Both lines lie behind the penalty mark; this filters the front
			// penalty area line.
			si, sj := fieldSegment(lines[i]), fieldSegment(lines[j])
			distI := si.Midpoint().Dot(si.Midpoint())
			distJ := sj.Midpoint().Dot(sj.Midpoint())
			if math.Min(distI, distJ) < markDistSq {
				continue
			}

			s.allRequiredFeaturesVisible = true
			if !req.Configuration.Record {
				continue
			}

			// The nearer line is the goal area line, the farther one the
			// ground line.
			goalAreaLine, groundLine := lines[i], lines[j]
			if distI > distJ {
				goalAreaLine, groundLine = groundLine, goalAreaLine
			}
			clGoal, ok1 := refiner.FitLine(goalAreaLine.AInImage, goalAreaLine.BInImage)
			clGround, ok2 := refiner.FitLine(groundLine.AInImage, groundLine.BInImage)
			if !ok1 || !ok2 {
				continue
			}

			goalDist := geom.NewLine(clGoal.AOnField, clGoal.BOnField).Distance(mark.OnField)
			groundDist := geom.NewLine(clGround.AOnField, clGround.BOnField).Distance(mark.OnField)

			goalValid := goalAreaRange.value.Contains(goalDist - clGoal.Offset)
			if goalValid {
				foundGoal = true
			} else {
				discardedGoal = true
			}
			groundValid := groundLineRange.value.Contains(groundDist - clGround.Offset)
			if groundValid {
				foundGround = true
			} else {
				discardedGround = true
			}
			if !goalValid || !groundValid {
				continue
			}

			monitoring.Debugf("calibrate: goal area distance %.1f, ground line distance %.1f",
				goalDist, groundDist)

			if cfg.NeedToRecord(s.samples, sample.GoalAreaDistance) {
				cfg.Record(s.samples, sample.GoalAreaDistance,
					&sample.GoalAreaDistanceSample{Env: s.env, Capture: capture, MarkInImage: mark.InImage, Line: clGoal})
			}
			if cfg.NeedToRecord(s.samples, sample.GroundLineDistance) {
				cfg.Record(s.samples, sample.GroundLineDistance,
					&sample.GroundLineDistanceSample{Env: s.env, Capture: capture, MarkInImage: mark.InImage, Line: clGround})
			}
			if cfg.NeedToRecord(s.samples, sample.ParallelAngle) {
				cfg.Record(s.samples, sample.ParallelAngle,
					&sample.ParallelAngleSample{Env: s.env, Capture: capture, Line1: clGoal, Line2: clGround})
			}
			if cfg.NeedToRecord(s.samples, sample.ParallelLinesDistance) {
				cfg.Record(s.samples, sample.ParallelLinesDistance,
					&sample.ParallelLinesDistanceSample{Env: s.env, Capture: capture, Line1: clGoal, Line2: clGround})
			}
		}
	}

	if req.Configuration.Record {
		goalAreaRange.adjust(discardedGoal, foundGoal, s.params.DiscardsUntilWiden, s.params.RangeWidenStep)
		groundLineRange.adjust(discardedGround, foundGround, s.params.DiscardsUntilWiden, s.params.RangeWidenStep)
	}
}

func lengthSq(cl vision.CorrectedLine) float64 {
	d := cl.BOnField.Sub(cl.AOnField)
	return d.Dot(d)
}
