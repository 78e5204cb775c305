// Package field holds the static field geometry the calibrator measures
// against. Distances are millimeters in field coordinates.
package field

// Dimensions describes the field lines relevant for calibration: the
// longitudinal positions of the ground line, the front goal area line and the
// penalty mark, plus the painted line width.
type Dimensions struct {
	GroundLineX  float64 // distance from field center to the opponent ground line
	GoalAreaX    float64 // distance from field center to the front goal area line
	PenaltyMarkX float64 // distance from field center to the penalty mark
	LineWidth    float64 // width of the painted field lines
}

// Default returns the standard-field dimensions.
func Default() Dimensions {
	return Dimensions{
		GroundLineX:  4500,
		GoalAreaX:    3900,
		PenaltyMarkX: 3200,
		LineWidth:    50,
	}
}

// ParallelLinesDistance is the expected spacing between the ground line and
// the front goal area line.
func (d Dimensions) ParallelLinesDistance() float64 {
	return d.GroundLineX - d.GoalAreaX
}

// GoalAreaToPenaltyMark is the expected distance from the front goal area
// line to the penalty mark.
func (d Dimensions) GoalAreaToPenaltyMark() float64 {
	return d.GoalAreaX - d.PenaltyMarkX
}

// GroundLineToPenaltyMark is the expected distance from the ground line to
// the penalty mark.
func (d Dimensions) GroundLineToPenaltyMark() float64 {
	return d.GroundLineX - d.PenaltyMarkX
}

// HalfLineWidth is the magnitude of the lateral offset a refined line edge has
// from the line's centerline.
func (d Dimensions) HalfLineWidth() float64 {
	return d.LineWidth / 2
}
