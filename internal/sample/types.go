// Package sample defines the typed geometric measurements the optimizer fits
// against, and the configurations that map requested sample types to slots of
// the shared sample vector.
package sample

// Type tags the five kinds of calibration samples. The enumeration order
// determines slot layout within a configuration.
type Type int

const (
	CornerAngle Type = iota
	ParallelAngle
	ParallelLinesDistance
	GoalAreaDistance
	GroundLineDistance
	NumTypes
)

func (t Type) String() string {
	switch t {
	case CornerAngle:
		return "cornerAngle"
	case ParallelAngle:
		return "parallelAngle"
	case ParallelLinesDistance:
		return "parallelLinesDistance"
	case GoalAreaDistance:
		return "goalAreaDistance"
	case GroundLineDistance:
		return "groundLineDistance"
	}
	return "unknown"
}

// TypeMask is a bitmask of requested sample types.
type TypeMask uint8

// Bit returns the mask bit for a type.
func Bit(t Type) TypeMask {
	return TypeMask(1) << uint(t)
}

// Has reports whether the mask requests the given type.
func (m TypeMask) Has(t Type) bool {
	return m&Bit(t) != 0
}

// Count returns the number of requested types.
func (m TypeMask) Count() int {
	n := 0
	for t := Type(0); t < NumTypes; t++ {
		if m.Has(t) {
			n++
		}
	}
	return n
}
