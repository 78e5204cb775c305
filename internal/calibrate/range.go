package calibrate

import (
	"github.com/fieldrobotics/autocal/internal/monitoring"
)

// Range is a closed acceptance interval for a measured distance.
type Range struct {
	Min, Max float64
}

// Contains reports whether v lies inside the interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// widened returns the interval grown by step on both sides.
func (r Range) widened(step float64) Range {
	return Range{Min: r.Min - step, Max: r.Max + step}
}

// adaptiveRange couples an acceptance interval with its consecutive-discard
// counter. A residually miscalibrated camera can put every true measurement
// outside the initial interval; widening after repeated rejection recovers
// from that.
type adaptiveRange struct {
	name      string
	value     Range
	discarded int
}

// adjust processes one frame's outcome. The counter only advances on frames
// that discarded at least one candidate and accepted none; at the threshold
// the interval widens by step and the counter resets.
func (a *adaptiveRange) adjust(discarded, found bool, threshold int, step float64) {
	if discarded && !found {
		a.discarded++
	}
	if a.discarded >= threshold {
		a.discarded = 0
		a.value = a.value.widened(step)
		monitoring.Logf("%s - increased range to [%.1f, %.1f]", a.name, a.value.Min, a.value.Max)
	}
}

func (a *adaptiveRange) reset(value Range) {
	a.value = value
	a.discarded = 0
}
