// Package units provides angle conversions and normalization shared across the
// calibration pipeline. Angles are radians internally; degrees appear only at
// configuration and reporting edges.
package units

import "math"

// Deg converts degrees to radians.
func Deg(d float64) float64 {
	return d * math.Pi / 180
}

// ToDeg converts radians to degrees.
func ToDeg(r float64) float64 {
	return r * 180 / math.Pi
}

// Normalize maps an angle into (-pi, pi].
func Normalize(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Mod180 maps an angle into [0, pi). Line orientations are undirected, so two
// angles that differ by pi describe the same line.
func Mod180(a float64) float64 {
	a = math.Mod(a, math.Pi)
	if a < 0 {
		a += math.Pi
	}
	return a
}

// ModFullTurn reduces an angle modulo a full turn, keeping its sign. The
// published calibration holds every correction this way.
func ModFullTurn(a float64) float64 {
	return math.Mod(a, 2*math.Pi)
}
