package camera

import "github.com/fieldrobotics/autocal/internal/units"

// RotationCorrection is a small extrinsic correction around the forward (roll)
// and leftward (tilt) axes.
type RotationCorrection struct {
	Roll float64 `json:"roll"`
	Tilt float64 `json:"tilt"`
}

// Calibration is the persisted correction record: one rotation correction per
// camera plus one for the body. All angles are radians.
type Calibration struct {
	LowerCamera RotationCorrection `json:"lower_camera"`
	UpperCamera RotationCorrection `json:"upper_camera"`
	Body        RotationCorrection `json:"body"`
}

// Correction returns the correction for the given camera.
func (c Calibration) Correction(cam Camera) RotationCorrection {
	if cam == Upper {
		return c.UpperCamera
	}
	return c.LowerCamera
}

// Normalized reduces every correction modulo a full turn. The optimizer can
// walk a parameter through many turns before converging; the published record
// never carries them.
func (c Calibration) Normalized() Calibration {
	n := func(r RotationCorrection) RotationCorrection {
		return RotationCorrection{
			Roll: units.ModFullTurn(r.Roll),
			Tilt: units.ModFullTurn(r.Tilt),
		}
	}
	return Calibration{
		LowerCamera: n(c.LowerCamera),
		UpperCamera: n(c.UpperCamera),
		Body:        n(c.Body),
	}
}
