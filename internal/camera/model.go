// Package camera models the kinematic chain from the robot torso to either
// head camera and the pinhole projection between image and ground plane.
//
// Coordinate conventions: robot/camera frames are x forward, y left, z up;
// field coordinates are robot-relative millimeters on the ground plane; image
// coordinates are pixels with the origin in the top-left corner.
package camera

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Camera identifies one of the two head cameras.
type Camera int

const (
	Lower Camera = iota
	Upper
)

func (c Camera) String() string {
	if c == Upper {
		return "upper"
	}
	return "lower"
}

// Info carries the intrinsics of one camera.
type Info struct {
	Camera        Camera
	Width, Height int
	FocalLength   float64
	OpticalCenter mgl64.Vec2
}

// DefaultInfo returns the intrinsics used when no measured values are
// available.
func DefaultInfo(c Camera) Info {
	return Info{
		Camera:        c,
		Width:         640,
		Height:        480,
		FocalLength:   600,
		OpticalCenter: mgl64.Vec2{320, 240},
	}
}

// Pose3 is a rigid transform: rotation followed by translation.
type Pose3 struct {
	R mgl64.Mat3
	T mgl64.Vec3
}

// IdentityPose returns the identity transform.
func IdentityPose() Pose3 {
	return Pose3{R: mgl64.Ident3()}
}

// Mul composes two transforms, applying q in the frame of p.
func (p Pose3) Mul(q Pose3) Pose3 {
	return Pose3{
		R: p.R.Mul3(q.R),
		T: p.T.Add(p.R.Mul3x1(q.T)),
	}
}

// Apply transforms a point from the local frame into the parent frame.
func (p Pose3) Apply(v mgl64.Vec3) mgl64.Vec3 {
	return p.R.Mul3x1(v).Add(p.T)
}

// Inverse returns the transform mapping the parent frame back into the local
// frame.
func (p Pose3) Inverse() Pose3 {
	rt := p.R.Transpose()
	return Pose3{R: rt, T: rt.Mul3x1(p.T).Mul(-1)}
}

// Translation returns a pure translation transform.
func Translation(v mgl64.Vec3) Pose3 {
	return Pose3{R: mgl64.Ident3(), T: v}
}

// Rotation returns a pure rotation transform.
func Rotation(r mgl64.Mat3) Pose3 {
	return Pose3{R: r}
}

// Mount describes where a camera sits on the head and how it is tipped
// against the head frame.
type Mount struct {
	NeckOffset   mgl64.Vec3 // torso origin to the neck joint
	CameraOffset mgl64.Vec3 // neck to the camera after pan/tilt
	Tilt         float64    // fixed downward tilt of the camera
}

// DefaultMount returns the mount geometry for the given camera.
func DefaultMount(c Camera) Mount {
	if c == Upper {
		return Mount{
			NeckOffset:   mgl64.Vec3{0, 0, 211.5},
			CameraOffset: mgl64.Vec3{58.71, 0, 63.64},
			Tilt:         0.0209, // 1.2 degrees
		}
	}
	return Mount{
		NeckOffset:   mgl64.Vec3{0, 0, 211.5},
		CameraOffset: mgl64.Vec3{50.71, 0, 17.74},
		Tilt:         0.6929, // 39.7 degrees
	}
}

// Matrix derives the camera pose in field coordinates from the torso pose,
// the head joint angles and a candidate calibration. This is the transform
// chain every sample residual re-evaluates: body correction first, then the
// neck joints, then the mount and the per-camera correction.
func Matrix(torso Pose3, headPan, headTilt float64, mount Mount, cam Camera, calib Calibration) Pose3 {
	body := calib.Body
	corr := calib.Correction(cam)

	m := torso
	m = m.Mul(Rotation(mgl64.Rotate3DY(body.Tilt).Mul3(mgl64.Rotate3DX(body.Roll))))
	m = m.Mul(Translation(mount.NeckOffset))
	m = m.Mul(Rotation(mgl64.Rotate3DZ(headPan)))
	m = m.Mul(Rotation(mgl64.Rotate3DY(headTilt)))
	m = m.Mul(Pose3{
		R: mgl64.Rotate3DY(mount.Tilt + corr.Tilt).Mul3(mgl64.Rotate3DX(corr.Roll)),
		T: mount.CameraOffset,
	})
	return m
}
