package camera

import (
	"github.com/go-gl/mathgl/mgl64"
)

// minDepth rejects projections of points at or behind the image plane.
const minDepth = 1e-6

// RobotToImage projects a point on the ground plane into the image. ok is
// false when the point is behind the camera.
func RobotToImage(onField mgl64.Vec2, cameraMatrix Pose3, info Info) (mgl64.Vec2, bool) {
	q := cameraMatrix.Inverse().Apply(mgl64.Vec3{onField.X(), onField.Y(), 0})
	if q.X() < minDepth {
		return mgl64.Vec2{}, false
	}
	u := info.OpticalCenter.X() - info.FocalLength*q.Y()/q.X()
	v := info.OpticalCenter.Y() - info.FocalLength*q.Z()/q.X()
	return mgl64.Vec2{u, v}, true
}

// ImageToRobot casts a ray through the given pixel and intersects it with the
// ground plane. ok is false when the ray does not hit the ground in front of
// the camera (pixel at or above the horizon, or camera below the ground).
func ImageToRobot(inImage mgl64.Vec2, cameraMatrix Pose3, info Info) (mgl64.Vec2, bool) {
	dirCam := mgl64.Vec3{
		info.FocalLength,
		info.OpticalCenter.X() - inImage.X(),
		info.OpticalCenter.Y() - inImage.Y(),
	}
	dir := cameraMatrix.R.Mul3x1(dirCam)
	if dir.Z() >= -minDepth {
		return mgl64.Vec2{}, false
	}
	t := -cameraMatrix.T.Z() / dir.Z()
	if t <= 0 {
		return mgl64.Vec2{}, false
	}
	p := cameraMatrix.T.Add(dir.Mul(t))
	return mgl64.Vec2{p.X(), p.Y()}, true
}
