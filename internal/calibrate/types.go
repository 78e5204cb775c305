// Package calibrate drives automatic extrinsic calibration: it turns field
// line percepts into typed samples while the robot holds requested head
// poses, then fits the six correction angles with Gauss-Newton iterations,
// one step per frame.
package calibrate

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/fieldrobotics/autocal/internal/camera"
	"github.com/fieldrobotics/autocal/internal/sample"
	"github.com/fieldrobotics/autocal/internal/vision"
)

// State is the calibration session state.
type State int

const (
	Idle State = iota
	RecordSamples
	Optimize
)

func (s State) String() string {
	switch s {
	case RecordSamples:
		return "recordSamples"
	case Optimize:
		return "optimize"
	}
	return "idle"
}

// ConfigurationStatus summarizes progress on the active sample configuration.
type ConfigurationStatus int

const (
	ConfigurationNone ConfigurationStatus = iota
	ConfigurationVisible
	ConfigurationNotVisible
	ConfigurationRecording
	ConfigurationFinished
)

func (c ConfigurationStatus) String() string {
	switch c {
	case ConfigurationVisible:
		return "visible"
	case ConfigurationNotVisible:
		return "notVisible"
	case ConfigurationRecording:
		return "recording"
	case ConfigurationFinished:
		return "finished"
	}
	return "none"
}

// LinePercept is one detected field line with image endpoints and their
// ground projections.
type LinePercept struct {
	AInImage, BInImage mgl64.Vec2
	AOnField, BOnField mgl64.Vec2
}

// PenaltyMarkPercept is the penalty mark detection of a frame.
type PenaltyMarkPercept struct {
	Seen    bool
	InImage mgl64.Vec2
	OnField mgl64.Vec2
}

// FramePercept bundles everything a frame offers the calibrator.
type FramePercept struct {
	Time        time.Time
	Camera      camera.Camera
	Torso       camera.Pose3
	HeadPan     float64
	HeadTilt    float64
	Lines       []LinePercept
	PenaltyMark PenaltyMarkPercept
	// Image is the corrected grayscale frame the refiner works on. Recording
	// is skipped when nil.
	Image *vision.Image8
}

// ConfigurationRequest asks for samples at one head pose.
type ConfigurationRequest struct {
	Index    int
	Camera   camera.Camera
	HeadPan  float64
	HeadTilt float64
	Types    sample.TypeMask
	Record   bool
}

// Request is the external calibration request evaluated once per frame.
type Request struct {
	TargetState   State
	TotalSamples  int
	Configuration *ConfigurationRequest
}

// Status is the published calibration status.
type Status struct {
	State         State
	InStateSince  time.Time
	Configuration ConfigurationStatus
}

// Resolution is the camera resolution hint published alongside the status.
type Resolution int

const (
	ResolutionDefault Resolution = iota
	ResolutionCalibration
)
