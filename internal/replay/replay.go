// Package replay reads recorded percept logs so calibration sessions can run
// offline. A log is a stream of JSON frame objects (one per line); images are
// referenced by file name relative to the log and loaded on demand.
package replay

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/fieldrobotics/autocal/internal/calibrate"
	"github.com/fieldrobotics/autocal/internal/camera"
	"github.com/fieldrobotics/autocal/internal/sample"
	"github.com/fieldrobotics/autocal/internal/vision"
)

// Line is one logged line percept. Image coordinates are pixels, field
// coordinates robot-relative millimeters.
type Line struct {
	AInImage [2]float64 `json:"a_in_image"`
	BInImage [2]float64 `json:"b_in_image"`
	AOnField [2]float64 `json:"a_on_field"`
	BOnField [2]float64 `json:"b_on_field"`
}

// Mark is a logged penalty mark percept.
type Mark struct {
	InImage [2]float64 `json:"in_image"`
	OnField [2]float64 `json:"on_field"`
}

// Configuration mirrors the head-pose sample request active at the frame.
type Configuration struct {
	Index    int     `json:"index"`
	Camera   string  `json:"camera"`
	HeadPan  float64 `json:"head_pan"`
	HeadTilt float64 `json:"head_tilt"`
	Types    []string `json:"types"`
	Record   bool    `json:"record"`
}

// Frame is one logged perception frame together with the calibration request
// in effect when it was captured.
type Frame struct {
	TimeNanos int64   `json:"time_nanos"`
	Camera    string  `json:"camera"`
	TorsoZ    float64 `json:"torso_z_mm"`
	TorsoRoll float64 `json:"torso_roll"`
	TorsoTilt float64 `json:"torso_tilt"`
	HeadPan   float64 `json:"head_pan"`
	HeadTilt  float64 `json:"head_tilt"`
	Lines     []Line  `json:"lines,omitempty"`
	Mark      *Mark   `json:"penalty_mark,omitempty"`
	ImageFile string  `json:"image_file,omitempty"`

	TargetState   string         `json:"target_state"`
	TotalSamples  int            `json:"total_samples,omitempty"`
	Configuration *Configuration `json:"configuration,omitempty"`
}

// Reader streams frames out of a percept log.
type Reader struct {
	f   *os.File
	dec *json.Decoder
	dir string
}

// Open opens the log at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open percept log: %w", err)
	}
	return &Reader{f: f, dec: json.NewDecoder(f), dir: filepath.Dir(path)}, nil
}

func (r *Reader) Close() error {
	return r.f.Close()
}

// Next decodes the next frame and converts it into the session's input
// types. It returns io.EOF at the end of the log.
func (r *Reader) Next() (calibrate.FramePercept, calibrate.Request, error) {
	var f Frame
	if err := r.dec.Decode(&f); err != nil {
		if err == io.EOF {
			return calibrate.FramePercept{}, calibrate.Request{}, io.EOF
		}
		return calibrate.FramePercept{}, calibrate.Request{}, fmt.Errorf("decode percept log frame: %w", err)
	}
	frame, err := r.convertFrame(f)
	if err != nil {
		return calibrate.FramePercept{}, calibrate.Request{}, err
	}
	req, err := convertRequest(f)
	if err != nil {
		return calibrate.FramePercept{}, calibrate.Request{}, err
	}
	return frame, req, nil
}

func (r *Reader) convertFrame(f Frame) (calibrate.FramePercept, error) {
	cam, err := parseCamera(f.Camera)
	if err != nil {
		return calibrate.FramePercept{}, err
	}
	frame := calibrate.FramePercept{
		Time:     time.Unix(0, f.TimeNanos),
		Camera:   cam,
		Torso:    torsoPose(f),
		HeadPan:  f.HeadPan,
		HeadTilt: f.HeadTilt,
	}
	for _, l := range f.Lines {
		frame.Lines = append(frame.Lines, calibrate.LinePercept{
			AInImage: vec2(l.AInImage), BInImage: vec2(l.BInImage),
			AOnField: vec2(l.AOnField), BOnField: vec2(l.BOnField),
		})
	}
	if f.Mark != nil {
		frame.PenaltyMark = calibrate.PenaltyMarkPercept{
			Seen:    true,
			InImage: vec2(f.Mark.InImage),
			OnField: vec2(f.Mark.OnField),
		}
	}
	if f.ImageFile != "" {
		img, err := loadImage(filepath.Join(r.dir, f.ImageFile))
		if err != nil {
			return calibrate.FramePercept{}, err
		}
		frame.Image = img
	}
	return frame, nil
}

func convertRequest(f Frame) (calibrate.Request, error) {
	state, err := parseState(f.TargetState)
	if err != nil {
		return calibrate.Request{}, err
	}
	req := calibrate.Request{TargetState: state, TotalSamples: f.TotalSamples}
	if f.Configuration == nil {
		return req, nil
	}
	c := f.Configuration
	cam, err := parseCamera(c.Camera)
	if err != nil {
		return calibrate.Request{}, err
	}
	types, err := parseTypes(c.Types)
	if err != nil {
		return calibrate.Request{}, err
	}
	req.Configuration = &calibrate.ConfigurationRequest{
		Index:    c.Index,
		Camera:   cam,
		HeadPan:  c.HeadPan,
		HeadTilt: c.HeadTilt,
		Types:    types,
		Record:   c.Record,
	}
	return req, nil
}

// torsoPose rebuilds the torso transform from the logged height and body
// rotation readings.
func torsoPose(f Frame) camera.Pose3 {
	return camera.Translation(mgl64.Vec3{0, 0, f.TorsoZ}).
		Mul(camera.Rotation(mgl64.Rotate3DY(f.TorsoTilt).Mul3(mgl64.Rotate3DX(f.TorsoRoll))))
}

func vec2(v [2]float64) mgl64.Vec2 {
	return mgl64.Vec2{v[0], v[1]}
}

func parseCamera(name string) (camera.Camera, error) {
	switch name {
	case "lower":
		return camera.Lower, nil
	case "upper":
		return camera.Upper, nil
	}
	return 0, fmt.Errorf("unknown camera %q", name)
}

func parseState(name string) (calibrate.State, error) {
	switch name {
	case "", "idle":
		return calibrate.Idle, nil
	case "recordSamples":
		return calibrate.RecordSamples, nil
	case "optimize":
		return calibrate.Optimize, nil
	}
	return 0, fmt.Errorf("unknown target state %q", name)
}

func parseTypes(names []string) (sample.TypeMask, error) {
	var mask sample.TypeMask
	for _, name := range names {
		found := false
		for t := sample.Type(0); t < sample.NumTypes; t++ {
			if t.String() == name {
				mask |= sample.Bit(t)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown sample type %q", name)
		}
	}
	return mask, nil
}

// loadImage decodes the referenced image and converts it to grayscale.
func loadImage(path string) (*vision.Image8, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame image %s: %w", path, err)
	}
	bounds := src.Bounds()
	img := vision.NewImage8(bounds.Dx(), bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// BT.601 luma, 16-bit channels down to 8 bits.
			img.Set(x, y, uint8((299*r+587*g+114*b)/1000>>8))
		}
	}
	return img, nil
}
