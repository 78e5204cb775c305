package calibrate

import (
	"math"
	"math/rand"
	"time"

	"github.com/fieldrobotics/autocal/internal/camera"
	"github.com/fieldrobotics/autocal/internal/field"
	"github.com/fieldrobotics/autocal/internal/monitoring"
	"github.com/fieldrobotics/autocal/internal/optimize"
	"github.com/fieldrobotics/autocal/internal/sample"
	"github.com/fieldrobotics/autocal/internal/units"
)

// Params are the session tuning knobs.
type Params struct {
	// DiscardsUntilWiden is the consecutive-discard count after which an
	// adaptive range widens.
	DiscardsUntilWiden int
	// RangeWidenStep is how far each bound moves per widening, millimeters.
	RangeWidenStep float64
	// TerminationCriterion is the base |delta| threshold an iteration must
	// undercut to count toward the convergence streak.
	TerminationCriterion float64
	// MinSuccessiveConvergences is the streak length that ends a session.
	MinSuccessiveConvergences int
	// RestartPerturbation bounds the random offset per degree of freedom
	// after divergence, radians, symmetric around zero.
	RestartPerturbation float64
	// Damping is the fixed Gauss-Newton damping term.
	Damping float64
	// JacobianEpsilon is the finite-difference step per parameter.
	JacobianEpsilon float64
	// SobelThresholdFraction, MinEdgeSeparation and SectorHalfWidth tune the
	// line refiner, see vision.Refiner.
	SobelThresholdFraction float64
	MinEdgeSeparation      float64
	SectorHalfWidth        float64
}

// DefaultParams returns the standard tuning.
func DefaultParams() Params {
	return Params{
		DiscardsUntilWiden:        5,
		RangeWidenStep:            100,
		TerminationCriterion:      1e-4,
		MinSuccessiveConvergences: 5,
		RestartPerturbation:       units.Deg(0.5),
		Damping:                   1e-6,
		JacobianEpsilon:           1e-4,
		SobelThresholdFraction:    0.25,
		MinEdgeSeparation:         2,
		SectorHalfWidth:           units.Deg(10),
	}
}

// numParameters is the size of the correction vector: roll and tilt per
// camera plus body roll and tilt.
const numParameters = 6

// Session owns one calibration run: the sample slot vector, the adaptive
// acceptance ranges and the optimizer. Everything is reset together when a
// new session starts. All methods run frame-synchronously on one goroutine.
type Session struct {
	params Params
	env    sample.Env
	dims   field.Dimensions
	rng    *rand.Rand

	// published is the calibration visible to the outside: the persisted
	// record until the optimizer produces previews, the converged result
	// afterwards.
	published camera.Calibration
	persisted camera.Calibration

	state        State
	inStateSince time.Time

	samples         []sample.Sample
	currentConfig   *sample.Configuration
	lastConfigIndex int
	numSamples      int

	allRequiredFeaturesVisible bool

	// Adaptive ranges, separate per camera (index by camera.Camera).
	parallelRange   [2]adaptiveRange
	goalAreaRange   [2]adaptiveRange
	groundLineRange [2]adaptiveRange

	// Optimizer state. optimizer is nil outside an active optimization.
	optimizer         *optimize.GaussNewton
	optParams         [numParameters]float64
	lowestDelta       float64
	lowestDeltaParams [numParameters]float64
	lowestError       float64
	lowestErrorParams [numParameters]float64
	convergenceStreak int
	iterations        int
}

// NewSession builds a session starting from the persisted calibration. rng
// drives divergence-restart perturbations and may be seeded for tests; nil
// falls back to an unseeded source.
func NewSession(persisted camera.Calibration, env sample.Env, params Params, rng *rand.Rand) *Session {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	s := &Session{
		params:          params,
		env:             env,
		dims:            env.Field,
		rng:             rng,
		published:       persisted,
		persisted:       persisted,
		state:           Idle,
		lastConfigIndex: -1,
	}
	s.resetRanges()
	return s
}

// Calibration returns the currently published calibration: a live preview
// while optimizing, the final result after convergence.
func (s *Session) Calibration() camera.Calibration {
	return s.published
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// resetRanges restores every adaptive range to the field-derived default:
// the expected distance plus/minus one line width.
func (s *Session) resetRanges() {
	around := func(d float64) Range {
		return Range{Min: d - s.dims.LineWidth, Max: d + s.dims.LineWidth}
	}
	for cam := 0; cam < 2; cam++ {
		name := camera.Camera(cam).String()
		s.parallelRange[cam].name = "parallelDisRange/" + name
		s.parallelRange[cam].reset(around(s.dims.ParallelLinesDistance()))
		s.goalAreaRange[cam].name = "goalAreaDisRange/" + name
		s.goalAreaRange[cam].reset(around(s.dims.GoalAreaToPenaltyMark()))
		s.groundLineRange[cam].name = "groundLineDisRange/" + name
		s.groundLineRange[cam].reset(around(s.dims.GroundLineToPenaltyMark()))
	}
}

// Update runs one frame of the session: it applies requested state
// transitions, records samples while recording and performs one optimizer
// step while optimizing.
func (s *Session) Update(frame FramePercept, req Request) {
	// Calibration start requested.
	if s.state == Idle && req.TargetState == RecordSamples {
		s.optimizer = nil
		s.convergenceStreak = 0
		s.iterations = 0
		s.samples = make([]sample.Sample, req.TotalSamples)
		s.currentConfig = nil
		s.lastConfigIndex = -1
		s.numSamples = 0
		s.resetRanges()
		s.published = s.persisted
		s.setState(RecordSamples, frame.Time)
	}

	s.updateConfiguration(req)

	// Abort returns to idle from anywhere, dropping all progress.
	if req.TargetState == Idle && s.state != Idle {
		s.optimizer = nil
		s.setState(Idle, frame.Time)
	}

	if s.state == RecordSamples && s.currentConfig != nil &&
		req.Configuration != nil && frame.Image != nil {
		s.recordSamples(frame, req)
	}

	// Optimization needs a residual per slot, so the transition stays a
	// no-op until every sample has been recorded.
	if s.state == RecordSamples && req.TargetState == Optimize && s.allSamplesRecorded() {
		s.setState(Optimize, frame.Time)
	}

	if s.state == Optimize {
		s.step()
	}
}

// allSamplesRecorded reports whether every slot of the shared sample vector
// holds a sample.
func (s *Session) allSamplesRecorded() bool {
	if len(s.samples) == 0 {
		return false
	}
	for _, smp := range s.samples {
		if smp == nil {
			return false
		}
	}
	return true
}

func (s *Session) setState(state State, t time.Time) {
	s.state = state
	s.inStateSince = t
}

// updateConfiguration replaces the active sample configuration when a new
// configuration index arrives. Slots of earlier configurations stay owned by
// the shared vector.
func (s *Session) updateConfiguration(req Request) {
	if req.Configuration == nil || req.Configuration.Index == s.lastConfigIndex {
		return
	}
	r := req.Configuration
	s.currentConfig = &sample.Configuration{
		Camera:    r.Camera,
		HeadPan:   r.HeadPan,
		HeadTilt:  r.HeadTilt,
		Types:     r.Types,
		IndexBase: s.numSamples,
	}
	s.numSamples += r.Types.Count()
	s.lastConfigIndex = r.Index
}

// Status reports session state and configuration progress.
func (s *Session) Status(req Request) Status {
	st := Status{
		State:         s.state,
		InStateSince:  s.inStateSince,
		Configuration: ConfigurationNone,
	}
	if req.Configuration != nil {
		if s.allRequiredFeaturesVisible {
			st.Configuration = ConfigurationVisible
			if req.Configuration.Record {
				st.Configuration = ConfigurationRecording
			}
		} else {
			st.Configuration = ConfigurationNotVisible
		}
		if s.currentConfig != nil && s.currentConfig.SamplesExist(s.samples) {
			st.Configuration = ConfigurationFinished
		}
	}
	return st
}

// ResolutionHint asks for the calibration resolution while a session is
// active and the default otherwise.
func (s *Session) ResolutionHint() Resolution {
	if s.state == Idle {
		return ResolutionDefault
	}
	return ResolutionCalibration
}

// functor adapts the sample vector to the optimizer.
type functor struct {
	samples []sample.Sample
}

func (f *functor) NumMeasurements() int {
	return len(f.samples)
}

func (f *functor) Residual(params []float64, i int) float64 {
	return f.samples[i].ComputeError(unpack(params))
}

// step performs one optimizer activation: instantiation on the first call,
// one Gauss-Newton iteration afterwards.
func (s *Session) step() {
	if s.optimizer == nil {
		s.optimizer = optimize.NewGaussNewton(&functor{samples: s.samples})
		s.optimizer.Damping = s.params.Damping
		pack(s.persisted, &s.optParams)
		s.convergenceStreak = 0
		s.lowestDelta = math.MaxFloat64
		return
	}

	eps := make([]float64, numParameters)
	for i := range eps {
		eps[i] = s.params.JacobianEpsilon
	}
	p := s.optParams[:]
	delta := s.optimizer.Iterate(p, eps)

	if !isFinite(delta) {
		s.restart()
		return
	}
	for i := range s.samples {
		if s.samples[i].ComputeError(unpack(p)) >= sample.InvalidError {
			s.restart()
			return
		}
	}

	monitoring.Debugf("calibrate: delta = %g", delta)
	if math.Abs(delta) < s.lowestDelta {
		s.lowestDelta = math.Abs(delta)
		s.lowestDeltaParams = s.optParams
	}
	s.iterations++

	// The termination threshold tightens every 500 iterations: a run that
	// has not settled quickly must meet a stricter bound before its streak
	// counts.
	if math.Abs(delta) < s.params.TerminationCriterion/float64(max(1, s.iterations/500*50)) {
		s.convergenceStreak++
	} else {
		s.convergenceStreak = 0
	}

	if s.convergenceStreak > 0 {
		mean := 0.0
		for i := range s.samples {
			mean += s.samples[i].ComputeError(unpack(p))
		}
		mean /= float64(len(s.samples))
		if s.convergenceStreak == 1 || mean < s.lowestError {
			s.lowestError = mean
			s.lowestErrorParams = s.optParams
		}
	}

	if s.convergenceStreak >= s.params.MinSuccessiveConvergences {
		monitoring.Logf("calibrate: converged after %d iterations, mean error %g", s.iterations, s.lowestError)
		s.published = unpack(s.lowestErrorParams[:])
		s.persisted = s.published
		s.finish()
		return
	}

	// Not converged yet: publish the candidate as a live preview.
	s.published = unpack(p)
}

// restart recovers from divergence: the parameters go back to the persisted
// calibration plus an independent bounded random offset per degree of
// freedom, and the iteration count starts over. The optimizer itself is
// stateless between iterations and stays.
func (s *Session) restart() {
	monitoring.Logf("calibrate: optimization diverged, restarting with random offsets")
	pack(s.persisted, &s.optParams)
	for i := range s.optParams {
		s.optParams[i] += (s.rng.Float64()*2 - 1) * s.params.RestartPerturbation
	}
	s.published = unpack(s.optParams[:])
	s.convergenceStreak = 0
	s.lowestDelta = math.MaxFloat64
	s.lowestDeltaParams = [numParameters]float64{}
	s.iterations = 0
}

// finish ends the session after convergence.
func (s *Session) finish() {
	s.state = Idle
	s.optimizer = nil
	s.lowestDelta = math.MaxFloat64
	s.lowestDeltaParams = [numParameters]float64{}
	s.iterations = 0
}

// Iterations returns the optimizer iteration count since the last (re)start.
func (s *Session) Iterations() int {
	return s.iterations
}

// MeanError returns the mean residual of the recorded samples under the
// published calibration, or NaN when nothing is recorded yet.
func (s *Session) MeanError() float64 {
	total, n := 0.0, 0
	for _, smp := range s.samples {
		if smp == nil {
			continue
		}
		total += smp.ComputeError(s.published)
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return total / float64(n)
}

// pack flattens a calibration into the parameter vector.
func pack(c camera.Calibration, p *[numParameters]float64) {
	p[0] = c.LowerCamera.Roll
	p[1] = c.LowerCamera.Tilt
	p[2] = c.UpperCamera.Roll
	p[3] = c.UpperCamera.Tilt
	p[4] = c.Body.Roll
	p[5] = c.Body.Tilt
}

// unpack builds a calibration from a parameter vector, reducing every angle
// modulo a full turn.
func unpack(p []float64) camera.Calibration {
	return camera.Calibration{
		LowerCamera: camera.RotationCorrection{Roll: p[0], Tilt: p[1]},
		UpperCamera: camera.RotationCorrection{Roll: p[2], Tilt: p[3]},
		Body:        camera.RotationCorrection{Roll: p[4], Tilt: p[5]},
	}.Normalized()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
