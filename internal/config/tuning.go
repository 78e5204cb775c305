package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig represents the tuning parameters of the calibration pipeline.
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* methods supply defaults for everything else.
type TuningConfig struct {
	// Optimizer params
	TerminationCriterion      *float64 `json:"termination_criterion,omitempty"`
	MinSuccessiveConvergences *int     `json:"min_successive_convergences,omitempty"`
	RestartPerturbationDeg    *float64 `json:"restart_perturbation_deg,omitempty"`
	Damping                   *float64 `json:"damping,omitempty"`
	JacobianEpsilon           *float64 `json:"jacobian_epsilon,omitempty"`

	// Sample collection params
	DiscardsUntilWiden *int     `json:"discards_until_widen,omitempty"`
	RangeWidenStepMM   *float64 `json:"range_widen_step_mm,omitempty"`

	// Residual shaping params
	AngleErrorDivisor       *float64 `json:"angle_error_divisor,omitempty"`
	DistanceErrorDivisor    *float64 `json:"distance_error_divisor,omitempty"`
	PixelInaccuracyPerMeter *float64 `json:"pixel_inaccuracy_per_meter,omitempty"`

	// Line refiner params
	SobelThresholdFraction *float64 `json:"sobel_threshold_fraction,omitempty"`
	MinEdgeSeparationPx    *float64 `json:"min_edge_separation_px,omitempty"`
	SectorHalfWidthDeg     *float64 `json:"sector_half_width_deg,omitempty"`

	// Field geometry, millimeters from the field center
	GroundLineXMM  *float64 `json:"ground_line_x_mm,omitempty"`
	GoalAreaXMM    *float64 `json:"goal_area_x_mm,omitempty"`
	PenaltyMarkXMM *float64 `json:"penalty_mark_x_mm,omitempty"`
	LineWidthMM    *float64 `json:"line_width_mm,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated with
// its default value.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		TerminationCriterion:      ptrFloat64(1e-4),
		MinSuccessiveConvergences: ptrInt(5),
		RestartPerturbationDeg:    ptrFloat64(0.5),
		Damping:                   ptrFloat64(1e-6),
		JacobianEpsilon:           ptrFloat64(1e-4),
		DiscardsUntilWiden:        ptrInt(5),
		RangeWidenStepMM:          ptrFloat64(100),
		AngleErrorDivisor:         ptrFloat64(0.1),
		DistanceErrorDivisor:      ptrFloat64(100),
		PixelInaccuracyPerMeter:   ptrFloat64(5),
		SobelThresholdFraction:    ptrFloat64(0.25),
		MinEdgeSeparationPx:       ptrFloat64(2),
		SectorHalfWidthDeg:        ptrFloat64(10),
		GroundLineXMM:             ptrFloat64(4500),
		GoalAreaXMM:               ptrFloat64(3900),
		PenaltyMarkXMM:            ptrFloat64(3200),
		LineWidthMM:               ptrFloat64(50),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted from
// the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.TerminationCriterion != nil && *c.TerminationCriterion <= 0 {
		return fmt.Errorf("termination_criterion must be positive, got %f", *c.TerminationCriterion)
	}
	if c.MinSuccessiveConvergences != nil && *c.MinSuccessiveConvergences < 1 {
		return fmt.Errorf("min_successive_convergences must be at least 1, got %d", *c.MinSuccessiveConvergences)
	}
	if c.DiscardsUntilWiden != nil && *c.DiscardsUntilWiden < 1 {
		return fmt.Errorf("discards_until_widen must be at least 1, got %d", *c.DiscardsUntilWiden)
	}
	if c.RangeWidenStepMM != nil && *c.RangeWidenStepMM <= 0 {
		return fmt.Errorf("range_widen_step_mm must be positive, got %f", *c.RangeWidenStepMM)
	}
	if c.SobelThresholdFraction != nil {
		if *c.SobelThresholdFraction <= 0 || *c.SobelThresholdFraction > 1 {
			return fmt.Errorf("sobel_threshold_fraction must be in (0, 1], got %f", *c.SobelThresholdFraction)
		}
	}
	if c.SectorHalfWidthDeg != nil {
		if *c.SectorHalfWidthDeg <= 0 || *c.SectorHalfWidthDeg >= 90 {
			return fmt.Errorf("sector_half_width_deg must be in (0, 90), got %f", *c.SectorHalfWidthDeg)
		}
	}
	if c.LineWidthMM != nil && *c.LineWidthMM <= 0 {
		return fmt.Errorf("line_width_mm must be positive, got %f", *c.LineWidthMM)
	}
	// The three field landmarks are ordered front to back.
	mark, goal, ground := c.GetPenaltyMarkXMM(), c.GetGoalAreaXMM(), c.GetGroundLineXMM()
	if !(mark < goal && goal < ground) {
		return fmt.Errorf("field landmarks out of order: penalty mark %f, goal area %f, ground line %f",
			mark, goal, ground)
	}
	return nil
}

// GetTerminationCriterion returns the termination_criterion value or the default.
func (c *TuningConfig) GetTerminationCriterion() float64 {
	if c.TerminationCriterion == nil {
		return 1e-4
	}
	return *c.TerminationCriterion
}

// GetMinSuccessiveConvergences returns the min_successive_convergences value or the default.
func (c *TuningConfig) GetMinSuccessiveConvergences() int {
	if c.MinSuccessiveConvergences == nil {
		return 5
	}
	return *c.MinSuccessiveConvergences
}

// GetRestartPerturbationDeg returns the restart_perturbation_deg value or the default.
func (c *TuningConfig) GetRestartPerturbationDeg() float64 {
	if c.RestartPerturbationDeg == nil {
		return 0.5
	}
	return *c.RestartPerturbationDeg
}

// GetDamping returns the damping value or the default.
func (c *TuningConfig) GetDamping() float64 {
	if c.Damping == nil {
		return 1e-6
	}
	return *c.Damping
}

// GetJacobianEpsilon returns the jacobian_epsilon value or the default.
func (c *TuningConfig) GetJacobianEpsilon() float64 {
	if c.JacobianEpsilon == nil {
		return 1e-4
	}
	return *c.JacobianEpsilon
}

// GetDiscardsUntilWiden returns the discards_until_widen value or the default.
func (c *TuningConfig) GetDiscardsUntilWiden() int {
	if c.DiscardsUntilWiden == nil {
		return 5
	}
	return *c.DiscardsUntilWiden
}

// GetRangeWidenStepMM returns the range_widen_step_mm value or the default.
func (c *TuningConfig) GetRangeWidenStepMM() float64 {
	if c.RangeWidenStepMM == nil {
		return 100
	}
	return *c.RangeWidenStepMM
}

// GetAngleErrorDivisor returns the angle_error_divisor value or the default.
func (c *TuningConfig) GetAngleErrorDivisor() float64 {
	if c.AngleErrorDivisor == nil {
		return 0.1
	}
	return *c.AngleErrorDivisor
}

// GetDistanceErrorDivisor returns the distance_error_divisor value or the default.
func (c *TuningConfig) GetDistanceErrorDivisor() float64 {
	if c.DistanceErrorDivisor == nil {
		return 100
	}
	return *c.DistanceErrorDivisor
}

// GetPixelInaccuracyPerMeter returns the pixel_inaccuracy_per_meter value or the default.
func (c *TuningConfig) GetPixelInaccuracyPerMeter() float64 {
	if c.PixelInaccuracyPerMeter == nil {
		return 5
	}
	return *c.PixelInaccuracyPerMeter
}

// GetSobelThresholdFraction returns the sobel_threshold_fraction value or the default.
func (c *TuningConfig) GetSobelThresholdFraction() float64 {
	if c.SobelThresholdFraction == nil {
		return 0.25
	}
	return *c.SobelThresholdFraction
}

// GetMinEdgeSeparationPx returns the min_edge_separation_px value or the default.
func (c *TuningConfig) GetMinEdgeSeparationPx() float64 {
	if c.MinEdgeSeparationPx == nil {
		return 2
	}
	return *c.MinEdgeSeparationPx
}

// GetSectorHalfWidthDeg returns the sector_half_width_deg value or the default.
func (c *TuningConfig) GetSectorHalfWidthDeg() float64 {
	if c.SectorHalfWidthDeg == nil {
		return 10
	}
	return *c.SectorHalfWidthDeg
}

// GetGroundLineXMM returns the ground_line_x_mm value or the default.
func (c *TuningConfig) GetGroundLineXMM() float64 {
	if c.GroundLineXMM == nil {
		return 4500
	}
	return *c.GroundLineXMM
}

// GetGoalAreaXMM returns the goal_area_x_mm value or the default.
func (c *TuningConfig) GetGoalAreaXMM() float64 {
	if c.GoalAreaXMM == nil {
		return 3900
	}
	return *c.GoalAreaXMM
}

// GetPenaltyMarkXMM returns the penalty_mark_x_mm value or the default.
func (c *TuningConfig) GetPenaltyMarkXMM() float64 {
	if c.PenaltyMarkXMM == nil {
		return 3200
	}
	return *c.PenaltyMarkXMM
}

// GetLineWidthMM returns the line_width_mm value or the default.
func (c *TuningConfig) GetLineWidthMM() float64 {
	if c.LineWidthMM == nil {
		return 50
	}
	return *c.LineWidthMM
}
