package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.TerminationCriterion == nil || *cfg.TerminationCriterion != 1e-4 {
		t.Errorf("Expected TerminationCriterion 1e-4, got %v", cfg.TerminationCriterion)
	}
	if cfg.MinSuccessiveConvergences == nil || *cfg.MinSuccessiveConvergences != 5 {
		t.Errorf("Expected MinSuccessiveConvergences 5, got %v", cfg.MinSuccessiveConvergences)
	}
	if cfg.RangeWidenStepMM == nil || *cfg.RangeWidenStepMM != 100 {
		t.Errorf("Expected RangeWidenStepMM 100, got %v", cfg.RangeWidenStepMM)
	}
	if cfg.GroundLineXMM == nil || *cfg.GroundLineXMM != 4500 {
		t.Errorf("Expected GroundLineXMM 4500, got %v", cfg.GroundLineXMM)
	}

	// Test getter methods
	if cfg.GetDiscardsUntilWiden() != 5 {
		t.Errorf("GetDiscardsUntilWiden() = %d, want 5", cfg.GetDiscardsUntilWiden())
	}
	if cfg.GetSobelThresholdFraction() != 0.25 {
		t.Errorf("GetSobelThresholdFraction() = %f, want 0.25", cfg.GetSobelThresholdFraction())
	}
	if cfg.GetLineWidthMM() != 50 {
		t.Errorf("GetLineWidthMM() = %f, want 50", cfg.GetLineWidthMM())
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestEmptyConfigGettersReturnDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetTerminationCriterion() != 1e-4 {
		t.Errorf("GetTerminationCriterion() = %v, want 1e-4", cfg.GetTerminationCriterion())
	}
	if cfg.GetRestartPerturbationDeg() != 0.5 {
		t.Errorf("GetRestartPerturbationDeg() = %v, want 0.5", cfg.GetRestartPerturbationDeg())
	}
	if cfg.GetPenaltyMarkXMM() != 3200 {
		t.Errorf("GetPenaltyMarkXMM() = %v, want 3200", cfg.GetPenaltyMarkXMM())
	}
	if cfg.GetSectorHalfWidthDeg() != 10 {
		t.Errorf("GetSectorHalfWidthDeg() = %v, want 10", cfg.GetSectorHalfWidthDeg())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	// Partial config: only two overrides.
	testJSON := `{
  "termination_criterion": 0.001,
  "discards_until_widen": 3
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if cfg.GetTerminationCriterion() != 0.001 {
		t.Errorf("GetTerminationCriterion() = %v, want 0.001", cfg.GetTerminationCriterion())
	}
	if cfg.GetDiscardsUntilWiden() != 3 {
		t.Errorf("GetDiscardsUntilWiden() = %d, want 3", cfg.GetDiscardsUntilWiden())
	}
	// Fields not present in the file fall back to defaults.
	if cfg.GetRangeWidenStepMM() != 100 {
		t.Errorf("GetRangeWidenStepMM() = %v, want default 100", cfg.GetRangeWidenStepMM())
	}
	if cfg.RangeWidenStepMM != nil {
		t.Errorf("omitted field should stay nil, got %v", *cfg.RangeWidenStepMM)
	}
}

func TestLoadTuningConfigRejectsBadFiles(t *testing.T) {
	tmpDir := t.TempDir()

	badExt := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(badExt, []byte("{}"), 0644))
	_, err := LoadTuningConfig(badExt)
	assert.Error(t, err, "non-JSON extension should be rejected")

	badJSON := filepath.Join(tmpDir, "bad.json")
	require.NoError(t, os.WriteFile(badJSON, []byte("{not json"), 0644))
	_, err = LoadTuningConfig(badJSON)
	assert.Error(t, err, "invalid JSON should be rejected")

	_, err = LoadTuningConfig(filepath.Join(tmpDir, "missing.json"))
	assert.Error(t, err, "missing file should be rejected")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		cfg  *TuningConfig
	}{
		{"negative termination", &TuningConfig{TerminationCriterion: ptrFloat64(-1)}},
		{"zero convergences", &TuningConfig{MinSuccessiveConvergences: ptrInt(0)}},
		{"zero widen step", &TuningConfig{RangeWidenStepMM: ptrFloat64(0)}},
		{"threshold above one", &TuningConfig{SobelThresholdFraction: ptrFloat64(1.5)}},
		{"sector too wide", &TuningConfig{SectorHalfWidthDeg: ptrFloat64(90)}},
		{"mark behind goal area", &TuningConfig{PenaltyMarkXMM: ptrFloat64(4000)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}
