package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidate(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("subs: 5000\nseed: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Subs)
	assert.Equal(t, int64(7), cfg.Seed)
	// Unmentioned fields retain their compiled-in defaults.
	assert.Equal(t, Default().Prefixes, cfg.Prefixes)
	assert.Equal(t, Default().CallRatePerDay, cfg.CallRatePerDay)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsEmptyPrefixes(t *testing.T) {
	cfg := Default()
	cfg.Prefixes = nil
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsNegativeRate(t *testing.T) {
	cfg := Default()
	cfg.SMSRatePerDay = -1
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsOutOfRangeShare(t *testing.T) {
	cfg := Default()
	cfg.MOShareCall = 1.5
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsMismatchedAPNWeights(t *testing.T) {
	cfg := Default()
	cfg.APNWeights = []float64{0.5}
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsNonNormalizedAPNWeights(t *testing.T) {
	cfg := Default()
	cfg.APNWeights = []float64{0.5, 0.2, 0.1}
	assert.Error(t, Validate(cfg))
}
