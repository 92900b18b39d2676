package ozone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfigIsSane checks that Default produces a usable
// single-process configuration with no zero-value pool sizes.
func TestDefaultConfigIsSane(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4, cfg.NumZones)
	assert.Greater(t, cfg.NumCBotsPerZone, 0)
	assert.Greater(t, cfg.NumWBotsPerZone, 0)
	assert.Greater(t, cfg.NumRBotsPerZone, 0)
	assert.Greater(t, cfg.DataFileMaxBytes, int64(0))
	assert.True(t, cfg.GCEnabled)
}

// TestChunkConfigToDaticle verifies the uint64->int field conversion that
// bridges the TOML-facing ChunkConfig to daticle.ChunkConfig.
func TestChunkConfigToDaticle(t *testing.T) {
	cc := ChunkConfig{ThresholdBytes: 1024, ChunkSize: 512, PadLast: true}
	dc := cc.toDaticle()
	assert.Equal(t, 1024, dc.ThresholdBytes)
	assert.Equal(t, 512, dc.ChunkSize)
	assert.True(t, dc.PadLast)
}

// TestLoadTOMLMissingFileReturnsBase verifies a missing config file is not
// an error: the base Config is returned unchanged.
func TestLoadTOMLMissingFileReturnsBase(t *testing.T) {
	base := Default()
	cfg, err := LoadTOML(filepath.Join(t.TempDir(), "does-not-exist.toml"), base)
	require.NoError(t, err)
	assert.Equal(t, base, cfg)
}

// TestLoadTOMLOverlaysFields verifies that a present TOML file overlays
// only the fields it mentions, leaving the rest of base untouched.
func TestLoadTOMLOverlaysFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ozone.toml")
	contents := "root_dir = \"/var/ozone\"\nnum_zones = 8\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadTOML(path, Default())
	require.NoError(t, err)
	assert.Equal(t, "/var/ozone", cfg.RootDir)
	assert.Equal(t, 8, cfg.NumZones)
	assert.Equal(t, Default().NumCBotsPerZone, cfg.NumCBotsPerZone)
}

// TestApplyEnvOverridesRootDir verifies OZONE_ROOT_DIR and OZONE_GC_ENABLED
// are recognised as the final override layer, mirroring the teacher's
// NODE_*/COORDINATOR_* environment-variable convention.
func TestApplyEnvOverridesRootDir(t *testing.T) {
	t.Setenv("OZONE_ROOT_DIR", "/tmp/ozone-env")
	t.Setenv("OZONE_GC_ENABLED", "false")

	cfg := ApplyEnv(Default())
	assert.Equal(t, "/tmp/ozone-env", cfg.RootDir)
	assert.False(t, cfg.GCEnabled)
}

// TestDurationUnmarshalText verifies Duration decodes a Go duration string
// as BurntSushi/toml would invoke it via encoding.TextUnmarshaler.
func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("15s")))
	assert.Equal(t, "15s", d.Duration.String())
}
