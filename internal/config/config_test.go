package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalops/evalsync/internal/structure"
	"github.com/evalops/evalsync/internal/types"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, ".evalsync/ledger.db", cfg.LedgerPath)
	assert.Equal(t, string(types.ModelNPS), cfg.Model)
	assert.True(t, cfg.Normalize)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, "2s", cfg.Watch.Debounce)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "data_dir: /srv/evals\nmodel: legacy\nworkers: 8\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/evals", cfg.DataDir)
	assert.Equal(t, string(types.ModelLegacy), cfg.Model)
	assert.Equal(t, 8, cfg.Workers)

	// Fields the file omits keep their defaults.
	assert.Equal(t, "output", cfg.OutputDir)
	assert.True(t, cfg.Normalize)
	assert.Equal(t, 12, cfg.Watch.MaxPerMinute)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	want := DefaultConfig()
	want.DataDir = "people"
	want.Model = string(types.ModelLegacy)
	want.Normalize = false
	want.Layout = string(structure.OrientationPersonFirst)
	want.BatchSize = 16
	want.IgnoreErrors = true
	want.Watch.Debounce = "500ms"

	require.NoError(t, want.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: [unclosed"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing YAML")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: promoter\n"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, types.ErrUnknownModel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"empty ledger path", func(c *Config) { c.LedgerPath = "" }, "ledger_path"},
		{"unknown model", func(c *Config) { c.Model = "median" }, "model"},
		{"unknown layout", func(c *Config) { c.Layout = "sideways" }, "layout"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"too many workers", func(c *Config) { c.Workers = 512 }, "workers"},
		{"negative batch size", func(c *Config) { c.BatchSize = -2 }, "batch_size"},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }, "watch.debounce"},
		{"zero rate limit", func(c *Config) { c.Watch.MaxPerMinute = 0 }, "watch.max_per_minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestTypedAccessors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, types.ModelNPS, cfg.ScoringModel())
	assert.Equal(t, structure.OrientationAuto, cfg.Orientation())

	cfg.Model = "legacy"
	cfg.Layout = "person-first"
	assert.Equal(t, types.ModelLegacy, cfg.ScoringModel())
	assert.Equal(t, structure.OrientationPersonFirst, cfg.Orientation())
}

func TestDebounceDuration(t *testing.T) {
	w := WatchConfig{}
	assert.Equal(t, 2*time.Second, w.DebounceDuration())

	w.Debounce = "750ms"
	assert.Equal(t, 750*time.Millisecond, w.DebounceDuration())
}
