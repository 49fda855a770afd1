package pyramid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, cfg.ZoomLevels)
	assert.Equal(t, 300, cfg.MaxFeaturesPerTile)
	assert.Equal(t, 200, cfg.TargetFeaturesPerTile)
	assert.Equal(t, 4, cfg.CoordinatePrecision)
	assert.Equal(t, 2, cfg.ValuePrecision)
	assert.Equal(t, 1, cfg.DirectionPrecision)
	assert.Equal(t, 256, cfg.TilePixelSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name:    "empty object keeps defaults",
			content: `{}`,
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name:    "partial override",
			content: `{"zoom_levels": [5], "target_features_per_tile": 100}`,
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, []int{5}, cfg.ZoomLevels)
				assert.Equal(t, 100, cfg.TargetFeaturesPerTile)
				assert.Equal(t, 300, cfg.MaxFeaturesPerTile)
			},
		},
		{
			name:    "unknown options are collected, not fatal",
			content: `{"zoom_levels": [3], "typo_option": true, "another": 1}`,
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, []string{"another", "typo_option"}, cfg.Unknown)
				assert.Equal(t, []int{3}, cfg.ZoomLevels)
			},
		},
		{
			name:    "target must stay below max",
			content: `{"max_features_per_tile": 200, "target_features_per_tile": 200}`,
			wantErr: true,
		},
		{
			name:    "negative zoom rejected",
			content: `{"zoom_levels": [-1, 3]}`,
			wantErr: true,
		},
		{
			name:    "zoom levels must not be empty",
			content: `{"zoom_levels": []}`,
			wantErr: true,
		},
		{
			name:    "tile size bounds",
			content: `{"tile_pixel_size": 4}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			content: `{"zoom_levels": [1,`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfigFile(t, tt.content))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
