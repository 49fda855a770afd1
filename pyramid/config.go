package pyramid

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/perimeterx/marshmallow"
)

// Config controls pyramid generation. It is threaded explicitly into
// every component call; the generator reads no ambient state.
type Config struct {
	// ZoomLevels to generate, low to high.
	ZoomLevels []int `json:"zoom_levels" default:"[1,2,3,4,5,6]" validate:"required,min=1,dive,gte=0,lte=22"`
	// MaxFeaturesPerTile is the hard cap before downsampling triggers.
	MaxFeaturesPerTile int `json:"max_features_per_tile" default:"300" validate:"gt=0"`
	// TargetFeaturesPerTile is the sample size once the cap is exceeded.
	TargetFeaturesPerTile int `json:"target_features_per_tile" default:"200" validate:"gt=0,ltfield=MaxFeaturesPerTile"`
	CoordinatePrecision   int `json:"coordinate_precision" default:"4" validate:"gte=0,lte=10"`
	ValuePrecision        int `json:"value_precision" default:"2" validate:"gte=0,lte=10"`
	DirectionPrecision    int `json:"direction_precision" default:"1" validate:"gte=0,lte=10"`
	TilePixelSize         int `json:"tile_pixel_size" default:"256" validate:"gte=16,lte=4096"`

	// Unknown lists unrecognized option names found in the config
	// file. The CLI warns about them; they are never an error.
	Unknown []string `json:"-"`
}

// DefaultConfig returns the configuration with every option at its
// default value.
func DefaultConfig() Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) UnmarshalJSON(data []byte) error {
	if err := defaults.Set(c); err != nil {
		return err
	}
	unknown, err := marshmallow.Unmarshal(data, c, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}
	for k := range unknown {
		c.Unknown = append(c.Unknown, k)
	}
	sort.Strings(c.Unknown)
	return c.Validate()
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(c)
}

// LoadConfig reads a JSON config file, applying defaults for absent
// options and validating the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
