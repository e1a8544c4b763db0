// Package config loads pipeline settings from the environment.
package config

import (
	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the segmentation pipeline. All values
// have working defaults; environment variables override them.
type Config struct {
	OutputDir string `env:"VIDSEG_OUTPUT_DIR" envDefault:"./output"`
	FramesDir string `env:"VIDSEG_FRAMES_DIR" envDefault:""`
	DBPath    string `env:"VIDSEG_DB_PATH"    envDefault:"vidseg.db"`

	ScriptPath      string `env:"VIDSEG_SCRIPT_PATH"       envDefault:""`
	CheckpointPath  string `env:"VIDSEG_CHECKPOINT_PATH"   envDefault:""`
	ModelConfigPath string `env:"VIDSEG_MODEL_CONFIG_PATH" envDefault:""`

	Device         string `env:"VIDSEG_DEVICE"          envDefault:"cuda"`
	MixedPrecision bool   `env:"VIDSEG_MIXED_PRECISION" envDefault:"true"`
	FallbackDevice string `env:"VIDSEG_FALLBACK_DEVICE" envDefault:"cpu"`

	KeyframeInterval int `env:"VIDSEG_KEYFRAME_INTERVAL" envDefault:"90"`
	AutoKeyframes    int `env:"VIDSEG_AUTO_KEYFRAMES"    envDefault:"5"`
	Passes           int `env:"VIDSEG_PASSES"            envDefault:"1"`
	ObjectID         int `env:"VIDSEG_OBJECT_ID"         envDefault:"1"`

	ServerAddr string `env:"VIDSEG_SERVER_ADDR" envDefault:":8420"`
	LogLevel   string `env:"VIDSEG_LOG_LEVEL"   envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
