// ABOUTME: Application configuration with defaults and validation
// ABOUTME: JSON-loadable settings for pipeline, DSP stages, and viz server
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Defaults used when values are not specified.
const (
	DefaultInputSampleRate  = 44100
	DefaultOutputSampleRate = 44100
	DefaultChannels         = 2
	DefaultLatencyMs        = 100
	DefaultVizPort          = 8937
	DefaultVizRefreshHz     = 20
)

// CompressorConfig holds dynamics settings.
type CompressorConfig struct {
	Enabled      bool    `json:"enabled"`
	ThresholdDB  float64 `json:"threshold_db" validate:"min=-60,max=0"`
	Ratio        float64 `json:"ratio" validate:"min=1,max=100"`
	AttackMs     float64 `json:"attack_ms" validate:"min=0.1,max=1000"`
	ReleaseMs    float64 `json:"release_ms" validate:"min=1,max=5000"`
	MakeupGainDB float64 `json:"makeup_gain_db" validate:"min=0,max=24"`
}

// KaraokeConfig holds vocal-suppression settings.
type KaraokeConfig struct {
	Enabled   bool    `json:"enabled"`
	Mode      string  `json:"mode" validate:"oneof=local model"`
	Intensity float64 `json:"intensity" validate:"min=0,max=1"`
}

// DriftConfig holds drift-correction tuning. The hysteresis,
// correction, and emergency-drain thresholds are all exposed so
// installations can verify the emergency drain never fights ordinary
// drift correction.
type DriftConfig struct {
	Enabled          bool `json:"enabled"`
	HysteresisFrames int  `json:"hysteresis_frames" validate:"min=0,max=8192"`
	CorrectionFrames int  `json:"correction_frames" validate:"min=0,max=16384"`
	EmergencyMult    int  `json:"emergency_mult" validate:"min=0,max=16"`
}

// Config is the full application configuration.
type Config struct {
	InputSampleRate  int `json:"input_sample_rate" validate:"required,min=8000,max=192000"`
	OutputSampleRate int `json:"output_sample_rate" validate:"required,min=8000,max=192000"`
	Channels         int `json:"channels" validate:"required,min=1,max=8"`
	LatencyMs        int `json:"latency_ms" validate:"required,min=5,max=2000"`

	Volume float64 `json:"volume" validate:"min=0,max=2"`

	Drift      DriftConfig      `json:"drift"`
	Compressor CompressorConfig `json:"compressor"`
	EQGains    []float64        `json:"eq_gains" validate:"len=8,dive,min=-12,max=12"`
	Karaoke    KaraokeConfig    `json:"karaoke"`

	SeparationAddr string `json:"separation_addr" validate:"omitempty,hostname_port"`

	VizPort      int `json:"viz_port" validate:"min=0,max=65535"`
	VizRefreshHz int `json:"viz_refresh_hz" validate:"min=1,max=60"`
}

// Default returns a configuration with sensible monitoring defaults.
func Default() Config {
	return Config{
		InputSampleRate:  DefaultInputSampleRate,
		OutputSampleRate: DefaultOutputSampleRate,
		Channels:         DefaultChannels,
		LatencyMs:        DefaultLatencyMs,
		Volume:           1.0,
		Drift:            DriftConfig{Enabled: true},
		Compressor: CompressorConfig{
			ThresholdDB: -20,
			Ratio:       4,
			AttackMs:    10,
			ReleaseMs:   100,
		},
		EQGains:      make([]float64, 8),
		Karaoke:      KaraokeConfig{Mode: "local", Intensity: 1.0},
		VizPort:      DefaultVizPort,
		VizRefreshHz: DefaultVizRefreshHz,
	}
}

var validate = validator.New()

// Validate checks all constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load reads a JSON configuration file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
