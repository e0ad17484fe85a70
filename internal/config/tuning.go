package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/proximity.guard/internal/avoid"
)

// TuningConfig represents the root configuration for avoidance tuning
// parameters. The schema matches the /api/avoid/params endpoint so the
// same JSON can be used for both startup configuration and runtime
// updates.
type TuningConfig struct {
	// Constraint shaping params
	KeepOutDistanceM      *float64 `json:"keep_out_distance_m,omitempty"`
	DetectionHalfAngleDeg *float64 `json:"detection_half_angle_deg,omitempty"`
	PositionGain          *float64 `json:"position_gain,omitempty"`
	SensorLatency         *string  `json:"sensor_latency,omitempty"` // duration string like "100ms"

	// Vehicle dynamics params
	MaxJerk  *float64 `json:"max_jerk,omitempty"`
	MaxAccel *float64 `json:"max_accel,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// The Get* methods fall back to built-in defaults for nil fields.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
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
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
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
	if c.KeepOutDistanceM != nil {
		if *c.KeepOutDistanceM < 0 {
			return fmt.Errorf("keep_out_distance_m must be non-negative, got %f", *c.KeepOutDistanceM)
		}
	}

	if c.DetectionHalfAngleDeg != nil {
		if *c.DetectionHalfAngleDeg <= 0 || *c.DetectionHalfAngleDeg > 180 {
			return fmt.Errorf("detection_half_angle_deg must be in (0, 180], got %f", *c.DetectionHalfAngleDeg)
		}
	}

	if c.PositionGain != nil {
		if *c.PositionGain <= 0 {
			return fmt.Errorf("position_gain must be positive, got %f", *c.PositionGain)
		}
	}

	if c.SensorLatency != nil && *c.SensorLatency != "" {
		d, err := time.ParseDuration(*c.SensorLatency)
		if err != nil {
			return fmt.Errorf("invalid sensor_latency '%s': %w", *c.SensorLatency, err)
		}
		if d < 0 {
			return fmt.Errorf("sensor_latency must be non-negative, got %s", d)
		}
	}

	if c.MaxJerk != nil {
		if *c.MaxJerk <= 0 {
			return fmt.Errorf("max_jerk must be positive, got %f", *c.MaxJerk)
		}
	}

	if c.MaxAccel != nil {
		if *c.MaxAccel <= 0 {
			return fmt.Errorf("max_accel must be positive, got %f", *c.MaxAccel)
		}
	}

	return nil
}

// GetKeepOutDistanceM returns the keep_out_distance_m value or the default.
// Zero disables constraint shaping entirely.
func (c *TuningConfig) GetKeepOutDistanceM() float64 {
	if c.KeepOutDistanceM == nil {
		return 4.0 // default
	}
	return *c.KeepOutDistanceM
}

// GetDetectionHalfAngleDeg returns the detection_half_angle_deg value or the default.
func (c *TuningConfig) GetDetectionHalfAngleDeg() float64 {
	if c.DetectionHalfAngleDeg == nil {
		return 30.0 // default
	}
	return *c.DetectionHalfAngleDeg
}

// GetPositionGain returns the position_gain value or the default.
func (c *TuningConfig) GetPositionGain() float64 {
	if c.PositionGain == nil {
		return 0.95 // default
	}
	return *c.PositionGain
}

// GetSensorLatency parses and returns the SensorLatency as a time.Duration.
func (c *TuningConfig) GetSensorLatency() time.Duration {
	if c.SensorLatency == nil || *c.SensorLatency == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.SensorLatency)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetMaxJerk returns the max_jerk value or the default.
func (c *TuningConfig) GetMaxJerk() float64 {
	if c.MaxJerk == nil {
		return 8.0 // default
	}
	return *c.MaxJerk
}

// GetMaxAccel returns the max_accel value or the default.
func (c *TuningConfig) GetMaxAccel() float64 {
	if c.MaxAccel == nil {
		return 3.0 // default
	}
	return *c.MaxAccel
}

// Params converts the configuration to the engine's parameter set,
// applying defaults for any unset fields.
func (c *TuningConfig) Params() avoid.Params {
	return avoid.Params{
		KeepOutDistance:    c.GetKeepOutDistanceM(),
		DetectionHalfAngle: c.GetDetectionHalfAngleDeg() * math.Pi / 180,
		PositionGain:       c.GetPositionGain(),
		SensorLatency:      c.GetSensorLatency().Seconds(),
		MaxJerk:            c.GetMaxJerk(),
		MaxAccel:           c.GetMaxAccel(),
	}
}
