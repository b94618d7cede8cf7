// Package config provides the tunable startup configuration for vrrop
// binaries: ports, point cloud merge parameters, and device paths.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file, relative to
// a binary's working directory.
const DefaultConfigPath = "config/vrrop.defaults.json"

// Config is the root configuration for a vrrop server, viewer, or
// controller process. Every field is a pointer so a partial JSON document
// overrides only the fields it mentions; the *OrDefault accessors supply the
// operational default for anything left nil.
type Config struct {
	// Data plane (ServerCore/ClientCore): one TCP port serving both the
	// WebSocket listener and the UDP odometry/ping socket.
	DataPlanePort *int `json:"data_plane_port,omitempty"`

	// Control plane (ControlLink): its own UDP port.
	ControlPlanePort *int `json:"control_plane_port,omitempty"`

	// ImageThrottleInterval bounds how often ServerCore forwards an
	// encoded images frame, as a duration string like "1s".
	ImageThrottleInterval *string `json:"image_throttle_interval,omitempty"`

	// PingInterval is the cadence of ClientCore's UDP pinger.
	PingInterval *string `json:"ping_interval,omitempty"`

	// ReconnectBackoff is how long ClientCore/ServerCore supervisors wait
	// before retrying after a transient failure.
	ReconnectBackoff *string `json:"reconnect_backoff,omitempty"`

	// GridSize is the PointCloud's cubic cell side length, in meters.
	GridSize *float64 `json:"grid_size,omitempty"`

	// StaleRemovalThresholdMeters is the margin in the merge algorithm's
	// stale-point eviction rule (spec §4.4 step 3).
	StaleRemovalThresholdMeters *float64 `json:"stale_removal_threshold_meters,omitempty"`

	// MaxDepthMeters bounds both candidate-cell enumeration and per-pixel
	// insertion during a merge.
	MaxDepthMeters *float64 `json:"max_depth_meters,omitempty"`

	// JPEGQuality is the color codec quality, expected in [50, 70].
	JPEGQuality *int `json:"jpeg_quality,omitempty"`

	// SerialDevice/SerialBaudRate configure the controller's motor link.
	SerialDevice   *string `json:"serial_device,omitempty"`
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`

	// FramerBufferSize is the max encoded-frame size the Framer will
	// accept, including CRC and COBS overhead.
	FramerBufferSize *int `json:"framer_buffer_size,omitempty"`

	// SessionDBPath is where internal/sessiondb stores its SQLite file.
	SessionDBPath *string `json:"session_db_path,omitempty"`

	// ClockOffsetSmoothing enables an exponential moving average over
	// successive Pong-derived offset estimates instead of last-writer-wins
	// (spec §9, open question).
	ClockOffsetSmoothing *bool `json:"clock_offset_smoothing,omitempty"`
}

// Empty returns a Config with every field nil; combine with Load to read a
// partial override file.
func Empty() *Config {
	return &Config{}
}

// Load reads a JSON config file. Fields the file omits keep their nil
// value, so the *OrDefault accessors fall back to operational defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefault loads DefaultConfigPath, searching from the current
// directory up through a few parents. Panics on failure; intended for
// tests and binaries that have already validated config availability.
func MustLoadDefault() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath)
}

// Validate checks the fields that are set for well-formedness. Unset
// fields are always valid (the accessor defaults are known-good).
func (c *Config) Validate() error {
	if c.DataPlanePort != nil && (*c.DataPlanePort <= 0 || *c.DataPlanePort > 65535) {
		return fmt.Errorf("data_plane_port out of range: %d", *c.DataPlanePort)
	}
	if c.ControlPlanePort != nil && (*c.ControlPlanePort <= 0 || *c.ControlPlanePort > 65535) {
		return fmt.Errorf("control_plane_port out of range: %d", *c.ControlPlanePort)
	}
	if c.ImageThrottleInterval != nil {
		if _, err := time.ParseDuration(*c.ImageThrottleInterval); err != nil {
			return fmt.Errorf("invalid image_throttle_interval %q: %w", *c.ImageThrottleInterval, err)
		}
	}
	if c.PingInterval != nil {
		if _, err := time.ParseDuration(*c.PingInterval); err != nil {
			return fmt.Errorf("invalid ping_interval %q: %w", *c.PingInterval, err)
		}
	}
	if c.ReconnectBackoff != nil {
		if _, err := time.ParseDuration(*c.ReconnectBackoff); err != nil {
			return fmt.Errorf("invalid reconnect_backoff %q: %w", *c.ReconnectBackoff, err)
		}
	}
	if c.GridSize != nil && *c.GridSize <= 0 {
		return fmt.Errorf("grid_size must be positive, got %f", *c.GridSize)
	}
	if c.MaxDepthMeters != nil && *c.MaxDepthMeters <= 0 {
		return fmt.Errorf("max_depth_meters must be positive, got %f", *c.MaxDepthMeters)
	}
	if c.JPEGQuality != nil && (*c.JPEGQuality < 1 || *c.JPEGQuality > 100) {
		return fmt.Errorf("jpeg_quality must be in [1,100], got %d", *c.JPEGQuality)
	}
	return nil
}

func (c *Config) DataPlanePortOrDefault() int {
	if c.DataPlanePort == nil {
		return 7878
	}
	return *c.DataPlanePort
}

func (c *Config) ControlPlanePortOrDefault() int {
	if c.ControlPlanePort == nil {
		return 7879
	}
	return *c.ControlPlanePort
}

func (c *Config) ImageThrottleIntervalOrDefault() time.Duration {
	if c.ImageThrottleInterval == nil {
		return 1000 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.ImageThrottleInterval)
	if err != nil {
		return 1000 * time.Millisecond
	}
	return d
}

func (c *Config) PingIntervalOrDefault() time.Duration {
	if c.PingInterval == nil {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.PingInterval)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

func (c *Config) ReconnectBackoffOrDefault() time.Duration {
	if c.ReconnectBackoff == nil {
		return time.Second
	}
	d, err := time.ParseDuration(*c.ReconnectBackoff)
	if err != nil {
		return time.Second
	}
	return d
}

func (c *Config) GridSizeOrDefault() float32 {
	if c.GridSize == nil {
		return 1.0
	}
	return float32(*c.GridSize)
}

func (c *Config) StaleRemovalThresholdMetersOrDefault() float32 {
	if c.StaleRemovalThresholdMeters == nil {
		return 0.5
	}
	return float32(*c.StaleRemovalThresholdMeters)
}

func (c *Config) MaxDepthMetersOrDefault() float32 {
	if c.MaxDepthMeters == nil {
		return 5.0
	}
	return float32(*c.MaxDepthMeters)
}

func (c *Config) JPEGQualityOrDefault() int {
	if c.JPEGQuality == nil {
		return 70
	}
	return *c.JPEGQuality
}

func (c *Config) SerialDeviceOrDefault() string {
	if c.SerialDevice == nil {
		return "/dev/ttyUSB0"
	}
	return *c.SerialDevice
}

func (c *Config) SerialBaudRateOrDefault() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

func (c *Config) FramerBufferSizeOrDefault() int {
	if c.FramerBufferSize == nil {
		return 256
	}
	return *c.FramerBufferSize
}

func (c *Config) SessionDBPathOrDefault() string {
	if c.SessionDBPath == nil {
		return "vrrop-sessions.db"
	}
	return *c.SessionDBPath
}

func (c *Config) ClockOffsetSmoothingOrDefault() bool {
	if c.ClockOffsetSmoothing == nil {
		return false
	}
	return *c.ClockOffsetSmoothing
}
