// Package config loads gfx settings from TOML files.
//
// Library packages take explicit option structs; config only maps a file
// onto them, so applications can keep their settings in one place:
//
//	[device]
//	backend = "native"
//
//	[shadow]
//	resolution = 2048
//	vsm = true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpu"
	"github.com/gogpu/gfx/render"
)

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("config: invalid setting")

// MaxShadowResolution bounds [shadow] resolution.
const MaxShadowResolution = 8192

// Config is the root of a gfx settings file.
type Config struct {
	Device  DeviceConfig  `toml:"device"`
	Memory  MemoryConfig  `toml:"memory"`
	Shadow  ShadowConfig  `toml:"shadow"`
	Shaders ShadersConfig `toml:"shaders"`
	Log     LogConfig     `toml:"log"`
}

// DeviceConfig selects the backend.
type DeviceConfig struct {
	// Backend names a registered backend. Empty picks the best available.
	Backend string `toml:"backend"`

	Label string `toml:"label"`
}

// MemoryConfig sizes transient allocations.
type MemoryConfig struct {
	// UniformChunkSize is the size of one uniform ring chunk in bytes.
	UniformChunkSize uint64 `toml:"uniform_chunk_size"`

	// VRAMWarnBytes logs a warning when tracked memory passes it.
	VRAMWarnBytes uint64 `toml:"vram_warn_bytes"`
}

// ShadowConfig holds the shadow defaults applied to lights.
type ShadowConfig struct {
	Resolution uint32  `toml:"resolution"`
	Near       float32 `toml:"near"`
	Far        float32 `toml:"far"`
	VSM        bool    `toml:"vsm"`
	BlurRadius int     `toml:"blur_radius"`
}

// ShadersConfig locates shader chunk overrides.
type ShadersConfig struct {
	// Dir holds *.wgsl chunk files loaded over the built-in chunks.
	Dir string `toml:"dir"`

	// Watch reloads chunks from Dir when they change.
	Watch bool `toml:"watch"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{Label: "gfx"},
		Memory: MemoryConfig{
			UniformChunkSize: gpu.DefaultUniformChunkSize,
		},
		Shadow: ShadowConfig{
			Resolution: render.DefaultShadowResolution,
			Near:       render.DefaultShadowNear,
			Far:        render.DefaultLightRange,
			BlurRadius: render.DefaultVSMBlurRadius,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads and validates the TOML file at path on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML from r on top of Default and validates the result.
// Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("config: line %d column %d: %w", row, col, err)
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as TOML.
func (c *Config) Save(w io.Writer) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	_, err = w.Write(data)
	return err
}

var backendNames = map[string]bool{
	"":                      true,
	backend.BackendNative:   true,
	backend.BackendRust:     true,
	backend.BackendWebGL:    true,
	backend.BackendSoftware: true,
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	if !backendNames[c.Device.Backend] {
		return fmt.Errorf("%w: device.backend %q", ErrInvalid, c.Device.Backend)
	}
	if c.Memory.UniformChunkSize < 256 {
		return fmt.Errorf("%w: memory.uniform_chunk_size %d below 256", ErrInvalid, c.Memory.UniformChunkSize)
	}
	s := c.Shadow
	if s.Resolution == 0 || s.Resolution > MaxShadowResolution {
		return fmt.Errorf("%w: shadow.resolution %d outside [1, %d]", ErrInvalid, s.Resolution, MaxShadowResolution)
	}
	if s.Near <= 0 || s.Far <= s.Near {
		return fmt.Errorf("%w: shadow.near %g and shadow.far %g", ErrInvalid, s.Near, s.Far)
	}
	if s.BlurRadius < 1 || s.BlurRadius > render.MaxVSMBlurRadius {
		return fmt.Errorf("%w: shadow.blur_radius %d outside [1, %d]", ErrInvalid, s.BlurRadius, render.MaxVSMBlurRadius)
	}
	if c.Shaders.Watch && c.Shaders.Dir == "" {
		return fmt.Errorf("%w: shaders.watch without shaders.dir", ErrInvalid)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, l.Level)
	}
}

// DeviceOptions returns the gpu.Device options.
func (c *Config) DeviceOptions() gpu.DeviceOptions {
	return gpu.DeviceOptions{
		Label:         c.Device.Label,
		VRAMWarnBytes: c.Memory.VRAMWarnBytes,
	}
}

// ApplyShadow fills the zero shadow fields of l from the config.
func (c *Config) ApplyShadow(l *render.Light) {
	s := c.Shadow
	if l.ShadowResolution == 0 {
		l.ShadowResolution = s.Resolution
	}
	if l.ShadowNear == 0 {
		l.ShadowNear = s.Near
	}
	if l.Range == 0 {
		l.Range = s.Far
	}
	if l.VSMBlurRadius == 0 {
		l.VSMBlurRadius = s.BlurRadius
	}
	l.VSM = l.VSM || s.VSM
}
