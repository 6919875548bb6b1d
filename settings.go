package lantern

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes as text ("10s", "1m").
type Duration time.Duration

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("lantern: invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText writes c as "#rrggbbaa".
func (c Color) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("#%08x", uint32(c))), nil
}

// UnmarshalText reads "#rrggbbaa", "0xrrggbbaa" or "#rrggbb" (opaque).
func (c *Color) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case strings.HasPrefix(s, "#"):
		s = s[1:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s = s[2:]
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return fmt.Errorf("lantern: invalid color %q", b)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("lantern: invalid color %q: %w", b, err)
	}
	*c = Color(v)
	return nil
}

// MarginValues is a bounds margin as [top, right, bottom, left].
type MarginValues [4]float64

// Margin converts the values to a Margin.
func (m MarginValues) Margin() Margin {
	return Margin{Top: m[0], Right: m[1], Bottom: m[2], Left: m[3]}
}

// TextureMemorySettings configures texture memory management.
type TextureMemorySettings struct {
	// Usage above this triggers critical cleanup; 0 disables the threshold.
	CriticalThreshold datasize.ByteSize `toml:"critical_threshold" yaml:"critical_threshold"`
	// Fraction of CriticalThreshold that threshold eviction brings usage down to.
	TargetThresholdLevel float64 `toml:"target_threshold_level" yaml:"target_threshold_level"`
	// How often the idle path runs periodic cleanup.
	CleanupInterval Duration `toml:"cleanup_interval" yaml:"cleanup_interval"`
	// Reserved before eviction calculations begin (framebuffers, glyph atlases).
	BaselineMemoryAllocation datasize.ByteSize `toml:"baseline_memory_allocation" yaml:"baseline_memory_allocation"`
	Strategy                 TrackerStrategy   `toml:"strategy" yaml:"strategy"`
	// Grace period an unreferenced texture survives under the manual strategy.
	ZeroRefAgeThreshold Duration `toml:"zero_ref_age_threshold" yaml:"zero_ref_age_threshold"`
	DebugLogging        bool     `toml:"debug_logging" yaml:"debug_logging"`
}

// Settings configures a Stage.
type Settings struct {
	AppWidth           int          `toml:"app_width" yaml:"app_width"`
	AppHeight          int          `toml:"app_height" yaml:"app_height"`
	ClearColor         Color        `toml:"clear_color" yaml:"clear_color"`
	BoundsMargin       MarginValues `toml:"bounds_margin" yaml:"bounds_margin"`
	TargetFPS          int          `toml:"target_fps" yaml:"target_fps"` // 0 = unthrottled
	FPSUpdateInterval  Duration     `toml:"fps_update_interval" yaml:"fps_update_interval"`
	MaxLoadConcurrency int          `toml:"max_load_concurrency" yaml:"max_load_concurrency"`

	TextureMemory TextureMemorySettings `toml:"texture_memory" yaml:"texture_memory"`

	ShaderUniformCacheSize int  `toml:"shader_uniform_cache_size" yaml:"shader_uniform_cache_size"`
	Debug                  bool `toml:"debug" yaml:"debug"`
}

// DefaultSettings returns settings suited to a 1080p TV target.
func DefaultSettings() Settings {
	return Settings{
		AppWidth:           1920,
		AppHeight:          1080,
		ClearColor:         0x000000ff,
		BoundsMargin:       MarginValues{100, 100, 100, 100},
		FPSUpdateInterval:  Duration(time.Second),
		MaxLoadConcurrency: 4,
		TextureMemory: TextureMemorySettings{
			CriticalThreshold:        124 * datasize.MB,
			TargetThresholdLevel:     0.5,
			CleanupInterval:          Duration(10 * time.Second),
			BaselineMemoryAllocation: 25 * datasize.MB,
			Strategy:                 StrategyManual,
			ZeroRefAgeThreshold:      Duration(60 * time.Second),
		},
		ShaderUniformCacheSize: 256,
	}
}

// Validate reports every inconsistent value.
func (s Settings) Validate() error {
	var errs []error
	if s.AppWidth <= 0 || s.AppHeight <= 0 {
		errs = append(errs, fmt.Errorf("app size must be positive, got %dx%d", s.AppWidth, s.AppHeight))
	}
	for i, v := range s.BoundsMargin {
		if v < 0 {
			errs = append(errs, fmt.Errorf("bounds_margin[%d] is negative", i))
		}
	}
	if s.TargetFPS < 0 {
		errs = append(errs, fmt.Errorf("target_fps must be >= 0, got %d", s.TargetFPS))
	}
	if s.FPSUpdateInterval < 0 {
		errs = append(errs, errors.New("fps_update_interval must be >= 0"))
	}
	if s.MaxLoadConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("max_load_concurrency must be positive, got %d", s.MaxLoadConcurrency))
	}
	if s.ShaderUniformCacheSize < 0 {
		errs = append(errs, errors.New("shader_uniform_cache_size must be >= 0"))
	}
	tm := s.TextureMemory
	if tm.TargetThresholdLevel <= 0 || tm.TargetThresholdLevel > 1 {
		errs = append(errs, fmt.Errorf("texture_memory.target_threshold_level must be in (0, 1], got %g", tm.TargetThresholdLevel))
	}
	if tm.CleanupInterval <= 0 {
		errs = append(errs, errors.New("texture_memory.cleanup_interval must be positive"))
	}
	if tm.ZeroRefAgeThreshold < 0 {
		errs = append(errs, errors.New("texture_memory.zero_ref_age_threshold must be >= 0"))
	}
	if tm.CriticalThreshold > 0 && tm.BaselineMemoryAllocation >= tm.CriticalThreshold {
		errs = append(errs, fmt.Errorf("texture_memory.baseline_memory_allocation (%s) must be below critical_threshold (%s)",
			tm.BaselineMemoryAllocation, tm.CriticalThreshold))
	}
	switch tm.Strategy {
	case StrategyManual, StrategyThreshold, StrategyBoth:
	default:
		errs = append(errs, fmt.Errorf("texture_memory.strategy %q is not one of manual, threshold, both", tm.Strategy))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("lantern: invalid settings: %w", errors.Join(errs...))
}

// ParseSettings decodes settings in the given format ("toml", "yaml" or
// "yml") on top of DefaultSettings and validates the result.
func ParseSettings(data []byte, format string) (Settings, error) {
	s := DefaultSettings()
	var err error
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "toml":
		err = toml.Unmarshal(data, &s)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &s)
	default:
		return s, fmt.Errorf("lantern: unsupported settings format %q", format)
	}
	if err != nil {
		return s, fmt.Errorf("lantern: parse settings: %w", err)
	}
	return s, s.Validate()
}

// LoadSettings reads a settings file, picking the decoder by extension.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("lantern: read settings: %w", err)
	}
	return ParseSettings(data, filepath.Ext(path))
}

// EncodeTOML encodes s as TOML.
func (s Settings) EncodeTOML() ([]byte, error) {
	return toml.Marshal(s)
}
