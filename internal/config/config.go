package config

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/taskdash/internal/config/loader"
	"github.com/dshills/taskdash/internal/renderer/core"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "taskdash.toml"

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "TASKDASH_"

// Supported rendering backends.
const (
	BackendANSI  = "ansi"
	BackendTcell = "tcell"
)

// Config is the complete taskdash configuration.
type Config struct {
	Render  RenderConfig  `toml:"render"`
	Content ContentConfig `toml:"content"`
	Logging LoggingConfig `toml:"logging"`
	Theme   ThemeConfig   `toml:"theme"`
}

// RenderConfig controls the renderer.
type RenderConfig struct {
	Border            int    `toml:"border"`
	FPS               int    `toml:"fps"`
	ResizeCheckFrames int    `toml:"resize_check_frames"`
	Backend           string `toml:"backend"`
}

// ContentConfig controls where dashboard content comes from.
type ContentConfig struct {
	Path            string  `toml:"path"`
	Watch           bool    `toml:"watch"`
	ReloadPerSecond float64 `toml:"reload_per_second"`
}

// LoggingConfig controls diagnostics output.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// ThemeConfig overrides task status colors with "#RRGGBB" or "#RGB"
// values. Empty keeps the built-in color.
type ThemeConfig struct {
	Running string `toml:"running"`
	Done    string `toml:"done"`
	Failed  string `toml:"failed"`
	Skipped string `toml:"skipped"`
}

// entries pairs each theme key with its value.
func (t ThemeConfig) entries() []struct{ key, value string } {
	return []struct{ key, value string }{
		{"running", t.Running},
		{"done", t.Done},
		{"failed", t.Failed},
		{"skipped", t.Skipped},
	}
}

// FrameInterval returns the time between frames.
func (c *Config) FrameInterval() time.Duration {
	if c.Render.FPS <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.Render.FPS)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			Border:            5,
			FPS:               30,
			ResizeCheckFrames: 30,
			Backend:           BackendANSI,
		},
		Content: ContentConfig{
			Watch:           true,
			ReloadPerSecond: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultMap returns Default as a raw map so file and environment layers
// can be merged over it.
func defaultMap() map[string]any {
	d := Default()
	return map[string]any{
		"render": map[string]any{
			"border":              int64(d.Render.Border),
			"fps":                 int64(d.Render.FPS),
			"resize_check_frames": int64(d.Render.ResizeCheckFrames),
			"backend":             d.Render.Backend,
		},
		"content": map[string]any{
			"path":              d.Content.Path,
			"watch":             d.Content.Watch,
			"reload_per_second": d.Content.ReloadPerSecond,
		},
		"logging": map[string]any{
			"level": d.Logging.Level,
			"file":  d.Logging.File,
		},
		"theme": map[string]any{
			"running": d.Theme.Running,
			"done":    d.Theme.Done,
			"failed":  d.Theme.Failed,
			"skipped": d.Theme.Skipped,
		},
	}
}

// Option configures Load.
type Option func(*options)

type options struct {
	fs  loader.FileSystem
	env loader.Loader
}

// WithFileSystem reads the configuration file through fsys.
func WithFileSystem(fsys loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithEnvLoader replaces the environment layer.
func WithEnvLoader(l loader.Loader) Option {
	return func(o *options) {
		o.env = l
	}
}

// Load builds the configuration from defaults, the TOML file at path (a
// missing file is skipped) and the environment, then validates it.
func Load(path string, opts ...Option) (*Config, error) {
	o := options{
		fs:  loader.DefaultFS(),
		env: loader.NewEnvLoader(EnvPrefix),
	}
	for _, opt := range opts {
		opt(&o)
	}

	merged := defaultMap()

	file, err := loader.NewTOMLLoaderWithFS(o.fs, path).Load()
	if err != nil {
		return nil, err
	}
	merged = loader.DeepMerge(merged, file)

	env, err := o.env.Load()
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	merged = loader.DeepMerge(merged, env)

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a TOML document over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	file, err := loader.ParseTOML("<data>", data)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(loader.DeepMerge(defaultMap(), file))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// floatSettings are written as integers by hand more often than not.
var floatSettings = []string{"content.reload_per_second"}

// decode round-trips the merged map through TOML into the typed struct.
func decode(m map[string]any) (*Config, error) {
	for _, path := range floatSettings {
		if v, ok := loader.GetByPath(m, path); ok {
			if i, isInt := v.(int64); isInt {
				loader.SetByPath(m, path, float64(i))
			}
		}
	}

	data, err := toml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding merged config: %w", err)
	}

	cfg := &Config{}
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return cfg, nil
}

// Validate checks every setting and reports all failures at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(path, msg string, val any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: val})
	}

	if c.Render.Border < 0 {
		fail("render.border", "must not be negative", c.Render.Border)
	}
	if c.Render.FPS < 1 || c.Render.FPS > 240 {
		fail("render.fps", "must be between 1 and 240", c.Render.FPS)
	}
	if c.Render.ResizeCheckFrames < 1 {
		fail("render.resize_check_frames", "must be at least 1", c.Render.ResizeCheckFrames)
	}
	if !slices.Contains([]string{BackendANSI, BackendTcell}, c.Render.Backend) {
		fail("render.backend", "must be ansi or tcell", c.Render.Backend)
	}
	if c.Content.ReloadPerSecond <= 0 {
		fail("content.reload_per_second", "must be positive", c.Content.ReloadPerSecond)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.Logging.Level)) {
		fail("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}
	for _, e := range c.Theme.entries() {
		if e.value == "" {
			continue
		}
		if _, err := core.ColorFromHex(e.value); err != nil {
			fail("theme."+e.key, "must be a #RRGGBB or #RGB color", e.value)
		}
	}

	return errors.Join(errs...)
}
