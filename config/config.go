// Package config provides configuration loading and access for the viewer.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/windlayer/colormap"
	"github.com/pthm-cable/windlayer/geo"
	"github.com/pthm-cable/windlayer/particle"
	"github.com/pthm-cable/windlayer/raster"
	"github.com/pthm-cable/windlayer/source"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all viewer configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Map       MapConfig       `yaml:"map"`
	Particles ParticlesConfig `yaml:"particles"`
	Raster    RasterConfig    `yaml:"raster"`
	Sources   SourcesConfig   `yaml:"sources"`
	Colormaps ColormapsConfig `yaml:"colormaps"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Headless  HeadlessConfig  `yaml:"headless"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// MapConfig holds the data extent and the initial view.
type MapConfig struct {
	Bounds     geo.Bounds `yaml:"bounds"` // west, north, east, south
	Center     [2]float64 `yaml:"center"` // lng, lat
	Zoom       float64    `yaml:"zoom"`
	MinZoom    float64    `yaml:"min_zoom"`
	MaxZoom    float64    `yaml:"max_zoom"`
	FlySeconds float64    `yaml:"fly_seconds"` // duration of animated camera moves
}

// ParticlesConfig mirrors particle.Options.
type ParticlesConfig struct {
	ID               string  `yaml:"id"`
	Count            int     `yaml:"count"`
	AgeThreshold     float64 `yaml:"age_threshold"` // frames
	MaxAge           float64 `yaml:"max_age"`       // frames
	VelocityFactor   float64 `yaml:"velocity_factor"`
	FadeOpacity      float64 `yaml:"fade_opacity"`
	UpdateIntervalMs int     `yaml:"update_interval_ms"`
	PointSize        float64 `yaml:"point_size"`
	TrailLength      int     `yaml:"trail_length"`
	TrailSizeDecay   float64 `yaml:"trail_size_decay"`
	Unit             string  `yaml:"unit"` // mph, kph or mps
	Seed             int64   `yaml:"seed"` // 0 = time-based
}

// RasterConfig holds the scalar overlay settings.
type RasterConfig struct {
	ID      string  `yaml:"id"`
	Enabled bool    `yaml:"enabled"`
	Opacity float64 `yaml:"opacity"`
}

// SourcesConfig holds resource locations and playback.
type SourcesConfig struct {
	Wind          string   `yaml:"wind"`   // URL template, {t} = timestep
	Raster        string   `yaml:"raster"` // URL template, {t} = timestep
	Timesteps     []string `yaml:"timesteps"`
	LoadTimeoutS  float64  `yaml:"load_timeout_s"`
	ResetFraction float64  `yaml:"reset_fraction"`  // fraction respawned on a timestep change
	PlayIntervalS float64  `yaml:"play_interval_s"` // 0 = no automatic playback
}

// ColormapsConfig names the palette per layer: a built-in name or a CSV path.
type ColormapsConfig struct {
	Wind   string `yaml:"wind"`
	Raster string `yaml:"raster"`
}

// TelemetryConfig holds performance logging settings.
type TelemetryConfig struct {
	PerfWindow     int     `yaml:"perf_window"`      // frames in the rolling window
	StatsIntervalS float64 `yaml:"stats_interval_s"` // seconds between perf log lines
}

// HeadlessConfig holds settings for offscreen runs.
type HeadlessConfig struct {
	Width           int  `yaml:"width"`
	Height          int  `yaml:"height"`
	Frames          int  `yaml:"frames"`
	FrameIntervalMs int  `yaml:"frame_interval_ms"` // simulated time per frame
	SnapshotEvery   int  `yaml:"snapshot_every"`    // 0 = no PNG frames
	GIF             bool `yaml:"gif"`
	GIFDelayCs      int  `yaml:"gif_delay_cs"` // hundredths of a second per GIF frame
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	UpdateInterval time.Duration // Particles.UpdateIntervalMs
	LoadTimeout    time.Duration // Sources.LoadTimeoutS
	PlayInterval   time.Duration // Sources.PlayIntervalS
	FrameInterval  time.Duration // Headless.FrameIntervalMs
	StatsInterval  time.Duration // Telemetry.StatsIntervalS
	Unit           source.Unit
	WindColors     []colormap.Stop
	RasterColors   []colormap.Stop
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	c.Derived.UpdateInterval = time.Duration(c.Particles.UpdateIntervalMs) * time.Millisecond
	c.Derived.LoadTimeout = seconds(c.Sources.LoadTimeoutS)
	c.Derived.PlayInterval = seconds(c.Sources.PlayIntervalS)
	c.Derived.FrameInterval = time.Duration(c.Headless.FrameIntervalMs) * time.Millisecond
	c.Derived.StatsInterval = seconds(c.Telemetry.StatsIntervalS)

	unit, err := source.ParseUnit(c.Particles.Unit)
	if err != nil {
		return fmt.Errorf("config: particles.unit: %w", err)
	}
	c.Derived.Unit = unit

	if c.Derived.WindColors, err = colormap.Resolve(c.Colormaps.Wind); err != nil {
		return fmt.Errorf("config: colormaps.wind: %w", err)
	}
	if c.Derived.RasterColors, err = colormap.Resolve(c.Colormaps.Raster); err != nil {
		return fmt.Errorf("config: colormaps.raster: %w", err)
	}
	if len(c.Sources.Timesteps) == 0 {
		c.Sources.Timesteps = []string{""}
	}
	if c.Sources.ResetFraction < 0 || c.Sources.ResetFraction > 1 {
		return fmt.Errorf("config: sources.reset_fraction %g outside [0,1]", c.Sources.ResetFraction)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// SourceURL expands a URL template for timestep i, wrapping around the
// configured timesteps.
func (c *Config) SourceURL(template string, i int) string {
	steps := c.Sources.Timesteps
	i %= len(steps)
	if i < 0 {
		i += len(steps)
	}
	return strings.ReplaceAll(template, "{t}", steps[i])
}

// ParticleOptions translates the particles section into layer options.
// Fetcher, Clock and Logger are left for the caller.
func (c *Config) ParticleOptions(url string) particle.Options {
	p := c.Particles
	opts := particle.DefaultOptions()
	opts.ID = p.ID
	opts.Source = url
	opts.Colors = c.Derived.WindColors
	opts.Bounds = c.Map.Bounds
	opts.ParticleCount = p.Count
	opts.ReadyForDisplay = true
	opts.AgeThreshold = p.AgeThreshold
	opts.MaxAge = p.MaxAge
	opts.VelocityFactor = p.VelocityFactor
	opts.FadeOpacity = p.FadeOpacity
	opts.UpdateInterval = c.Derived.UpdateInterval
	opts.PointSize = p.PointSize
	opts.TrailLength = p.TrailLength
	opts.TrailSizeDecay = p.TrailSizeDecay
	opts.Unit = c.Derived.Unit
	opts.Seed = p.Seed
	opts.LoadTimeout = c.Derived.LoadTimeout
	return opts
}

// RasterOptions translates the raster section into layer options.
func (c *Config) RasterOptions(url string) raster.Options {
	opts := raster.DefaultOptions()
	opts.ID = c.Raster.ID
	opts.Source = url
	opts.Colors = c.Derived.RasterColors
	opts.Bounds = c.Map.Bounds
	opts.Opacity = c.Raster.Opacity
	opts.ReadyForDisplay = true
	opts.LoadTimeout = c.Derived.LoadTimeout
	return opts
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
