// Package viewer wires the layers, the map host, the camera and telemetry
// into a runnable application, windowed or headless.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pthm-cable/windlayer/camera"
	"github.com/pthm-cable/windlayer/config"
	"github.com/pthm-cable/windlayer/gpu"
	"github.com/pthm-cable/windlayer/layer"
	"github.com/pthm-cable/windlayer/maphost"
	"github.com/pthm-cable/windlayer/particle"
	"github.com/pthm-cable/windlayer/raster"
	"github.com/pthm-cable/windlayer/synth"
	"github.com/pthm-cable/windlayer/telemetry"
)

// Options holds runtime options that are not part of the config file.
type Options struct {
	Seed      int64 // 0 = time-based
	LogStats  bool
	OutputDir string
	Headless  bool
	Width     int
	Height    int
}

// Viewer owns the map and everything drawn on it.
type Viewer struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger
	clock  layer.Clock

	dev  gpu.Device
	host *maphost.Map
	cam  *camera.Camera
	wind *particle.Layer
	temp *raster.Layer

	windTemplate string
	tempTemplate string
	step         int
	playing      bool
	lastPlay     time.Duration

	perf      *telemetry.PerfCollector
	out       *telemetry.OutputManager
	frame     int32
	lastStats time.Duration
}

// New builds the layers and attaches them to dev. Empty source templates are
// replaced by a generated series written under the output directory, or a
// temporary directory when there is none.
func New(cfg *config.Config, opts Options, dev gpu.Device, clock layer.Clock, logger *slog.Logger) (*Viewer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Viewer{
		cfg:          cfg,
		opts:         opts,
		logger:       logger,
		clock:        clock,
		dev:          dev,
		windTemplate: cfg.Sources.Wind,
		tempTemplate: cfg.Sources.Raster,
		playing:      cfg.Derived.PlayInterval > 0,
		perf:         telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
	}

	out, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	v.out = out
	if err := out.WriteConfig(cfg); err != nil {
		logger.Warn("writing config", "error", err)
	}

	if v.windTemplate == "" || (cfg.Raster.Enabled && v.tempTemplate == "") {
		if err := v.generateSources(); err != nil {
			out.Close()
			return nil, err
		}
	}

	if err := v.buildLayers(); err != nil {
		out.Close()
		return nil, err
	}

	v.cam = camera.New(float64(opts.Width), float64(opts.Height), cfg.Map.Center[0], cfg.Map.Center[1], cfg.Map.Zoom)
	v.cam.MinZoom, v.cam.MaxZoom = cfg.Map.MinZoom, cfg.Map.MaxZoom
	v.cam.SetZoom(cfg.Map.Zoom)

	v.host = maphost.New(dev, logger)
	// raster below particles
	if v.temp != nil {
		if err := v.host.AddLayer(v.temp); err != nil {
			v.Close()
			return nil, err
		}
	}
	if err := v.host.AddLayer(v.wind); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func (v *Viewer) generateSources() error {
	dir := filepath.Join(v.opts.OutputDir, "fields")
	if v.opts.OutputDir == "" {
		tmp, err := os.MkdirTemp("", "windlayer-fields-")
		if err != nil {
			return fmt.Errorf("viewer: %w", err)
		}
		dir = tmp
	}
	p := synth.DefaultParams()
	p.Seed = v.opts.Seed
	if p.Seed == 0 {
		p.Seed = 1
	}
	series, err := synth.WriteSeries(dir, p, v.cfg.Sources.Timesteps, 0.15, synth.PNG)
	if err != nil {
		return err
	}
	if v.windTemplate == "" {
		v.windTemplate = series.Wind
	}
	if v.tempTemplate == "" {
		v.tempTemplate = series.Temperature
	}
	v.logger.Info("generated sources", "dir", dir, "timesteps", len(series.Timesteps))
	return nil
}

func (v *Viewer) buildLayers() error {
	po := v.cfg.ParticleOptions(v.cfg.SourceURL(v.windTemplate, 0))
	if v.opts.Seed != 0 {
		po.Seed = v.opts.Seed
	}
	po.Clock = v.clock
	po.Logger = v.logger
	wind, err := particle.New(po)
	if err != nil {
		return err
	}
	v.wind = wind
	v.watch(wind)
	wind.On(layer.EventSourceLoaded, v.onWindLoaded)

	if !v.cfg.Raster.Enabled {
		return nil
	}
	ro := v.cfg.RasterOptions(v.cfg.SourceURL(v.tempTemplate, 0))
	ro.Logger = v.logger
	temp, err := raster.New(ro)
	if err != nil {
		return err
	}
	v.temp = temp
	v.watch(temp)
	return nil
}

// watch records every source event of l.
func (v *Viewer) watch(l layer.Layer) {
	record := func(ev layer.Event) {
		if err := v.out.WriteSource(telemetry.NewSourceRecord(v.frame, ev)); err != nil {
			v.logger.Warn("writing source record", "error", err)
		}
	}
	for _, kind := range []layer.EventKind{layer.EventSourceLoaded, layer.EventSourceFailed, layer.EventSourceDegraded} {
		l.On(kind, record)
	}
}

func (v *Viewer) onWindLoaded(ev layer.Event) {
	f := v.wind.Decoded()
	if f == nil {
		return
	}
	stats := telemetry.ComputeFieldStats(f, particle.MinSpeed)
	stats.Seq, stats.URL = ev.Seq, ev.URL
	if v.opts.LogStats {
		v.logger.Info("field", "stats", stats)
	}
	if err := v.out.WriteField(stats); err != nil {
		v.logger.Warn("writing field stats", "error", err)
	}
}

// Camera returns the map camera.
func (v *Viewer) Camera() *camera.Camera { return v.cam }

// Host returns the map host.
func (v *Viewer) Host() *maphost.Map { return v.host }

// Wind returns the particle layer.
func (v *Viewer) Wind() *particle.Layer { return v.wind }

// Temperature returns the raster layer, or nil when disabled.
func (v *Viewer) Temperature() *raster.Layer { return v.temp }

// FrameCount returns the number of frames rendered.
func (v *Viewer) FrameCount() int32 { return v.frame }

// Timestep returns the index and label of the shown timestep.
func (v *Viewer) Timestep() (int, string) {
	steps := v.cfg.Sources.Timesteps
	return v.step, steps[v.step%len(steps)]
}

// Timesteps returns the number of timesteps.
func (v *Viewer) Timesteps() int { return len(v.cfg.Sources.Timesteps) }

// Playing reports whether timesteps advance automatically.
func (v *Viewer) Playing() bool { return v.playing }

// SetPlaying starts or stops automatic playback.
func (v *Viewer) SetPlaying(on bool) {
	v.playing = on
	v.lastPlay = v.clock.Now()
}

// SetTimestep switches both layers to timestep i. The particle layer respawns
// the configured fraction of its particles once the new field is applied.
func (v *Viewer) SetTimestep(i int) error {
	n := v.Timesteps()
	i %= n
	if i < 0 {
		i += n
	}
	v.step = i

	var errs []error
	if err := v.wind.SetSource(v.cfg.SourceURL(v.windTemplate, i), v.cfg.Sources.ResetFraction); err != nil {
		errs = append(errs, err)
	}
	if v.temp != nil {
		if err := v.temp.SetSource(v.cfg.SourceURL(v.tempTemplate, i), nil); err != nil {
			errs = append(errs, err)
		}
	}
	_, label := v.Timestep()
	v.logger.Info("timestep", "index", i, "label", label)
	return errors.Join(errs...)
}

// AwaitSources blocks until the latest loads of every layer are applied.
func (v *Viewer) AwaitSources(ctx context.Context) error {
	var errs []error
	if err := v.wind.AwaitSource(ctx, v.dev); err != nil {
		errs = append(errs, err)
	}
	if v.temp != nil {
		if err := v.temp.AwaitSource(ctx, v.dev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// advance moves playback forward when the play interval has elapsed. It
// reports whether the timestep changed.
func (v *Viewer) advance(now time.Duration) bool {
	interval := v.cfg.Derived.PlayInterval
	if !v.playing || interval <= 0 || now-v.lastPlay < interval {
		return false
	}
	v.lastPlay = now
	if err := v.SetTimestep(v.step + 1); err != nil {
		v.logger.Warn("advancing timestep", "error", err)
	}
	return true
}

// Update advances playback and any camera flight by dt seconds. It reports
// whether the timestep changed.
func (v *Viewer) Update(dt float32) bool {
	changed := v.advance(v.clock.Now())
	v.cam.Update(dt)
	return changed
}

// Render draws every visible layer with the camera's projection and records
// frame timing.
func (v *Viewer) Render() int {
	v.perf.StartFrame()
	n := v.host.Frame(v.cam.Matrix())

	last := v.wind.LastFrame()
	v.perf.AddPhase(telemetry.PhaseApplySource, last.Apply)
	v.perf.AddPhase(telemetry.PhaseSimulate, last.Simulate)
	v.perf.AddPhase(telemetry.PhaseRender, last.Render)
	v.perf.StartPhase(telemetry.PhasePresent)
	v.frame++
	return n
}

// EndFrame closes the frame's timing after presentation and emits periodic
// stats.
func (v *Viewer) EndFrame() {
	v.perf.EndFrame()
	now := v.clock.Now()
	if interval := v.cfg.Derived.StatsInterval; interval > 0 && now-v.lastStats >= interval {
		v.lastStats = now
		stats := v.perf.Stats()
		if v.opts.LogStats {
			stats.LogStats(v.logger)
		}
		if err := v.out.WritePerf(stats, v.frame); err != nil {
			v.logger.Warn("writing perf", "error", err)
		}
	}
}

// RecordParticles reads the particle state back and writes its statistics.
func (v *Viewer) RecordParticles() (telemetry.ParticleStats, error) {
	positions, ages, err := v.wind.Snapshot(v.dev)
	if err != nil {
		return telemetry.ParticleStats{}, err
	}
	stats := telemetry.ComputeParticleStats(v.frame, positions, ages, v.cfg.Particles.AgeThreshold)
	if v.opts.LogStats {
		v.logger.Info("particles", "stats", stats)
	}
	return stats, v.out.WriteParticles(stats)
}

// SaveSnapshot writes the particle state as JSON into the output directory.
func (v *Viewer) SaveSnapshot() (string, error) {
	if v.out == nil {
		return "", nil
	}
	positions, ages, err := v.wind.Snapshot(v.dev)
	if err != nil {
		return "", err
	}
	snap, err := telemetry.NewSnapshot(v.wind.ID(), v.wind.URL(), v.opts.Seed, v.frame,
		v.wind.Generation().String(), positions, ages)
	if err != nil {
		return "", err
	}
	return telemetry.SaveSnapshot(snap, filepath.Join(v.out.Dir(), "snapshots"))
}

// Close detaches every layer and flushes output.
func (v *Viewer) Close() {
	if v.host != nil {
		v.host.Close()
	} else {
		if v.wind != nil {
			v.wind.Detach(v.dev)
		}
		if v.temp != nil {
			v.temp.Detach(v.dev)
		}
	}
	if err := v.out.Close(); err != nil {
		v.logger.Warn("closing output", "error", err)
	}
}
