package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/windlayer/config"
	"github.com/pthm-cable/windlayer/gpu/glgpu"
	"github.com/pthm-cable/windlayer/gpu/softgpu"
	"github.com/pthm-cable/windlayer/layer"
	"github.com/pthm-cable/windlayer/viewer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Render offscreen with the software device")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, frames and snapshots")
	seed := flag.Int64("seed", 0, "Particle RNG seed (0 = config or time-based)")
	frames := flag.Int("frames", 0, "Headless frames to render (0 = use config)")
	frameInterval := flag.Int("frame-interval", 0, "Simulated milliseconds per headless frame (0 = use config)")
	snapshotEvery := flag.Int("snapshot-every", -1, "Write a PNG every N headless frames (-1 = use config, 0 = never)")
	windURL := flag.String("wind", "", "Wind URL template, {t} = timestep (overrides config)")
	rasterURL := flag.String("raster", "", "Raster URL template, {t} = timestep (overrides config)")

	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *windURL != "" {
		cfg.Sources.Wind = *windURL
	}
	if *rasterURL != "" {
		cfg.Sources.Raster = *rasterURL
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Particles.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	opts := viewer.Options{
		Seed:      rngSeed,
		LogStats:  *logStats,
		OutputDir: *outputDir,
		Headless:  *headless,
	}

	if *headless {
		if err := runHeadless(cfg, opts, logger, *frames, *frameInterval, *snapshotEvery); err != nil {
			logger.Error("headless run failed", "error", err)
			os.Exit(1)
		}
		return
	}
	if err := runWindow(cfg, opts, logger); err != nil {
		logger.Error("viewer failed", "error", err)
		os.Exit(1)
	}
}

func runHeadless(cfg *config.Config, opts viewer.Options, logger *slog.Logger, frames, intervalMs, snapshotEvery int) error {
	hc := cfg.Headless
	opts.Width, opts.Height = hc.Width, hc.Height

	ho := viewer.HeadlessOptions{
		Frames:        hc.Frames,
		FrameInterval: cfg.Derived.FrameInterval,
		SnapshotEvery: hc.SnapshotEvery,
		GIF:           hc.GIF,
		GIFDelay:      hc.GIFDelayCs,
	}
	if frames > 0 {
		ho.Frames = frames
	}
	if intervalMs > 0 {
		ho.FrameInterval = time.Duration(intervalMs) * time.Millisecond
	}
	if snapshotEvery >= 0 {
		ho.SnapshotEvery = snapshotEvery
	}

	dev := softgpu.New(opts.Width, opts.Height)
	clock := &layer.ManualClock{}
	v, err := viewer.New(cfg, opts, dev, clock, logger)
	if err != nil {
		return err
	}
	defer v.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("starting headless render",
		"seed", opts.Seed,
		"width", opts.Width,
		"height", opts.Height,
	)
	return viewer.NewHeadless(v, dev, clock, ho).Run(ctx)
}

func runWindow(cfg *config.Config, opts viewer.Options, logger *slog.Logger) error {
	opts.Width, opts.Height = cfg.Screen.Width, cfg.Screen.Height

	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(opts.Width), int32(opts.Height), "Wind")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))
	// Escape closes the inspector, not the window
	rl.SetExitKey(rl.KeyNull)

	dev, err := glgpu.New()
	if err != nil {
		return err
	}
	defer dev.Close()

	v, err := viewer.New(cfg, opts, dev, layer.NewSystemClock(), logger)
	if err != nil {
		return err
	}
	defer v.Close()

	viewer.NewWindow(v, dev).Run()
	return nil
}
