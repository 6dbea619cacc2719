// Package particle animates a wind field as GPU-advected particles. Each
// particle's position and age live in two generations of vertex buffers; a
// transform-feedback pass advances one into the other and an instanced draw
// renders the head plus reconstructed trail sprites.
package particle

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/windlayer/colormap"
	"github.com/pthm-cable/windlayer/geo"
	"github.com/pthm-cable/windlayer/layer"
	"github.com/pthm-cable/windlayer/source"
)

// Options configures a Layer. Start from DefaultOptions; the layer copies the
// value at construction and never reads it again.
type Options struct {
	ID     string
	Source string
	Colors []colormap.Stop
	Bounds geo.Bounds

	ParticleCount   int
	ReadyForDisplay bool
	AgeThreshold    float64 // frames before respawn probability starts rising
	MaxAge          float64 // frames at which respawn is certain
	VelocityFactor  float64
	FadeOpacity     float64
	UpdateInterval  time.Duration
	PointSize       float64 // pixels
	TrailLength     int
	TrailSizeDecay  float64
	Unit            source.Unit

	// Seed drives the initial grid jitter and ages. Zero picks a time-based seed.
	Seed        int64
	LoadTimeout time.Duration

	Fetcher source.Fetcher
	Clock   layer.Clock
	Logger  *slog.Logger
}

// DefaultOptions returns the stock tuning. Callers still need to set ID,
// Source, Colors and Bounds.
func DefaultOptions() Options {
	return Options{
		ParticleCount:  5000,
		AgeThreshold:   500,
		MaxAge:         1000,
		VelocityFactor: 0.05,
		FadeOpacity:    0.9,
		UpdateInterval: 50 * time.Millisecond,
		PointSize:      5,
		TrailLength:    3,
		TrailSizeDecay: 0.8,
		Unit:           source.MPH,
		LoadTimeout:    30 * time.Second,
	}
}

// Validate reports the first invalid field.
func (o Options) Validate() error {
	switch {
	case o.ID == "":
		return errors.New("particle: ID is required")
	case len(o.Colors) == 0:
		return fmt.Errorf("particle %s: %w", o.ID, colormap.ErrNoStops)
	case o.ParticleCount <= 0:
		return fmt.Errorf("particle %s: particle count must be positive, got %d", o.ID, o.ParticleCount)
	case o.MaxAge <= o.AgeThreshold:
		return fmt.Errorf("particle %s: max age %g must exceed age threshold %g", o.ID, o.MaxAge, o.AgeThreshold)
	case o.TrailLength < 0:
		return fmt.Errorf("particle %s: negative trail length", o.ID)
	case o.UpdateInterval < 0:
		return fmt.Errorf("particle %s: negative update interval", o.ID)
	case o.PointSize <= 0:
		return fmt.Errorf("particle %s: point size must be positive", o.ID)
	case o.TrailSizeDecay <= 0:
		return fmt.Errorf("particle %s: trail size decay must be positive", o.ID)
	case o.FadeOpacity < 0 || o.FadeOpacity > 1:
		return fmt.Errorf("particle %s: opacity %g outside [0,1]", o.ID, o.FadeOpacity)
	}
	if _, err := source.ParseUnit(string(o.Unit)); err != nil {
		return fmt.Errorf("particle %s: %w", o.ID, err)
	}
	if err := o.Bounds.Validate(); err != nil {
		return fmt.Errorf("particle %s: %w", o.ID, err)
	}
	return nil
}

// Instances is the number of sprites drawn per particle.
func (o Options) Instances() int { return o.TrailLength + 1 }
