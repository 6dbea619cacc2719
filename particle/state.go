package particle

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/pthm-cable/windlayer/gpu"
)

// Generation selects one of the two buffer sets.
type Generation uint8

const (
	GenA Generation = iota
	GenB
)

// Other returns the opposite generation.
func (g Generation) Other() Generation { return g ^ 1 }

func (g Generation) String() string {
	if g == GenA {
		return "A"
	}
	return "B"
}

// Buffers is one generation of particle state.
type Buffers struct {
	Positions gpu.Buffer // vec2 per particle
	Ages      gpu.Buffer // float per particle
}

// State owns both generations. Current is read by the simulation and the
// render pass; Next is the simulation's write target.
type State struct {
	count   int
	gens    [2]Buffers
	current Generation
}

// SeedParticles lays particles on a jittered grid covering [0,1]^2 and gives
// each a random starting age in [0,100).
func SeedParticles(count int, rng *rand.Rand) (positions, ages []float32) {
	positions = make([]float32, count*2)
	ages = make([]float32, count)
	if count == 0 {
		return positions, ages
	}

	grid := int(math.Ceil(math.Sqrt(float64(count))))
	spacing := 1.0
	if grid > 1 {
		spacing = 1 / float64(grid-1)
	}
	for i := range count {
		bx, by := 0.5, 0.5
		if grid > 1 {
			bx = float64(i%grid) * spacing
			by = float64(i/grid) * spacing
		}
		jx := (rng.Float64() - 0.5) * 0.25 * spacing
		jy := (rng.Float64() - 0.5) * 0.25 * spacing
		positions[i*2] = float32(clamp01(bx + jx))
		positions[i*2+1] = float32(clamp01(by + jy))
		ages[i] = float32(math.Floor(rng.Float64() * 100))
	}
	return positions, ages
}

// NewState uploads identical seed data to both generations.
func NewState(dev gpu.Device, count int, rng *rand.Rand) (*State, error) {
	positions, ages := SeedParticles(count, rng)
	s := &State{count: count}
	for g := range s.gens {
		var err error
		if s.gens[g].Positions, err = dev.NewBuffer(positions); err != nil {
			s.Release(dev)
			return nil, fmt.Errorf("allocating positions %s: %w", Generation(g), err)
		}
		if s.gens[g].Ages, err = dev.NewBuffer(ages); err != nil {
			s.Release(dev)
			return nil, fmt.Errorf("allocating ages %s: %w", Generation(g), err)
		}
	}
	return s, nil
}

// Count returns the number of particles.
func (s *State) Count() int { return s.count }

// Generation returns the generation currently read by render.
func (s *State) Generation() Generation { return s.current }

// Current returns the buffers render and simulation read from.
func (s *State) Current() Buffers { return s.gens[s.current] }

// Next returns the buffers the simulation writes to.
func (s *State) Next() Buffers { return s.gens[s.current.Other()] }

// Advance makes Next current. Call exactly once per completed simulation step.
func (s *State) Advance() { s.current = s.current.Other() }

// Snapshot reads the current generation back from the device.
func (s *State) Snapshot(dev gpu.Device) (positions, ages []float32, err error) {
	positions = make([]float32, s.count*2)
	ages = make([]float32, s.count)
	cur := s.Current()
	err = errors.Join(
		dev.ReadBuffer(cur.Positions, positions),
		dev.ReadBuffer(cur.Ages, ages),
	)
	return positions, ages, err
}

// Release deletes every buffer. Safe on a partially built State.
func (s *State) Release(dev gpu.Device) {
	for g := range s.gens {
		if s.gens[g].Positions != 0 {
			dev.DeleteBuffer(s.gens[g].Positions)
		}
		if s.gens[g].Ages != 0 {
			dev.DeleteBuffer(s.gens[g].Ages)
		}
		s.gens[g] = Buffers{}
	}
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }
