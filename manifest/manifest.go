// Package manifest handles ascent.toml mission configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents an ascent.toml mission configuration.
type Manifest struct {
	Mission Mission      `toml:"mission"`
	Vessel  Vessel       `toml:"vessel"`
	Body    Body         `toml:"body"`
	Sim     SimConfig    `toml:"sim"`
	Server  ServerConfig `toml:"server"`
	Store   StoreConfig  `toml:"store"`

	// Dir is the directory containing the ascent.toml file (set at load time).
	Dir string `toml:"-"`
}

// Mission contains mission metadata.
type Mission struct {
	Name string `toml:"name"`
}

// Vessel configures the launch vehicle.
type Vessel struct {
	DryMass         float64 `toml:"dry_mass"`         // kg, all stages
	FuelCapacity    float64 `toml:"fuel_capacity"`    // kg per stage
	Stages          int     `toml:"stages"`
	MaxThrust       float64 `toml:"max_thrust"`       // N
	ExhaustVelocity float64 `toml:"exhaust_velocity"` // m/s
}

// Body configures the central body.
type Body struct {
	Name      string  `toml:"name"`
	Radius    float64 `toml:"radius"`                  // m
	GravParam float64 `toml:"gravitational_parameter"` // m^3/s^2
}

// SimConfig configures the simulation loop.
type SimConfig struct {
	TickRate float64 `toml:"tick_rate"` // ticks per simulated second
}

// ServerConfig configures the mission-control host.
type ServerConfig struct {
	Listen string `toml:"listen"`
}

// StoreConfig configures the script library.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Default returns a runnable configuration: a small two-stage vessel on a
// compact body with a low orbital velocity, convenient for short scripts.
func Default() *Manifest {
	m := &Manifest{
		Mission: Mission{Name: "sandbox"},
		Vessel: Vessel{
			DryMass:         4000,
			FuelCapacity:    8000,
			Stages:          2,
			MaxThrust:       240000,
			ExhaustVelocity: 3000,
		},
		Body: Body{
			Name:      "Gaia",
			Radius:    600000,
			GravParam: 3.5316e12,
		},
		Sim:    SimConfig{TickRate: 10},
		Server: ServerConfig{Listen: "localhost:7100"},
		Store:  StoreConfig{Path: "ascent.db"},
	}
	return m
}

// Load parses an ascent.toml file from the given directory. Missing
// sections fall back to defaults.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "ascent.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find an ascent.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "ascent.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate rejects configurations the simulation cannot run with.
func (m *Manifest) Validate() error {
	if m.Vessel.DryMass <= 0 {
		return fmt.Errorf("vessel dry_mass must be positive, got %g", m.Vessel.DryMass)
	}
	if m.Vessel.FuelCapacity <= 0 {
		return fmt.Errorf("vessel fuel_capacity must be positive, got %g", m.Vessel.FuelCapacity)
	}
	if m.Vessel.Stages < 0 {
		return fmt.Errorf("vessel stages must not be negative, got %d", m.Vessel.Stages)
	}
	if m.Vessel.MaxThrust <= 0 {
		return fmt.Errorf("vessel max_thrust must be positive, got %g", m.Vessel.MaxThrust)
	}
	if m.Vessel.ExhaustVelocity <= 0 {
		return fmt.Errorf("vessel exhaust_velocity must be positive, got %g", m.Vessel.ExhaustVelocity)
	}
	if m.Body.Radius <= 0 {
		return fmt.Errorf("body radius must be positive, got %g", m.Body.Radius)
	}
	if m.Body.GravParam <= 0 {
		return fmt.Errorf("body gravitational_parameter must be positive, got %g", m.Body.GravParam)
	}
	if m.Sim.TickRate <= 0 {
		return fmt.Errorf("sim tick_rate must be positive, got %g", m.Sim.TickRate)
	}
	if m.Server.Listen == "" {
		return fmt.Errorf("server listen address must not be empty")
	}
	return nil
}

// StorePath returns the script library path resolved against the
// manifest directory.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) || m.Dir == "" {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// TickInterval returns the simulated seconds per tick.
func (m *Manifest) TickInterval() float64 {
	return 1 / m.Sim.TickRate
}
