// Package config loads the world configuration and publishes the feature
// toggles the scheduler reads each tick.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/crossroads/internal/ecs"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Simulation is the process-wide toggle singleton. The scheduler only ever
// reads it; a world without one runs no subsystems at all.
type Simulation struct {
	EnableReligionSystem bool `yaml:"enable_religion_system" json:"enable_religion_system"`
	EnableResourceSystem bool `yaml:"enable_resource_system" json:"enable_resource_system"`
}

// Config is the full on-disk configuration.
type Config struct {
	// Simulation is nil when the file omits the section, which leaves the
	// world without a toggle singleton.
	Simulation *Simulation `yaml:"simulation" json:"simulation"`
	Engine     Engine      `yaml:"engine" json:"engine"`
	Religion   Religion    `yaml:"religion" json:"religion"`
	Resource   Resource    `yaml:"resource" json:"resource"`
	World      World       `yaml:"world" json:"world"`
	Storage    Storage     `yaml:"storage" json:"storage"`
	API        API         `yaml:"api" json:"api"`
}

type Engine struct {
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`
	Speed        float64       `yaml:"speed" json:"speed"`
}

type Religion struct {
	Interval time.Duration `yaml:"interval" json:"interval"`
	Workers  int           `yaml:"workers" json:"workers"`
}

type Resource struct {
	Interval         time.Duration `yaml:"interval" json:"interval"`
	RegenerationRate float64       `yaml:"regeneration_rate" json:"regeneration_rate"`
	Workers          int           `yaml:"workers" json:"workers"`
}

type World struct {
	Seed      int64 `yaml:"seed" json:"seed"`
	Religions int   `yaml:"religions" json:"religions"`
	Deposits  int   `yaml:"deposits" json:"deposits"`
}

type Storage struct {
	Path             string        `yaml:"path" json:"path"`
	AutosaveInterval time.Duration `yaml:"autosave_interval" json:"autosave_interval"`
}

type API struct {
	Port     int    `yaml:"port" json:"port"`
	AdminKey string `yaml:"-" json:"-"` // WORLDSIM_ADMIN_KEY only
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Simulation: &Simulation{
			EnableReligionSystem: true,
			EnableResourceSystem: true,
		},
		Engine: Engine{
			TickInterval: 100 * time.Millisecond,
			Speed:        1,
		},
		Religion: Religion{
			Interval: time.Second,
		},
		Resource: Resource{
			Interval:         500 * time.Millisecond,
			RegenerationRate: 0.1,
		},
		World: World{
			Seed:      42,
			Religions: 200,
			Deposits:  2000,
		},
		Storage: Storage{
			Path:             "data/crossroads.db",
			AutosaveInterval: 5 * time.Minute,
		},
		API: API{Port: 8080},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	// An explicit document replaces the default toggles; a missing
	// simulation section must stay missing.
	cfg.Simulation = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path, falling back to defaults when the file does not exist.
// Environment overrides are applied last.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Warn("config file not found, using defaults", "path", path)
		cfg = Default()
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		cfg, err = Parse(data)
		if err != nil {
			return Config{}, err
		}
	}

	if v := os.Getenv("WORLDSIM_DB"); v != "" {
		cfg.Storage.Path = v
	}
	cfg.API.AdminKey = os.Getenv("WORLDSIM_ADMIN_KEY")
	return cfg, nil
}

// Validate checks ranges the scheduler depends on.
func (c Config) Validate() error {
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("%w: engine.tick_interval must be positive", ErrInvalid)
	}
	if c.Engine.Speed < 0 {
		return fmt.Errorf("%w: engine.speed must not be negative", ErrInvalid)
	}
	if c.Religion.Interval <= 0 {
		return fmt.Errorf("%w: religion.interval must be positive", ErrInvalid)
	}
	if c.Resource.Interval <= 0 {
		return fmt.Errorf("%w: resource.interval must be positive", ErrInvalid)
	}
	if c.Resource.RegenerationRate < 0 {
		return fmt.Errorf("%w: resource.regeneration_rate must not be negative", ErrInvalid)
	}
	if c.Religion.Workers < 0 || c.Resource.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	if c.World.Religions < 0 || c.World.Deposits < 0 {
		return fmt.Errorf("%w: world counts must not be negative", ErrInvalid)
	}
	return nil
}

// Publish installs cfg's toggles as the world singleton, or removes the
// singleton when the section is absent.
func Publish(w *ecs.World, sim *Simulation) {
	if sim == nil {
		ecs.RemoveSingleton[Simulation](w)
		return
	}
	ecs.SetSingleton(w, *sim)
}
