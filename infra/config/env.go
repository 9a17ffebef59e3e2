package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend selects the persistence variant.
type Backend string

const (
	// Local keeps only the stats in per session files.
	Local Backend = "local"
	// Synced keeps the stats and the model in the sync database.
	Synced Backend = "synced"
)

// Env is the process configuration read from the environment.
type Env struct {
	Port         int           `env:"DRAW_GUESS_PORT" envDefault:"8080"`
	Backend      Backend       `env:"DRAW_GUESS_BACKEND" envDefault:"local"`
	LocalDir     string        `env:"DRAW_GUESS_LOCAL_DIR" envDefault:"file-storage/draw-guess"`
	SyncProject  string        `env:"DRAW_GUESS_SYNC_PROJECT"`
	SyncDatabase string        `env:"DRAW_GUESS_SYNC_DATABASE"`
	SyncAPIKey   string        `env:"DRAW_GUESS_SYNC_API_KEY"`
	Debounce     time.Duration `env:"DRAW_GUESS_DEBOUNCE" envDefault:"300ms"`
	CanvasSize   int           `env:"DRAW_GUESS_CANVAS_SIZE" envDefault:"280"`
	Debug        bool          `env:"DRAW_GUESS_DEBUG" envDefault:"false"`
	Seed         int64         `env:"DRAW_GUESS_SEED" envDefault:"0"`
}

// Validate checks the values that have no natural zero.
func (e Env) Validate() error {
	switch e.Backend {
	case Local, Synced:
	default:
		return fmt.Errorf("unknown backend '%s'", e.Backend)
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("invalid port %d", e.Port)
	}
	if e.CanvasSize <= 0 {
		return fmt.Errorf("invalid canvas size %d", e.CanvasSize)
	}
	if e.Debounce < 0 {
		return fmt.Errorf("invalid debounce %v", e.Debounce)
	}
	return nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv parses and validates the process configuration.
func LoadEnv() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	if err := e.Validate(); err != nil {
		return Env{}, fmt.Errorf("invalid env: %w", err)
	}
	return e, nil
}
