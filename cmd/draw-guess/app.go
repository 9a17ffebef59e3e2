package main

import (
	"context"

	"github.com/drakos74/draw-guess/infra/config"
	"github.com/drakos74/draw-guess/internal/display"
	"github.com/drakos74/draw-guess/internal/net"
	"github.com/drakos74/draw-guess/internal/session"
	"github.com/drakos74/draw-guess/internal/storage"
	"github.com/drakos74/draw-guess/internal/storage/file"
	"github.com/drakos74/draw-guess/internal/storage/sqlite"
	"github.com/rs/zerolog/log"
)

// networkConfig reads the network hyper-parameters, falling back to the defaults.
func networkConfig(env config.Env) net.Config {
	cfg := net.DefaultConfig()
	if _, err := config.Load("network", &cfg); err != nil {
		log.Warn().Err(err).Msg("using default network config")
		cfg = net.DefaultConfig()
	}
	return cfg.WithSeed(env.Seed)
}

// newStore creates the store of the configured backend.
// An invalid synced configuration yields a store that fails every call.
func newStore(ctx context.Context, env config.Env) (storage.Store, func()) {
	switch env.Backend {
	case config.Synced:
		store, err := sqlite.Open(ctx, sqlite.Config{
			Project:  env.SyncProject,
			Database: env.SyncDatabase,
			APIKey:   env.SyncAPIKey,
		})
		if err != nil {
			log.Error().Err(err).Msg("sync unavailable")
			return storage.NewUnavailableStorage(err), func() {}
		}
		log.Info().Str("project", env.SyncProject).Msg("using synced store")
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("could not close store")
			}
		}
	default:
		log.Info().Str("dir", env.LocalDir).Msg("using local store")
		return storage.StatsOnly{Store: file.NewLocalStorage(env.LocalDir)}, func() {}
	}
}

// newRegistry creates a registry building one network and event stream per session.
func newRegistry(env config.Env, cfg net.Config, store storage.Store) *session.Registry {
	sessionCfg := session.Config{
		Debounce: env.Debounce,
		Width:    env.CanvasSize,
		Height:   env.CanvasSize,
	}
	return session.NewRegistry(func(id string) (*session.Session, error) {
		classifier, err := net.New(cfg)
		if err != nil {
			return nil, err
		}
		return session.New(id, sessionCfg, classifier, store, display.NewBroadcaster())
	})
}
