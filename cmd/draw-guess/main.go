package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/drakos74/draw-guess/infra/config"
	"github.com/drakos74/draw-guess/internal/api"
	"github.com/drakos74/draw-guess/internal/metrics"
	"github.com/drakos74/draw-guess/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}
	if env.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, cnl := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cnl()

	store, closeStore := newStore(ctx, env)
	defer closeStore()

	registry := newRegistry(env, networkConfig(env), store)
	defer registry.Close()

	srv := server.NewServer("draw-guess", env.Port).
		Add(server.Live()).
		Handle("/metrics", metrics.Observer.Handler())
	a := api.New(registry)
	if env.Debug {
		srv.Debug()
		a.Debug()
	}
	a.Register(srv)

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
