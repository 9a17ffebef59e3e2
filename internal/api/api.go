// Package api exposes the draw-guess sessions over http and websockets.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/drakos74/draw-guess/internal/display"
	"github.com/drakos74/draw-guess/internal/model"
	"github.com/drakos74/draw-guess/internal/server"
	"github.com/drakos74/draw-guess/internal/session"
	"github.com/drakos74/draw-guess/internal/storage"
	"github.com/gorilla/websocket"
)

var ErrNoSession = errors.New("no session")

// StateResponse is the session snapshot returned by every action.
type StateResponse struct {
	Session    string                  `json:"session"`
	State      string                  `json:"state"`
	Stats      model.Stats             `json:"stats"`
	Accuracy   string                  `json:"accuracy"`
	Prediction *display.PredictionView `json:"prediction,omitempty"`
	Losses     []float64               `json:"losses,omitempty"`
}

// API binds the http routes to the session registry.
type API struct {
	registry *session.Registry
	debug    bool
	now      func() time.Time
	upgrader websocket.Upgrader
}

// New creates a new api for the given registry.
func New(registry *session.Registry) *API {
	return &API{
		registry: registry,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Debug logs the request payloads.
func (a *API) Debug() *API {
	a.debug = true
	return a
}

// Register adds the routes, the websocket and the page to the server.
func (a *API) Register(srv *server.Server) *server.Server {
	return srv.
		AddRoute(server.POST, server.Api, "predict", a.withSession(a.predict)).
		AddRoute(server.POST, server.Api, "clear", a.withSession(a.clear)).
		AddRoute(server.POST, server.Api, "train", a.withSession(a.train)).
		AddRoute(server.POST, server.Api, "confirm", a.withSession(a.confirm)).
		AddRoute(server.POST, server.Api, "reset", a.withSession(a.reset)).
		AddRoute(server.POST, server.Api, "save", a.withSession(a.save)).
		AddRoute(server.GET, server.Api, "stats", a.withSession(a.stats)).
		Handle("/api/ws", http.HandlerFunc(a.socket)).
		Handle("/", http.HandlerFunc(a.page))
}

type sessionHandler func(ctx context.Context, s *session.Session, r *http.Request) error

func (a *API) withSession(exec sessionHandler) server.Handler {
	return func(ctx context.Context, r *http.Request) ([]byte, int, error) {
		id, ok := sessionID(r)
		if !ok {
			return nil, http.StatusUnauthorized, ErrNoSession
		}
		s, err := a.registry.Get(ctx, id)
		if err != nil {
			return nil, StatusCode(err), err
		}
		if err := exec(ctx, s, r); err != nil {
			return nil, StatusCode(err), err
		}
		b, err := json.Marshal(snapshot(s))
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}
		return b, http.StatusOK, nil
	}
}

func snapshot(s *session.Session) StateResponse {
	stats := s.Stats()
	resp := StateResponse{
		Session:  s.ID(),
		State:    s.State().String(),
		Stats:    stats,
		Accuracy: display.Accuracy(stats),
		Losses:   s.Losses(),
	}
	if p, ok := s.Prediction(); ok {
		view := display.View(p)
		resp.Prediction = &view
	}
	return resp
}

// StatusCode maps the domain errors to http status codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, model.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidLabel),
		errors.Is(err, storage.InvalidKeyErr),
		errors.Is(err, ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrModelNotReady),
		errors.Is(err, model.ErrNoInput),
		errors.Is(err, model.ErrEmptyInput):
		return http.StatusPreconditionFailed
	case errors.Is(err, session.ErrNoModelStore):
		return http.StatusNotImplemented
	case errors.Is(err, storage.UnavailableErr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (a *API) predict(ctx context.Context, s *session.Session, _ *http.Request) error {
	return s.Predict(ctx)
}

func (a *API) clear(_ context.Context, s *session.Session, _ *http.Request) error {
	s.Clear()
	return nil
}

func (a *API) train(ctx context.Context, s *session.Session, r *http.Request) error {
	var req TrainRequest
	if _, err := server.ReadJson(r, a.debug, &req); err != nil {
		return fmt.Errorf("could not parse request: %s: %w", err.Error(), model.ErrInvalidLabel)
	}
	label, err := req.Label()
	if err != nil {
		return err
	}
	return s.Train(ctx, int(label))
}

func (a *API) confirm(ctx context.Context, s *session.Session, _ *http.Request) error {
	return s.Confirm(ctx)
}

func (a *API) reset(ctx context.Context, s *session.Session, _ *http.Request) error {
	return s.ResetModel(ctx)
}

func (a *API) save(ctx context.Context, s *session.Session, _ *http.Request) error {
	return s.SaveModel(ctx)
}

func (a *API) stats(_ context.Context, _ *session.Session, _ *http.Request) error {
	return nil
}
