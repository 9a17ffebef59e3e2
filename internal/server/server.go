package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type Action string

type Method string

const (
	Data Action = "data"
	Api  Action = "api"

	GET  Method = "GET"
	POST Method = "POST"

	shutdownTimeout = 5 * time.Second
	maxBody         = 1 << 20
)

type Handler func(ctx context.Context, r *http.Request) ([]byte, int, error)

type Route struct {
	Action Action
	Path   string
	Method Method
	Exec   Handler
}

func (r Route) pattern() string {
	if r.Path != "" {
		return fmt.Sprintf("/%s/%s", r.Action, r.Path)
	}
	return fmt.Sprintf("/%s", r.Action)
}

type Server struct {
	name   string
	port   int
	debug  bool
	routes []Route
	raw    map[string]http.Handler
}

func NewServer(name string, port int) *Server {
	return &Server{
		name:   name,
		port:   port,
		routes: make([]Route, 0),
		raw:    make(map[string]http.Handler),
	}
}

// Debug sets the server to debug mode
func (s *Server) Debug() *Server {
	s.debug = true
	return s
}

// IsDebug reports if the server logs request payloads.
func (s *Server) IsDebug() bool {
	return s.debug
}

// AddRoute adds a route to the server
func (s *Server) AddRoute(method Method, action Action, path string, exec Handler) *Server {
	s.routes = append(s.routes, Route{
		Action: action,
		Path:   path,
		Method: method,
		Exec:   exec,
	})
	return s
}

// Add adds the given routes to the server
func (s *Server) Add(route ...Route) *Server {
	s.routes = append(s.routes, route...)
	return s
}

// Handle serves the pattern with a plain http handler e.g. static files or websockets.
func (s *Server) Handle(pattern string, handler http.Handler) *Server {
	s.raw[pattern] = handler
	return s
}

func (s *Server) handle(route Route) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		signal := NewSignal(fmt.Sprintf("%s %s", route.Method, route.pattern())).Create()
		if Method(r.Method) != route.Method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		b, code, err := route.Exec(r.Context(), r)
		if err != nil {
			s.error(w, err, code)
		} else if code != 0 && code != http.StatusOK {
			s.code(w, b, code)
		} else {
			s.respond(w, b)
		}
		ev := log.Debug()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("request", signal.Name).
			Str("id", signal.ID).
			Int("code", code).
			Float64("duration", time.Since(signal.Time).Seconds()).
			Msg("completed request")
	}
}

// Handler returns the http handler serving all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, route := range s.routes {
		mux.HandleFunc(route.pattern(), s.handle(route))
	}
	for pattern, handler := range s.raw {
		mux.Handle(pattern, handler)
	}
	return mux
}

// Run starts the server and blocks until the context is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}
	errs := make(chan error, 1)
	go func() {
		log.Warn().Str("server", s.name).Int("port", s.port).Msg("starting server")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("could not start server: %w", err)
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Warn().Str("server", s.name).Msg("stopping server")
	if err := srv.Shutdown(shutdown); err != nil {
		return fmt.Errorf("could not stop server: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) code(w http.ResponseWriter, b []byte, code int) {
	w.WriteHeader(code)
	s.write(w, b)
}

func (s *Server) respond(w http.ResponseWriter, b []byte) {
	if len(b) > 0 {
		w.Header().Set("Content-Type", "application/json")
	}
	s.write(w, b)
}

func (s *Server) write(w http.ResponseWriter, b []byte) {
	_, err := w.Write(b)
	if err != nil {
		log.Error().Err(err).Msg("could not write response")
	}
}

func (s *Server) error(w http.ResponseWriter, err error, code int) {
	if code == 0 || code == http.StatusOK {
		code = http.StatusInternalServerError
	}
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	w.Header().Set("Content-Type", "application/json")
	s.code(w, payload, code)
}

func Live() Route {
	return Route{
		Action: Data,
		Method: GET,
		Exec: func(ctx context.Context, r *http.Request) (payload []byte, code int, err error) {
			return []byte{}, 200, nil
		},
	}
}

func ReadJson(r *http.Request, debug bool, v interface{}) ([]byte, error) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if debug {
		log.Info().
			Str("url", fmt.Sprintf("%+v", r.URL)).
			Str("request", r.RequestURI).
			Str("header", fmt.Sprintf("%+v", r.Header)).
			Str("remote-address", r.RemoteAddr).
			Str("host", r.Host).
			Str("method", r.Method).
			Str("body", string(body)).
			Msg("received payload")
	}
	if len(body) > 0 {
		err = json.Unmarshal(body, v)
		if err != nil {
			return body, err
		}
	}
	return body, nil
}
