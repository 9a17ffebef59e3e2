package session

import (
	"context"
	"sync"
	"time"

	"github.com/drakos74/draw-guess/internal/metrics"
	"github.com/drakos74/draw-guess/internal/storage"
	"github.com/rs/zerolog/log"
)

// Factory creates the session for the given id.
type Factory func(id string) (*Session, error)

// DefaultLoadTimeout bounds the initial load of a session from the store.
const DefaultLoadTimeout = 10 * time.Second

type entry struct {
	session *Session
	err     error
	ready   chan struct{}
}

// Registry keeps one session per browser profile.
type Registry struct {
	mutex       *sync.Mutex
	sessions    map[string]*entry
	factory     Factory
	loadTimeout time.Duration
	observer    *metrics.Metrics
}

// NewRegistry creates a new session registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		mutex:       new(sync.Mutex),
		sessions:    make(map[string]*entry),
		factory:     factory,
		loadTimeout: DefaultLoadTimeout,
		observer:    metrics.Observer,
	}
}

// WithObserver replaces the metrics collector.
func (r *Registry) WithObserver(observer *metrics.Metrics) *Registry {
	r.observer = observer
	return r
}

// WithLoadTimeout replaces the initial load timeout.
func (r *Registry) WithLoadTimeout(timeout time.Duration) *Registry {
	r.loadTimeout = timeout
	return r
}

// Get returns the session for the id, creating and loading it on first use.
// Concurrent callers for a session that is still loading wait for it or for their own context.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if err := storage.CheckSession(id); err != nil {
		return nil, err
	}
	r.mutex.Lock()
	e, ok := r.sessions[id]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		r.sessions[id] = e
	}
	r.mutex.Unlock()

	if ok {
		select {
		case <-e.ready:
			return e.session, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s, err := r.factory(id)
	if err != nil {
		r.mutex.Lock()
		delete(r.sessions, id)
		r.mutex.Unlock()
		e.err = err
		close(e.ready)
		return nil, err
	}

	// the load outlives the request that triggered it
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
	s.Load(loadCtx)
	cancel()

	e.session = s
	close(e.ready)

	n := r.Len()
	r.observer.Sessions(n)
	log.Info().Str("session", id).Int("sessions", n).Msg("created session")
	return s, nil
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.sessions)
}

// Close stops all loaded sessions.
func (r *Registry) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, e := range r.sessions {
		select {
		case <-e.ready:
			if e.session != nil {
				e.session.Close()
			}
		default:
		}
	}
}
