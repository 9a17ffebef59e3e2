package server

import (
	"time"

	"github.com/google/uuid"
)

// Signal describes a request handled by the server.
type Signal struct {
	Name string
	ID   string
	Time time.Time
}

// NewSignal creates a new signal with the given name.
func NewSignal(name string) *Signal {
	return &Signal{
		Name: name,
		Time: time.Now(),
		ID:   uuid.New().String(),
	}
}

// WithID assigns an id to the signal
func (a *Signal) WithID(id string) *Signal {
	a.ID = id
	return a
}

// Create returns an immutable instance of the signal
func (a *Signal) Create() Signal {
	return *a
}
