package api

import (
	"errors"
	"fmt"
	"math"

	"github.com/drakos74/draw-guess/internal/canvas"
	"github.com/drakos74/draw-guess/internal/model"
)

// CommandType is the kind of pointer event streamed by the browser.
type CommandType string

const (
	Down CommandType = "down"
	Move CommandType = "move"
	Up   CommandType = "up"
)

var ErrInvalidCommand = errors.New("invalid command")

// Command is a pointer event as sent over the websocket.
type Command struct {
	Type CommandType `json:"type"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
	Rect canvas.Rect `json:"rect"`
}

// Pointer returns the client position of the event.
func (c Command) Pointer() canvas.Pointer {
	return canvas.Pointer{
		X:    c.X,
		Y:    c.Y,
		Rect: c.Rect,
	}
}

// Validator is a validation function for a command.
type Validator func(c Command) error

// Validate validates the command with the given validators.
func (c Command) Validate(validators ...Validator) error {
	for _, validate := range validators {
		if err := validate(c); err != nil {
			return fmt.Errorf("command %+v: %s: %w", c, err.Error(), ErrInvalidCommand)
		}
	}
	return nil
}

// OneOf accepts only the given command types.
func OneOf(types ...CommandType) Validator {
	return func(c Command) error {
		for _, t := range types {
			if c.Type == t {
				return nil
			}
		}
		return fmt.Errorf("unknown type '%s'", c.Type)
	}
}

// Positioned requires finite coordinates and a visible canvas for events carrying a position.
func Positioned() Validator {
	return func(c Command) error {
		if c.Type == Up {
			return nil
		}
		for _, v := range []float64{c.X, c.Y, c.Rect.Left, c.Rect.Top, c.Rect.Width, c.Rect.Height} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("non finite coordinate %v", v)
			}
		}
		if c.Rect.Width <= 0 || c.Rect.Height <= 0 {
			return fmt.Errorf("empty canvas rect %+v", c.Rect)
		}
		return nil
	}
}

// TrainRequest carries the digit chosen by the user.
type TrainRequest struct {
	Digit *int `json:"digit"`
}

// Label validates the requested digit.
func (t TrainRequest) Label() (model.Label, error) {
	if t.Digit == nil {
		return -1, fmt.Errorf("missing digit: %w", model.ErrInvalidLabel)
	}
	return model.NewLabel(*t.Digit)
}
