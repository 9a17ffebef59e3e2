package model

import (
	"errors"
	"fmt"
)

const (
	// Classes is the number of digits the classifier distinguishes.
	Classes = 10
	// Side is the side of the square input the classifier expects.
	Side = 28
)

var (
	// ErrModelNotReady is returned when predict or train run before a model exists.
	ErrModelNotReady = errors.New("model not ready")
	// ErrEmptyInput signals a blank canvas, callers skip the prediction silently.
	ErrEmptyInput = errors.New("empty input")
	// ErrNoInput is returned when training is requested without a current tensor.
	ErrNoInput = errors.New("no input tensor")
	// ErrInvalidLabel is returned for labels outside 0..9.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrBusy is returned when a predict or train cycle is already in flight.
	ErrBusy = errors.New("operation in flight")
)

// Label is a user supplied digit.
type Label int

// NewLabel validates the given digit.
func NewLabel(digit int) (Label, error) {
	if digit < 0 || digit >= Classes {
		return -1, fmt.Errorf("digit %d out of range [0,%d): %w", digit, Classes, ErrInvalidLabel)
	}
	return Label(digit), nil
}

// OneHot returns the target vector for the label.
func (l Label) OneHot() []float64 {
	v := make([]float64, Classes)
	v[l] = 1
	return v
}
