package model

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Prediction holds the class probabilities for the digits 0-9.
type Prediction struct {
	Probabilities []float64 `json:"probabilities"`
}

// NewPrediction copies the given probabilities into a new prediction.
func NewPrediction(p []float64) (Prediction, error) {
	if len(p) != Classes {
		return Prediction{}, fmt.Errorf("expected %d probabilities but got %d", Classes, len(p))
	}
	pp := make([]float64, Classes)
	copy(pp, p)
	return Prediction{Probabilities: pp}, nil
}

// Best returns the most probable digit and its confidence.
// Ties resolve to the lowest digit.
func (p Prediction) Best() (Label, float64) {
	i := floats.MaxIdx(p.Probabilities)
	return Label(i), p.Probabilities[i]
}
