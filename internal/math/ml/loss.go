package ml

import (
	"math"

	"github.com/drakos74/go-ex-machina/xmath"
)

const epsilon = 1e-7

var clip = xmath.Clip(epsilon, 1-epsilon)

// CrossEntropy is the categorical cross-entropy of the output against the expected distribution.
func CrossEntropy(expected, output []float64) float64 {
	xmath.MustHaveSameSize(expected, output)
	var loss float64
	for i, y := range expected {
		if y == 0 {
			continue
		}
		loss -= y * math.Log(clip(output[i]))
	}
	return loss
}

// crossEntropyGrad is the gradient of softmax followed by cross-entropy with respect to the logits.
func crossEntropyGrad(expected, output []float64) []float64 {
	return xmath.Vector(output).Diff(expected)
}
