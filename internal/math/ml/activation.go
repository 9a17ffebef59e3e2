package ml

import (
	xml "github.com/drakos74/go-ex-machina/xmachina/ml"
	"github.com/drakos74/go-ex-machina/xmath"
)

const (
	Linear  = "linear"
	ReLU    = "relu"
	Softmax = "softmax"
)

func validActivation(name string) bool {
	switch name {
	case "", Linear, ReLU, Softmax:
		return true
	}
	return false
}

// activate applies the named activation in place.
func activate(name string, v []float64) {
	switch name {
	case ReLU:
		for i, x := range v {
			v[i] = xml.ReLU.F(x)
		}
	case Softmax:
		copy(v, xml.SoftMax{}.F(xmath.Vector(v)))
	}
}

// deactivate multiplies the gradient by the activation derivative, given the activated output.
// Softmax gradients are expected with respect to the logits already,
// which is what categorical cross-entropy hands back.
func deactivate(name string, out, grad []float64) {
	switch name {
	case ReLU:
		for i, y := range out {
			if y <= 0 {
				grad[i] = 0
			}
		}
	}
}
