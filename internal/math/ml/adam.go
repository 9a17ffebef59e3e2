package ml

import (
	"math"

	xml "github.com/drakos74/go-ex-machina/xmachina/ml"
)

// Adam is the adam optimizer with bias corrected moments.
type Adam struct {
	rate    *xml.Learning
	beta1   float64
	beta2   float64
	epsilon float64
	t       int
}

// NewAdam creates an adam optimizer with the default decay rates.
func NewAdam(rate float64) *Adam {
	return &Adam{
		rate:    xml.Rate(rate),
		beta1:   0.9,
		beta2:   0.999,
		epsilon: epsilon,
	}
}

// WithRate sets different learning rates for kernels and biases.
func (a *Adam) WithRate(rate *xml.Learning) *Adam {
	a.rate = rate
	return a
}

// Step applies one update from the accumulated gradients.
func (a *Adam) Step(params []*Param) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for _, p := range params {
		lr := a.rate.WRate()
		if p.bias {
			lr = a.rate.BRate()
		}
		alpha := lr * math.Sqrt(c2) / c1
		for i, g := range p.Grad {
			p.m[i] = a.beta1*p.m[i] + (1-a.beta1)*g
			p.v[i] = a.beta2*p.v[i] + (1-a.beta2)*g*g
			p.Value[i] -= alpha * p.m[i] / (math.Sqrt(p.v[i]) + a.epsilon)
		}
	}
}
