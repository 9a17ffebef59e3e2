package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/drakos74/draw-guess/internal/math/ml"
	"github.com/drakos74/draw-guess/internal/model"
	"github.com/rs/zerolog/log"
)

var (
	// ErrMalformedWeights is returned for weight payloads that cannot be loaded.
	ErrMalformedWeights = ml.ErrMalformedWeights
	// ErrInference wraps failures of the forward pass.
	ErrInference = errors.New("inference failed")
	// ErrTraining wraps failures of the training step.
	ErrTraining = errors.New("training failed")
)

// Network is the trainable digit classifier.
// It is not safe for concurrent use, callers serialise access.
type Network struct {
	cfg   Config
	rng   *rand.Rand
	model *ml.Sequential
}

// New creates a network with freshly initialised weights.
func New(cfg Config) (*Network, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	n := &Network{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
	if err := n.Reset(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Network) specs() ([]ml.LayerSpec, error) {
	if len(n.cfg.Filters) == 0 || len(n.cfg.Dropout) != 2 {
		return nil, fmt.Errorf("invalid network config %+v", n.cfg)
	}
	specs := make([]ml.LayerSpec, 0)
	for _, f := range n.cfg.Filters {
		specs = append(specs,
			ml.Conv2D(f, n.cfg.KernelSize, ml.ReLU),
			ml.MaxPooling2D(n.cfg.PoolSize, n.cfg.PoolSize))
	}
	return append(specs,
		ml.Flatten(),
		ml.Dropout(n.cfg.Dropout[0]),
		ml.Dense(n.cfg.Units, ml.ReLU),
		ml.Dropout(n.cfg.Dropout[1]),
		ml.Dense(model.Classes, ml.Softmax),
	), nil
}

func (n *Network) compile(s *ml.Sequential) *ml.Sequential {
	return s.Compile(ml.NewAdam(n.cfg.LearningRate))
}

// Reset discards the current weights and builds an untrained network.
func (n *Network) Reset() error {
	specs, err := n.specs()
	if err != nil {
		return err
	}
	s, err := ml.NewSequential(ml.Shape{H: model.Side, W: model.Side, C: 1}, n.rng, specs...)
	if err != nil {
		return fmt.Errorf("could not create network: %w", err)
	}
	n.model = n.compile(s)
	log.Info().
		Int("params", len(s.Params())).
		Int("epochs", n.cfg.Epochs).
		Float64("rate", n.cfg.LearningRate).
		Msg("created trainable network")
	return nil
}

// Drop discards the model without creating a new one.
func (n *Network) Drop() {
	n.model = nil
}

// Ready returns true if there is a model to predict with.
func (n *Network) Ready() bool {
	return n.model != nil
}

func (n *Network) volume(x *model.Tensor) (*ml.Volume, error) {
	in := n.model.InputShape()
	if len(x.Shape) != 4 || x.Shape[0] != 1 || x.Shape[1] != in.H || x.Shape[2] != in.W || x.Shape[3] != in.C {
		return nil, fmt.Errorf("tensor shape %v does not match input %v", x.Shape, in)
	}
	return ml.VolumeOf(in, x.Data)
}

// Predict returns the class probabilities for the input tensor.
func (n *Network) Predict(ctx context.Context, x *model.Tensor) (p model.Prediction, err error) {
	if err := ctx.Err(); err != nil {
		return p, err
	}
	if !n.Ready() {
		return p, model.ErrModelNotReady
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v: %w", r, ErrInference)
		}
	}()
	v, err := n.volume(x)
	if err != nil {
		return p, fmt.Errorf("%s: %w", err.Error(), ErrInference)
	}
	y, err := n.model.Predict(v)
	if err != nil {
		return p, fmt.Errorf("%s: %w", err.Error(), ErrInference)
	}
	return model.NewPrediction(y)
}

// Train fine-tunes the network on a single labeled example.
// It returns the loss of every epoch.
func (n *Network) Train(ctx context.Context, x *model.Tensor, label model.Label) (loss []float64, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !n.Ready() {
		return nil, model.ErrModelNotReady
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v: %w", r, ErrTraining)
		}
	}()
	v, err := n.volume(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), ErrTraining)
	}
	loss, err = n.model.Fit(v, label.OneHot(), n.cfg.Epochs)
	if err != nil {
		return loss, fmt.Errorf("%s: %w", err.Error(), ErrTraining)
	}
	return loss, nil
}

// Serialize encodes the topology and weights as json.
func (n *Network) Serialize() ([]byte, error) {
	if !n.Ready() {
		return nil, model.ErrModelNotReady
	}
	b, err := json.Marshal(n.model.Save())
	if err != nil {
		return nil, fmt.Errorf("could not encode model: %w", err)
	}
	return b, nil
}

// Deserialize replaces the model with the encoded one.
// The current model is kept if the payload cannot be loaded.
func (n *Network) Deserialize(b []byte) error {
	var artifacts ml.Artifacts
	if err := json.Unmarshal(b, &artifacts); err != nil {
		return fmt.Errorf("could not decode model: %s: %w", err.Error(), ErrMalformedWeights)
	}
	s, err := ml.Load(artifacts, n.rng)
	if err != nil {
		return err
	}
	if s.InputShape() != (ml.Shape{H: model.Side, W: model.Side, C: 1}) {
		return fmt.Errorf("model has input %v: %w", s.InputShape(), ErrMalformedWeights)
	}
	if s.OutputShape().Size() != model.Classes {
		return fmt.Errorf("model has %d outputs: %w", s.OutputShape().Size(), ErrMalformedWeights)
	}
	n.model = n.compile(s)
	return nil
}
