package net

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/drakos74/draw-guess/internal/math/ml"
	"github.com/drakos74/draw-guess/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func input(seed int64) *model.Tensor {
	rng := rand.New(rand.NewSource(seed))
	t := model.NewTensor(1, model.Side, model.Side, 1)
	// a rough vertical bar
	for y := 4; y < 24; y++ {
		for x := 12; x < 16; x++ {
			t.Data[y*model.Side+x] = 0.5 + rng.Float64()/2
		}
	}
	return t
}

func newNetwork(t *testing.T, seed int64) *Network {
	n, err := New(DefaultConfig().WithSeed(seed))
	require.NoError(t, err)
	return n
}

func TestNetwork_Predict(t *testing.T) {
	n := newNetwork(t, 1)
	assert.True(t, n.Ready())

	p, err := n.Predict(context.Background(), input(1))
	require.NoError(t, err)
	assert.Equal(t, model.Classes, len(p.Probabilities))
	assert.InDelta(t, 1.0, floats.Sum(p.Probabilities), 1e-9)

	again, err := n.Predict(context.Background(), input(1))
	require.NoError(t, err)
	assert.Equal(t, p, again, "predict must not mutate the model")
}

func TestNetwork_NotReady(t *testing.T) {
	n := newNetwork(t, 1)
	n.Drop()
	assert.False(t, n.Ready())

	_, err := n.Predict(context.Background(), input(1))
	assert.True(t, errors.Is(err, model.ErrModelNotReady))

	_, err = n.Train(context.Background(), input(1), model.Label(3))
	assert.True(t, errors.Is(err, model.ErrModelNotReady))

	_, err = n.Serialize()
	assert.True(t, errors.Is(err, model.ErrModelNotReady))

	require.NoError(t, n.Reset())
	assert.True(t, n.Ready())
}

func TestNetwork_WrongInput(t *testing.T) {
	n := newNetwork(t, 1)

	_, err := n.Predict(context.Background(), model.NewTensor(1, 14, 14, 1))
	assert.True(t, errors.Is(err, ErrInference))

	_, err = n.Train(context.Background(), model.NewTensor(28, 28), model.Label(1))
	assert.True(t, errors.Is(err, ErrTraining))

	ctx, cnl := context.WithCancel(context.Background())
	cnl()
	_, err = n.Predict(ctx, input(1))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNetwork_Train(t *testing.T) {
	n := newNetwork(t, 2)
	x := input(2)
	label := model.Label(8)

	before, err := n.Predict(context.Background(), x)
	require.NoError(t, err)

	loss, err := n.Train(context.Background(), x, label)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Epochs, len(loss))

	after, err := n.Predict(context.Background(), x)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.True(t, after.Probabilities[label] > before.Probabilities[label],
		"before %v after %v", before.Probabilities[label], after.Probabilities[label])
}

func TestNetwork_Reset(t *testing.T) {
	n := newNetwork(t, 3)
	x := input(3)
	for i := 0; i < 3; i++ {
		_, err := n.Train(context.Background(), x, model.Label(5))
		require.NoError(t, err)
	}
	trained, err := n.Predict(context.Background(), x)
	require.NoError(t, err)

	require.NoError(t, n.Reset())
	fresh, err := n.Predict(context.Background(), x)
	require.NoError(t, err)
	assert.NotEqual(t, trained, fresh)
}

func TestNetwork_SerializeRoundTrip(t *testing.T) {
	n := newNetwork(t, 4)
	x := input(4)
	_, err := n.Train(context.Background(), x, model.Label(2))
	require.NoError(t, err)

	before, err := n.Predict(context.Background(), x)
	require.NoError(t, err)

	b, err := n.Serialize()
	require.NoError(t, err)

	other := newNetwork(t, 99)
	require.NoError(t, other.Deserialize(b))
	after, err := other.Predict(context.Background(), x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, before.Probabilities, after.Probabilities, 1e-5)

	// the restored network keeps training
	_, err = other.Train(context.Background(), x, model.Label(2))
	assert.NoError(t, err)
}

// oversizedPool saves a valid single pool model and widens its pool beyond the input.
func oversizedPool(t *testing.T) []byte {
	s, err := ml.NewSequential(ml.Shape{H: model.Side, W: model.Side, C: 1}, rand.New(rand.NewSource(1)),
		ml.MaxPooling2D(model.Side, model.Side),
		ml.Flatten(),
		ml.Dense(model.Classes, ml.Softmax))
	require.NoError(t, err)
	artifacts := s.Save()
	artifacts.ModelTopology.Layers[0].PoolSize = 40
	artifacts.ModelTopology.Layers[0].Strides = 40
	b, err := json.Marshal(artifacts)
	require.NoError(t, err)
	return b
}

func TestNetwork_DeserializeMalformed(t *testing.T) {
	n := newNetwork(t, 5)
	x := input(5)
	before, err := n.Predict(context.Background(), x)
	require.NoError(t, err)

	type test struct {
		payload []byte
	}

	tests := map[string]test{
		"not-json": {payload: []byte("{model")},
		"empty":    {payload: []byte("{}")},
		"no-weights": {
			payload: []byte(`{"modelTopology":{"class_name":"Sequential","input_shape":{"h":28,"w":28,"c":1},"layers":[{"class_name":"Flatten"},{"class_name":"Dense","units":10,"activation":"softmax"}]},"weightSpecs":[],"weightData":""}`),
		},
		"pool-larger-than-input": {payload: oversizedPool(t)},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := n.Deserialize(tt.payload)
			assert.True(t, errors.Is(err, ErrMalformedWeights), "%v", err)

			after, err := n.Predict(context.Background(), x)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}
