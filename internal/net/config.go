package net

// Config defines the architecture and training parameters of the digit network.
type Config struct {
	Filters      []int     `json:"filters"`
	KernelSize   int       `json:"kernel_size"`
	PoolSize     int       `json:"pool_size"`
	Units        int       `json:"units"`
	Dropout      []float64 `json:"dropout"`
	LearningRate float64   `json:"learning_rate"`
	Epochs       int       `json:"epochs"`
	Seed         int64     `json:"seed"`
}

// DefaultConfig returns the canonical configuration:
// two conv+pool stages, flatten, two dropout regularised dense stages and a softmax output.
func DefaultConfig() Config {
	return Config{
		Filters:      []int{32, 64},
		KernelSize:   3,
		PoolSize:     2,
		Units:        128,
		Dropout:      []float64{0.25, 0.5},
		LearningRate: 0.001,
		Epochs:       3,
	}
}

// WithSeed fixes the random source for weight init and dropout.
func (c Config) WithSeed(seed int64) Config {
	c.Seed = seed
	return c
}
