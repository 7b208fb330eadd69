package inference

import (
	"github.com/nvr-ai/go-yolo11/inference/providers"
	"github.com/nvr-ai/go-yolo11/inference/tensor"
	"go.uber.org/zap"
)

// Engine is a loaded network. Its weights are read-only once built, and every
// inference runs in its own Extractor so an Engine can serve concurrent frames.
type Engine interface {
	// Extractor returns a fresh execution context for one inference.
	Extractor() (Extractor, error)
	// Close releases the network.
	Close() error
}

// Extractor is the per-inference execution context: set inputs, then pull
// outputs by name. The network runs on the first Extract.
type Extractor interface {
	// Input binds a float32 tensor to a named input.
	Input(name string, data []float32, shape []int64) error
	// Extract returns a named output as a view, valid until Close.
	Extract(name string) (tensor.View, error)
	// Close releases everything the extractor allocated.
	Close() error
}

// EngineFactory builds an Engine from a loaded model.
type EngineFactory func(model *Model, cfg providers.Config, logger *zap.Logger) (Engine, error)
