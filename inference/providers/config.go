// Package providers - Execution provider configuration.
package providers

import (
	"slices"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Config selects and configures the execution provider for a session.
type Config struct {
	// Backend specifies the execution provider. Empty means CPU.
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string `json:"library_path" yaml:"library_path"`

	// Provider-specific options; only the one matching Backend is used.
	CoreML   CoreMLOptions   `json:"coreml"   yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
	CUDA     CUDAOptions     `json:"cuda"     yaml:"cuda"`

	// Optimization holds graph and threading settings.
	Optimization OptimizationConfig `json:"optimization" yaml:"optimization"`
}

// DefaultConfig returns a CPU configuration with default optimisation.
//
// @example
// config := DefaultConfig()
// config.Backend = CoreMLProviderBackend
// options, err := NewSessionOptions(config)
func DefaultConfig() Config {
	return Config{
		Backend:      CPUProviderBackend,
		Optimization: DefaultOptimizationConfig(),
	}
}

// Validate checks the backend name and optimisation settings.
func (c Config) Validate() error {
	if c.Backend != "" && !slices.Contains(Backends, c.Backend) {
		return errors.Errorf("no matching provider backend registered: %s", c.Backend)
	}
	return errors.Wrap(c.Optimization.Validate(), "optimization")
}

// NewSessionOptions builds ONNX Runtime session options from cfg: threading,
// graph optimisation and the selected execution provider. The environment
// must already be initialised. The caller destroys the returned options.
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: Configured session options.
//   - error: Configuration error if any.
func NewSessionOptions(cfg Config) (*ort.SessionOptions, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := cfg.Optimization.apply(options); err != nil {
		options.Destroy()
		return nil, err
	}
	if err := provider.Append(options); err != nil {
		options.Destroy()
		return nil, err
	}

	return options, nil
}
