// Package providers - ONNX Runtime execution providers and session options.
//
// Threading and hardware acceleration are configured here and nowhere else;
// the decode pipeline only ever sees an opaque engine.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend names an ONNX Runtime execution provider.
type ProviderBackend string

const (
	// CPUProviderBackend is the default ONNX Runtime CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU inference.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// Backends lists every supported backend.
var Backends = []ProviderBackend{
	CPUProviderBackend,
	CoreMLProviderBackend,
	OpenVINOProviderBackend,
	CUDAProviderBackend,
}

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// ExecutionProvider is the contract every execution provider implements.
type ExecutionProvider interface {
	// Backend identifies the provider.
	Backend() ProviderBackend
	// Options returns the provider-specific options.
	Options() ProviderOptions
	// Append registers the provider on the session options.
	Append(options *ort.SessionOptions) error
}

// NewProvider creates the execution provider selected by cfg.Backend.
//
// Arguments:
//   - cfg: The provider configuration. An empty backend selects the CPU.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the backend is unknown.
func NewProvider(cfg Config) (ExecutionProvider, error) {
	switch cfg.Backend {
	case "", CPUProviderBackend:
		return NewCPUProvider(), nil
	case CoreMLProviderBackend:
		return NewCoreMLProvider(cfg.CoreML), nil
	case OpenVINOProviderBackend:
		return NewOpenVINOProvider(cfg.OpenVINO), nil
	case CUDAProviderBackend:
		return NewCUDAProvider(cfg.CUDA), nil
	default:
		return nil, errors.Errorf("no matching provider backend registered: %s", cfg.Backend)
	}
}
