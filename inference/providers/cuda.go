// Package providers - CUDA execution provider.
package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID"              yaml:"deviceID"`
	// The size limit of the device memory arena in bytes. Zero keeps the default.
	GPUMemLimit int64 `json:"gpuMemLimit"           yaml:"gpuMemLimit"`
	// kNextPowerOfTwo or kSameAsRequested. Empty keeps the default.
	ArenaExtendStrategy string `json:"arenaExtendStrategy"   yaml:"arenaExtendStrategy"`
	// EXHAUSTIVE, HEURISTIC or DEFAULT. Empty keeps the default.
	CudnnConvAlgoSearch string `json:"cudnnConvAlgoSearch"   yaml:"cudnnConvAlgoSearch"`
	// Whether to do copies in the default stream or use separate streams.
	DoCopyInDefaultStream bool `json:"doCopyInDefaultStream" yaml:"doCopyInDefaultStream"`
	// Prefer NHWC operators over NCHW.
	PreferNHWC bool `json:"preferNHWC"            yaml:"preferNHWC"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CUDAOptions) isProviderOptions() {}

// ProviderOptions renders the options as ONNX Runtime key/value pairs.
func (o CUDAOptions) ProviderOptions() map[string]string {
	opts := map[string]string{
		"device_id":                 strconv.Itoa(o.DeviceID),
		"do_copy_in_default_stream": boolFlag(o.DoCopyInDefaultStream),
		"prefer_nhwc":               boolFlag(o.PreferNHWC),
	}
	if o.GPUMemLimit > 0 {
		opts["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	if o.ArenaExtendStrategy != "" {
		opts["arena_extend_strategy"] = o.ArenaExtendStrategy
	}
	if o.CudnnConvAlgoSearch != "" {
		opts["cudnn_conv_algo_search"] = o.CudnnConvAlgoSearch
	}
	return opts
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// CUDAProvider implements the ExecutionProvider interface.
type CUDAProvider struct {
	options CUDAOptions
}

// NewCUDAProvider creates a new CUDA provider.
func NewCUDAProvider(options CUDAOptions) *CUDAProvider {
	return &CUDAProvider{options: options}
}

// Backend returns CUDAProviderBackend.
func (p *CUDAProvider) Backend() ProviderBackend {
	return CUDAProviderBackend
}

// Options returns the CUDA options.
func (p *CUDAProvider) Options() ProviderOptions {
	return p.options
}

// Append enables CUDA on the session options.
func (p *CUDAProvider) Append(options *ort.SessionOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return errors.Wrap(err, "error creating CUDA options")
	}
	defer cuda.Destroy()

	if err := cuda.Update(p.options.ProviderOptions()); err != nil {
		return errors.Wrap(err, "error converting CUDA options")
	}
	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		return errors.Wrap(err, "error enabling CUDA")
	}
	return nil
}
