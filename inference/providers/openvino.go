// Package providers - OpenVINO execution provider.
package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Precision is the OpenVINO inference precision.
type Precision string

const (
	// PrecisionAccuracy keeps the model's original precision (OpenVINO's default).
	PrecisionAccuracy Precision = "ACCURACY"
	// PrecisionFP32 is 32-bit floating point precision.
	PrecisionFP32 Precision = "FP32"
	// PrecisionFP16 is 16-bit floating point precision.
	PrecisionFP16 Precision = "FP16"
)

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	DeviceID string `json:"deviceID"             yaml:"deviceID"`
	// Overrides the accelerator hardware type (CPU, GPU, NPU) at runtime.
	DeviceType string `json:"deviceType"           yaml:"deviceType"`
	// Empty keeps the device default.
	Precision Precision `json:"precision"            yaml:"precision"`
	// Overrides the accelerator default number of threads. Zero keeps the default.
	NumOfThreads int `json:"numOfThreads"         yaml:"numOfThreads"`
	// Overrides the accelerator default streams. Zero keeps the default.
	NumStreams int `json:"numStreams"           yaml:"numStreams"`
	// Rewrites dynamic shaped models to static shape at runtime.
	DisableDynamicShapes bool `json:"disableDynamicShapes" yaml:"disableDynamicShapes"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (OpenVINOOptions) isProviderOptions() {}

// ProviderOptions renders the options as ONNX Runtime key/value pairs,
// leaving out unset fields.
func (o OpenVINOOptions) ProviderOptions() map[string]string {
	opts := map[string]string{}
	if o.DeviceID != "" {
		opts["device_id"] = o.DeviceID
	}
	if o.DeviceType != "" {
		opts["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		opts["precision"] = string(o.Precision)
	}
	if o.NumOfThreads > 0 {
		opts["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		opts["num_streams"] = strconv.Itoa(o.NumStreams)
	}
	if o.DisableDynamicShapes {
		opts["disable_dynamic_shapes"] = "true"
	}
	return opts
}

// OpenVINOProvider implements the ExecutionProvider interface.
type OpenVINOProvider struct {
	options OpenVINOOptions
}

// NewOpenVINOProvider creates a new OpenVINO provider.
func NewOpenVINOProvider(options OpenVINOOptions) *OpenVINOProvider {
	return &OpenVINOProvider{options: options}
}

// Backend returns OpenVINOProviderBackend.
func (p *OpenVINOProvider) Backend() ProviderBackend {
	return OpenVINOProviderBackend
}

// Options returns the OpenVINO options.
func (p *OpenVINOProvider) Options() ProviderOptions {
	return p.options
}

// Append enables OpenVINO on the session options.
func (p *OpenVINOProvider) Append(options *ort.SessionOptions) error {
	if err := options.AppendExecutionProviderOpenVINO(p.options.ProviderOptions()); err != nil {
		return errors.Wrap(err, "error enabling OpenVINO")
	}
	return nil
}
