// Package providers - CPU based execution provider.
package providers

import ort "github.com/yalue/onnxruntime_go"

// CPUOptions is empty; CPU threading lives in OptimizationConfig.
type CPUOptions struct{}

func (CPUOptions) isProviderOptions() {}

// CPUProvider is the always-available ONNX Runtime CPU provider.
type CPUProvider struct{}

// NewCPUProvider creates a new CPU provider.
func NewCPUProvider() *CPUProvider {
	return &CPUProvider{}
}

// Backend returns CPUProviderBackend.
func (p *CPUProvider) Backend() ProviderBackend {
	return CPUProviderBackend
}

// Options returns empty CPU options.
func (p *CPUProvider) Options() ProviderOptions {
	return CPUOptions{}
}

// Append is a no-op: ONNX Runtime always falls back to the CPU.
func (p *CPUProvider) Append(*ort.SessionOptions) error {
	return nil
}
