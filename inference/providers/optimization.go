// Package providers - ONNX Runtime graph optimisation and threading settings.
package providers

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// GraphOptimization names an ONNX Runtime graph optimisation level.
type GraphOptimization string

// GraphOptimization values, from least to most aggressive.
const (
	GraphOptimizationDisabled GraphOptimization = "disabled"
	GraphOptimizationBasic    GraphOptimization = "basic"
	GraphOptimizationExtended GraphOptimization = "extended"
	GraphOptimizationAll      GraphOptimization = "all"
)

// Level converts the name into the ONNX Runtime enum.
func (g GraphOptimization) Level() (ort.GraphOptimizationLevel, error) {
	switch GraphOptimization(strings.ToLower(string(g))) {
	case GraphOptimizationDisabled:
		return ort.GraphOptimizationLevelDisableAll, nil
	case GraphOptimizationBasic:
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "", GraphOptimizationExtended:
		return ort.GraphOptimizationLevelEnableExtended, nil
	case GraphOptimizationAll:
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, errors.Errorf("unknown graph optimization level %q", g)
	}
}

// ExecutionMode names an ONNX Runtime execution mode.
type ExecutionMode string

// ExecutionMode values.
const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// Mode converts the name into the ONNX Runtime enum.
func (m ExecutionMode) Mode() (ort.ExecutionMode, error) {
	switch ExecutionMode(strings.ToLower(string(m))) {
	case "", ExecutionModeSequential:
		return ort.ExecutionModeSequential, nil
	case ExecutionModeParallel:
		return ort.ExecutionModeParallel, nil
	default:
		return 0, errors.Errorf("unknown execution mode %q", m)
	}
}

// OptimizationConfig contains the ONNX Runtime optimisation settings.
type OptimizationConfig struct {
	// GraphOptimization controls the level of graph optimization.
	GraphOptimization GraphOptimization `json:"graph_optimization" yaml:"graph_optimization"`

	// ExecutionMode controls sequential vs parallel execution of independent nodes.
	ExecutionMode ExecutionMode `json:"execution_mode" yaml:"execution_mode"`

	// IntraOpNumThreads sets threads for parallelizing ops. Zero lets ONNX Runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`

	// EnableMemoryPattern enables memory pattern optimization.
	EnableMemoryPattern bool `json:"enable_memory_pattern" yaml:"enable_memory_pattern"`

	// EnableCPUMemArena enables the CPU memory arena.
	EnableCPUMemArena bool `json:"enable_cpu_mem_arena" yaml:"enable_cpu_mem_arena"`
}

// DefaultOptimizationConfig returns settings suited to a single detector on
// an edge device: extended graph rewrites and half the cores for kernels.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		GraphOptimization:   GraphOptimizationExtended,
		ExecutionMode:       ExecutionModeSequential,
		IntraOpNumThreads:   max(1, runtime.NumCPU()/2),
		InterOpNumThreads:   1,
		EnableMemoryPattern: true,
		EnableCPUMemArena:   true,
	}
}

// Validate checks the enum names and thread counts.
func (c OptimizationConfig) Validate() error {
	if _, err := c.GraphOptimization.Level(); err != nil {
		return err
	}
	if _, err := c.ExecutionMode.Mode(); err != nil {
		return err
	}
	if c.IntraOpNumThreads < 0 || c.InterOpNumThreads < 0 {
		return errors.Errorf("thread counts must not be negative, got intra=%d inter=%d",
			c.IntraOpNumThreads, c.InterOpNumThreads)
	}
	return nil
}

// apply copies the settings onto ONNX Runtime session options.
func (c OptimizationConfig) apply(options *ort.SessionOptions) error {
	level, err := c.GraphOptimization.Level()
	if err != nil {
		return err
	}
	mode, err := c.ExecutionMode.Mode()
	if err != nil {
		return err
	}

	if err := options.SetGraphOptimizationLevel(level); err != nil {
		return errors.Wrap(err, "set graph optimization level")
	}
	if err := options.SetExecutionMode(mode); err != nil {
		return errors.Wrap(err, "set execution mode")
	}
	if err := options.SetIntraOpNumThreads(c.IntraOpNumThreads); err != nil {
		return errors.Wrap(err, "set intra-op threads")
	}
	if err := options.SetInterOpNumThreads(c.InterOpNumThreads); err != nil {
		return errors.Wrap(err, "set inter-op threads")
	}
	if err := options.SetMemPattern(c.EnableMemoryPattern); err != nil {
		return errors.Wrap(err, "set memory pattern")
	}
	if err := options.SetCpuMemArena(c.EnableCPUMemArena); err != nil {
		return errors.Wrap(err, "set cpu memory arena")
	}
	return nil
}
