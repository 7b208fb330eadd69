package inference

import (
	"sync"

	"github.com/nvr-ai/go-yolo11/inference/providers"
	"github.com/nvr-ai/go-yolo11/inference/tensor"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// ORTEngine runs a model with ONNX Runtime.
type ORTEngine struct {
	mu      sync.RWMutex
	session *ort.DynamicAdvancedSession
	header  ModelHeader
	logger  *zap.Logger
}

var _ EngineFactory = NewORTEngine

// NewORTEngine creates an ONNX Runtime session from the model's in-memory
// weights, then wipes them from model.
//
// Arguments:
//   - model: The loaded model.
//   - cfg: Execution provider, threading and library settings.
//   - logger: Destination for diagnostics; nil disables logging.
//
// Returns:
//   - Engine: The ready engine.
//   - error: An error if the runtime or session cannot be created.
func NewORTEngine(model *Model, cfg providers.Config, logger *zap.Logger) (Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == nil || len(model.Weights) == 0 {
		return nil, errors.New("model has no weights")
	}

	if err := providers.InitializeEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	options, err := providers.NewSessionOptions(cfg)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		model.Weights,
		[]string{model.Header.InputName},
		model.Header.OutputNames(),
		options,
	)
	model.Release()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	logger.Info("created onnxruntime session",
		zap.String("backend", string(cfg.Backend)),
		zap.Int("intra_op_threads", cfg.Optimization.IntraOpNumThreads))

	return &ORTEngine{session: session, header: model.Header, logger: logger}, nil
}

// Extractor implements Engine.
func (e *ORTEngine) Extractor() (Extractor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.session == nil {
		return nil, errors.New("onnxruntime session is closed")
	}
	return &ortExtractor{engine: e, inputs: map[string]ort.Value{}}, nil
}

// Close implements Engine.
func (e *ORTEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return errors.Wrap(err, "error destroying ORT session")
}

// ortExtractor owns the input and output values of one Run.
type ortExtractor struct {
	engine  *ORTEngine
	inputs  map[string]ort.Value
	outputs map[string]ort.Value
}

func (x *ortExtractor) Input(name string, data []float32, shape []int64) error {
	if name != x.engine.header.InputName {
		return errors.Errorf("unknown input %q", name)
	}

	t, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return errors.Wrapf(err, "create input %q", name)
	}
	if old, ok := x.inputs[name]; ok {
		old.Destroy()
	}
	x.inputs[name] = t
	x.resetOutputs()
	return nil
}

func (x *ortExtractor) Extract(name string) (tensor.View, error) {
	if x.outputs == nil {
		if err := x.run(); err != nil {
			return nil, err
		}
	}

	v, ok := x.outputs[name]
	if !ok {
		return nil, errors.Errorf("unknown output %q", name)
	}
	t, ok := v.(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("output %q is not a float32 tensor", name)
	}
	return tensor.FromShape(t.GetData(), t.GetShape(), x.engine.header.Layout)
}

func (x *ortExtractor) run() error {
	in, ok := x.inputs[x.engine.header.InputName]
	if !ok {
		return errors.Errorf("input %q not set", x.engine.header.InputName)
	}

	names := x.engine.header.OutputNames()
	outputs := make([]ort.Value, len(names))

	x.engine.mu.RLock()
	defer x.engine.mu.RUnlock()
	if x.engine.session == nil {
		return errors.New("onnxruntime session is closed")
	}
	if err := x.engine.session.Run([]ort.Value{in}, outputs); err != nil {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
		return errors.Wrap(err, "onnxruntime run")
	}

	x.outputs = make(map[string]ort.Value, len(names))
	for i, n := range names {
		x.outputs[n] = outputs[i]
	}
	return nil
}

func (x *ortExtractor) resetOutputs() {
	for _, o := range x.outputs {
		o.Destroy()
	}
	x.outputs = nil
}

func (x *ortExtractor) Close() error {
	x.resetOutputs()
	for _, in := range x.inputs {
		in.Destroy()
	}
	x.inputs = nil
	return nil
}
