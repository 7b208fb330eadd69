// Package detector - Loads an obfuscated YOLO11 model and runs detection on images.
package detector

import (
	"context"
	"image"
	"sync"

	"github.com/nvr-ai/go-yolo11/images"
	"github.com/nvr-ai/go-yolo11/images/cv"
	"github.com/nvr-ai/go-yolo11/inference"
	"github.com/nvr-ai/go-yolo11/inference/tensor"
	"github.com/nvr-ai/go-yolo11/models"
	"github.com/nvr-ai/go-yolo11/models/model"
	"github.com/nvr-ai/go-yolo11/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotLoaded is returned by Detect before a successful Load or after Close.
var ErrNotLoaded = errors.New("detector not loaded")

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithEngineFactory replaces the ONNX Runtime engine.
func WithEngineFactory(factory inference.EngineFactory) Option {
	return func(d *Detector) {
		if factory != nil {
			d.factory = factory
		}
	}
}

// Detector is safe for concurrent Detect calls once loaded. Load and Close
// are exclusive.
type Detector struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	factory inference.EngineFactory

	engine inference.Engine
	model  model.Model
	header inference.ModelHeader
	nms    postprocess.NMSConfig
	filter []int
}

// New returns an unloaded detector.
func New(opts ...Option) *Detector {
	d := &Detector{
		logger:  zap.NewNop(),
		factory: inference.NewORTEngine,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load reads the model files, builds the engine and swaps them in. On failure
// the detector keeps its previous state, so Load can simply be retried.
//
// Arguments:
//   - ctx: Checked before any work starts.
//   - cfg: Model files, thresholds and provider settings.
//
// Returns:
//   - error: A wrapped configuration, file, header or engine error.
func (d *Detector) Load(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	pad, err := images.ParseColor(cfg.PadColor)
	if err != nil {
		return err
	}

	classNames := cfg.ClassNames
	if len(classNames) == 0 {
		set, err := models.ClassSet(model.ModelFamilyYOLO)
		if err != nil {
			return err
		}
		classNames = set.Names()
	}

	filter, err := classFilter(cfg.Classes, classNames)
	if err != nil {
		return err
	}

	loaded, err := inference.LoadModel(cfg.Model, d.logger)
	if err != nil {
		return err
	}
	defer loaded.Release()

	args := model.NewModelArgs{
		Name:          model.ModelNameYOLO11,
		Family:        model.ModelFamilyYOLO,
		Header:        loaded.Header,
		Classes:       classNames,
		PadColor:      pad,
		OnlyScaleDown: cfg.OnlyScaleDown,
	}
	if cfg.NMSBackend == NMSBackendOpenCV {
		args.Suppress = cv.NMSBoxes
	}

	m, err := models.NewModel(args, d.logger)
	if err != nil {
		return errors.Wrap(err, "build model")
	}

	engine, err := d.factory(loaded, cfg.Provider, d.logger)
	if err != nil {
		return errors.Wrap(err, "build engine")
	}

	d.mu.Lock()
	old := d.engine
	d.engine, d.model, d.header = engine, m, loaded.Header
	d.nms, d.filter = cfg.NMS, filter
	d.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			d.logger.Warn("failed to close previous engine", zap.Error(err))
		}
	}

	d.logger.Info("detector loaded",
		zap.String("backend", string(cfg.Provider.Backend)),
		zap.String("nms_backend", string(cfg.NMSBackend)),
		zap.Int("classes", len(classNames)),
		zap.Int("filter", len(filter)))
	return nil
}

// classFilter turns class names into labels. Nil keeps everything.
func classFilter(keep, names []string) ([]int, error) {
	if len(keep) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	filter := make([]int, 0, len(keep))
	for _, n := range keep {
		i, ok := index[n]
		if !ok {
			return nil, errors.Errorf("unknown class %q in filter", n)
		}
		filter = append(filter, i)
	}
	return filter, nil
}

// Loaded reports whether Detect can run.
func (d *Detector) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.engine != nil
}

// Header returns the loaded model header.
func (d *Detector) Header() (inference.ModelHeader, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.engine == nil {
		return inference.ModelHeader{}, ErrNotLoaded
	}
	return d.header, nil
}

// Detect runs the full pipeline on img: letterbox, inference, decode,
// suppression and remap into img's pixel coordinates.
//
// Arguments:
//   - ctx: Checked before inference.
//   - img: The source image.
//   - conf: Minimum class score, in [0, 1].
//   - iou: Suppression overlap threshold, in [0, 1].
//
// Returns:
//   - []postprocess.Detection: Detections in acceptance order. Empty, with a
//     nil error, for an empty image or thresholds outside [0, 1].
//   - error: ErrNotLoaded, a context error or a wrapped engine error.
func (d *Detector) Detect(ctx context.Context, img image.Image, conf, iou float32) ([]postprocess.Detection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.engine == nil {
		return nil, ErrNotLoaded
	}

	config := d.nms
	config.ConfidenceThreshold, config.IoUThreshold = conf, iou
	config.Classes = d.filter
	if !config.Valid() || img == nil || img.Bounds().Empty() {
		return []postprocess.Detection{}, nil
	}

	input, err := d.model.PreProcess(img)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputs, closeExtractor, err := d.infer(input.Data, input.Shape)
	if err != nil {
		return nil, err
	}
	defer closeExtractor()

	dets, err := d.model.PostProcess(outputs, input.Frame, config)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("detected",
		zap.Int("width", input.Frame.SrcWidth),
		zap.Int("height", input.Frame.SrcHeight),
		zap.Int("detections", len(dets)))

	return dets, nil
}

// DetectImage decodes an encoded image and runs Detect on it.
func (d *Detector) DetectImage(ctx context.Context, img *images.Image, conf, iou float32) ([]postprocess.Detection, error) {
	decoded, err := img.Decode()
	if errors.Is(err, images.ErrEmptyImage) {
		return []postprocess.Detection{}, nil
	}
	if err != nil {
		return nil, err
	}
	return d.Detect(ctx, decoded, conf, iou)
}

// infer runs one inference in a fresh extractor. The views stay valid until
// the returned close func runs.
func (d *Detector) infer(data []float32, shape []int64) ([]tensor.View, func(), error) {
	x, err := d.engine.Extractor()
	if err != nil {
		return nil, nil, errors.Wrap(err, "create extractor")
	}
	closeExtractor := func() {
		if err := x.Close(); err != nil {
			d.logger.Warn("failed to close extractor", zap.Error(err))
		}
	}

	if err := x.Input(d.header.InputName, data, shape); err != nil {
		closeExtractor()
		return nil, nil, errors.Wrap(err, "set input")
	}

	views := make([]tensor.View, len(d.header.Outputs))
	for i, o := range d.header.Outputs {
		v, err := x.Extract(o.Name)
		if err != nil {
			closeExtractor()
			return nil, nil, errors.Wrapf(err, "extract %s", o.Name)
		}
		views[i] = v
	}
	return views, closeExtractor, nil
}

// Close releases the engine. Detect returns ErrNotLoaded afterwards.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.engine == nil {
		return nil
	}
	err := d.engine.Close()
	d.engine, d.model, d.filter = nil, nil, nil
	return errors.Wrap(err, "close engine")
}
