package yolo11

import (
	"image"

	"github.com/nvr-ai/go-yolo11/images"
	"github.com/nvr-ai/go-yolo11/inference/tensor"
	"github.com/nvr-ai/go-yolo11/models/model"
	"github.com/nvr-ai/go-yolo11/models/model/preprocess"
	"github.com/nvr-ai/go-yolo11/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Model is a YOLO11 detector bound to one model header.
type Model struct {
	base         model.BaseModel
	classes      []string
	strides      []int
	suppress     postprocess.SuppressFunc
	preprocessor *preprocess.Preprocessor
	logger       *zap.Logger
}

var _ model.Model = (*Model)(nil)

// NewModel builds a YOLO11 model from its header.
//
// Arguments:
//   - args: Header, class names and letterbox settings.
//   - logger: Debug logger; nil disables logging.
//
// Returns:
//   - *Model: The model.
//   - error: When the header has no outputs, a non-positive stride or an
//     invalid input size.
func NewModel(args model.NewModelArgs, logger *zap.Logger) (*Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	header := args.Header
	if len(header.Outputs) == 0 {
		return nil, errors.New("yolo11 header has no outputs")
	}

	strides := make([]int, len(header.Outputs))
	for i, o := range header.Outputs {
		if o.Stride <= 0 {
			return nil, errors.Errorf("output %q has stride %d", o.Name, o.Stride)
		}
		strides[i] = o.Stride
	}

	config := preprocess.GetYOLO11Config(header.InputSize)
	config.OnlyScaleDown = args.OnlyScaleDown
	if args.PadColor != nil {
		config.LetterboxColor = args.PadColor
	}
	if header.Layout == tensor.LayoutHWC {
		config.ChannelOrder = preprocess.ChannelOrderHWC
	}

	preprocessor, err := preprocess.NewPreprocessor(config, logger)
	if err != nil {
		return nil, errors.Wrap(err, "yolo11 preprocessor")
	}

	suppress := args.Suppress
	if suppress == nil {
		suppress = postprocess.Suppress
	}

	family := args.Family
	if family == "" {
		family = model.ModelFamilyYOLO
	}

	return &Model{
		base:         model.BaseModel{Name: model.ModelNameYOLO11, Family: family, Header: header},
		classes:      args.Classes,
		strides:      strides,
		suppress:     suppress,
		preprocessor: preprocessor,
		logger:       logger,
	}, nil
}

// Options returns the model's identity and header.
func (m *Model) Options() model.BaseModel {
	return m.base
}

// Strides returns the output strides in header order.
func (m *Model) Strides() []int {
	return m.strides
}

// PreProcess letterboxes img to the input size and scales it to [0, 1].
func (m *Model) PreProcess(img image.Image) (*preprocess.PreprocessingResult, error) {
	return m.preprocessor.Preprocess(img)
}

// PostProcess decodes every stride, drops labels outside config.Classes,
// suppresses overlaps and maps the kept boxes back into the source image. Thresholds outside [0, 1] yield no
// detections.
func (m *Model) PostProcess(outputs []tensor.View, frame images.Transform, config postprocess.NMSConfig) ([]postprocess.Detection, error) {
	if !config.Valid() {
		return []postprocess.Detection{}, nil
	}

	proposals, err := DecodeStrides(outputs, m.strides, config.ConfidenceThreshold)
	if err != nil {
		return nil, errors.Wrap(err, "yolo11 decode")
	}
	proposals = postprocess.FilterByClass(proposals, config.Classes)

	detections := postprocess.Remap(m.suppress(proposals, config), frame)
	if detections == nil {
		detections = []postprocess.Detection{}
	}
	for i := range detections {
		if l := detections[i].Label; l >= 0 && l < len(m.classes) {
			detections[i].ClassName = m.classes[l]
		}
	}

	m.logger.Debug("decoded detections",
		zap.Int("proposals", len(proposals)),
		zap.Int("detections", len(detections)))

	return detections, nil
}
