package detector

import (
	"os"

	"github.com/nvr-ai/go-yolo11/images"
	"github.com/nvr-ai/go-yolo11/inference"
	"github.com/nvr-ai/go-yolo11/inference/providers"
	"github.com/nvr-ai/go-yolo11/models/postprocess"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// NMSBackend selects the suppression implementation.
type NMSBackend string

const (
	// NMSBackendGo is the pure Go greedy/parallel NMS.
	NMSBackendGo NMSBackend = "go"
	// NMSBackendOpenCV is OpenCV's NMSBoxes.
	NMSBackendOpenCV NMSBackend = "opencv"
)

// Config is everything Load needs.
type Config struct {
	// Model locates the obfuscated header and weights files.
	Model inference.LoadModelArgs `json:"model" yaml:"model"`
	// PadColor is the letterbox border as a hex string. Empty means #727272.
	PadColor string `json:"pad_color" yaml:"pad_color"`
	// OnlyScaleDown pads small images instead of enlarging them.
	OnlyScaleDown bool `json:"only_scale_down" yaml:"only_scale_down"`
	// NMS holds the default thresholds and suppression policy.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
	// NMSBackend is "go" (default) or "opencv".
	NMSBackend NMSBackend `json:"nms_backend" yaml:"nms_backend"`
	// ClassNames overrides the COCO names for the model's labels.
	ClassNames []string `json:"class_names" yaml:"class_names"`
	// Classes keeps only detections with these class names. Empty keeps all.
	Classes []string `json:"classes" yaml:"classes"`
	// Provider configures the ONNX Runtime session.
	Provider providers.Config `json:"provider" yaml:"provider"`
}

// DefaultConfig returns a configuration with YOLO11 thresholds on CPU. The
// model paths still need to be set.
func DefaultConfig() Config {
	return Config{
		NMS:        postprocess.DefaultNMSConfig(),
		NMSBackend: NMSBackendGo,
		Provider:   providers.DefaultConfig(),
	}
}

// Validate checks paths, thresholds, colour and provider settings.
func (c Config) Validate() error {
	if c.Model.ParamPath == "" || c.Model.BinPath == "" {
		return errors.New("model param_path and bin_path are required")
	}
	if !c.NMS.Valid() {
		return errors.Errorf("nms thresholds out of range: confidence %v, iou %v",
			c.NMS.ConfidenceThreshold, c.NMS.IoUThreshold)
	}
	switch c.NMSBackend {
	case "", NMSBackendGo, NMSBackendOpenCV:
	default:
		return errors.Errorf("unknown nms backend %q", c.NMSBackend)
	}
	if _, err := images.ParseColor(c.PadColor); err != nil {
		return err
	}
	return errors.Wrap(c.Provider.Validate(), "provider")
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
//
// @example
//
//	cfg, err := LoadConfig("detector.yaml")
//	err = d.Load(ctx, cfg)
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}
