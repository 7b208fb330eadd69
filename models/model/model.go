// Package model - The detection model contract shared by all model families.
package model

import (
	"image"
	"image/color"

	"github.com/nvr-ai/go-yolo11/images"
	"github.com/nvr-ai/go-yolo11/inference"
	"github.com/nvr-ai/go-yolo11/inference/tensor"
	"github.com/nvr-ai/go-yolo11/models/model/preprocess"
	"github.com/nvr-ai/go-yolo11/models/postprocess"
)

// Family is the class-set family a model's labels index into.
type Family string

const (
	// ModelFamilyCOCO is the COCO model family.
	ModelFamilyCOCO Family = "coco"
	// ModelFamilyYOLO is the YOLO model family.
	ModelFamilyYOLO Family = "yolo"
	// ModelFamilyTF is the TensorFlow model family.
	ModelFamilyTF Family = "tf"
	// ModelFamilyVOC is the Pascal VOC model family.
	ModelFamilyVOC Family = "voc"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLO11 is the name of the YOLO11 detector.
	ModelNameYOLO11 Name = "yolo11"
)

// BaseModel is the base model for all models.
type BaseModel struct {
	Name   Name
	Family Family
	Header inference.ModelHeader
}

// Model turns images into input tensors and raw outputs into detections.
type Model interface {
	Options() BaseModel
	// PreProcess builds the input tensor and the transform back to img.
	PreProcess(img image.Image) (*preprocess.PreprocessingResult, error)
	// PostProcess decodes outputs (one per header output, in order) into
	// detections in source image pixels.
	PostProcess(outputs []tensor.View, frame images.Transform, config postprocess.NMSConfig) ([]postprocess.Detection, error)
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name   Name                  `json:"name"   yaml:"name"`
	Family Family                `json:"family" yaml:"family"`
	Header inference.ModelHeader `json:"header" yaml:"header"`
	// Classes names the class indices. Labels past the end stay unnamed.
	Classes []string `json:"classes" yaml:"classes"`
	// PadColor fills the letterbox border. Nil means images.DefaultPadColor.
	PadColor color.Color `json:"-" yaml:"-"`
	// OnlyScaleDown stops small images from being enlarged.
	OnlyScaleDown bool `json:"only_scale_down" yaml:"only_scale_down"`
	// Suppress replaces postprocess.Suppress when set.
	Suppress postprocess.SuppressFunc `json:"-" yaml:"-"`
}
