package models

import (
	"github.com/nvr-ai/go-yolo11/models/model"
	"github.com/nvr-ai/go-yolo11/models/yolo11"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrUnsupportedModel is returned for model names the registry does not know.
var ErrUnsupportedModel = errors.New("unsupported model")

// ClassSet returns the registered class set of a family.
func ClassSet(family model.Family) (*OutputClassSet, error) {
	for i := range AllClassSets {
		if AllClassSets[i].Style == family {
			return &AllClassSets[i], nil
		}
	}
	return nil, errors.Errorf("class family %q not registered", family)
}

// NewModel creates a new detection model instance based on the specified model type.
//
// An empty name selects YOLO11. When args.Classes is empty the names of the
// model family's class set are used.
//
// Arguments:
//   - args: The model name, header and class settings.
//   - logger: Debug logger; nil disables logging.
//
// Returns:
//   - model.Model: A fully configured model instance implementing the Model interface.
//   - error: ErrUnsupportedModel for unknown names, or the model's own
//     validation error.
//
// Example:
//
// ```go
//
//	detectionModel, err := NewModel(model.NewModelArgs{
//	    Name:   model.ModelNameYOLO11,
//	    Header: header,
//	}, logger)
//
// ```
func NewModel(args model.NewModelArgs, logger *zap.Logger) (model.Model, error) {
	switch args.Name {
	case model.ModelNameYOLO11, "":
		if args.Family == "" {
			args.Family = model.ModelFamilyYOLO
		}
		if len(args.Classes) == 0 {
			set, err := ClassSet(args.Family)
			if err != nil {
				return nil, err
			}
			args.Classes = set.Names()
		}
		m, err := yolo11.NewModel(args, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedModel, "%q", args.Name)
	}
}
