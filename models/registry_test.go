package models

import (
	"testing"

	"github.com/nvr-ai/go-yolo11/inference"
	"github.com/nvr-ai/go-yolo11/inference/tensor"
	"github.com/nvr-ai/go-yolo11/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header() inference.ModelHeader {
	return inference.ModelHeader{
		InputName: "images",
		InputSize: 640,
		Layout:    tensor.LayoutCHW,
		Outputs:   []inference.OutputSpec{{Name: "out0", Stride: 8}},
	}
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{Header: header()}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.ModelNameYOLO11, m.Options().Name)
	assert.Equal(t, model.ModelFamilyYOLO, m.Options().Family)
	assert.Equal(t, 640, m.Options().Header.InputSize)
}

func TestNewModelUnsupported(t *testing.T) {
	_, err := NewModel(model.NewModelArgs{Name: "yolov4", Header: header()}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedModel)

	_, err = NewModel(model.NewModelArgs{Family: "imagenet", Header: header()}, nil)
	assert.Error(t, err)
}

func TestClassSets(t *testing.T) {
	yolo, err := ClassSet(model.ModelFamilyYOLO)
	require.NoError(t, err)

	names := yolo.Names()
	require.Len(t, names, 80)
	assert.Equal(t, "person", names[0])
	assert.Equal(t, "toothbrush", names[79])

	assert.Equal(t, "person", LookupName(model.ModelFamilyCOCO, 1))
	assert.Equal(t, "", LookupName(model.ModelFamilyVOC, 21))
}

func TestClassManagerMapClass(t *testing.T) {
	mgr := NewClassManager(&COCOClasses, &YOLOClasses, &PascalVOCClasses)

	// YOLO "car" (2) is COCO 3.
	c, err := mgr.MapClass(model.ModelFamilyYOLO, 2, model.ModelFamilyCOCO)
	require.NoError(t, err)
	assert.Equal(t, OutputClass{Index: 3, Name: "car"}, c)

	idx, err := mgr.GetIndex(model.ModelFamilyYOLO, "dog")
	require.NoError(t, err)
	assert.Equal(t, 16, idx)

	// "car" exists in VOC, "truck" does not.
	_, err = mgr.MapClass(model.ModelFamilyYOLO, 7, model.ModelFamilyVOC)
	assert.Error(t, err)

	_, err = mgr.GetName(model.ModelFamilyTF, 0)
	assert.Error(t, err)
}
