package inference

import (
	"io"

	"github.com/nvr-ai/go-yolo11/inference/obfuscated"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Model is a loaded, de-obfuscated model: its header and ONNX weights.
type Model struct {
	Header  ModelHeader
	Weights []byte
}

// Release wipes the plaintext weights. Engines call it once the runtime
// holds its own copy.
func (m *Model) Release() {
	clear(m.Weights)
	m.Weights = nil
}

// LoadModelArgs locates a model's two files and their keys.
type LoadModelArgs struct {
	// ParamPath is the header file.
	ParamPath string `json:"param_path" yaml:"param_path"`
	// BinPath is the ONNX weights file.
	BinPath string `json:"bin_path" yaml:"bin_path"`
	// ParamKey and BinKey are independent XOR keys; 0 means plaintext.
	ParamKey byte `json:"param_key" yaml:"param_key"`
	BinKey   byte `json:"bin_key"   yaml:"bin_key"`
}

// LoadModel reads and de-obfuscates a model's header and weights. The
// plaintext weights only ever exist in memory.
//
// Arguments:
//   - args: File paths and keys.
//   - logger: Destination for load diagnostics; nil disables logging.
//
// Returns:
//   - *Model: The header and weights.
//   - error: A wrapped open, read or header error.
func LoadModel(args LoadModelArgs, logger *zap.Logger) (*Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	param, err := obfuscated.Open(args.ParamPath, args.ParamKey, obfuscated.WithPreload(), obfuscated.WithLogger(logger))
	defer param.Close()
	if err != nil {
		return nil, errors.Wrap(err, "load param")
	}

	header, err := ReadHeader(param)
	if err != nil {
		return nil, errors.Wrapf(err, "load param %s", args.ParamPath)
	}

	weights, err := readWeights(args.BinPath, args.BinKey, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded model",
		zap.String("param", args.ParamPath),
		zap.String("bin", args.BinPath),
		zap.String("input", header.InputName),
		zap.Int("input_size", header.InputSize),
		zap.Int("outputs", len(header.Outputs)),
		zap.Int("weights_bytes", len(weights)))

	return &Model{Header: header, Weights: weights}, nil
}

func readWeights(path string, key byte, logger *zap.Logger) ([]byte, error) {
	bin, err := obfuscated.Open(path, key, obfuscated.WithLogger(logger))
	defer bin.Close()
	if err != nil {
		return nil, errors.Wrap(err, "load bin")
	}

	weights, err := io.ReadAll(bin)
	if err != nil {
		return nil, errors.Wrapf(err, "load bin %s", path)
	}
	if len(weights) == 0 {
		return nil, errors.Errorf("load bin %s: empty file", path)
	}
	return weights, nil
}
