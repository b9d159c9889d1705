package servables

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/inspect/keras"
)

type kerasOption struct {
	architecturePath string
	inputShape       []int
	outputShape      []int
	kerasVersion     string
	h5pyVersion      string
}

type KerasOption func(*kerasOption) *kerasOption

// WithArchitecture names the to_json() architecture file to read shapes
// from. Without it, a "model.json" beside the weights file is tried.
func WithArchitecture(path string) KerasOption {
	return func(o *kerasOption) *kerasOption {
		o.architecturePath = path
		return o
	}
}

// WithShapes declares the input and output shapes directly, for models
// whose architecture file is unavailable. Use -1 for unbound dimensions.
func WithShapes(input []int, output []int) KerasOption {
	return func(o *kerasOption) *kerasOption {
		o.inputShape = input
		o.outputShape = output
		return o
	}
}

// WithKerasVersion pins the keras requirement when no architecture file
// records it.
func WithKerasVersion(version string) KerasOption {
	return func(o *kerasOption) *kerasOption {
		o.kerasVersion = version
		return o
	}
}

// WithH5pyVersion pins the h5py requirement the weight file reader
// needs.
func WithH5pyVersion(version string) KerasOption {
	return func(o *kerasOption) *kerasOption {
		o.h5pyVersion = version
		return o
	}
}

// NewKeras describes a Keras model saved as an HDF5 weights file.
//
// Shapes come from the architecture JSON or from WithShapes; the model
// itself is never loaded. outputNames, when given, name the output
// classes for the serving shim.
func NewKeras(weightsPath string, outputNames []string, options ...KerasOption) (*Builder, error) {
	opt := &kerasOption{}
	for _, o := range options {
		opt = o(opt)
	}

	if err := keras.CheckSignature(weightsPath); err != nil {
		return nil, err
	}

	b, err := newBuilder("keras.KerasServable", "Keras Model")
	if err != nil {
		return nil, err
	}
	b.AddFileAs("model", weightsPath)

	inputShape, outputShape := opt.inputShape, opt.outputShape
	kerasVersion := opt.kerasVersion

	if inputShape == nil || outputShape == nil {
		archPath := opt.architecturePath
		if archPath == "" {
			archPath = filepath.Join(filepath.Dir(weightsPath), "model.json")
		}

		arch, err := keras.ReadArchitectureFile(archPath)
		if errors.Is(err, fs.ErrNotExist) && opt.architecturePath == "" {
			return nil, fmt.Errorf(
				"%w: no architecture beside %s; save one with to_json() or give the shapes directly",
				ErrBadServable, weightsPath)
		}
		if err != nil {
			return nil, err
		}

		if s, ok := arch.InputShape(); ok && inputShape == nil {
			inputShape = s
		}
		if s, ok := arch.OutputShape(); ok && outputShape == nil {
			outputShape = s
		}
		if inputShape == nil || outputShape == nil {
			return nil, fmt.Errorf("%w: %s does not declare layer shapes", ErrBadServable, archPath)
		}

		if kerasVersion == "" {
			kerasVersion = arch.KerasVersion
		}
		s := b.servable()
		s.ModelSummary = arch.Summary()
		b.AddFile(archPath)
	}

	input, err := tensorOf("Tensor", inputShape)
	if err != nil {
		return nil, err
	}
	if err := b.SetInputs(input); err != nil {
		return nil, err
	}
	output, err := tensorOf("Tensor", outputShape)
	if err != nil {
		return nil, err
	}
	if err := b.SetOutputs(output); err != nil {
		return nil, err
	}

	details := b.runDetails()
	details["method_name"] = "predict"
	if outputNames != nil {
		details["classes"] = outputNames
	}

	b.servable().ModelType = "Deep NN"

	if kerasVersion != "" {
		if err := b.AddRequirement("keras", kerasVersion); err != nil {
			return nil, err
		}
	}
	if opt.h5pyVersion != "" {
		if err := b.AddRequirement("h5py", opt.h5pyVersion); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// tensorOf renders an ndarray block of floats. -1 dimensions become
// unbound.
func tensorOf(description string, shape []int) (argtype.ArgumentType, error) {
	return kindedTensorOf(description, shape, argtype.Float)
}
