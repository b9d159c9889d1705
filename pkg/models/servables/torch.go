package servables

import (
	"fmt"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/inspect/torch"
)

type torchOption struct {
	inputKinds   []argtype.Kind
	outputKinds  []argtype.Kind
	torchVersion string
}

type TorchOption func(*torchOption) *torchOption

// WithTensorKinds sets the element kind of each input and output
// tensor. The default is float throughout.
func WithTensorKinds(inputs []argtype.Kind, outputs []argtype.Kind) TorchOption {
	return func(o *torchOption) *torchOption {
		o.inputKinds = inputs
		o.outputKinds = outputs
		return o
	}
}

// WithTorchVersion pins the torch requirement.
func WithTorchVersion(version string) TorchOption {
	return func(o *torchOption) *torchOption {
		o.torchVersion = version
		return o
	}
}

// NewTorch describes a PyTorch model checkpoint.
//
// The checkpoint is probed, not loaded, so tensor shapes cannot be
// inferred and must be given: one shape per input and output tensor,
// -1 for unbound dimensions.
func NewTorch(path string, inputShapes [][]int, outputShapes [][]int, options ...TorchOption) (*Builder, error) {
	opt := &torchOption{}
	for _, o := range options {
		opt = o(opt)
	}

	ckpt, err := torch.Probe(path)
	if err != nil {
		return nil, err
	}

	b, err := newBuilder("torch.TorchServable", "Torch Model")
	if err != nil {
		return nil, err
	}
	b.AddFileAs("model", path)

	input, err := layerSpec(inputShapes, opt.inputKinds)
	if err != nil {
		return nil, err
	}
	if err := b.SetInputs(input); err != nil {
		return nil, err
	}
	output, err := layerSpec(outputShapes, opt.outputKinds)
	if err != nil {
		return nil, err
	}
	if err := b.SetOutputs(output); err != nil {
		return nil, err
	}

	details := b.runDetails()
	details["method_name"] = "__call__"

	s := b.servable()
	s.ModelType = "Deep NN"
	b.setOption("serialization_format", ckpt.Container)
	if ckpt.Version != "" {
		b.setOption("serialization_format_version", ckpt.Version)
	}

	if opt.torchVersion != "" {
		if err := b.AddRequirement("torch", opt.torchVersion); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// layerSpec renders one tensor as an ndarray block and several as a
// tuple of tensors.
func layerSpec(shapes [][]int, kinds []argtype.Kind) (argtype.ArgumentType, error) {
	kindAt := func(i int) argtype.Kind {
		if i < len(kinds) {
			return kinds[i]
		}
		return argtype.Float
	}

	if len(shapes) == 1 {
		return kindedTensorOf("Tensor", shapes[0], kindAt(0))
	}

	elements := make([]argtype.ArgumentType, len(shapes))
	for i, shape := range shapes {
		t, err := kindedTensorOf("Tensor", shape, kindAt(i))
		if err != nil {
			return argtype.ArgumentType{}, err
		}
		elements[i] = t
	}
	return argtype.TupleOf("Tuple of tensors", elements...)
}

func kindedTensorOf(description string, shape []int, kind argtype.Kind) (argtype.ArgumentType, error) {
	dims := make([]argtype.Dim, len(shape))
	for i, d := range shape {
		if d < 0 {
			dims[i] = argtype.Unbound()
			continue
		}
		// Fixed(0) would read back as unbound
		if d == 0 {
			return argtype.ArgumentType{}, fmt.Errorf(
				"%w: shape has a zero-extent dimension", ErrBadServable)
		}
		dims[i] = argtype.Fixed(d)
	}
	return argtype.NDArrayOf(
		description,
		argtype.NewShape(dims...),
		&argtype.ArgumentType{Type: kind},
	)
}
