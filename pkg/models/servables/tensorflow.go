package servables

import (
	"fmt"
	"sort"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	apiservables "github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/servables"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/inspect/savedmodel"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/pointer"
)

// NewTensorFlow describes a model exported with tf.saved_model.
//
// Every signature of the serve-tagged MetaGraph becomes a method; the
// default serving signature becomes "run". The whole export directory
// ships with the servable.
func NewTensorFlow(exportDir string) (*Builder, error) {
	model, err := savedmodel.ReadDir(exportDir)
	if err != nil {
		return nil, err
	}
	graph, ok := model.Serve()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no serve-tagged meta graph", ErrBadServable, exportDir)
	}

	b, err := newBuilder("tensorflow.TensorFlowServable", "TensorFlow Model")
	if err != nil {
		return nil, err
	}

	for name, sig := range graph.Signatures {
		input, inputNodes, err := signatureArgs(sig.Inputs)
		if err != nil {
			return nil, err
		}
		output, outputNodes, err := signatureArgs(sig.Outputs)
		if err != nil {
			return nil, err
		}

		// DLHub's default method is "run" where TensorFlow says
		// "serving_default"
		if name == savedmodel.DefaultSignature {
			name = "run"
		}

		b.servable().Methods[name] = apiservables.Method{
			Input:  pointer.Ref(input),
			Output: pointer.Ref(output),
			MethodDetails: map[string]any{
				"input_nodes":  inputNodes,
				"output_nodes": outputNodes,
			},
		}
	}

	if m := b.servable().Methods["run"]; m.Input == nil {
		return nil, fmt.Errorf(
			"%w: %s exports no default serving signature, so there is no default servable",
			ErrBadServable, exportDir)
	}

	if graph.TensorFlowVersion != "" {
		if err := b.AddRequirement("tensorflow", graph.TensorFlowVersion); err != nil {
			return nil, err
		}
	}
	if err := b.AddDirectory(exportDir, true); err != nil {
		return nil, err
	}

	return b, nil
}

// signatureArgs renders a signature side (inputs or outputs) as one
// argument block. A single tensor stands alone; several become a tuple
// ordered by description so the rendering is deterministic.
func signatureArgs(args map[string]savedmodel.Tensor) (argtype.ArgumentType, []string, error) {
	type arg struct {
		block argtype.ArgumentType
		node  string
	}

	blocks := make([]arg, 0, len(args))
	for name, tensor := range args {
		block, err := tensorBlock(name, tensor)
		if err != nil {
			return argtype.ArgumentType{}, nil, err
		}
		blocks = append(blocks, arg{block: block, node: tensor.Name})
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].block.Description < blocks[j].block.Description
	})

	nodes := make([]string, len(blocks))
	for i, a := range blocks {
		nodes[i] = a.node
	}

	if len(blocks) == 1 {
		return blocks[0].block, nodes, nil
	}

	elements := make([]argtype.ArgumentType, len(blocks))
	for i, a := range blocks {
		elements[i] = a.block
	}
	tuple, err := argtype.TupleOf("Arguments", elements...)
	if err != nil {
		return argtype.ArgumentType{}, nil, err
	}
	return tuple, nodes, nil
}

func tensorBlock(name string, tensor savedmodel.Tensor) (argtype.ArgumentType, error) {
	kind, err := tensor.DType.Kind()
	if err != nil {
		return argtype.ArgumentType{}, err
	}

	// rank 0 means the argument is a plain scalar, not a tensor
	if len(tensor.Shape) == 0 && !tensor.UnknownRank {
		return argtype.Scalar(kind, name)
	}

	dims := make([]argtype.Dim, len(tensor.Shape))
	for i, d := range tensor.Shape {
		if d < 0 {
			dims[i] = argtype.Unbound()
			continue
		}
		// Fixed(0) would read back as unbound
		if d == 0 {
			return argtype.ArgumentType{}, fmt.Errorf(
				"%w: tensor %s has a zero-extent dimension", ErrBadServable, name)
		}
		dims[i] = argtype.Fixed(int(d))
	}
	return argtype.NDArrayOf(
		name,
		argtype.NewShape(dims...),
		pointer.Ref(argtype.ArgumentType{Type: kind}),
	)
}
