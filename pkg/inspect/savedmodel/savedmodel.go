// Package savedmodel reads TensorFlow saved_model.pb files.
//
// It walks the protobuf wire format directly with encoding/protowire,
// extracting only the signature metadata a description needs. No
// generated TensorFlow bindings exist for Go, and the full proto tree
// is far larger than the handful of fields read here.
package savedmodel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrNotSavedModel = errors.New("not a SavedModel")
	ErrUnknownDType  = errors.New("unknown tensor dtype")
)

// DefaultSignature is the signature key TensorFlow exports a model's
// main entry point under.
const DefaultSignature = "serving_default"

// ServeTag marks the MetaGraph meant for serving.
const ServeTag = "serve"

// DType is TensorFlow's tensor element type enum.
type DType int32

// Kind maps the dtype to the argument-type vocabulary.
func (d DType) Kind() (argtype.Kind, error) {
	switch d {
	case 1, 2, 19: // float, double, half
		return argtype.Float, nil
	case 3, 4, 5, 6, 9, 17, 22, 23: // int32, uint8, int16, int8, int64, uint16, uint32, uint64
		return argtype.Integer, nil
	case 7:
		return argtype.String, nil
	case 8, 18: // complex64, complex128
		return argtype.Complex, nil
	case 10:
		return argtype.Boolean, nil
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownDType, d)
}

// Tensor is one argument of a signature. Shape uses -1 for dimensions
// the export left unbound.
type Tensor struct {
	Name        string
	DType       DType
	Shape       []int64
	UnknownRank bool
}

// Signature is one callable the SavedModel exports.
type Signature struct {
	MethodName string
	Inputs     map[string]Tensor
	Outputs    map[string]Tensor
}

// MetaGraph is one tagged graph of the SavedModel.
type MetaGraph struct {
	Tags              []string
	TensorFlowVersion string
	Signatures        map[string]Signature
}

// Tagged reports whether the graph carries the given tag.
func (g MetaGraph) Tagged(tag string) bool {
	for _, t := range g.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Model is the signature-level view of a saved_model.pb file.
type Model struct {
	MetaGraphs []MetaGraph
}

// Serve returns the MetaGraph tagged for serving, if any.
func (m Model) Serve() (MetaGraph, bool) {
	for _, g := range m.MetaGraphs {
		if g.Tagged(ServeTag) {
			return g, true
		}
	}
	return MetaGraph{}, false
}

// ReadDir reads the saved_model.pb inside a SavedModel export directory.
func ReadDir(dir string) (Model, error) {
	f, err := os.Open(filepath.Join(dir, "saved_model.pb"))
	if err != nil {
		return Model{}, fmt.Errorf("%w: %s (%s)", ErrNotSavedModel, dir, err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a saved_model.pb stream.
func Read(r io.Reader) (Model, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Model{}, err
	}
	return Parse(raw)
}

// Parse parses saved_model.pb bytes.
func Parse(raw []byte) (Model, error) {
	m := Model{}
	err := fields(raw, func(num protowire.Number, payload []byte) error {
		if num != 2 { // SavedModel.meta_graphs
			return nil
		}
		g, err := metaGraph(payload)
		if err != nil {
			return err
		}
		m.MetaGraphs = append(m.MetaGraphs, g)
		return nil
	})
	if err != nil {
		return Model{}, err
	}
	if len(m.MetaGraphs) == 0 {
		return Model{}, fmt.Errorf("%w: no meta graphs", ErrNotSavedModel)
	}
	return m, nil
}

func metaGraph(raw []byte) (MetaGraph, error) {
	g := MetaGraph{Signatures: map[string]Signature{}}
	err := fields(raw, func(num protowire.Number, payload []byte) error {
		switch num {
		case 1: // MetaGraphDef.meta_info_def
			return fields(payload, func(num protowire.Number, payload []byte) error {
				switch num {
				case 4: // MetaInfoDef.tags
					g.Tags = append(g.Tags, string(payload))
				case 5: // MetaInfoDef.tensorflow_version
					g.TensorFlowVersion = string(payload)
				}
				return nil
			})
		case 5: // MetaGraphDef.signature_def entry
			key, value, err := mapEntry(payload)
			if err != nil {
				return err
			}
			sig, err := signature(value)
			if err != nil {
				return err
			}
			g.Signatures[key] = sig
		}
		return nil
	})
	return g, err
}

func signature(raw []byte) (Signature, error) {
	sig := Signature{Inputs: map[string]Tensor{}, Outputs: map[string]Tensor{}}
	err := fields(raw, func(num protowire.Number, payload []byte) error {
		switch num {
		case 1, 2: // SignatureDef.inputs / .outputs entries
			key, value, err := mapEntry(payload)
			if err != nil {
				return err
			}
			info, err := tensorInfo(value)
			if err != nil {
				return err
			}
			if num == 1 {
				sig.Inputs[key] = info
			} else {
				sig.Outputs[key] = info
			}
		case 3: // SignatureDef.method_name
			sig.MethodName = string(payload)
		}
		return nil
	})
	return sig, err
}

func tensorInfo(raw []byte) (Tensor, error) {
	info := Tensor{}
	err := fields(raw, func(num protowire.Number, payload []byte) error {
		switch num {
		case 1: // TensorInfo.name
			info.Name = string(payload)
		case 2: // TensorInfo.dtype
			v, n := protowire.ConsumeVarint(payload)
			if n < 0 {
				return protowire.ParseError(n)
			}
			info.DType = DType(v)
		case 3: // TensorInfo.tensor_shape
			return fields(payload, func(num protowire.Number, payload []byte) error {
				switch num {
				case 2: // TensorShapeProto.dim
					size := int64(0)
					err := fields(payload, func(num protowire.Number, payload []byte) error {
						if num == 1 { // Dim.size, varint payload re-decoded below
							v, n := protowire.ConsumeVarint(payload)
							if n < 0 {
								return protowire.ParseError(n)
							}
							size = int64(v)
						}
						return nil
					})
					if err != nil {
						return err
					}
					info.Shape = append(info.Shape, size)
				case 3: // TensorShapeProto.unknown_rank
					v, n := protowire.ConsumeVarint(payload)
					if n < 0 {
						return protowire.ParseError(n)
					}
					info.UnknownRank = v != 0
				}
				return nil
			})
		}
		return nil
	})
	return info, err
}

func mapEntry(raw []byte) (key string, value []byte, err error) {
	err = fields(raw, func(num protowire.Number, payload []byte) error {
		switch num {
		case 1:
			key = string(payload)
		case 2:
			value = payload
		}
		return nil
	})
	return
}

// fields walks one message level, calling visit per field. Length-
// delimited fields pass their payload; scalar fields pass their raw
// encoding so the visitor can re-consume them by the expected type.
func fields(raw []byte, visit func(num protowire.Number, payload []byte) error) error {
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return fmt.Errorf("%w: %s", ErrNotSavedModel, protowire.ParseError(n))
		}
		raw = raw[n:]

		switch typ {
		case protowire.BytesType:
			payload, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return fmt.Errorf("%w: %s", ErrNotSavedModel, protowire.ParseError(n))
			}
			if err := visit(num, payload); err != nil {
				return err
			}
			raw = raw[n:]
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return fmt.Errorf("%w: %s", ErrNotSavedModel, protowire.ParseError(n))
			}
			if err := visit(num, raw[:n]); err != nil {
				return err
			}
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return fmt.Errorf("%w: %s", ErrNotSavedModel, protowire.ParseError(n))
			}
			raw = raw[n:]
		}
	}
	return nil
}
