// Package keras probes Keras model artifacts: HDF5 weight files and the
// architecture JSON that Keras' to_json() writes.
package keras

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrNotHDF5           = errors.New("not an HDF5 file")
	ErrNotAnArchitecture = errors.New("not a Keras architecture document")
)

// hdf5Magic is the 8-byte signature every HDF5 file opens with.
var hdf5Magic = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// CheckSignature verifies that the file at path is HDF5.
func CheckSignature(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(hdf5Magic))
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("%w: %s", ErrNotHDF5, path)
	}
	if !bytes.Equal(head, hdf5Magic) {
		return fmt.Errorf("%w: %s", ErrNotHDF5, path)
	}
	return nil
}

// Layer is one entry of an architecture's layer list. Shape entries use
// -1 where the architecture says null (an unbound dimension).
type Layer struct {
	ClassName       string
	Name            string
	BatchInputShape []int
	Units           int
	TargetShape     []int
}

// Architecture is the structure of a Keras model as written by
// Model.to_json().
type Architecture struct {
	ClassName    string
	KerasVersion string
	Backend      string
	Layers       []Layer
}

// InputShape returns the batch input shape declared by the first layer.
func (a Architecture) InputShape() ([]int, bool) {
	for _, l := range a.Layers {
		if l.BatchInputShape != nil {
			return l.BatchInputShape, true
		}
	}
	return nil, false
}

// OutputShape derives the output shape from the last layer: its target
// shape when it reshapes, otherwise its unit count behind an unbound
// batch dimension.
func (a Architecture) OutputShape() ([]int, bool) {
	for i := len(a.Layers) - 1; i >= 0; i-- {
		l := a.Layers[i]
		if l.TargetShape != nil {
			return append([]int{-1}, l.TargetShape...), true
		}
		if l.Units > 0 {
			return []int{-1, l.Units}, true
		}
	}
	return nil, false
}

// Summary renders a one-line-per-layer account of the model.
func (a Architecture) Summary() string {
	out := new(bytes.Buffer)
	for _, l := range a.Layers {
		name := l.Name
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(out, "%s (%s)\n", name, l.ClassName)
	}
	return out.String()
}

// ReadArchitectureFile reads the architecture document at path.
func ReadArchitectureFile(path string) (Architecture, error) {
	f, err := os.Open(path)
	if err != nil {
		return Architecture{}, err
	}
	defer f.Close()
	return ReadArchitecture(f)
}

type wireLayer struct {
	ClassName string `json:"class_name"`
	Config    struct {
		Name            string `json:"name"`
		BatchInputShape []*int `json:"batch_input_shape"`
		Units           int    `json:"units"`
		TargetShape     []*int `json:"target_shape"`
	} `json:"config"`
}

// ReadArchitecture parses a Model.to_json() document.
func ReadArchitecture(r io.Reader) (Architecture, error) {
	w := struct {
		ClassName string `json:"class_name"`
		Config    struct {
			Layers []wireLayer `json:"layers"`
		} `json:"config"`
		KerasVersion string `json:"keras_version"`
		Backend      string `json:"backend"`
	}{}

	dec := json.NewDecoder(r)
	if err := dec.Decode(&w); err != nil {
		return Architecture{}, fmt.Errorf("%w: %s", ErrNotAnArchitecture, err)
	}
	if w.ClassName == "" {
		return Architecture{}, fmt.Errorf("%w: no class_name", ErrNotAnArchitecture)
	}

	arch := Architecture{
		ClassName:    w.ClassName,
		KerasVersion: w.KerasVersion,
		Backend:      w.Backend,
	}
	for _, l := range w.Config.Layers {
		arch.Layers = append(arch.Layers, Layer{
			ClassName:       l.ClassName,
			Name:            l.Config.Name,
			BatchInputShape: dims(l.Config.BatchInputShape),
			Units:           l.Config.Units,
			TargetShape:     dims(l.Config.TargetShape),
		})
	}
	return arch, nil
}

func dims(raw []*int) []int {
	if raw == nil {
		return nil
	}
	out := make([]int, len(raw))
	for i, d := range raw {
		if d == nil {
			out[i] = -1
			continue
		}
		out[i] = *d
	}
	return out
}
