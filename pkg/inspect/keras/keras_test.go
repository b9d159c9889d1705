package keras_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/inspect/keras"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/cmp"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/try"
)

func TestCheckSignature(t *testing.T) {
	write := func(t *testing.T, content []byte) string {
		t.Helper()
		p := filepath.Join(t.TempDir(), "model.h5")
		if err := os.WriteFile(p, content, 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	t.Run("an HDF5 header passes", func(t *testing.T) {
		p := write(t, append(
			[]byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'},
			"...superblock..."...,
		))
		if err := keras.CheckSignature(p); err != nil {
			t.Errorf("unexpected error: %+v", err)
		}
	})
	t.Run("a JSON file is rejected", func(t *testing.T) {
		p := write(t, []byte(`{"weights": []}`))
		if err := keras.CheckSignature(p); !errors.Is(err, keras.ErrNotHDF5) {
			t.Errorf("error is not ErrNotHDF5: %+v", err)
		}
	})
	t.Run("a file shorter than the magic is rejected", func(t *testing.T) {
		p := write(t, []byte{0x89, 'H'})
		if err := keras.CheckSignature(p); !errors.Is(err, keras.ErrNotHDF5) {
			t.Errorf("error is not ErrNotHDF5: %+v", err)
		}
	})
}

const sequentialModel = `{
	"class_name": "Sequential",
	"config": {
		"name": "sequential_1",
		"layers": [
			{
				"class_name": "Dense",
				"config": {"name": "dense_1", "batch_input_shape": [null, 4], "units": 16}
			},
			{
				"class_name": "Dense",
				"config": {"name": "dense_2", "units": 3}
			}
		]
	},
	"keras_version": "2.2.4",
	"backend": "tensorflow"
}`

func TestReadArchitecture(t *testing.T) {
	arch := try.To(keras.ReadArchitecture(strings.NewReader(sequentialModel))).OrFatal(t)

	if arch.ClassName != "Sequential" {
		t.Errorf("unmatch class: got %s", arch.ClassName)
	}
	if arch.KerasVersion != "2.2.4" {
		t.Errorf("unmatch version: got %s", arch.KerasVersion)
	}
	if arch.Backend != "tensorflow" {
		t.Errorf("unmatch backend: got %s", arch.Backend)
	}

	in, ok := arch.InputShape()
	if !ok {
		t.Fatal("no input shape")
	}
	if !cmp.SliceEq(in, []int{-1, 4}) {
		t.Errorf("unmatch input shape: got %v, want [-1 4]", in)
	}

	out, ok := arch.OutputShape()
	if !ok {
		t.Fatal("no output shape")
	}
	if !cmp.SliceEq(out, []int{-1, 3}) {
		t.Errorf("unmatch output shape: got %v, want [-1 3]", out)
	}

	summary := arch.Summary()
	for _, line := range []string{"dense_1 (Dense)", "dense_2 (Dense)"} {
		if !strings.Contains(summary, line) {
			t.Errorf("summary misses %q:\n%s", line, summary)
		}
	}
}

func TestReadArchitecture_TargetShape(t *testing.T) {
	arch := try.To(keras.ReadArchitecture(strings.NewReader(`{
		"class_name": "Sequential",
		"config": {"layers": [
			{"class_name": "Dense", "config": {"batch_input_shape": [null, 8], "units": 6}},
			{"class_name": "Reshape", "config": {"target_shape": [2, 3]}}
		]},
		"keras_version": "2.2.4"
	}`))).OrFatal(t)

	out, ok := arch.OutputShape()
	if !ok {
		t.Fatal("no output shape")
	}
	if !cmp.SliceEq(out, []int{-1, 2, 3}) {
		t.Errorf("unmatch output shape: got %v, want [-1 2 3]", out)
	}
}

func TestReadArchitecture_Errors(t *testing.T) {
	t.Run("non-JSON input is rejected", func(t *testing.T) {
		_, err := keras.ReadArchitecture(strings.NewReader("weights, not json"))
		if !errors.Is(err, keras.ErrNotAnArchitecture) {
			t.Errorf("error is not ErrNotAnArchitecture: %+v", err)
		}
	})
	t.Run("JSON without class_name is rejected", func(t *testing.T) {
		_, err := keras.ReadArchitecture(strings.NewReader(`{"layers": []}`))
		if !errors.Is(err, keras.ErrNotAnArchitecture) {
			t.Errorf("error is not ErrNotAnArchitecture: %+v", err)
		}
	})
}
