package servables_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/servables"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/pointer"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/try"
)

func runMethod(t *testing.T) servables.Method {
	t.Helper()
	in := try.To(argtype.Scalar(argtype.Float, "a value")).OrFatal(t)
	out := try.To(argtype.Scalar(argtype.Float, "its square")).OrFatal(t)
	return servables.Method{Input: pointer.Ref(in), Output: pointer.Ref(out)}
}

func TestServable_Validate(t *testing.T) {
	type When struct {
		mutate func(*servables.Servable)
	}
	type Then struct {
		wantError bool
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			s := servables.Servable{
				Language: "python",
				Type:     "Python static method",
				Shim:     "python.PythonStaticMethodServable",
				Methods:  map[string]servables.Method{"run": runMethod(t)},
			}
			when.mutate(&s)

			err := s.Validate()
			if then.wantError {
				if !errors.Is(err, servables.ErrInvalidServable) {
					t.Errorf("error is not ErrInvalidServable: %+v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %+v", err)
			}
		}
	}

	t.Run("a servable with a complete run method passes", theory(
		When{mutate: func(*servables.Servable) {}},
		Then{wantError: false},
	))
	t.Run("a servable without a run method is rejected", theory(
		When{mutate: func(s *servables.Servable) { delete(s.Methods, "run") }},
		Then{wantError: true},
	))
	t.Run("a run method without an input type is rejected", theory(
		When{mutate: func(s *servables.Servable) {
			m := s.Methods["run"]
			m.Input = nil
			s.Methods["run"] = m
		}},
		Then{wantError: true},
	))
	t.Run("a run method without an output type is rejected", theory(
		When{mutate: func(s *servables.Servable) {
			m := s.Methods["run"]
			m.Output = nil
			s.Methods["run"] = m
		}},
		Then{wantError: true},
	))
}

func TestServable_RoundTrip(t *testing.T) {
	s := servables.Servable{
		Language:     "python",
		Type:         "Keras Model",
		Shim:         "keras.KerasServable",
		ModelType:    "Deep NN",
		ModelSummary: "layer (type) ...",
		Methods: map[string]servables.Method{
			"run": {
				Input:  runMethod(t).Input,
				Output: runMethod(t).Output,
				MethodDetails: map[string]any{
					"method_name": "predict",
					"classes":     []string{"setosa", "versicolor"},
				},
			},
		},
		Options:      map[string]any{"serialization_method": "hdf5"},
		Dependencies: &servables.Dependencies{Python: map[string]string{"keras": "2.2.4"}},
	}

	b := try.To(json.Marshal(s)).OrFatal(t)
	got := servables.Servable{}
	try.To(0, json.Unmarshal(b, &got)).OrFatal(t)

	if !got.Equal(s) {
		t.Errorf("unmatch:\ngot  %+v\nwant %+v", got, s)
	}
}
