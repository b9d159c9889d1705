package servables

import (
	"errors"
	"fmt"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/cmp"
)

var ErrInvalidServable = errors.New("invalid servable")

// Method is one callable exposed by a servable.
type Method struct {
	Input         *argtype.ArgumentType `json:"input,omitempty" yaml:"input,omitempty"`
	Output        *argtype.ArgumentType `json:"output,omitempty" yaml:"output,omitempty"`
	Parameters    map[string]any        `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	MethodDetails map[string]any        `json:"method_details,omitempty" yaml:"method_details,omitempty"`
}

func (m Method) Equal(o Method) bool {
	return cmp.PEqualWith(m.Input, o.Input, argtype.ArgumentType.Equal) &&
		cmp.PEqualWith(m.Output, o.Output, argtype.ArgumentType.Equal) &&
		cmp.MapEqWith(m.Parameters, o.Parameters, cmp.AnyEq) &&
		cmp.MapEqWith(m.MethodDetails, o.MethodDetails, cmp.AnyEq)
}

// Dependencies lists what a servable needs installed to run.
type Dependencies struct {
	Python map[string]string `json:"python,omitempty" yaml:"python,omitempty"`
}

func (d Dependencies) Equal(o Dependencies) bool {
	return cmp.MapEq(d.Python, o.Python)
}

// Servable is the body block of a servable document.
type Servable struct {
	Language     string            `json:"language" yaml:"language"`
	Type         string            `json:"type" yaml:"type"`
	Shim         string            `json:"shim" yaml:"shim"`
	Methods      map[string]Method `json:"methods" yaml:"methods"`
	Options      map[string]any    `json:"options,omitempty" yaml:"options,omitempty"`
	ModelType    string            `json:"model_type,omitempty" yaml:"model_type,omitempty"`
	ModelSummary string            `json:"model_summary,omitempty" yaml:"model_summary,omitempty"`
	Dependencies *Dependencies     `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Validate checks that the servable can actually be served: it needs a
// "run" method with both input and output types declared.
func (s Servable) Validate() error {
	run, ok := s.Methods["run"]
	if !ok {
		return fmt.Errorf(`%w: no "run" method`, ErrInvalidServable)
	}
	if run.Input == nil {
		return fmt.Errorf(`%w: "run" method has no input type`, ErrInvalidServable)
	}
	if run.Output == nil {
		return fmt.Errorf(`%w: "run" method has no output type`, ErrInvalidServable)
	}
	return nil
}

func (s Servable) Equal(o Servable) bool {
	return s.Language == o.Language &&
		s.Type == o.Type &&
		s.Shim == o.Shim &&
		s.ModelType == o.ModelType &&
		s.ModelSummary == o.ModelSummary &&
		cmp.MapEqWith(s.Methods, o.Methods, Method.Equal) &&
		cmp.MapEqWith(s.Options, o.Options, cmp.AnyEq) &&
		cmp.PEqualWith(s.Dependencies, o.Dependencies, Dependencies.Equal)
}
