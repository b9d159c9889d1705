package pipelines

import (
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/cmp"
)

// Step is one stage of a pipeline. Steps run in declared order.
type Step struct {
	Author      string         `json:"author" yaml:"author"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func (s Step) Equal(o Step) bool {
	return s.Author == o.Author &&
		s.Name == o.Name &&
		s.Description == o.Description &&
		cmp.MapEqWith(s.Parameters, o.Parameters, cmp.AnyEq)
}

// Pipeline is the body block of a pipeline document.
type Pipeline struct {
	Steps []Step `json:"steps" yaml:"steps"`
}

func (p Pipeline) Equal(o Pipeline) bool {
	return cmp.SliceEqWith(p.Steps, o.Steps, Step.Equal)
}
