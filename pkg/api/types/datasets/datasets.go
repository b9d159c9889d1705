package datasets

import (
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/cmp"
)

// Column describes one column of a tabular dataset.
type Column struct {
	Name        string       `json:"name" yaml:"name"`
	Type        argtype.Kind `json:"type,omitempty" yaml:"type,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Units       string       `json:"units,omitempty" yaml:"units,omitempty"`
}

// Dataset is the body block of a dataset document.
type Dataset struct {
	Format      string         `json:"format" yaml:"format"`
	ReadOptions map[string]any `json:"read_options,omitempty" yaml:"read_options,omitempty"`
	Columns     []Column       `json:"columns" yaml:"columns"`
	Inputs      []string       `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Labels      []string       `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Column returns the column with the given name, if any.
func (d Dataset) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (d Dataset) Equal(o Dataset) bool {
	return d.Format == o.Format &&
		cmp.MapEqWith(d.ReadOptions, o.ReadOptions, cmp.AnyEq) &&
		cmp.SliceEq(d.Columns, o.Columns) &&
		cmp.SliceEq(d.Inputs, o.Inputs) &&
		cmp.SliceEq(d.Labels, o.Labels)
}
