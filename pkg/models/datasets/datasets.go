// Package datasets builds dataset descriptions.
package datasets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/datacite"
	apidatasets "github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/datasets"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/models"
)

var ErrBadDataset = errors.New("bad dataset description")

// Tabular describes a dataset stored as one delimited text file. The
// column names are read from the header and the value types inferred
// by scanning; descriptions and units are for AnnotateColumn to fill.
type Tabular struct {
	models.Base
}

type tabularOption struct {
	delimiter rune
}

type TabularOption func(*tabularOption) *tabularOption

// WithDelimiter overrides the field delimiter. The default follows the
// format: "," for csv, tab for tsv.
func WithDelimiter(d rune) TabularOption {
	return func(o *tabularOption) *tabularOption {
		o.delimiter = d
		return o
	}
}

// NewTabular reads the header and values of the file at path and
// starts its description. Supported formats are "csv" and "tsv".
func NewTabular(path string, format string, options ...TabularOption) (*Tabular, error) {
	opt := &tabularOption{}
	for _, o := range options {
		opt = o(opt)
	}

	delimiter := rune(0)
	switch format {
	case "csv":
		delimiter = ','
	case "tsv":
		delimiter = '\t'
	default:
		return nil, fmt.Errorf("%w: unsupported format (%s)", ErrBadDataset, format)
	}
	if opt.delimiter != 0 {
		delimiter = opt.delimiter
	}

	base, err := models.New(metadata.TypeDataset)
	if err != nil {
		return nil, err
	}
	doc := base.Metadata()
	doc.Datacite.ResourceType = &datacite.ResourceType{
		ResourceTypeGeneral: datacite.ResourceDataset,
	}

	columns, err := readColumns(path, delimiter)
	if err != nil {
		return nil, err
	}

	doc.Dataset = &apidatasets.Dataset{
		Format: format,
		ReadOptions: map[string]any{
			"delimiter": string(delimiter),
			"header":    0,
		},
		Columns: columns,
	}

	t := &Tabular{Base: base}
	t.AddFileAs("data", path)
	return t, nil
}

func (t *Tabular) dataset() *apidatasets.Dataset {
	return t.Metadata().Dataset
}

func (t *Tabular) column(name string) (*apidatasets.Column, error) {
	columns := t.dataset().Columns
	for i := range columns {
		if columns[i].Name == name {
			return &columns[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no such column (%s)", ErrBadDataset, name)
}

// AnnotateColumn documents a column. Empty arguments leave the current
// values in place; a data type overrides the inferred one.
func (t *Tabular) AnnotateColumn(name string, description string, dataType argtype.Kind, units string) error {
	column, err := t.column(name)
	if err != nil {
		return err
	}
	if description != "" {
		column.Description = description
	}
	if dataType != "" {
		column.Type = dataType
	}
	if units != "" {
		column.Units = units
	}
	return nil
}

// MarkInputs declares which columns a model takes as input.
func (t *Tabular) MarkInputs(names ...string) error {
	for _, n := range names {
		if _, err := t.column(n); err != nil {
			return err
		}
	}
	t.dataset().Inputs = names
	return nil
}

// MarkLabels declares which columns hold what a model should predict.
func (t *Tabular) MarkLabels(names ...string) error {
	for _, n := range names {
		if _, err := t.column(n); err != nil {
			return err
		}
	}
	t.dataset().Labels = names
	return nil
}

// UnannotatedColumns lists the columns still missing a description.
func (t *Tabular) UnannotatedColumns() []string {
	out := []string{}
	for _, c := range t.dataset().Columns {
		if c.Description == "" {
			out = append(out, c.Name)
		}
	}
	return out
}

// Build renders the description.
func (t *Tabular) Build() (metadata.Document, error) {
	return t.Document()
}

func readColumns(path string, delimiter rune) ([]apidatasets.Column, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delimiter

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read a header from %s", ErrBadDataset, path)
	}

	kinds := make([]argtype.Kind, len(header))
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, value := range record {
			if i < len(kinds) {
				kinds[i] = widen(kinds[i], infer(value))
			}
		}
	}

	columns := make([]apidatasets.Column, len(header))
	for i, name := range header {
		kind := kinds[i]
		if kind == "" {
			kind = argtype.String
		}
		columns[i] = apidatasets.Column{Name: name, Type: kind}
	}
	return columns, nil
}

// infer guesses the kind of one value.
func infer(value string) argtype.Kind {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return argtype.Integer
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return argtype.Float
	}
	switch value {
	case "true", "false", "True", "False":
		return argtype.Boolean
	}
	if _, err := time.Parse(time.RFC3339, value); err == nil {
		return argtype.Datetime
	}
	if _, err := time.Parse("2006-01-02", value); err == nil {
		return argtype.Datetime
	}
	return argtype.String
}

// widen merges the kind seen so far with the next value's kind.
// Integers widen to floats; everything else falls back to string when
// the column mixes kinds.
func widen(sofar argtype.Kind, next argtype.Kind) argtype.Kind {
	if sofar == "" || sofar == next {
		return next
	}
	if (sofar == argtype.Integer && next == argtype.Float) ||
		(sofar == argtype.Float && next == argtype.Integer) {
		return argtype.Float
	}
	return argtype.String
}
