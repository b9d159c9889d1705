package datasets_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	apidatasets "github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/datasets"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/models/datasets"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/cmp"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/try"
)

func writeCSV(t *testing.T, name string, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	try.To(0, os.WriteFile(p, []byte(content), 0o644)).OrFatal(t)
	return p
}

const irisCSV = `sepal_length,sepal_width,petal_width,species,measured_at,certified
5.1,3.5,0.2,setosa,2019-05-01,true
4.9,3,0.2,setosa,2019-05-02,false
7,3.2,1.4,versicolor,2019-05-03,true
`

func TestNewTabular(t *testing.T) {
	path := writeCSV(t, "iris.csv", irisCSV)
	tab := try.To(datasets.NewTabular(path, "csv")).OrFatal(t)

	doc := tab.Metadata()
	if doc.Dlhub.Type != metadata.TypeDataset {
		t.Errorf("type: got %q", doc.Dlhub.Type)
	}
	if doc.Datacite.ResourceType == nil || doc.Datacite.ResourceType.ResourceTypeGeneral != "Dataset" {
		t.Errorf("resource type: got %+v", doc.Datacite.ResourceType)
	}
	if doc.Dataset == nil || doc.Dataset.Format != "csv" {
		t.Fatalf("dataset block: got %+v", doc.Dataset)
	}
	if got := doc.Dlhub.Files.Named["data"]; got != path {
		t.Errorf("data file: got %q", got)
	}

	want := []apidatasets.Column{
		{Name: "sepal_length", Type: argtype.Float},
		{Name: "sepal_width", Type: argtype.Float},
		{Name: "petal_width", Type: argtype.Float},
		{Name: "species", Type: argtype.String},
		{Name: "measured_at", Type: argtype.Datetime},
		{Name: "certified", Type: argtype.Boolean},
	}
	if !cmp.SliceEq(doc.Dataset.Columns, want) {
		t.Errorf("columns: got %+v, want %+v", doc.Dataset.Columns, want)
	}
}

func TestNewTabular_Formats(t *testing.T) {
	t.Run("tsv splits on tabs", func(t *testing.T) {
		path := writeCSV(t, "data.tsv", "a\tb\n1\t2\n")
		tab := try.To(datasets.NewTabular(path, "tsv")).OrFatal(t)

		columns := tab.Metadata().Dataset.Columns
		if len(columns) != 2 || columns[0].Name != "a" || columns[0].Type != argtype.Integer {
			t.Errorf("columns: got %+v", columns)
		}
	})
	t.Run("an unknown format is rejected", func(t *testing.T) {
		path := writeCSV(t, "data.parquet", "a,b\n")
		if _, err := datasets.NewTabular(path, "parquet"); !errors.Is(err, datasets.ErrBadDataset) {
			t.Errorf("error is not ErrBadDataset: %+v", err)
		}
	})
	t.Run("an empty file has no header to read", func(t *testing.T) {
		path := writeCSV(t, "empty.csv", "")
		if _, err := datasets.NewTabular(path, "csv"); !errors.Is(err, datasets.ErrBadDataset) {
			t.Errorf("error is not ErrBadDataset: %+v", err)
		}
	})
	t.Run("a mixed integer and float column widens to float", func(t *testing.T) {
		path := writeCSV(t, "mixed.csv", "x\n1\n2.5\n")
		tab := try.To(datasets.NewTabular(path, "csv")).OrFatal(t)
		if got := tab.Metadata().Dataset.Columns[0].Type; got != argtype.Float {
			t.Errorf("type: got %q", got)
		}
	})
}

func TestTabular_AnnotateColumn(t *testing.T) {
	path := writeCSV(t, "iris.csv", irisCSV)
	tab := try.To(datasets.NewTabular(path, "csv")).OrFatal(t)

	if err := tab.AnnotateColumn("petals", "no such column", "", ""); !errors.Is(err, datasets.ErrBadDataset) {
		t.Errorf("error is not ErrBadDataset: %+v", err)
	}

	try.To(0, tab.AnnotateColumn("sepal_length", "Length of the sepal", "", "cm")).OrFatal(t)
	try.To(0, tab.AnnotateColumn("species", "", argtype.String, "")).OrFatal(t)

	column, ok := tab.Metadata().Dataset.Column("sepal_length")
	if !ok {
		t.Fatal("column is gone")
	}
	if column.Description != "Length of the sepal" || column.Units != "cm" || column.Type != argtype.Float {
		t.Errorf("unmatch: got %+v", column)
	}
}

func TestTabular_MarksAndAnnotations(t *testing.T) {
	path := writeCSV(t, "iris.csv", irisCSV)
	tab := try.To(datasets.NewTabular(path, "csv")).OrFatal(t)

	if err := tab.MarkInputs("sepal_length", "petals"); !errors.Is(err, datasets.ErrBadDataset) {
		t.Errorf("error is not ErrBadDataset: %+v", err)
	}

	try.To(0, tab.MarkInputs("sepal_length", "sepal_width", "petal_width")).OrFatal(t)
	try.To(0, tab.MarkLabels("species")).OrFatal(t)

	ds := tab.Metadata().Dataset
	if !cmp.SliceEq(ds.Inputs, []string{"sepal_length", "sepal_width", "petal_width"}) {
		t.Errorf("inputs: got %v", ds.Inputs)
	}
	if !cmp.SliceEq(ds.Labels, []string{"species"}) {
		t.Errorf("labels: got %v", ds.Labels)
	}

	try.To(0, tab.AnnotateColumn("sepal_length", "Length of the sepal", "", "cm")).OrFatal(t)
	got := tab.UnannotatedColumns()
	want := []string{"sepal_width", "petal_width", "species", "measured_at", "certified"}
	if !cmp.SliceEq(got, want) {
		t.Errorf("unannotated: got %v, want %v", got, want)
	}
}

func TestTabular_Build(t *testing.T) {
	path := writeCSV(t, "iris.csv", irisCSV)
	tab := try.To(datasets.NewTabular(path, "csv")).OrFatal(t)
	tab.SetTitle("Iris measurements")
	try.To(0, tab.SetName("iris")).OrFatal(t)

	doc := try.To(tab.Build()).OrFatal(t)
	if doc.Dataset == nil || len(doc.Dataset.Columns) != 6 {
		t.Errorf("unmatch: got %+v", doc.Dataset)
	}
}
