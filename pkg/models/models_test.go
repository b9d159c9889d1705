package models_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/datacite"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	apiservables "github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/servables"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/models"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/cmp"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/pointer"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/try"
)

func TestNew_Defaults(t *testing.T) {
	base := try.To(models.New(metadata.TypeServable)).OrFatal(t)
	doc := base.Metadata()

	if doc.Datacite.Publisher != "DLHub" {
		t.Errorf("publisher: got %q, want DLHub", doc.Datacite.Publisher)
	}
	if want := strconv.Itoa(time.Now().Year()); doc.Datacite.PublicationYear != want {
		t.Errorf("publicationYear: got %q, want %q", doc.Datacite.PublicationYear, want)
	}
	if doc.Datacite.Identifier == nil ||
		doc.Datacite.Identifier.Identifier != models.UnassignedDOI ||
		doc.Datacite.Identifier.IdentifierType != "DOI" {
		t.Errorf("identifier: got %+v", doc.Datacite.Identifier)
	}
	if !cmp.SliceEq(doc.Dlhub.VisibleTo, []string{"public"}) {
		t.Errorf("visible_to: got %v", doc.Dlhub.VisibleTo)
	}
	if doc.Dlhub.Type != metadata.TypeServable {
		t.Errorf("type: got %q", doc.Dlhub.Type)
	}
	if doc.Dlhub.Version == "" {
		t.Error("version is empty")
	}
}

func TestNew_RejectsUnknownType(t *testing.T) {
	if _, err := models.New(metadata.ArtifactType("widget")); err == nil {
		t.Error("no error for an unknown artifact type")
	}
}

func TestBase_SetAuthors(t *testing.T) {
	type When struct {
		authors      []string
		affiliations [][]string
	}
	type Then struct {
		want      []datacite.Creator
		wantError bool
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			base := try.To(models.New(metadata.TypeServable)).OrFatal(t)
			err := base.SetAuthors(when.authors, when.affiliations)
			if then.wantError {
				if !errors.Is(err, models.ErrBadDescription) {
					t.Errorf("error is not ErrBadDescription: %+v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			got := base.Metadata().Datacite.Creators
			if !cmp.SliceEqWith(got, then.want, datacite.Creator.Equal) {
				t.Errorf("unmatch: got %+v, want %+v", got, then.want)
			}
		}
	}

	t.Run("family and given names are split on the comma", theory(
		When{authors: []string{"Ward, Logan", "Blaiszik, Ben"}},
		Then{want: []datacite.Creator{
			{FamilyName: "Ward", GivenName: "Logan", CreatorName: "Ward, Logan"},
			{FamilyName: "Blaiszik", GivenName: "Ben", CreatorName: "Blaiszik, Ben"},
		}},
	))
	t.Run("affiliations line up by position and may run short", theory(
		When{
			authors:      []string{"Ward, Logan", "Blaiszik, Ben"},
			affiliations: [][]string{{"ANL", "UChicago"}},
		},
		Then{want: []datacite.Creator{
			{FamilyName: "Ward", GivenName: "Logan", CreatorName: "Ward, Logan",
				Affiliations: []string{"ANL", "UChicago"}},
			{FamilyName: "Blaiszik", GivenName: "Ben", CreatorName: "Blaiszik, Ben"},
		}},
	))
	t.Run("an author without a comma is rejected", theory(
		When{authors: []string{"Logan Ward"}},
		Then{wantError: true},
	))
	t.Run("setting again replaces the previous list", func(t *testing.T) {
		base := try.To(models.New(metadata.TypeServable)).OrFatal(t)
		try.To(0, base.SetAuthors([]string{"Ward, Logan"}, nil)).OrFatal(t)
		try.To(0, base.SetAuthors([]string{"Blaiszik, Ben"}, nil)).OrFatal(t)
		got := base.Metadata().Datacite.Creators
		if len(got) != 1 || got[0].FamilyName != "Blaiszik" {
			t.Errorf("unmatch: got %+v", got)
		}
	})
}

func TestBase_SetName(t *testing.T) {
	base := try.To(models.New(metadata.TypeServable)).OrFatal(t)

	for _, bad := range []string{"", "iris svm", "iris\tsvm", "iris\n"} {
		if err := base.SetName(bad); !errors.Is(err, models.ErrBadDescription) {
			t.Errorf("error is not ErrBadDescription for %q: %+v", bad, err)
		}
	}

	try.To(0, base.SetName("iris_svm")).OrFatal(t)
	if base.Name() != "iris_svm" {
		t.Errorf("name: got %q", base.Name())
	}
}

func TestBase_Descriptions(t *testing.T) {
	base := try.To(models.New(metadata.TypeServable)).OrFatal(t)
	base.SetAbstract("first")
	base.SetMethods("trained on iris")
	base.SetAbstract("second")

	got := base.Metadata().Datacite.Descriptions
	want := []datacite.Description{
		{Description: "trained on iris", DescriptionType: datacite.DescriptionMethods},
		{Description: "second", DescriptionType: datacite.DescriptionAbstract},
	}
	if !cmp.SliceEq(got, want) {
		t.Errorf("unmatch: got %+v, want %+v", got, want)
	}
}

func TestBase_AddRights(t *testing.T) {
	base := try.To(models.New(metadata.TypeServable)).OrFatal(t)

	if err := base.AddRights("", ""); !errors.Is(err, models.ErrBadDescription) {
		t.Errorf("error is not ErrBadDescription: %+v", err)
	}
	try.To(0, base.AddRights("https://www.apache.org/licenses/LICENSE-2.0", "")).OrFatal(t)
	try.To(0, base.AddRights("", "CC BY 4.0")).OrFatal(t)

	got := base.Metadata().Datacite.RightsList
	want := []datacite.Rights{
		{RightsURI: "https://www.apache.org/licenses/LICENSE-2.0"},
		{Rights: "CC BY 4.0"},
	}
	if !cmp.SliceEq(got, want) {
		t.Errorf("unmatch: got %+v, want %+v", got, want)
	}
}

func TestBase_AddRelatedIdentifier(t *testing.T) {
	base := try.To(models.New(metadata.TypeServable)).OrFatal(t)

	try.To(0, base.AddRelatedIdentifier(
		"10.1038/s41524-017-0056-5", "DOI", "IsDescribedBy",
	)).OrFatal(t)

	if err := base.AddRelatedIdentifier("abc", "SSN", "IsDescribedBy"); err == nil {
		t.Error("no error for an unknown identifier type")
	}
	if err := base.AddRelatedIdentifier("abc", "DOI", "Resembles"); err == nil {
		t.Error("no error for an unknown relation type")
	}

	got := base.Metadata().Datacite.RelatedIdentifiers
	if len(got) != 1 || got[0].RelatedIdentifier != "10.1038/s41524-017-0056-5" {
		t.Errorf("unmatch: got %+v", got)
	}
}

func TestBase_AddFundingReference(t *testing.T) {
	base := try.To(models.New(metadata.TypeServable)).OrFatal(t)

	if err := base.AddFundingReference(datacite.FundingReference{}); !errors.Is(err, models.ErrBadDescription) {
		t.Errorf("error is not ErrBadDescription: %+v", err)
	}

	try.To(0, base.AddFundingReference(datacite.FundingReference{
		FunderName:  "DOE",
		AwardNumber: &datacite.AwardNumber{AwardNumber: "DE-AC02"},
	})).OrFatal(t)

	if got := base.Metadata().Datacite.FundingReferences; len(got) != 1 {
		t.Errorf("unmatch: got %+v", got)
	}
}

func TestBase_AddDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) string {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		try.To(0, os.MkdirAll(filepath.Dir(p), 0o755)).OrFatal(t)
		try.To(0, os.WriteFile(p, []byte("x"), 0o644)).OrFatal(t)
		return p
	}
	top := write("a.txt")
	nested := write("sub/b.txt")

	t.Run("non-recursive takes only the top level", func(t *testing.T) {
		base := try.To(models.New(metadata.TypeServable)).OrFatal(t)
		try.To(0, base.AddDirectory(dir, false)).OrFatal(t)
		got := base.Metadata().Dlhub.Files.List()
		if !cmp.SliceEq(got, []string{top}) {
			t.Errorf("unmatch: got %v", got)
		}
	})
	t.Run("recursive descends into subdirectories", func(t *testing.T) {
		base := try.To(models.New(metadata.TypeServable)).OrFatal(t)
		try.To(0, base.AddDirectory(dir, true)).OrFatal(t)
		got := base.Metadata().Dlhub.Files.List()
		if !cmp.SliceEq(got, []string{top, nested}) {
			t.Errorf("unmatch: got %v", got)
		}
	})
}

func TestBase_ReadCodemeta(t *testing.T) {
	dir := t.TempDir()
	codemeta := `{
		"@context": "https://doi.org/10.5063/schema/codemeta-2.0",
		"name": "iris_svm",
		"author": [{
			"@type": "Person",
			"givenName": "Logan", "familyName": "Ward",
			"affiliation": "ANL"
		}],
		"license": "https://www.apache.org/licenses/LICENSE-2.0",
		"keywords": ["machine learning"]
	}`
	try.To(0, os.WriteFile(filepath.Join(dir, "codemeta.json"), []byte(codemeta), 0o644)).OrFatal(t)

	base := try.To(models.New(metadata.TypeServable)).OrFatal(t)
	try.To(0, base.ReadCodemeta(dir)).OrFatal(t)

	dc := base.Metadata().Datacite
	if len(dc.Creators) != 1 || dc.Creators[0].FamilyName != "Ward" {
		t.Errorf("creators: got %+v", dc.Creators)
	}
	if len(dc.RightsList) != 1 || dc.RightsList[0].RightsURI != "https://www.apache.org/licenses/LICENSE-2.0" {
		t.Errorf("rights: got %+v", dc.RightsList)
	}
	if dc.Publisher != "DLHub" {
		t.Errorf("publisher was clobbered: got %q", dc.Publisher)
	}
}

func TestBase_Document(t *testing.T) {
	t.Run("an incomplete description does not render", func(t *testing.T) {
		base := try.To(models.New(metadata.TypeServable)).OrFatal(t)
		if _, err := base.Document(); !errors.Is(err, metadata.ErrInvalidDocument) {
			t.Errorf("error is not ErrInvalidDocument: %+v", err)
		}
	})
	t.Run("the rendered document is a deep copy", func(t *testing.T) {
		base := try.To(models.New(metadata.TypeServable)).OrFatal(t)
		base.SetTitle("Iris classifier")
		try.To(0, base.SetName("iris_svm")).OrFatal(t)
		base.Metadata().Servable = minimalServable(t)

		doc := try.To(base.Document()).OrFatal(t)
		doc.Datacite.Titles[0].Title = "mutated"
		if base.Title() != "Iris classifier" {
			t.Errorf("rendered document shares state with the builder")
		}
	})
}

func TestFromDocument(t *testing.T) {
	base := try.To(models.New(metadata.TypeServable)).OrFatal(t)
	base.SetTitle("Iris classifier")
	try.To(0, base.SetName("iris_svm")).OrFatal(t)
	base.Metadata().Servable = minimalServable(t)
	doc := try.To(base.Document()).OrFatal(t)

	restored := try.To(models.FromDocument(doc)).OrFatal(t)
	if restored.Name() != "iris_svm" {
		t.Errorf("name: got %q", restored.Name())
	}

	doc.Dlhub.Name = ""
	if _, err := models.FromDocument(doc); !errors.Is(err, metadata.ErrInvalidDocument) {
		t.Errorf("error is not ErrInvalidDocument: %+v", err)
	}
}

func minimalServable(t *testing.T) *apiservables.Servable {
	t.Helper()
	input := pointer.Ref(try.To(argtype.Scalar(argtype.Float, "x")).OrFatal(t))
	output := pointer.Ref(try.To(argtype.Scalar(argtype.Float, "y")).OrFatal(t))
	return &apiservables.Servable{
		Language: "python",
		Type:     "Test",
		Shim:     "python.PythonStaticMethodServable",
		Methods: map[string]apiservables.Method{
			"run": {Input: input, Output: output},
		},
	}
}
