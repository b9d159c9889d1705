package search_test

import (
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	apiservables "github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/servables"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/search"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/pointer"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/try"
)

func TestQuery_Render(t *testing.T) {
	type When struct {
		build func(q *search.Query)
	}
	type Then struct {
		want string
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			q := search.NewQuery()
			when.build(q)
			if got := q.Render(); got != then.want {
				t.Errorf("unmatch:\n got  %s\n want %s", got, then.want)
			}
		}
	}

	t.Run("an owner renders as one term", theory(
		When{build: func(q *search.Query) { q.MatchOwner("wardlt") }},
		Then{want: `dlhub.owner:wardlt`},
	))
	t.Run("servable name and owner join with AND", theory(
		When{build: func(q *search.Query) { q.MatchServable("iris_svm", "wardlt", 0) }},
		Then{want: `dlhub.name:iris_svm AND dlhub.owner:wardlt`},
	))
	t.Run("a publication date narrows to one version", theory(
		When{build: func(q *search.Query) { q.MatchServable("iris_svm", "", 1565444023) }},
		Then{want: `dlhub.name:iris_svm AND dlhub.publication_date:1565444023`},
	))
	t.Run("an author's given name groups with the family name", theory(
		When{build: func(q *search.Query) { q.MatchAuthors([]string{"Ward, Logan"}, true) }},
		Then{want: `(datacite.creators.familyName:"Ward" AND datacite.creators.givenName:"Logan")`},
	))
	t.Run("match-any authors join with OR", theory(
		When{build: func(q *search.Query) {
			q.MatchAuthors([]string{"Ward", "Blaiszik"}, false)
		}},
		Then{want: `datacite.creators.familyName:"Ward" OR datacite.creators.familyName:"Blaiszik"`},
	))
	t.Run("match-all domains stay in one group", theory(
		When{build: func(q *search.Query) {
			q.MatchDomains([]string{"chemistry", "machine learning"}, true)
		}},
		Then{want: `(dlhub.domains:chemistry AND dlhub.domains:machine learning)`},
	))
	t.Run("a DOI is quoted", theory(
		When{build: func(q *search.Query) { q.MatchDOI("10.1038/s41524-017-0056-5") }},
		Then{want: `datacite.relatedIdentifiers.relatedIdentifier:"10.1038/s41524-017-0056-5"`},
	))
	t.Run("rendering twice gives the same text", func(t *testing.T) {
		q := search.NewQuery().MatchOwner("wardlt").MatchDomains([]string{"chemistry"}, true)
		if q.Render() != q.Render() {
			t.Error("render is not stable")
		}
	})
}

func entry(shorthand string, date metadata.Timestamp) metadata.Document {
	return metadata.Document{
		Dlhub: metadata.Admin{
			ShorthandName:   shorthand,
			PublicationDate: date,
		},
	}
}

func TestFilterLatest(t *testing.T) {
	docs := []metadata.Document{
		entry("wardlt/iris_svm", 100),
		entry("wardlt/iris_svm", 300),
		entry("blaiszik/oqmd", 200),
		entry("wardlt/iris_svm", 200),
		{Dlhub: metadata.Admin{Name: "stray"}},
		{Dlhub: metadata.Admin{ShorthandName: "wardlt/undated"}},
	}

	warnings := &strings.Builder{}
	got := search.FilterLatest(docs, log.New(warnings, "", 0))

	if len(got) != 2 {
		t.Fatalf("unmatch: got %+v", got)
	}
	if got[0].Dlhub.ShorthandName != "wardlt/iris_svm" || got[0].Dlhub.PublicationDate != 300 {
		t.Errorf("unmatch: got %+v", got[0].Dlhub)
	}
	if got[1].Dlhub.ShorthandName != "blaiszik/oqmd" {
		t.Errorf("unmatch: got %+v", got[1].Dlhub)
	}

	if w := warnings.String(); !strings.Contains(w, "shorthand name") || !strings.Contains(w, "publication date") {
		t.Errorf("warnings: got %q", w)
	}
}

func TestMethods(t *testing.T) {
	input := pointer.Ref(try.To(argtype.Scalar(argtype.Float, "x")).OrFatal(t))
	doc := metadata.Document{
		Servable: &apiservables.Servable{
			Methods: map[string]apiservables.Method{
				"run": {
					Input:         input,
					MethodDetails: map[string]any{"method_name": "predict"},
				},
			},
		},
	}

	t.Run("method_details is stripped", func(t *testing.T) {
		methods := try.To(search.Methods(doc)).OrFatal(t)
		if m, ok := methods["run"]; !ok || m.MethodDetails != nil {
			t.Errorf("unmatch: got %+v", methods)
		}
		if doc.Servable.Methods["run"].MethodDetails == nil {
			t.Error("the document itself was mutated")
		}
	})
	t.Run("a single method can be picked", func(t *testing.T) {
		m := try.To(search.Method(doc, "run")).OrFatal(t)
		if m.Input == nil {
			t.Errorf("unmatch: got %+v", m)
		}
	})
	t.Run("an unknown method is an error", func(t *testing.T) {
		if _, err := search.Method(doc, "evaluate"); !errors.Is(err, search.ErrUnknownMethod) {
			t.Errorf("error is not ErrUnknownMethod: %+v", err)
		}
	})
	t.Run("a dataset has no methods", func(t *testing.T) {
		if _, err := search.Methods(metadata.Document{}); !errors.Is(err, search.ErrNoServable) {
			t.Errorf("error is not ErrNoServable: %+v", err)
		}
	})
}
