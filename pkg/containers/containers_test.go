package containers_test

import (
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	apiservables "github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/servables"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/containers"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/cmp"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/try"
)

func TestImage(t *testing.T) {
	theory := func(expr string, image containers.Image) func(*testing.T) {
		return func(t *testing.T) {
			{
				actual := new(containers.Image)
				if err := actual.Parse(expr); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if *actual != image {
					t.Errorf("unexpected result: Image.Parse(%s) --> %#v", expr, actual)
				}
			}
			{
				type Json struct {
					Image *containers.Image `json:"image"`
				}

				actual := try.To(json.Marshal(Json{Image: &image})).OrFatal(t)
				if string(actual) != `{"image":"`+expr+`"}` {
					t.Errorf("unexpected result: json.Marshal(%#v) --> %s", image, actual)
				}
			}
			{
				type Yaml struct {
					Image *containers.Image `yaml:"image"`
				}
				actual := string(try.To(yaml.Marshal(Yaml{Image: &image})).OrFatal(t))
				expected := `image: "` + expr + `"` + "\n"
				if actual != expected {
					t.Errorf("unexpected result: yaml.Marshal(%#v) --> %s", image, actual)
				}
			}
		}
	}

	t.Run("repository and tag", theory("python:3.7-slim", containers.Image{
		Repository: "python",
		Tag:        "3.7-slim",
	}))

	t.Run("registry, repository and tag", theory("registry.invalid/dlhub/base:latest", containers.Image{
		Repository: "registry.invalid/dlhub/base",
		Tag:        "latest",
	}))

	t.Run("parse error for a bare name", func(t *testing.T) {
		if err := new(containers.Image).Parse("::::"); err == nil {
			t.Error("no error for a broken reference")
		}
	})
}

func publishedDocument() metadata.Document {
	return metadata.Document{
		Dlhub: metadata.Admin{
			Owner:         "wardlt",
			Name:          "iris_svm",
			ShorthandName: "wardlt/iris_svm",
			Type:          metadata.TypeServable,
			TransferMethod: map[string]string{
				"S3": "https://s3.invalid/dlhub/wardlt/iris_svm.zip",
			},
		},
		Servable: &apiservables.Servable{
			Dependencies: &apiservables.Dependencies{
				Python: map[string]string{
					"scikit-learn": "0.21.3",
					"numpy":        "1.16.4",
				},
			},
		},
	}
}

func TestSpecFor(t *testing.T) {
	t.Run("a published servable maps onto a build spec", func(t *testing.T) {
		spec := try.To(containers.SpecFor(publishedDocument())).OrFatal(t)

		if spec.Name != "wardlt/iris_svm" {
			t.Errorf("name unmatch: got %s", spec.Name)
		}
		if spec.PayloadURL != "https://s3.invalid/dlhub/wardlt/iris_svm.zip" {
			t.Errorf("payload unmatch: got %s", spec.PayloadURL)
		}
		if spec.PythonVersion != containers.DefaultPythonVersion {
			t.Errorf("python version unmatch: got %s", spec.PythonVersion)
		}
		wantPip := []string{"numpy==1.16.4", "scikit-learn==0.21.3"}
		if !cmp.SliceEq(spec.Pip, wantPip) {
			t.Errorf("pip unmatch: got %+v", spec.Pip)
		}
		if !cmp.SliceEq(spec.Conda, []string{}) {
			t.Errorf("conda unmatch: got %+v", spec.Conda)
		}
		if spec.BaseImage != nil {
			t.Errorf("base image from nowhere: %+v", spec.BaseImage)
		}
	})

	t.Run("options override the defaults", func(t *testing.T) {
		base := containers.Image{Repository: "python", Tag: "3.10-slim"}
		spec := try.To(containers.SpecFor(
			publishedDocument(),
			containers.WithPythonVersion("3.10"),
			containers.WithBaseImage(base),
			containers.WithConda("mkl", "openblas"),
		)).OrFatal(t)

		if spec.PythonVersion != "3.10" {
			t.Errorf("python version unmatch: got %s", spec.PythonVersion)
		}
		if !base.Equal(spec.BaseImage) {
			t.Errorf("base image unmatch: got %+v", spec.BaseImage)
		}
		if !cmp.SliceEq(spec.Conda, []string{"mkl", "openblas"}) {
			t.Errorf("conda unmatch: got %+v", spec.Conda)
		}
	})

	t.Run("a repository wins over the S3 location", func(t *testing.T) {
		spec := try.To(containers.SpecFor(
			publishedDocument(),
			containers.WithRepository("https://github.invalid/wardlt/iris_svm"),
		)).OrFatal(t)

		if spec.PayloadURL != "https://github.invalid/wardlt/iris_svm" {
			t.Errorf("payload unmatch: got %s", spec.PayloadURL)
		}
	})

	t.Run("owner and name stand in for a missing shorthand", func(t *testing.T) {
		doc := publishedDocument()
		doc.Dlhub.ShorthandName = ""

		spec := try.To(containers.SpecFor(doc)).OrFatal(t)
		if spec.Name != "wardlt/iris_svm" {
			t.Errorf("name unmatch: got %s", spec.Name)
		}
	})

	t.Run("no dependencies means empty pins", func(t *testing.T) {
		doc := publishedDocument()
		doc.Servable.Dependencies = nil

		spec := try.To(containers.SpecFor(doc)).OrFatal(t)
		if !cmp.SliceEq(spec.Pip, []string{}) {
			t.Errorf("pip unmatch: got %+v", spec.Pip)
		}
	})

	t.Run("no payload location is an error", func(t *testing.T) {
		doc := publishedDocument()
		doc.Dlhub.TransferMethod = nil

		_, err := containers.SpecFor(doc)
		if !errors.Is(err, containers.ErrNoPayload) {
			t.Errorf("error is not ErrNoPayload: %+v", err)
		}
	})
}
