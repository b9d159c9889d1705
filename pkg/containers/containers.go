package containers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/go-containerregistry/pkg/name"
	"gopkg.in/yaml.v3"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
)

// DefaultPythonVersion is pinned into container specs unless the caller
// asks for another one.
const DefaultPythonVersion = "3.7"

// ErrNoPayload means a document carries no location the container
// service could fetch the servable payload from.
var ErrNoPayload = errors.New("no payload location")

// Image is a container image reference, "[registry/]name:tag" on the wire.
type Image struct {
	Repository string
	Tag        string
}

func (i *Image) Equal(o *Image) bool {
	if (i == nil) || (o == nil) {
		return (i == nil) && (o == nil)
	}
	return i.Repository == o.Repository &&
		i.Tag == o.Tag
}

// Parse reads s as a docker image tag[^1] and updates the Image.
//
// [^1]: https://docs.docker.com/engine/reference/commandline/tag/#description
func (i *Image) Parse(s string) error {
	// [<repository>[:<port>]/]<name>:<tag>

	ref, err := name.NewTag(s, name.WithDefaultRegistry(""))
	if err != nil {
		return err
	}

	i.Repository = ref.Repository.Name()
	i.Tag = ref.TagStr()
	return nil
}

func (i *Image) marshal() string {
	if i.Repository == "" && i.Tag == "" {
		return ""
	}
	return fmt.Sprintf(`%s:%s`, i.Repository, i.Tag)
}

func (i Image) MarshalJSON() ([]byte, error) {
	b := bytes.NewBufferString(`"`)
	b.WriteString(i.marshal())
	b.WriteString(`"`)
	return b.Bytes(), nil
}

func (i Image) MarshalYAML() (interface{}, error) {
	n := yaml.Node{
		Kind:  yaml.ScalarNode,
		Value: i.marshal(),
		Style: yaml.DoubleQuotedStyle,
	}
	return n, nil
}

func (i *Image) UnmarshalJSON(b []byte) error {
	expr := new(string)
	err := json.Unmarshal(b, expr)
	if err != nil {
		return err
	}
	return i.Parse(*expr)
}

func (i *Image) UnmarshalYAML(node *yaml.Node) error {
	expr := new(string)
	err := node.Decode(expr)
	if err != nil {
		return err
	}
	return i.Parse(*expr)
}

func (i *Image) String() string {
	return i.marshal()
}

// Spec is what the container service needs to build an image that
// serves a published model.
type Spec struct {
	Name          string   `json:"name" yaml:"name"`
	PayloadURL    string   `json:"payload_url" yaml:"payload_url"`
	PythonVersion string   `json:"python_version" yaml:"python_version"`
	BaseImage     *Image   `json:"base_image,omitempty" yaml:"base_image,omitempty"`
	Pip           []string `json:"pip" yaml:"pip"`
	Conda         []string `json:"conda" yaml:"conda"`
}

type specOption struct {
	pythonVersion string
	baseImage     *Image
	repository    string
	conda         []string
}

type SpecOption func(*specOption) *specOption

// WithPythonVersion overrides DefaultPythonVersion.
func WithPythonVersion(version string) SpecOption {
	return func(o *specOption) *specOption {
		o.pythonVersion = version
		return o
	}
}

// WithBaseImage builds on the given image instead of the service default.
func WithBaseImage(image Image) SpecOption {
	return func(o *specOption) *specOption {
		o.baseImage = &image
		return o
	}
}

// WithRepository points the build at a source repository. It takes
// precedence over the S3 location in the document's transfer method.
func WithRepository(url string) SpecOption {
	return func(o *specOption) *specOption {
		o.repository = url
		return o
	}
}

// WithConda adds conda packages to the build.
func WithConda(packages ...string) SpecOption {
	return func(o *specOption) *specOption {
		o.conda = append(o.conda, packages...)
		return o
	}
}

// SpecFor derives a build spec from a publishable document.
//
// The spec is named after the document's shorthand name, or owner/name
// when no shorthand has been assigned yet. Python dependencies become
// "pkg==version" pip pins. The payload comes from the S3 location in
// the document's transfer method unless WithRepository names a source
// repository instead; with neither, SpecFor returns ErrNoPayload.
func SpecFor(doc metadata.Document, options ...SpecOption) (Spec, error) {
	opt := &specOption{
		pythonVersion: DefaultPythonVersion,
		conda:         []string{},
	}
	for _, o := range options {
		opt = o(opt)
	}

	name := doc.Dlhub.ShorthandName
	if name == "" {
		name = doc.Dlhub.Name
		if doc.Dlhub.Owner != "" {
			name = doc.Dlhub.Owner + "/" + name
		}
	}

	pip := []string{}
	if doc.Servable != nil && doc.Servable.Dependencies != nil {
		for pkg, version := range doc.Servable.Dependencies.Python {
			pip = append(pip, fmt.Sprintf("%s==%s", pkg, version))
		}
		sort.Strings(pip)
	}

	payload := doc.Dlhub.TransferMethod["S3"]
	if opt.repository != "" {
		payload = opt.repository
	}
	if payload == "" {
		return Spec{}, fmt.Errorf("%w: %s", ErrNoPayload, name)
	}

	return Spec{
		Name:          name,
		PayloadURL:    payload,
		PythonVersion: opt.pythonVersion,
		BaseImage:     opt.baseImage,
		Pip:           pip,
		Conda:         opt.conda,
	}, nil
}
