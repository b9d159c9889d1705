// Package servables builds servable descriptions: metadata for models
// and functions that DLHub can host and run.
package servables

import (
	"errors"
	"fmt"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/datacite"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	apiservables "github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/servables"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/models"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/pointer"
)

var ErrBadServable = errors.New("bad servable description")

// Builder describes a servable. On top of the bibliographic methods it
// inherits, it manages the servable body block: methods, their argument
// types and the dependencies needed to run them.
type Builder struct {
	models.Base
}

func newBuilder(shim string, servableType string) (*Builder, error) {
	base, err := models.New(metadata.TypeServable)
	if err != nil {
		return nil, err
	}

	doc := base.Metadata()

	// servables are web services to interact with, not software to
	// download, hence InteractiveResource
	doc.Datacite.ResourceType = &datacite.ResourceType{
		ResourceTypeGeneral: datacite.ResourceInteractive,
	}
	doc.Servable = &apiservables.Servable{
		Language: "python",
		Type:     servableType,
		Shim:     shim,
		Methods:  map[string]apiservables.Method{"run": {}},
	}

	return &Builder{Base: base}, nil
}

func (b *Builder) servable() *apiservables.Servable {
	return b.Metadata().Servable
}

// RegisterFunction adds a callable beyond the default "run" method.
func (b *Builder) RegisterFunction(
	name string,
	input argtype.ArgumentType,
	output argtype.ArgumentType,
	parameters map[string]any,
	methodDetails map[string]any,
) {
	b.servable().Methods[name] = apiservables.Method{
		Input:         pointer.Ref(input),
		Output:        pointer.Ref(output),
		Parameters:    parameters,
		MethodDetails: methodDetails,
	}
}

// SetInputs declares the argument type of the default "run" method.
func (b *Builder) SetInputs(t argtype.ArgumentType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m := b.servable().Methods["run"]
	m.Input = pointer.Ref(t)
	b.servable().Methods["run"] = m
	return nil
}

// SetOutputs declares the result type of the default "run" method.
func (b *Builder) SetOutputs(t argtype.ArgumentType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m := b.servable().Methods["run"]
	m.Output = pointer.Ref(t)
	b.servable().Methods["run"] = m
	return nil
}

// SetInputDescription replaces the human-readable description of the
// "run" inputs. Framework builders fill shapes automatically but cannot
// know what the data means.
func (b *Builder) SetInputDescription(description string) error {
	m := b.servable().Methods["run"]
	if m.Input == nil {
		return fmt.Errorf("%w: inputs have not been defined", ErrBadServable)
	}
	m.Input.Description = description
	return nil
}

// SetOutputDescription replaces the human-readable description of the
// "run" outputs.
func (b *Builder) SetOutputDescription(description string) error {
	m := b.servable().Methods["run"]
	if m.Output == nil {
		return fmt.Errorf("%w: outputs have not been defined", ErrBadServable)
	}
	m.Output.Description = description
	return nil
}

// SetUnpackInputs says whether the shim spreads the input collection
// over the function's arguments. Only collection inputs can unpack.
func (b *Builder) SetUnpackInputs(unpack bool) error {
	m := b.servable().Methods["run"]
	if m.Input == nil {
		return fmt.Errorf("%w: inputs have not been defined", ErrBadServable)
	}
	switch m.Input.Type {
	case argtype.List, argtype.Tuple:
		// ok
	default:
		return fmt.Errorf(`%w: only "list" and "tuple" inputs are compatible with unpacking, not %s`,
			ErrBadServable, m.Input.Type)
	}

	if m.MethodDetails == nil {
		m.MethodDetails = map[string]any{}
	}
	m.MethodDetails["unpack"] = unpack
	b.servable().Methods["run"] = m
	return nil
}

// AddRequirement pins a python package the servable needs. Versions
// must be explicit; markers like "detect" or "latest" are not resolved
// here.
func (b *Builder) AddRequirement(pkg string, version string) error {
	if pkg == "" || version == "" {
		return fmt.Errorf("%w: requirement needs a package and a version", ErrBadServable)
	}
	switch version {
	case "detect", "latest":
		return fmt.Errorf("%w: requirement %s needs an explicit version, not %q",
			ErrBadServable, pkg, version)
	}

	s := b.servable()
	if s.Dependencies == nil {
		s.Dependencies = &apiservables.Dependencies{}
	}
	if s.Dependencies.Python == nil {
		s.Dependencies.Python = map[string]string{}
	}
	s.Dependencies.Python[pkg] = version
	return nil
}

// AddRequirements pins several python packages at once.
func (b *Builder) AddRequirements(requirements map[string]string) error {
	for pkg, version := range requirements {
		if err := b.AddRequirement(pkg, version); err != nil {
			return err
		}
	}
	return nil
}

// Build renders the description. The default "run" method must have
// both its input and output types declared by now.
func (b *Builder) Build() (metadata.Document, error) {
	if err := b.servable().Validate(); err != nil {
		return metadata.Document{}, err
	}
	return b.Document()
}

func (b *Builder) setOption(key string, value any) {
	s := b.servable()
	if s.Options == nil {
		s.Options = map[string]any{}
	}
	s.Options[key] = value
}

func (b *Builder) runDetails() map[string]any {
	m := b.servable().Methods["run"]
	if m.MethodDetails == nil {
		m.MethodDetails = map[string]any{}
		b.servable().Methods["run"] = m
	}
	return m.MethodDetails
}

func (b *Builder) setRunParameters(parameters map[string]any) {
	m := b.servable().Methods["run"]
	m.Parameters = parameters
	b.servable().Methods["run"] = m
}
