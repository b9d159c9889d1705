// Package pipelines builds descriptions of chained servables.
package pipelines

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/datacite"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	apipipelines "github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/pipelines"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/models"
)

var ErrBadPipeline = errors.New("bad pipeline description")

// Builder composes published servables into a pipeline. Each step
// names a servable by its owner and name; the output of one step
// feeds the next.
type Builder struct {
	models.Base
}

func New() (*Builder, error) {
	base, err := models.New(metadata.TypePipeline)
	if err != nil {
		return nil, err
	}
	doc := base.Metadata()
	doc.Datacite.ResourceType = &datacite.ResourceType{
		ResourceTypeGeneral: datacite.ResourceInteractive,
	}
	doc.Pipeline = &apipipelines.Pipeline{Steps: []apipipelines.Step{}}
	return &Builder{Base: base}, nil
}

// AddStep appends a servable to the pipeline. The servable is
// identified by the username of its owner and its name, as they
// appear when it was published. Parameters override the defaults the
// servable declares and may be nil.
func (b *Builder) AddStep(author string, name string, description string, parameters map[string]any) error {
	if strings.TrimSpace(author) == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: a step needs an author and a name", ErrBadPipeline)
	}
	pipe := b.Metadata().Pipeline
	pipe.Steps = append(pipe.Steps, apipipelines.Step{
		Author:      author,
		Name:        name,
		Description: description,
		Parameters:  parameters,
	})
	return nil
}

// Build renders the description.
func (b *Builder) Build() (metadata.Document, error) {
	pipe := b.Metadata().Pipeline
	if len(pipe.Steps) == 0 {
		return metadata.Document{}, fmt.Errorf("%w: no steps", ErrBadPipeline)
	}
	return b.Document()
}
