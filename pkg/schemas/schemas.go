// Package schemas validates documents against the DLHub JSON Schemas.
//
// The schemas are compiled into the binary, so validation works offline
// and cannot drift from the SDK that ships it.
package schemas

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed *.json
var schemaFiles embed.FS

// Names of the known schemas.
const (
	Servable = "servable"
	Dataset  = "dataset"
	Pipeline = "pipeline"
)

const baseURL = "https://dlhub.org/schemas/"

var (
	ErrUnknownSchema   = errors.New("unknown schema")
	ErrSchemaViolation = errors.New("schema violation")
)

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func compile() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()

		entries, err := schemaFiles.ReadDir(".")
		if err != nil {
			compileErr = err
			return
		}
		for _, e := range entries {
			raw, err := schemaFiles.ReadFile(e.Name())
			if err != nil {
				compileErr = err
				return
			}
			if err := c.AddResource(baseURL+e.Name(), bytes.NewReader(raw)); err != nil {
				compileErr = err
				return
			}
		}

		compiled = map[string]*jsonschema.Schema{}
		for _, name := range []string{Servable, Dataset, Pipeline} {
			s, err := c.Compile(baseURL + name + ".json")
			if err != nil {
				compileErr = err
				return
			}
			compiled[name] = s
		}
	})
	return compiled, compileErr
}

// Validate checks doc against the named schema. doc can be a decoded
// JSON tree or any JSON-marshalable value; structs are passed through
// their own marshalling before validation so custom wire shapes hold.
func Validate(doc any, schema string) error {
	all, err := compile()
	if err != nil {
		return err
	}
	s, ok := all[schema]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, schema)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	tree := any(nil)
	if err := json.Unmarshal(raw, &tree); err != nil {
		return err
	}

	if err := s.Validate(tree); err != nil {
		return fmt.Errorf("%w: %s", ErrSchemaViolation, err)
	}
	return nil
}
