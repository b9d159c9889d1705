package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/datacite"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/datasets"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/pipelines"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/servables"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/cmp"
	"gopkg.in/yaml.v3"
)

var ErrInvalidDocument = errors.New("invalid document")

// ArtifactType says what kind of artifact a document describes.
type ArtifactType string

const (
	TypeServable ArtifactType = "servable"
	TypeDataset  ArtifactType = "dataset"
	TypePipeline ArtifactType = "pipeline"
)

func (t ArtifactType) Validate() error {
	switch t {
	case TypeServable, TypeDataset, TypePipeline:
		return nil
	}
	return fmt.Errorf("%w: unknown artifact type (%s)", ErrInvalidDocument, t)
}

func (t *ArtifactType) UnmarshalJSON(b []byte) error {
	s := new(string)
	if err := json.Unmarshal(b, s); err != nil {
		return err
	}
	*t = ArtifactType(*s)
	return t.Validate()
}

func (t *ArtifactType) UnmarshalYAML(n *yaml.Node) error {
	s := new(string)
	if err := n.Decode(s); err != nil {
		return err
	}
	*t = ArtifactType(*s)
	return t.Validate()
}

// Timestamp is a point in time carried on the wire as unix milliseconds.
// Some service replies quote the number, so unmarshalling accepts both.
type Timestamp int64

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t))
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(t))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	{
		n := new(int64)
		if err := json.Unmarshal(b, n); err == nil {
			*t = Timestamp(*n)
			return nil
		}
	}

	s := new(string)
	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("%w: timestamp should be unix milliseconds", ErrInvalidDocument)
	}
	n, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: timestamp should be unix milliseconds (%s)", ErrInvalidDocument, *s)
	}
	*t = Timestamp(n)
	return nil
}

func (t Timestamp) MarshalYAML() (interface{}, error) {
	return int64(t), nil
}

func (t *Timestamp) UnmarshalYAML(n *yaml.Node) error {
	v := new(int64)
	if err := n.Decode(v); err == nil {
		*t = Timestamp(*v)
		return nil
	}

	s := new(string)
	if err := n.Decode(s); err != nil {
		return fmt.Errorf("%w: timestamp should be unix milliseconds", ErrInvalidDocument)
	}
	v2, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: timestamp should be unix milliseconds (%s)", ErrInvalidDocument, *s)
	}
	*t = Timestamp(v2)
	return nil
}

// Files tracks the files an artifact ships with. Distinguished roles
// ("model", "pickle", "data", ...) name exactly one path each; everything
// else goes in the "other" list.
//
// JSON shape: {"model": "m.pkl", "other": ["a", "b"]}
type Files struct {
	Named map[string]string
	Other []string
}

// Add records a file with no distinguished role.
func (f *Files) Add(path string) {
	f.Other = append(f.Other, path)
}

// AddAs records a file under a role, replacing any previous holder of
// that role. The role "other" appends instead.
func (f *Files) AddAs(role string, path string) {
	if role == "other" {
		f.Add(path)
		return
	}
	if f.Named == nil {
		f.Named = map[string]string{}
	}
	f.Named[role] = path
}

// List returns every tracked path, named roles first in role order,
// then the "other" list in insertion order.
func (f Files) List() []string {
	roles := make([]string, 0, len(f.Named))
	for role := range f.Named {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	paths := make([]string, 0, len(f.Named)+len(f.Other))
	for _, role := range roles {
		paths = append(paths, f.Named[role])
	}
	return append(paths, f.Other...)
}

// CommonBase returns the deepest directory containing every tracked
// file. Paths are made absolute first, so relative and absolute entries
// mix safely.
func (f Files) CommonBase() (string, error) {
	return CommonBase(f.List())
}

// Relocate rewrites every tracked path relative to base, dropping the
// local directory layout from the document before it is published.
func (f *Files) Relocate(base string) error {
	for role, path := range f.Named {
		rel, err := relocate(base, path)
		if err != nil {
			return err
		}
		f.Named[role] = rel
	}
	for i, path := range f.Other {
		rel, err := relocate(base, path)
		if err != nil {
			return err
		}
		f.Other[i] = rel
	}
	return nil
}

func relocate(base string, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not under %s", ErrInvalidDocument, path, base)
	}
	return filepath.ToSlash(rel), nil
}

// CommonBase returns the deepest directory common to the directories of
// all given files. For "/home/a.pkl" and "/home/a/b.dat" that is "/home".
func CommonBase(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: no files to take a common base of", ErrInvalidDocument)
	}

	base := ""
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		dir := filepath.Dir(abs)
		if base == "" {
			base = dir
			continue
		}
		for !isUnder(base, dir) {
			parent := filepath.Dir(base)
			if parent == base {
				return "", fmt.Errorf("%w: files share no common base", ErrInvalidDocument)
			}
			base = parent
		}
	}
	return base, nil
}

func isUnder(base string, dir string) bool {
	rel, err := filepath.Rel(base, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !startsWithDotDot(rel))
}

func startsWithDotDot(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

func (f Files) Equal(o Files) bool {
	return cmp.MapEq(f.Named, o.Named) && cmp.SliceEq(f.Other, o.Other)
}

func (f Files) wire() map[string]any {
	w := map[string]any{}
	for role, path := range f.Named {
		w[role] = path
	}
	if len(f.Other) != 0 {
		w["other"] = f.Other
	}
	return w
}

func (f *Files) fromWire(w map[string]any) error {
	*f = Files{}
	roles := make([]string, 0, len(w))
	for role := range w {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	for _, role := range roles {
		switch v := w[role].(type) {
		case string:
			if role == "other" {
				f.Other = append(f.Other, v)
				continue
			}
			if f.Named == nil {
				f.Named = map[string]string{}
			}
			f.Named[role] = v
		case []any:
			if role != "other" {
				return fmt.Errorf(`%w: file role "%s" should name a single path`, ErrInvalidDocument, role)
			}
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return fmt.Errorf(`%w: "other" files should be paths`, ErrInvalidDocument)
				}
				f.Other = append(f.Other, s)
			}
		default:
			return fmt.Errorf(`%w: file role "%s" should name a path`, ErrInvalidDocument, role)
		}
	}
	return nil
}

func (f Files) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.wire())
}

func (f *Files) UnmarshalJSON(b []byte) error {
	w := map[string]any{}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return f.fromWire(w)
}

func (f Files) MarshalYAML() (interface{}, error) {
	return f.wire(), nil
}

func (f *Files) UnmarshalYAML(n *yaml.Node) error {
	w := map[string]any{}
	if err := n.Decode(&w); err != nil {
		return err
	}
	return f.fromWire(w)
}

var namePattern = regexp.MustCompile(`^\S+$`)

// Admin is the administrative ("dlhub") block of a document.
type Admin struct {
	Version         string            `json:"version" yaml:"version"`
	Domains         []string          `json:"domains" yaml:"domains"`
	VisibleTo       []string          `json:"visible_to" yaml:"visible_to"`
	ID              string            `json:"id,omitempty" yaml:"id,omitempty"`
	Name            string            `json:"name,omitempty" yaml:"name,omitempty"`
	Type            ArtifactType      `json:"type" yaml:"type"`
	Files           Files             `json:"files" yaml:"files"`
	TransferMethod  map[string]string `json:"transfer_method,omitempty" yaml:"transfer_method,omitempty"`
	Owner           string            `json:"owner,omitempty" yaml:"owner,omitempty"`
	ShorthandName   string            `json:"shorthand_name,omitempty" yaml:"shorthand_name,omitempty"`
	PublicationDate Timestamp         `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`
}

func (a Admin) Validate() error {
	if err := a.Type.Validate(); err != nil {
		return err
	}
	if a.Name != "" && !namePattern.MatchString(a.Name) {
		return fmt.Errorf("%w: name cannot contain whitespace (%q)", ErrInvalidDocument, a.Name)
	}
	return nil
}

type admin Admin

func (a *Admin) UnmarshalJSON(b []byte) error {
	w := admin{}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*a = Admin(w)
	return a.Validate()
}

func (a *Admin) UnmarshalYAML(n *yaml.Node) error {
	w := admin{}
	if err := n.Decode(&w); err != nil {
		return err
	}
	*a = Admin(w)
	return a.Validate()
}

func (a Admin) Equal(o Admin) bool {
	return a.Version == o.Version &&
		a.ID == o.ID &&
		a.Name == o.Name &&
		a.Type == o.Type &&
		a.Owner == o.Owner &&
		a.ShorthandName == o.ShorthandName &&
		a.PublicationDate == o.PublicationDate &&
		cmp.SliceEq(a.Domains, o.Domains) &&
		cmp.SliceEq(a.VisibleTo, o.VisibleTo) &&
		a.Files.Equal(o.Files) &&
		cmp.MapEq(a.TransferMethod, o.TransferMethod)
}

// Document is a full description of a published artifact: the
// bibliographic block, the administrative block and exactly one body.
type Document struct {
	Datacite datacite.Datacite    `json:"datacite" yaml:"datacite"`
	Dlhub    Admin                `json:"dlhub" yaml:"dlhub"`
	Servable *servables.Servable  `json:"servable,omitempty" yaml:"servable,omitempty"`
	Dataset  *datasets.Dataset    `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Pipeline *pipelines.Pipeline  `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
}

// Validate checks that the document is ready to publish: it has a title
// and a name, and carries exactly one body matching its declared type.
func (d Document) Validate() error {
	if err := d.Dlhub.Validate(); err != nil {
		return err
	}
	if d.Datacite.Title() == "" {
		return fmt.Errorf("%w: title is not set", ErrInvalidDocument)
	}
	if d.Dlhub.Name == "" {
		return fmt.Errorf("%w: name is not set", ErrInvalidDocument)
	}

	bodies := 0
	if d.Servable != nil {
		bodies++
		if d.Dlhub.Type != TypeServable {
			return fmt.Errorf("%w: servable body on a %s document", ErrInvalidDocument, d.Dlhub.Type)
		}
	}
	if d.Dataset != nil {
		bodies++
		if d.Dlhub.Type != TypeDataset {
			return fmt.Errorf("%w: dataset body on a %s document", ErrInvalidDocument, d.Dlhub.Type)
		}
	}
	if d.Pipeline != nil {
		bodies++
		if d.Dlhub.Type != TypePipeline {
			return fmt.Errorf("%w: pipeline body on a %s document", ErrInvalidDocument, d.Dlhub.Type)
		}
	}
	if bodies != 1 {
		return fmt.Errorf("%w: a document should have exactly one body, got %d", ErrInvalidDocument, bodies)
	}
	return nil
}

func (d Document) Equal(o Document) bool {
	return d.Datacite.Equal(o.Datacite) &&
		d.Dlhub.Equal(o.Dlhub) &&
		cmp.PEqualWith(d.Servable, o.Servable, servables.Servable.Equal) &&
		cmp.PEqualWith(d.Dataset, o.Dataset, datasets.Dataset.Equal) &&
		cmp.PEqualWith(d.Pipeline, o.Pipeline, pipelines.Pipeline.Equal)
}
