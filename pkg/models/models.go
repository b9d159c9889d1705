// Package models builds publication documents step by step.
//
// A builder starts from sensible defaults, takes the details only a
// human can supply (title, name, authors, ...) through setter methods,
// and renders a validated document at the end.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/datacite"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/buildtime"
	"github.com/google/uuid"
)

var ErrBadDescription = errors.New("bad description")

// UnassignedDOI is the identifier a document carries until a real DOI
// is minted for it.
const UnassignedDOI = "10.YET/UNASSIGNED"

// Base holds the document under construction and the methods shared by
// every builder: the bibliographic block and the administrative block.
type Base struct {
	doc metadata.Document
}

// New starts a description of the given artifact type with the default
// bibliographic fields filled in.
func New(t metadata.ArtifactType) (Base, error) {
	if err := t.Validate(); err != nil {
		return Base{}, err
	}
	return Base{doc: metadata.Document{
		Datacite: datacite.Datacite{
			Creators:        []datacite.Creator{},
			Titles:          []datacite.Title{},
			Publisher:       "DLHub",
			PublicationYear: strconv.Itoa(time.Now().Year()),
			Identifier: &datacite.Identifier{
				Identifier: UnassignedDOI, IdentifierType: "DOI",
			},
		},
		Dlhub: metadata.Admin{
			Version:   buildtime.VERSION(),
			Domains:   []string{},
			VisibleTo: []string{"public"},
			Type:      t,
		},
	}}, nil
}

// FromDocument restores a builder from a parsed document, so a saved
// description can be edited and resubmitted.
func FromDocument(doc metadata.Document) (Base, error) {
	if err := doc.Validate(); err != nil {
		return Base{}, err
	}
	return Base{doc: doc}, nil
}

// Metadata exposes the document under construction. Builders layered on
// Base use it to fill their body blocks.
func (b *Base) Metadata() *metadata.Document {
	return &b.doc
}

// Document renders a deep copy of the description and validates it.
func (b *Base) Document() (metadata.Document, error) {
	raw, err := json.Marshal(b.doc)
	if err != nil {
		return metadata.Document{}, err
	}
	out := metadata.Document{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return metadata.Document{}, err
	}
	if err := out.Validate(); err != nil {
		return metadata.Document{}, err
	}
	return out, nil
}

func (b *Base) Name() string {
	return b.doc.Dlhub.Name
}

func (b *Base) Title() string {
	return b.doc.Datacite.Title()
}

func (b *Base) ID() string {
	return b.doc.Dlhub.ID
}

func (b *Base) SetTitle(title string) {
	if len(b.doc.Datacite.Titles) == 0 {
		b.doc.Datacite.Titles = []datacite.Title{{}}
	}
	b.doc.Datacite.Titles[0].Title = title
}

// SetName names the artifact. Names are used in URLs and shorthand
// references, so whitespace is rejected.
func (b *Base) SetName(name string) error {
	if strings.ContainsAny(name, " \t\n\r") || name == "" {
		return fmt.Errorf("%w: name cannot contain any whitespace (%q)", ErrBadDescription, name)
	}
	b.doc.Dlhub.Name = name
	return nil
}

// SetAuthors replaces the creator list. Each author is written
// "Family, Given"; affiliations line up with authors by position and
// may run short.
func (b *Base) SetAuthors(authors []string, affiliations [][]string) error {
	creators := make([]datacite.Creator, 0, len(authors))
	for i, author := range authors {
		family, given, ok := strings.Cut(author, ",")
		if !ok {
			return fmt.Errorf(`%w: author %q should be written "Family, Given"`, ErrBadDescription, author)
		}
		c := datacite.Creator{
			FamilyName:  strings.TrimSpace(family),
			GivenName:   strings.TrimSpace(given),
			CreatorName: strings.TrimSpace(family) + ", " + strings.TrimSpace(given),
		}
		if i < len(affiliations) {
			c.Affiliations = affiliations[i]
		}
		creators = append(creators, c)
	}
	b.doc.Datacite.Creators = creators
	return nil
}

// SetAbstract sets the high-level summary, replacing any previous one.
func (b *Base) SetAbstract(abstract string) {
	b.setDescription(abstract, datacite.DescriptionAbstract)
}

// SetMethods describes how the artifact was produced, replacing any
// previous methods section.
func (b *Base) SetMethods(methods string) {
	b.setDescription(methods, datacite.DescriptionMethods)
}

func (b *Base) setDescription(text string, descriptionType string) {
	kept := make([]datacite.Description, 0, len(b.doc.Datacite.Descriptions)+1)
	for _, d := range b.doc.Datacite.Descriptions {
		if d.DescriptionType != descriptionType {
			kept = append(kept, d)
		}
	}
	b.doc.Datacite.Descriptions = append(kept, datacite.Description{
		Description: text, DescriptionType: descriptionType,
	})
}

func (b *Base) SetDomains(domains ...string) {
	b.doc.Dlhub.Domains = domains
}

// SetVisibleTo restricts who can see the artifact, listed by auth UUID.
// The default is ["public"].
func (b *Base) SetVisibleTo(users ...string) {
	b.doc.Dlhub.VisibleTo = users
}

func (b *Base) SetDOI(doi string) {
	b.doc.Datacite.Identifier = &datacite.Identifier{
		Identifier: doi, IdentifierType: "DOI",
	}
}

func (b *Base) SetID(id string) {
	b.doc.Dlhub.ID = id
}

// AssignID gives the artifact a fresh random identifier and returns it.
func (b *Base) AssignID() string {
	id := uuid.NewString()
	b.doc.Dlhub.ID = id
	return id
}

func (b *Base) SetVersion(version string) {
	b.doc.Datacite.Version = version
}

func (b *Base) SetPublicationYear(year int) {
	b.doc.Datacite.PublicationYear = strconv.Itoa(year)
}

// AddRights records rights information. At least one of the URI and the
// rights text is required.
func (b *Base) AddRights(uri string, rights string) error {
	if uri == "" && rights == "" {
		return fmt.Errorf("%w: either a URI or the rights text is required", ErrBadDescription)
	}
	b.doc.Datacite.RightsList = append(b.doc.Datacite.RightsList, datacite.Rights{
		Rights: rights, RightsURI: uri,
	})
	return nil
}

// AddFundingReference records a funding source. The funder identifier
// scheme, when present, must be one datacite knows.
func (b *Base) AddFundingReference(ref datacite.FundingReference) error {
	if ref.FunderName == "" {
		return fmt.Errorf("%w: funder name is required", ErrBadDescription)
	}
	if ref.FunderIdentifier != nil {
		if err := ref.FunderIdentifier.FunderIdentifierType.Validate(); err != nil {
			return err
		}
	}
	b.doc.Datacite.FundingReferences = append(b.doc.Datacite.FundingReferences, ref)
	return nil
}

func (b *Base) AddAlternateIdentifier(identifier string, identifierType string) {
	b.doc.Datacite.AlternateIdentifiers = append(b.doc.Datacite.AlternateIdentifiers,
		datacite.AlternateIdentifier{
			AlternateIdentifier:     identifier,
			AlternateIdentifierType: identifierType,
		})
}

// AddRelatedIdentifier links another resource, like the paper that
// describes a model.
func (b *Base) AddRelatedIdentifier(
	identifier string,
	identifierType datacite.RelatedIdentifierType,
	relationType datacite.RelationType,
) error {
	rel := datacite.RelatedIdentifier{
		RelatedIdentifier:     identifier,
		RelatedIdentifierType: identifierType,
		RelationType:          relationType,
	}
	if err := rel.Validate(); err != nil {
		return err
	}
	b.doc.Datacite.RelatedIdentifiers = append(b.doc.Datacite.RelatedIdentifiers, rel)
	return nil
}

// AddFile ships a file with the artifact, with no distinguished role.
func (b *Base) AddFile(path string) {
	b.doc.Dlhub.Files.Add(path)
}

// AddFileAs ships a file under a role the serving shim looks up, like
// "model" or "pickle".
func (b *Base) AddFileAs(role string, path string) {
	b.doc.Dlhub.Files.AddAs(role, path)
}

func (b *Base) AddFiles(paths ...string) {
	for _, p := range paths {
		b.AddFile(p)
	}
}

// AddDirectory ships every regular file in a directory, descending into
// subdirectories when recursive is set.
func (b *Base) AddDirectory(dir string, recursive bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			b.AddFile(path)
		}
		return nil
	})
}

// ReadCodemeta loads a codemeta.json file from dir and folds what it
// declares over the bibliographic block.
func (b *Base) ReadCodemeta(dir string) error {
	raw, err := os.ReadFile(filepath.Join(dir, "codemeta.json"))
	if err != nil {
		return err
	}
	codemeta := map[string]any{}
	if err := json.Unmarshal(raw, &codemeta); err != nil {
		return err
	}

	dc, err := datacite.FromCodemeta(codemeta)
	if err != nil {
		return err
	}

	if dc.Creators != nil {
		b.doc.Datacite.Creators = dc.Creators
	}
	if dc.Titles != nil {
		b.doc.Datacite.Titles = dc.Titles
	}
	if dc.RightsList != nil {
		b.doc.Datacite.RightsList = dc.RightsList
	}
	if dc.Subjects != nil {
		b.doc.Datacite.Subjects = dc.Subjects
	}
	if dc.FundingReferences != nil {
		b.doc.Datacite.FundingReferences = dc.FundingReferences
	}
	return nil
}
