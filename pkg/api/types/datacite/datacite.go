package datacite

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/cmp"
)

var ErrInvalidDatacite = errors.New("invalid datacite block")

// Datacite is the bibliographic block of a metadata document.
type Datacite struct {
	Creators             []Creator             `json:"creators" yaml:"creators"`
	Titles               []Title               `json:"titles" yaml:"titles"`
	Publisher            string                `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PublicationYear      string                `json:"publicationYear,omitempty" yaml:"publicationYear,omitempty"`
	Identifier           *Identifier           `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	Descriptions         []Description         `json:"descriptions" yaml:"descriptions"`
	FundingReferences    []FundingReference    `json:"fundingReferences" yaml:"fundingReferences"`
	RelatedIdentifiers   []RelatedIdentifier   `json:"relatedIdentifiers" yaml:"relatedIdentifiers"`
	AlternateIdentifiers []AlternateIdentifier `json:"alternateIdentifiers" yaml:"alternateIdentifiers"`
	RightsList           []Rights              `json:"rightsList" yaml:"rightsList"`
	ResourceType         *ResourceType         `json:"resourceType,omitempty" yaml:"resourceType,omitempty"`
	Version              string                `json:"version,omitempty" yaml:"version,omitempty"`
	Subjects             []Subject             `json:"subjects,omitempty" yaml:"subjects,omitempty"`
}

func (d Datacite) Equal(o Datacite) bool {
	return cmp.SliceEqWith(d.Creators, o.Creators, Creator.Equal) &&
		cmp.SliceEq(d.Titles, o.Titles) &&
		d.Publisher == o.Publisher &&
		d.PublicationYear == o.PublicationYear &&
		cmp.PEqualWith(d.Identifier, o.Identifier, func(a, b Identifier) bool { return a == b }) &&
		cmp.SliceEq(d.Descriptions, o.Descriptions) &&
		cmp.SliceEqWith(d.FundingReferences, o.FundingReferences, FundingReference.Equal) &&
		cmp.SliceEq(d.RelatedIdentifiers, o.RelatedIdentifiers) &&
		cmp.SliceEq(d.AlternateIdentifiers, o.AlternateIdentifiers) &&
		cmp.SliceEq(d.RightsList, o.RightsList) &&
		cmp.PEqualWith(d.ResourceType, o.ResourceType, func(a, b ResourceType) bool { return a == b }) &&
		d.Version == o.Version &&
		cmp.SliceEq(d.Subjects, o.Subjects)
}

// Title returns the first title, or "" when none is set.
func (d Datacite) Title() string {
	if len(d.Titles) == 0 {
		return ""
	}
	return d.Titles[0].Title
}

type Creator struct {
	CreatorName     string           `json:"creatorName,omitempty" yaml:"creatorName,omitempty"`
	GivenName       string           `json:"givenName,omitempty" yaml:"givenName,omitempty"`
	FamilyName      string           `json:"familyName,omitempty" yaml:"familyName,omitempty"`
	Affiliations    []string         `json:"affiliations,omitempty" yaml:"affiliations,omitempty"`
	NameIdentifiers []NameIdentifier `json:"nameIdentifiers,omitempty" yaml:"nameIdentifiers,omitempty"`
}

func (c Creator) Equal(o Creator) bool {
	return c.CreatorName == o.CreatorName &&
		c.GivenName == o.GivenName &&
		c.FamilyName == o.FamilyName &&
		cmp.SliceEq(c.Affiliations, o.Affiliations) &&
		cmp.SliceEq(c.NameIdentifiers, o.NameIdentifiers)
}

type NameIdentifier struct {
	NameIdentifier       string `json:"nameIdentifier" yaml:"nameIdentifier"`
	NameIdentifierScheme string `json:"nameIdentifierScheme,omitempty" yaml:"nameIdentifierScheme,omitempty"`
	SchemeURI            string `json:"schemeURI,omitempty" yaml:"schemeURI,omitempty"`
}

type Title struct {
	Title string `json:"title" yaml:"title"`
}

type Subject struct {
	Subject string `json:"subject" yaml:"subject"`
}

type Identifier struct {
	Identifier     string `json:"identifier" yaml:"identifier"`
	IdentifierType string `json:"identifierType" yaml:"identifierType"`
}

type Description struct {
	Description     string `json:"description" yaml:"description"`
	DescriptionType string `json:"descriptionType" yaml:"descriptionType"`
}

const (
	DescriptionAbstract = "Abstract"
	DescriptionMethods  = "Methods"
)

type Rights struct {
	RightsURI string `json:"rightsURI,omitempty" yaml:"rightsURI,omitempty"`
	Rights    string `json:"rights,omitempty" yaml:"rights,omitempty"`
}

type ResourceType struct {
	ResourceTypeGeneral string `json:"resourceTypeGeneral" yaml:"resourceTypeGeneral"`
}

const (
	ResourceInteractive = "InteractiveResource"
	ResourceDataset     = "Dataset"
)

type AlternateIdentifier struct {
	AlternateIdentifier     string `json:"alternateIdentifier" yaml:"alternateIdentifier"`
	AlternateIdentifierType string `json:"alternateIdentifierType" yaml:"alternateIdentifierType"`
}

// RelatedIdentifierType is the scheme of a related identifier.
type RelatedIdentifierType string

var relatedIdentifierTypes = map[RelatedIdentifierType]struct{}{
	"ARK": {}, "arXiv": {}, "bibcode": {}, "DOI": {}, "EAN13": {}, "EISSN": {},
	"Handle": {}, "IGSN": {}, "ISBN": {}, "ISSN": {}, "ISTC": {}, "LISSN": {},
	"LSID": {}, "PMID": {}, "PURL": {}, "UPC": {}, "URL": {}, "URN": {},
}

func (t RelatedIdentifierType) Validate() error {
	if _, ok := relatedIdentifierTypes[t]; !ok {
		return fmt.Errorf("%w: unknown identifier type (%s)", ErrInvalidDatacite, t)
	}
	return nil
}

func (t *RelatedIdentifierType) UnmarshalJSON(b []byte) error {
	s := new(string)
	if err := json.Unmarshal(b, s); err != nil {
		return err
	}
	*t = RelatedIdentifierType(*s)
	return t.Validate()
}

// RelationType says how a related identifier relates to this resource.
type RelationType string

var relationTypes = map[RelationType]struct{}{
	"IsCitedBy": {}, "Cites": {}, "IsSupplementTo": {}, "IsSupplementedBy": {},
	"IsContinuedBy": {}, "Continues": {}, "IsNewVersionOf": {}, "IsPreviousVersionOf": {},
	"IsPartOf": {}, "HasPart": {}, "IsReferencedBy": {}, "References": {},
	"IsDocumentedBy": {}, "Documents": {}, "IsCompiledBy": {}, "Compiles": {},
	"IsVariantFormOf": {}, "IsOriginalFormOf": {}, "IsIdenticalTo": {}, "HasMetadata": {},
	"IsMetadataFor": {}, "Reviews": {}, "IsReviewedBy": {}, "IsDerivedFrom": {},
	"IsSourceOf": {}, "IsDescribedBy": {}, "Describes": {},
}

func (t RelationType) Validate() error {
	if _, ok := relationTypes[t]; !ok {
		return fmt.Errorf("%w: unknown relation type (%s)", ErrInvalidDatacite, t)
	}
	return nil
}

func (t *RelationType) UnmarshalJSON(b []byte) error {
	s := new(string)
	if err := json.Unmarshal(b, s); err != nil {
		return err
	}
	*t = RelationType(*s)
	return t.Validate()
}

type RelatedIdentifier struct {
	RelatedIdentifier     string                `json:"relatedIdentifier" yaml:"relatedIdentifier"`
	RelatedIdentifierType RelatedIdentifierType `json:"relatedIdentifierType" yaml:"relatedIdentifierType"`
	RelationType          RelationType          `json:"relationType" yaml:"relationType"`
}

func (r RelatedIdentifier) Validate() error {
	if err := r.RelatedIdentifierType.Validate(); err != nil {
		return err
	}
	return r.RelationType.Validate()
}

// FunderIdentifierType is the scheme of a funder identifier.
type FunderIdentifierType string

const (
	FunderISNI     FunderIdentifierType = "ISNI"
	FunderGRID     FunderIdentifierType = "GRID"
	FunderCrossref FunderIdentifierType = "Crossref Funder ID"
	FunderOther    FunderIdentifierType = "Other"
)

func (t FunderIdentifierType) Validate() error {
	switch t {
	case FunderISNI, FunderGRID, FunderCrossref, FunderOther:
		return nil
	}
	return fmt.Errorf("%w: identifier type not recognized (%s)", ErrInvalidDatacite, t)
}

type FunderIdentifier struct {
	FunderIdentifier     string               `json:"funderIdentifier" yaml:"funderIdentifier"`
	FunderIdentifierType FunderIdentifierType `json:"funderIdentifierType" yaml:"funderIdentifierType"`
}

type AwardNumber struct {
	AwardNumber string `json:"awardNumber" yaml:"awardNumber"`
	AwardURI    string `json:"awardURI,omitempty" yaml:"awardURI,omitempty"`
}

type FundingReference struct {
	FunderName       string            `json:"funderName" yaml:"funderName"`
	FunderIdentifier *FunderIdentifier `json:"funderIdentifier,omitempty" yaml:"funderIdentifier,omitempty"`
	AwardNumber      *AwardNumber      `json:"awardNumber,omitempty" yaml:"awardNumber,omitempty"`
	AwardTitle       string            `json:"awardTitle,omitempty" yaml:"awardTitle,omitempty"`
}

func (f FundingReference) Equal(o FundingReference) bool {
	return f.FunderName == o.FunderName &&
		cmp.PEqualWith(f.FunderIdentifier, o.FunderIdentifier, func(a, b FunderIdentifier) bool { return a == b }) &&
		cmp.PEqualWith(f.AwardNumber, o.AwardNumber, func(a, b AwardNumber) bool { return a == b }) &&
		f.AwardTitle == o.AwardTitle
}
