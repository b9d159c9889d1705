package datacite

import (
	"fmt"
	"strings"
)

// FromCodemeta converts a decoded codemeta.json document into a Datacite
// block. Only the fields codemeta can express are filled; the rest of the
// block is left zero so the result can be merged over defaults.
func FromCodemeta(codemeta map[string]any) (Datacite, error) {
	out := Datacite{}

	if authors, ok := codemeta["author"].([]any); ok {
		for _, a := range authors {
			author, ok := a.(map[string]any)
			if !ok {
				return Datacite{}, fmt.Errorf("%w: codemeta author is not an object", ErrInvalidDatacite)
			}
			cre := Creator{
				FamilyName: str(author["familyName"]),
				GivenName:  str(author["givenName"]),
			}
			cre.CreatorName = cre.FamilyName + ", " + cre.GivenName
			if id := str(author["@id"]); id != "" {
				terms := strings.Split(id, "/")
				cre.NameIdentifiers = []NameIdentifier{{
					NameIdentifier:       terms[len(terms)-1],
					NameIdentifierScheme: "ORCID",
					SchemeURI:            "http://orcid.org",
				}}
			}
			if aff := str(author["affiliation"]); aff != "" {
				cre.Affiliations = []string{aff}
			}
			out.Creators = append(out.Creators, cre)
		}
	}

	if name := str(codemeta["name"]); name != "" {
		out.Titles = []Title{{Title: name}}
	}

	if uri := str(codemeta["license"]); uri != "" {
		terms := strings.Split(uri, "/")
		out.RightsList = []Rights{{Rights: terms[len(terms)-1], RightsURI: uri}}
	}

	if keywords, ok := codemeta["keywords"].([]any); ok {
		for _, k := range keywords {
			out.Subjects = append(out.Subjects, Subject{Subject: str(k)})
		}
	}

	if _, ok := codemeta["funder"]; ok {
		refs, err := fundingFromCodemeta(codemeta)
		if err != nil {
			return Datacite{}, err
		}
		out.FundingReferences = refs
	}

	return out, nil
}

func fundingFromCodemeta(codemeta map[string]any) ([]FundingReference, error) {
	var grants []string
	if funding := str(codemeta["funding"]); funding != "" {
		grants = strings.Split(funding, ",")
	}

	var funders []any
	switch f := codemeta["funder"].(type) {
	case []any:
		funders = f
	case map[string]any:
		funders = []any{f}
	default:
		return nil, fmt.Errorf("%w: codemeta funder is not an object", ErrInvalidDatacite)
	}

	refs := []FundingReference{}
	for i, f := range funders {
		funder, ok := f.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: codemeta funder is not an object", ErrInvalidDatacite)
		}
		entry := FundingReference{FunderName: str(funder["name"])}
		if id := str(funder["@id"]); id != "" {
			entry.FunderIdentifier = &FunderIdentifier{
				FunderIdentifier:     id,
				FunderIdentifierType: FunderCrossref,
			}
		}
		if i < len(grants) {
			terms := strings.SplitN(grants[i], ";", 2)
			entry.AwardNumber = &AwardNumber{AwardNumber: strings.TrimSpace(terms[0])}
			if len(terms) > 1 {
				entry.AwardTitle = strings.TrimSpace(terms[1])
			}
		}
		refs = append(refs, entry)
	}
	return refs, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
