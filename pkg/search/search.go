// Package search builds index queries and post-processes their results.
//
// Only the query text and the result handling live here. How the query
// reaches an index is up to the caller.
package search

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/metadata"
	apiservables "github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/servables"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils"
)

var ErrUnknownMethod = errors.New("no such method")
var ErrNoServable = errors.New("document has no servable block")

type term struct {
	field    string
	value    string
	required bool
}

type group []term

// Query accumulates match conditions and renders them as one advanced
// query string. Each Match call appends conditions; Render can be
// called any number of times and always reflects everything added so
// far, in the order it was added.
type Query struct {
	groups []group
}

func NewQuery() *Query {
	return &Query{}
}

// match appends one condition, either opening a new group or extending
// the latest one.
func (q *Query) match(field string, value string, required bool, newGroup bool) {
	t := term{field: field, value: value, required: required}
	if newGroup || len(q.groups) == 0 {
		q.groups = append(q.groups, group{t})
		return
	}
	last := len(q.groups) - 1
	q.groups[last] = append(q.groups[last], t)
}

// MatchOwner requires the artifact to belong to owner.
func (q *Query) MatchOwner(owner string) *Query {
	if owner != "" {
		q.match("dlhub.owner", owner, true, true)
	}
	return q
}

// MatchServable narrows by name, owner and exact publication date.
// Zero-valued arguments match everything.
func (q *Query) MatchServable(name string, owner string, publicationDate metadata.Timestamp) *Query {
	if name != "" {
		q.match("dlhub.name", name, true, true)
	}
	if owner != "" {
		q.MatchOwner(owner)
	}
	if publicationDate != 0 {
		q.match("dlhub.publication_date", fmt.Sprintf("%d", publicationDate), true, true)
	}
	return q
}

// MatchAuthors narrows by author names written "Family, Given". The
// family name is what the index matches on; a given name, when present,
// is required to sit on the same author. With matchAll every author
// must appear, otherwise any one of them suffices.
func (q *Query) MatchAuthors(authors []string, matchAll bool) *Query {
	for i, author := range authors {
		family, given, hasGiven := strings.Cut(author, ",")
		q.match(
			"datacite.creators.familyName", quote(strings.TrimSpace(family)),
			i == 0 || matchAll, true,
		)
		if hasGiven {
			q.match(
				"datacite.creators.givenName", quote(strings.TrimSpace(given)),
				true, false,
			)
		}
	}
	return q
}

// MatchDomains narrows by domain tags. With matchAll every domain must
// appear, otherwise any one of them suffices.
func (q *Query) MatchDomains(domains []string, matchAll bool) *Query {
	for i, domain := range domains {
		q.match("dlhub.domains", domain, i == 0 || matchAll, i == 0)
	}
	return q
}

// MatchDOI narrows by a related identifier.
func (q *Query) MatchDOI(doi string) *Query {
	if doi != "" {
		q.match("datacite.relatedIdentifiers.relatedIdentifier", quote(doi), true, true)
	}
	return q
}

// Render writes the query out: `field:value` terms, OR for optional
// terms, AND otherwise, parentheses around multi-term groups.
func (q *Query) Render() string {
	parts := utils.Map(q.groups, func(g group) struct {
		text     string
		required bool
	} {
		texts := make([]string, 0, len(g))
		for i, t := range g {
			if i != 0 {
				texts = append(texts, operator(t.required))
			}
			texts = append(texts, t.field+":"+t.value)
		}
		text := strings.Join(texts, " ")
		if 1 < len(g) {
			text = "(" + text + ")"
		}
		return struct {
			text     string
			required bool
		}{text: text, required: g[0].required}
	})

	out := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i != 0 {
			out = append(out, operator(p.required))
		}
		out = append(out, p.text)
	}
	return strings.Join(out, " ")
}

func operator(required bool) string {
	if required {
		return "AND"
	}
	return "OR"
}

func quote(v string) string {
	return `"` + v + `"`
}

// FilterLatest keeps only the newest publication of each servable,
// keyed by shorthand name. Entries missing their shorthand name or
// publication date cannot be versioned and are dropped with a warning.
func FilterLatest(docs []metadata.Document, logger *log.Logger) []metadata.Document {
	if logger == nil {
		logger = log.Default()
	}

	type latest struct {
		doc  metadata.Document
		date metadata.Timestamp
	}
	order := []string{}
	newest := map[string]latest{}

	for _, doc := range docs {
		if doc.Dlhub.ShorthandName == "" {
			logger.Printf("dropping an index entry without a shorthand name (name=%q)", doc.Dlhub.Name)
			continue
		}
		if doc.Dlhub.PublicationDate == 0 {
			logger.Printf("dropping an index entry without a publication date (%s)", doc.Dlhub.ShorthandName)
			continue
		}

		ident := doc.Dlhub.ShorthandName
		seen, ok := newest[ident]
		if !ok {
			order = append(order, ident)
		}
		if !ok || seen.date < doc.Dlhub.PublicationDate {
			newest[ident] = latest{doc: doc, date: doc.Dlhub.PublicationDate}
		}
	}

	out := make([]metadata.Document, 0, len(order))
	for _, ident := range order {
		out = append(out, newest[ident].doc)
	}
	return out
}

// Methods returns a servable's methods with their internal
// method_details stripped, leaving what a caller needs to invoke them.
func Methods(doc metadata.Document) (map[string]apiservables.Method, error) {
	if doc.Servable == nil {
		return nil, ErrNoServable
	}
	out := make(map[string]apiservables.Method, len(doc.Servable.Methods))
	for name, m := range doc.Servable.Methods {
		m.MethodDetails = nil
		out[name] = m
	}
	return out, nil
}

// Method returns one method by name, method_details stripped.
func Method(doc metadata.Document, name string) (apiservables.Method, error) {
	methods, err := Methods(doc)
	if err != nil {
		return apiservables.Method{}, err
	}
	m, ok := methods[name]
	if !ok {
		return apiservables.Method{}, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return m, nil
}
