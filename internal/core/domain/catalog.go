package domain

import (
	"net/url"
	"strings"
)

// TagFilterSeparator joins selected tags into the single tags parameter.
const TagFilterSeparator = ","

type CatalogQuery struct {
	Search string
	Tags   []string
}

// Values encodes the query for GET /documents, omitting empty parameters.
func (q CatalogQuery) Values() url.Values {
	values := url.Values{}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if len(q.Tags) > 0 {
		values.Set("tags", strings.Join(q.Tags, TagFilterSeparator))
	}
	return values
}

// CatalogPage is one fully-replaced view of the catalog.
type CatalogPage struct {
	Query     CatalogQuery `json:"-"`
	Documents []Document   `json:"documents"`
	UsedTags  []string     `json:"used_tags"`
}
