package arxiv

import (
	"fmt"
	"strings"
)

// SortBy is the arXiv sort criterion.
type SortBy string

const (
	SortRelevance   SortBy = "relevance"
	SortLastUpdated SortBy = "lastUpdatedDate"
	SortSubmitted   SortBy = "submittedDate"
)

// SortOrder is the arXiv sort direction.
type SortOrder string

const (
	SortDescending SortOrder = "descending"
	SortAscending  SortOrder = "ascending"
)

// DefaultMaxResults is used when a query does not set MaxResults.
const DefaultMaxResults = 5

// Query is a keyword search request.
type Query struct {
	Terms      string
	MaxResults int
	SortBy     SortBy
	SortOrder  SortOrder
}

func (q Query) withDefaults() Query {
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultMaxResults
	}
	if q.SortBy == "" {
		q.SortBy = SortRelevance
	}
	if q.SortOrder == "" {
		q.SortOrder = SortDescending
	}
	return q
}

// ParseSortBy accepts the API names and the short forms used on the command
// line ("relevance", "updated", "submitted").
func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relevance":
		return SortRelevance, nil
	case "updated", "lastupdated", "lastupdateddate":
		return SortLastUpdated, nil
	case "submitted", "submitteddate":
		return SortSubmitted, nil
	}
	return "", fmt.Errorf("unknown sort %q: use relevance, updated or submitted", s)
}

// ParseSortOrder accepts "descending"/"desc" and "ascending"/"asc".
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "descending":
		return SortDescending, nil
	case "asc", "ascending":
		return SortAscending, nil
	}
	return "", fmt.Errorf("unknown sort order %q: use descending or ascending", s)
}
