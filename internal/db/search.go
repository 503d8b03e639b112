package db

import "github.com/kailas-cloud/logweave/internal/domain"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       domain.VectorFilter // conjunctive pre-filter
	Vector       []float32
	K            int
	ReturnFields []string
}

// ListQuery is the input for sorted, paginated FT.SEARCH over index fields.
type ListQuery struct {
	IndexName    string
	Query        string // raw FT query, "*" for everything
	SortBy       string // numeric/tag field to sort by; empty for unsorted
	SortAsc      bool
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
