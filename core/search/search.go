// Package search provides a full-text index over the operations of every
// mounted module, backing the gateway's /search endpoint. The index is
// built once after mounting and is read-only while serving.
package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
)

// Doc is one indexed operation.
type Doc struct {
	OperationID string   `json:"operation_id"`
	Module      string   `json:"module"`
	Path        string   `json:"path"`
	Method      string   `json:"method"`
	Summary     string   `json:"summary"`
	Tags        []string `json:"tags"`
}

// Index is an in-memory operation index.
type Index struct {
	idx  bleve.Index
	docs map[string]Doc
}

// New creates an empty in-memory index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return &Index{idx: idx, docs: make(map[string]Doc)}, nil
}

// Add indexes one operation. Called during startup only.
func (i *Index) Add(doc Doc) error {
	key := doc.Method + " " + doc.Path
	if err := i.idx.Index(key, doc); err != nil {
		return fmt.Errorf("index operation %s: %w", key, err)
	}
	i.docs[key] = doc
	return nil
}

// Len returns the number of indexed operations.
func (i *Index) Len() int { return len(i.docs) }

// Search runs a query-string search and returns matching operations in
// relevance order.
func (i *Index) Search(query string, limit int) ([]Doc, error) {
	if limit <= 0 {
		limit = 10
	}

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, 0, false)
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	out := make([]Doc, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if doc, ok := i.docs[hit.ID]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Close releases the index.
func (i *Index) Close() error {
	return i.idx.Close()
}
