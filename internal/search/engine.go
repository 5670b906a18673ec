package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrDocumentNotFound indicates that the addressed document is absent from the index.
	ErrDocumentNotFound = errors.New("search: document not found")
	// ErrEmptyQuery indicates that a search was requested without query text.
	ErrEmptyQuery = errors.New("search: empty query")
)

const (
	opIndexExists    = "search.index_exists"
	opCreateIndex    = "search.create_index"
	opCreateDocument = "search.create_document"
	opUpdateDocument = "search.update_document"
	opDeleteDocument = "search.delete_document"
	opBulk           = "search.bulk"
	opSearch         = "search.search"
)

// Engine is the narrow contract the catalog relies on for full-text indexing.
type Engine interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, settings IndexSettings) error
	// CreateDocument fails when a document with the same id already exists.
	CreateDocument(ctx context.Context, index string, documentID string, entry Entry) error
	// UpdateDocument replaces the document, creating it when absent.
	UpdateDocument(ctx context.Context, index string, documentID string, entry Entry) error
	DeleteDocument(ctx context.Context, index string, documentID string) error
	Bulk(ctx context.Context, index string, operations []BulkOperation) (BulkResult, error)
	Search(ctx context.Context, index string, query Query) ([]Hit, error)
}

// BulkOperation indexes one entry under its document id.
type BulkOperation struct {
	DocumentID string
	Entry      Entry
}

// DocumentFailure reports a single rejected document inside an otherwise accepted bulk request.
type DocumentFailure struct {
	DocumentID string
	Status     int
	Type       string
	Reason     string
}

func (f DocumentFailure) Error() string {
	return fmt.Sprintf("document %s: %d %s: %s", f.DocumentID, f.Status, f.Type, f.Reason)
}

// BulkResult summarises a bulk request that the engine accepted.
type BulkResult struct {
	Succeeded int
	Failures  []DocumentFailure
}

// Query describes a free-text search over indexed posts.
type Query struct {
	Text     string
	AgencyID *uint
	Size     int
}

// Hit is a single relevance-ranked match.
type Hit struct {
	DocumentID string
	Score      float64
	Entry      Entry
	Highlights map[string][]string
}

// EngineError carries a failure reported by (or while talking to) the search engine.
type EngineError struct {
	Operation  string
	StatusCode int
	Type       string
	Reason     string
	Err        error
}

func (e *EngineError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	case e.Type != "":
		return fmt.Sprintf("%s: status %d: %s: %s", e.Operation, e.StatusCode, e.Type, e.Reason)
	default:
		return fmt.Sprintf("%s: status %d", e.Operation, e.StatusCode)
	}
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// DocumentID derives the index key for a post.
func DocumentID(postID uint) string {
	return strconv.FormatUint(uint64(postID), 10)
}
