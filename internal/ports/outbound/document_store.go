package outbound

import (
	"context"
	"errors"
	"strings"
)

// Document is a schemaless record in the document store.
type Document map[string]any

type serverTimestamp struct{}

// ServerTimestamp is a field value that the store replaces with its own
// clock when the document is written.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// IDField is set on documents returned by Get and QueryOrdered to the id
// of the document within its collection.
const IDField = "_id"

// SortDirection orders query results.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ErrDocumentNotFound is returned by Get and Update for a missing document.
var ErrDocumentNotFound = errors.New("document not found")

// ErrInvalidPath is returned for malformed collection or document paths.
var ErrInvalidPath = errors.New("invalid document path")

// DocumentStore persists documents in slash-separated collections such as
// users/{uid}/savedRecipes/{slug}. Collection paths have an odd number of
// segments, document paths an even number. Writes are last-write-wins.
type DocumentStore interface {
	// Put creates or replaces the document at path.
	Put(ctx context.Context, path string, doc Document) error
	// Get returns the document at path.
	Get(ctx context.Context, path string) (Document, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, path string, fields Document) error
	// Delete removes the document at path. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	// Append adds doc to collection under a generated id and returns the id.
	Append(ctx context.Context, collection string, doc Document) (string, error)
	// QueryOrdered returns every document of collection sorted by field.
	QueryOrdered(ctx context.Context, collection, field string, dir SortDirection) ([]Document, error)
}

var (
	segmentEscaper   = strings.NewReplacer("%", "%25", "/", "%2F")
	segmentUnescaper = strings.NewReplacer("%2F", "/", "%25", "%")
)

// DocumentPath joins path segments. A "/" inside a segment is escaped so
// ids such as the slug of "Sweet/Sour Chicken" stay a single segment.
func DocumentPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = segmentEscaper.Replace(segment)
	}
	return strings.Join(escaped, "/")
}

// SplitDocumentPath splits a document path into its collection path and id.
// The id is returned unescaped; the collection keeps its escaped form.
func SplitDocumentPath(path string) (collection, id string, err error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || len(segments)%2 != 0 || hasEmpty(segments) {
		return "", "", ErrInvalidPath
	}
	last := segments[len(segments)-1]
	return strings.Join(segments[:len(segments)-1], "/"), segmentUnescaper.Replace(last), nil
}

// ValidateCollectionPath checks that path names a collection.
func ValidateCollectionPath(path string) error {
	segments := strings.Split(path, "/")
	if len(segments)%2 != 1 || hasEmpty(segments) {
		return ErrInvalidPath
	}
	return nil
}

func hasEmpty(segments []string) bool {
	for _, s := range segments {
		if s == "" {
			return true
		}
	}
	return false
}
