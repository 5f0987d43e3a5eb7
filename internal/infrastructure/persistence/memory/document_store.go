package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/docstore"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
)

// DocumentStore keeps encoded documents per collection. Readers always get
// a fresh copy.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	now         func() time.Time
}

// NewDocumentStore creates an empty store
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]map[string][]byte),
		now:         time.Now,
	}
}

var _ outbound.DocumentStore = (*DocumentStore)(nil)

// Put creates or replaces the document at path.
func (s *DocumentStore) Put(ctx context.Context, path string, doc outbound.Document) error {
	collection, id, err := outbound.SplitDocumentPath(path)
	if err != nil {
		return err
	}

	data, err := docstore.Encode(doc, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, data)
	return nil
}

// Get returns the document at path.
func (s *DocumentStore) Get(ctx context.Context, path string) (outbound.Document, error) {
	collection, id, err := outbound.SplitDocumentPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return nil, outbound.ErrDocumentNotFound
	}

	return docstore.DecodeWithID(data, id)
}

// Update merges fields into the document at path.
func (s *DocumentStore) Update(ctx context.Context, path string, fields outbound.Document) error {
	collection, id, err := outbound.SplitDocumentPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[collection][id]
	if !ok {
		return outbound.ErrDocumentNotFound
	}

	merged, err := docstore.Merge(existing, fields, s.now())
	if err != nil {
		return err
	}
	s.put(collection, id, merged)
	return nil
}

// Delete removes the document at path.
func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	collection, id, err := outbound.SplitDocumentPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

// Append stores doc under a new id.
func (s *DocumentStore) Append(ctx context.Context, collection string, doc outbound.Document) (string, error) {
	if err := outbound.ValidateCollectionPath(collection); err != nil {
		return "", err
	}

	data, err := docstore.Encode(doc, s.now())
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, data)
	return id, nil
}

// QueryOrdered returns all documents of collection sorted by field.
func (s *DocumentStore) QueryOrdered(ctx context.Context, collection, field string, dir outbound.SortDirection) ([]outbound.Document, error) {
	if err := outbound.ValidateCollectionPath(collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	encoded := make(map[string][]byte, len(s.collections[collection]))
	for id, data := range s.collections[collection] {
		encoded[id] = data
	}
	s.mu.RUnlock()

	docs := make([]outbound.Document, 0, len(encoded))
	for id, data := range encoded {
		doc, err := docstore.DecodeWithID(data, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	docstore.Sort(docs, field, dir)
	return docs, nil
}

func (s *DocumentStore) put(collection, id string, data []byte) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		s.collections[collection] = docs
	}
	docs[id] = data
}
