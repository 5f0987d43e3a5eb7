package gorm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/docstore"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
)

// DocumentStore implements outbound.DocumentStore on a single documents
// table keyed by (collection, doc_id). Ordering is applied after loading
// because sort fields live inside the JSON payload.
type DocumentStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDocumentStore creates a new document store
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db, now: time.Now}
}

var _ outbound.DocumentStore = (*DocumentStore)(nil)

// Put creates or replaces the document at path
func (s *DocumentStore) Put(ctx context.Context, path string, doc outbound.Document) error {
	collection, id, err := outbound.SplitDocumentPath(path)
	if err != nil {
		return err
	}

	data, err := docstore.Encode(doc, s.now())
	if err != nil {
		return err
	}

	model := &DocumentModel{Collection: collection, DocID: id, Data: string(data)}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(model)
	if result.Error != nil {
		return apperrors.NewDatabaseError("put document", result.Error)
	}
	return nil
}

// Get returns the document at path
func (s *DocumentStore) Get(ctx context.Context, path string) (outbound.Document, error) {
	collection, id, err := outbound.SplitDocumentPath(path)
	if err != nil {
		return nil, err
	}

	model, err := s.find(s.db.WithContext(ctx), collection, id)
	if err != nil {
		return nil, err
	}
	return docstore.DecodeWithID([]byte(model.Data), id)
}

// Update merges fields into the existing document at path
func (s *DocumentStore) Update(ctx context.Context, path string, fields outbound.Document) error {
	collection, id, err := outbound.SplitDocumentPath(path)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := s.find(tx.Clauses(clause.Locking{Strength: "UPDATE"}), collection, id)
		if err != nil {
			return err
		}

		merged, err := docstore.Merge([]byte(model.Data), fields, s.now())
		if err != nil {
			return err
		}

		result := tx.Model(&DocumentModel{}).
			Where("collection = ? AND doc_id = ?", collection, id).
			Update("data", string(merged))
		if result.Error != nil {
			return apperrors.NewDatabaseError("update document", result.Error)
		}
		return nil
	})
}

// Delete removes the document at path
func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	collection, id, err := outbound.SplitDocumentPath(path)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Delete(&DocumentModel{})
	if result.Error != nil {
		return apperrors.NewDatabaseError("delete document", result.Error)
	}
	return nil
}

// Append stores doc in collection under a generated id
func (s *DocumentStore) Append(ctx context.Context, collection string, doc outbound.Document) (string, error) {
	if err := outbound.ValidateCollectionPath(collection); err != nil {
		return "", err
	}

	data, err := docstore.Encode(doc, s.now())
	if err != nil {
		return "", err
	}

	model := &DocumentModel{Collection: collection, DocID: uuid.NewString(), Data: string(data)}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return "", apperrors.NewDatabaseError("append document", err)
	}
	return model.DocID, nil
}

// QueryOrdered returns every document of collection sorted by field
func (s *DocumentStore) QueryOrdered(ctx context.Context, collection, field string, dir outbound.SortDirection) ([]outbound.Document, error) {
	if err := outbound.ValidateCollectionPath(collection); err != nil {
		return nil, err
	}

	var models []DocumentModel
	if err := s.db.WithContext(ctx).Where("collection = ?", collection).Find(&models).Error; err != nil {
		return nil, apperrors.NewDatabaseError("query documents", err)
	}

	docs := make([]outbound.Document, 0, len(models))
	for _, m := range models {
		doc, err := docstore.DecodeWithID([]byte(m.Data), m.DocID)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	docstore.Sort(docs, field, dir)
	return docs, nil
}

func (s *DocumentStore) find(db *gorm.DB, collection, id string) (*DocumentModel, error) {
	var model DocumentModel
	err := db.Where("collection = ? AND doc_id = ?", collection, id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, outbound.ErrDocumentNotFound
		}
		return nil, apperrors.NewDatabaseError("get document", err)
	}
	return &model, nil
}
