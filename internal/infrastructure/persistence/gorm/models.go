// Package gorm provides GORM model definitions and repositories backing the
// document store and the account registry.
package gorm

import (
	"time"
)

// DocumentModel is one document of the document store. Collection is the
// full collection path, e.g. users/{uid}/savedRecipes.
type DocumentModel struct {
	Collection string `gorm:"type:varchar(512);primaryKey"`
	DocID      string `gorm:"column:doc_id;type:varchar(255);primaryKey"`
	Data       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the table name
func (DocumentModel) TableName() string {
	return "documents"
}

// AccountModel represents the GORM model for accounts
type AccountModel struct {
	ID              string  `gorm:"type:char(36);primaryKey"`
	Email           string  `gorm:"type:varchar(255);uniqueIndex;not null"`
	DisplayName     string  `gorm:"type:varchar(255)"`
	PasswordHash    string  `gorm:"type:varchar(255)"`
	Provider        string  `gorm:"type:varchar(50);not null;default:'password';index:idx_accounts_provider_subject"`
	ProviderSubject *string `gorm:"type:varchar(255);index:idx_accounts_provider_subject"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastLoginAt     *time.Time
}

// TableName overrides the table name
func (AccountModel) TableName() string {
	return "accounts"
}

// Models lists every model for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&DocumentModel{},
		&AccountModel{},
	}
}
