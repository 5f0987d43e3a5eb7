package gorm

import (
	"context"
	"errors"
	"strings"

	"github.com/alchemorsel/pantrychef/internal/domain/user"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
	"gorm.io/gorm"
)

// AccountRepository implements outbound.AccountRepository using GORM
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ outbound.AccountRepository = (*AccountRepository)(nil)

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *user.Account) error {
	result := r.db.WithContext(ctx).Create(AccountToModel(account))
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return apperrors.NewEmailAlreadyExistsError(account.Email)
		}
		return apperrors.NewDatabaseError("create account", result.Error)
	}
	return nil
}

// Update saves every field of an existing account
func (r *AccountRepository) Update(ctx context.Context, account *user.Account) error {
	result := r.db.WithContext(ctx).
		Model(&AccountModel{}).
		Where("id = ?", account.ID).
		Select("*").
		Omit("created_at").
		Updates(AccountToModel(account))
	if result.Error != nil {
		return apperrors.NewDatabaseError("update account", result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrAccountNotFound
	}
	return nil
}

// FindByID finds an account by ID
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*user.Account, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByEmail finds an account by normalized email
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*user.Account, error) {
	return r.first(ctx, "email = ?", user.NormalizeEmail(email))
}

// FindByProvider finds the account a provider knows by subject
func (r *AccountRepository) FindByProvider(ctx context.Context, provider, subject string) (*user.Account, error) {
	return r.first(ctx, "provider = ? AND provider_subject = ?", provider, subject)
}

func (r *AccountRepository) first(ctx context.Context, query string, args ...interface{}) (*user.Account, error) {
	var model AccountModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrAccountNotFound
		}
		return nil, apperrors.NewDatabaseError("find account", err)
	}
	return ModelToAccount(&model), nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
