package gorm

import (
	"github.com/alchemorsel/pantrychef/internal/domain/user"
)

// AccountToModel converts a domain account to a GORM model
func AccountToModel(a *user.Account) *AccountModel {
	model := &AccountModel{
		ID:           a.ID,
		Email:        a.Email,
		DisplayName:  a.DisplayName,
		PasswordHash: a.PasswordHash,
		Provider:     a.Provider,
		CreatedAt:    a.CreatedAt,
		LastLoginAt:  a.LastLoginAt,
	}
	if a.ProviderSubject != "" {
		subject := a.ProviderSubject
		model.ProviderSubject = &subject
	}
	return model
}

// ModelToAccount converts a GORM model to a domain account
func ModelToAccount(m *AccountModel) *user.Account {
	account := &user.Account{
		ID:           m.ID,
		Email:        m.Email,
		DisplayName:  m.DisplayName,
		PasswordHash: m.PasswordHash,
		Provider:     m.Provider,
		CreatedAt:    m.CreatedAt,
		LastLoginAt:  m.LastLoginAt,
	}
	if m.ProviderSubject != nil {
		account.ProviderSubject = *m.ProviderSubject
	}
	return account
}
