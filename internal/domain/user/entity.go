// Package user defines accounts, their credentials and the profile kept for
// each signed-in user.
package user

import (
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PasswordProvider identifies accounts that sign in with email and password.
const PasswordProvider = "password"

// Account holds the credentials of a user. Provider accounts carry the
// provider name and the subject the provider knows them by; they may have no
// password hash.
type Account struct {
	ID              string
	Email           string
	DisplayName     string
	PasswordHash    string
	Provider        string
	ProviderSubject string
	CreatedAt       time.Time
	LastLoginAt     *time.Time
}

// NewPasswordAccount validates the credentials and returns an account with a
// bcrypt hash of password.
func NewPasswordAccount(email, password string, cost int) (*Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := hashPassword(password, cost)
	if err != nil {
		return nil, err
	}

	return &Account{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		Provider:     PasswordProvider,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// NewProviderAccount returns an account created by a provider sign-in.
func NewProviderAccount(provider, subject, email, displayName string) *Account {
	return &Account{
		ID:              uuid.NewString(),
		Email:           NormalizeEmail(email),
		DisplayName:     displayName,
		Provider:        provider,
		ProviderSubject: subject,
		CreatedAt:       time.Now().UTC(),
	}
}

// CheckPassword compares password with the stored hash.
func (a *Account) CheckPassword(password string) error {
	if a.PasswordHash == "" {
		return ErrNoPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
}

// SetPassword validates and stores a new password.
func (a *Account) SetPassword(password string, cost int) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	hash, err := hashPassword(password, cost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

// RecordLogin stamps the last login time.
func (a *Account) RecordLogin() {
	now := time.Now().UTC()
	a.LastLoginAt = &now
}

func hashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.New("failed to hash password")
	}
	return string(hash), nil
}

// Profile is the per-user document stored at users/{uid}.
type Profile struct {
	UID                        string    `json:"uid"`
	Email                      string    `json:"email"`
	DisplayName                string    `json:"displayName"`
	PhotoURL                   string    `json:"photoURL,omitempty"`
	CreatedAt                  time.Time `json:"createdAt"`
	DefaultDietaryRestrictions []string  `json:"defaultDietaryRestrictions,omitempty"`
	DefaultCuisines            []string  `json:"defaultCuisines,omitempty"`
	DefaultSpiceLevel          string    `json:"defaultSpiceLevel,omitempty"`
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail performs a basic sanity check of an email address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 || len(email) > 255 {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateDisplayName requires at least two characters.
func ValidateDisplayName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < 2 {
		return ErrDisplayNameTooShort
	}
	return nil
}

// ValidatePassword enforces the password policy: at least 8 characters with
// an uppercase letter, a digit and a special character.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 128 {
		return ErrPasswordTooLong
	}

	var upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsNumber(r):
			special = true
		}
	}

	if !upper {
		return ErrPasswordNoUppercase
	}
	if !digit {
		return ErrPasswordNoDigit
	}
	if !special {
		return ErrPasswordNoSpecial
	}
	return nil
}
