package user

import "errors"

var (
	ErrEmailRequired       = errors.New("email is required")
	ErrInvalidEmail        = errors.New("please enter a valid email")
	ErrDisplayNameTooShort = errors.New("name must be at least 2 characters")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong     = errors.New("password too long")
	ErrPasswordNoUppercase = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoDigit     = errors.New("password must contain at least one number")
	ErrPasswordNoSpecial   = errors.New("password must contain at least one special character")
	ErrNoPassword          = errors.New("account has no password")
	ErrAccountNotFound     = errors.New("account not found")
)
