package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password must be 8 to 72 bytes and mix letters and digits")
	ErrSamePassword       = errors.New("new password must differ from the current one")
	ErrUnknownRole        = errors.New("unknown role")
)
