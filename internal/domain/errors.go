package domain

import "errors"

var (
	// ErrConversionNotFound is returned when a conversion cannot be found in the database
	ErrConversionNotFound = errors.New("conversion not found")

	// ErrOutputAlreadySet is returned when a conversion already has an output blob
	ErrOutputAlreadySet = errors.New("conversion output already set")

	// ErrOutputNotReady is returned when a webhook payload is built before the conversion completed
	ErrOutputNotReady = errors.New("conversion output not ready")

	// ErrUserNotFound is returned when a user cannot be found in the database
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned when registering a username that already exists
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidMessage is returned when a queue message cannot be decoded
	ErrInvalidMessage = errors.New("invalid job message")
)
