package store

import "errors"

var (
	ErrNotFound        = errors.New("poc not found")
	ErrUseCaseNotFound = errors.New("use case not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrConflict        = errors.New("conflicting poc record")
)
