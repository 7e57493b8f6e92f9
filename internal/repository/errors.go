package repository

import "errors"

var (
	// ErrAlreadyExists is returned when an insert hits a unique or primary key
	ErrAlreadyExists = errors.New("record already exists")
	// ErrTokenConsumed is returned when a one-time token was redeemed concurrently
	ErrTokenConsumed = errors.New("token already used")
)
