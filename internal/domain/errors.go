package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrAlreadyBoosted      = errors.New("post is already boosted")
	ErrInsufficientCredits = errors.New("insufficient boost credits")
	ErrInvalidInput        = errors.New("invalid input")
)
