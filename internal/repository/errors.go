package repository

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when no live row matches the query.
	ErrNotFound = errors.New("not found")

	// ErrLastAdmin is returned when an operation would leave a group without
	// any admin-level member.
	ErrLastAdmin = errors.New("group must have at least one admin member")

	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("already exists")

	// ErrInvalidCredentials is returned for unknown accounts and wrong
	// passwords alike, so callers cannot probe which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
