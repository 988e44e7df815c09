package storage

import "errors"

var (
	// ErrNotFound is returned when a requested key does not exist.
	//
	// Note: there is another not found error, badger.ErrKeyNotFound, which
	// is the error returned by the badger API. Modules in the storage
	// packages consistently return ErrNotFound instead.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned when inserting a key that already exists.
	ErrAlreadyExists = errors.New("key already exists")
)
