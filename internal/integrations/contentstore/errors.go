package contentstore

import "errors"

var (
	// ErrNotFound is returned when the content store has no such record.
	ErrNotFound = errors.New("content store: record not found")
	// ErrUnavailable covers transport failures and 5xx answers.
	ErrUnavailable = errors.New("content store: unavailable")
	// ErrInvalidResponse is returned for unexpected statuses or undecodable bodies.
	ErrInvalidResponse = errors.New("content store: invalid response")
	// ErrConflict is returned when the store rejects a write as stale.
	ErrConflict = errors.New("content store: conflict")
)
