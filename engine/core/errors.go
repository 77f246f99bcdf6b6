package core

import (
	"errors"
)

var (
	// ErrDuplicateResource signals a registration for an identity that is
	// already known. The duplicate call is ignored.
	ErrDuplicateResource = errors.New("resource already registered")
	// ErrResourceNotFound marks an asset that is permanently absent from the
	// backing store. Fetch errors wrapping this are not retried.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrRetrievalFailed wraps backend fetch errors.
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrDecodeFailed wraps payload decode errors.
	ErrDecodeFailed = errors.New("decode failed")
	// ErrPoolNotFound is returned by Acquire on a pool type that was never created.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrUnknownResourceKind is returned when no decoder is registered for a kind.
	ErrUnknownResourceKind = errors.New("no decoder for resource kind")
)
