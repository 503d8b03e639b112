package domain

import "errors"

var (
	// ErrDecode signals a malformed envelope, JSON body, or compressed payload.
	ErrDecode = errors.New("decode failed")
	// ErrAuthentication signals a signature or key-lookup failure.
	ErrAuthentication = errors.New("authentication failed")
	// ErrValidation signals an invalid log record, recoverable by skipping it.
	ErrValidation = errors.New("validation failed")
	// ErrStoreFailure signals a log store write/read failure, fatal to the batch.
	ErrStoreFailure = errors.New("log store failure")
	// ErrIndexUnavailable signals a similarity index failure, non-fatal by policy.
	ErrIndexUnavailable = errors.New("similarity index unavailable")
	// ErrConfiguration signals an invalid component configuration (dimension
	// mismatch, missing model), fatal at startup of the affected component.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
