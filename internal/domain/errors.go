package domain

import "errors"

var (
	// ErrComponentFailure signals a backend-reported failure.
	ErrComponentFailure = errors.New("component failure")
	// ErrTimeout signals a deadline exceeded before the backend responded.
	ErrTimeout = errors.New("deadline exceeded")
	// ErrCircuitOpen signals a call suppressed by an open breaker.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrConfiguration signals an invalid pipeline definition. Raised only at
	// build time and fatal to startup.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrInvalidRequest signals a malformed retrieval or ingest request.
	// Unlike ErrConfiguration it is a per-request failure, not fatal.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrIngestNotSupported signals that no enabled backend accepts documents.
	ErrIngestNotSupported = errors.New("ingestion not supported by pipeline")
)
