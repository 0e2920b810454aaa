package data

import "errors"

// Standard asset store errors. Callers should match with errors.Is since
// most failures are returned wrapped with additional context.
var (
	// Root resolution errors
	ErrUnknownRoot = errors.New("assetd: unknown root")

	// Resource addressing errors
	ErrInvalidResource = errors.New("assetd: invalid resource name")

	// Mutation errors
	ErrNotFound = errors.New("assetd: resource not found")

	// Filesystem errors
	ErrUnavailable = errors.New("assetd: resource unavailable")

	// Install errors
	ErrExist            = errors.New("assetd: resource already exists")
	ErrDomainNotAllowed = errors.New("assetd: download domain not allowed")
)
