package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidReferenceData is returned when grade/cut reference tables fail validation
	ErrInvalidReferenceData = errors.New("invalid reference data")

	// ErrUnknownGrade is returned when a grade id is not declared in the reference tables
	ErrUnknownGrade = errors.New("unknown grade")

	// ErrReviewItemNotFound is returned when a manual review entry does not exist
	ErrReviewItemNotFound = errors.New("review item not found")

	// ErrStateNotFound is returned by a learning store that has no persisted state yet
	ErrStateNotFound = errors.New("learning state not found")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrFeedFailure is returned when a product feed request fails
	ErrFeedFailure = errors.New("product feed request failed")

	// ErrFeedNotFound is returned when a product feed does not exist or is empty
	ErrFeedNotFound = errors.New("product feed not found")

	// ErrServiceNotConfigured is returned when an optional collaborator was not wired
	ErrServiceNotConfigured = errors.New("service not configured")
)
