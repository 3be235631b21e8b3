package domain

import "errors"

var (
	// ErrStorageUnavailable marks a durable store that could not be opened or
	// failed an operation.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrUnknownCollection is returned for collections outside Collections.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrInvalidKey is returned for empty or malformed keys.
	ErrInvalidKey = errors.New("invalid key")
	// ErrSchemaTooNew is returned when a store was written by a newer schema.
	ErrSchemaTooNew = errors.New("store schema is newer than supported")
	// ErrProfileMissing is returned by operations that need a loaded profile.
	ErrProfileMissing = errors.New("no profile loaded")
	// ErrInvalidProfile wraps profile field validation failures.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrTestNotFound is returned when a test record id is not in memory.
	ErrTestNotFound = errors.New("test record not found")
	// ErrPredictionFailed wraps failures of the external prediction service.
	ErrPredictionFailed = errors.New("prediction failed")
)
