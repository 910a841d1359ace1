package models

import "errors"

// Pipeline errors. Handlers translate these into HTTP responses; none of
// them should ever escape a request uncaught.
var (
	ErrInvalidDocument              = errors.New("invalid document")
	ErrEmbeddingServiceUnavailable  = errors.New("embedding service unavailable")
	ErrEmbeddingQuotaExceeded       = errors.New("embedding quota exceeded")
	ErrEmptyIndex                   = errors.New("empty index")
	ErrInvalidParameters            = errors.New("invalid parameters")
	ErrGenerationServiceUnavailable = errors.New("generation service unavailable")
	ErrMalformedGenerationResponse  = errors.New("malformed generation response")
	ErrIncompleteGeneration         = errors.New("incomplete generation")
	ErrCredentialsMissing           = errors.New("credentials missing")
)
