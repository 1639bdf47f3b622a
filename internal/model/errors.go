package model

import "errors"

var (
	// ErrNotFound is returned by stores when a collection or chunk is missing.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedContent marks files a loader cannot turn into text.
	ErrUnsupportedContent = errors.New("unsupported content")
)

// ProviderError describes a failure reported by an embedding or generation
// provider.
type ProviderError struct {
	Code       string
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
