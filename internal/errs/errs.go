// Package errs defines the error kinds shared across the ingest and search
// subsystems. Components wrap these sentinels with context using fmt.Errorf
// and callers classify with errors.Is.
package errs

import "errors"

var (
	// ErrInvalidUser indicates a user id that does not match the accepted
	// email-shaped identifier pattern.
	ErrInvalidUser = errors.New("invalid user id")

	// ErrUnsupportedType indicates a detected MIME type outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge indicates an upload exceeding the configured byte cap.
	ErrTooLarge = errors.New("file too large")

	// ErrIO indicates a disk read or write failure.
	ErrIO = errors.New("i/o error")

	// ErrExtractionFailed indicates a format extractor could not produce text.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrChunkingFailed indicates the chunking step could not split the text.
	ErrChunkingFailed = errors.New("chunking failed")

	// ErrProviderUnavailable indicates a transient embedding provider failure
	// (network, 5xx, 429). Retriable until the step budget is exhausted.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrAuth indicates an authentication or authorization failure from the
	// embedding provider. Never retried.
	ErrAuth = errors.New("embedding provider authentication failed")

	// ErrInvalidResponse indicates a provider response with a vector count or
	// dimension mismatch. Never retried.
	ErrInvalidResponse = errors.New("invalid embedding response")

	// ErrPersistFailed indicates the vector store could not write a set.
	ErrPersistFailed = errors.New("persist failed")

	// ErrEmptyLibrary indicates a search against a user with no persisted sets.
	ErrEmptyLibrary = errors.New("library is empty")

	// ErrUnknownAlgorithm indicates a search algorithm name outside the
	// supported set.
	ErrUnknownAlgorithm = errors.New("unknown search algorithm")

	// ErrInvalidLimit indicates a search limit outside the accepted range.
	ErrInvalidLimit = errors.New("invalid search limit")

	// ErrEmbeddingFailed indicates the search query could not be embedded.
	ErrEmbeddingFailed = errors.New("query embedding failed")

	// ErrTimedOut indicates a pipeline run exceeded its soft timeout.
	ErrTimedOut = errors.New("pipeline timed out")

	// ErrCancelled indicates a pipeline run was cancelled externally.
	ErrCancelled = errors.New("pipeline cancelled")
)

// Retriable reports whether err represents a transient condition that a
// pipeline step may retry.
func Retriable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
