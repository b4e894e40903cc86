package domain

import "errors"

// Domain errors returned across component boundaries. Callers wrap them
// with context and test for them with errors.Is.
var (
	// ErrLoad indicates a file could not be read or yielded no text.
	ErrLoad = errors.New("load failed")

	// ErrUnsupportedType indicates a file extension the loader does not handle.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrEmptyInput indicates an index build produced zero chunks.
	ErrEmptyInput = errors.New("no chunks created from the provided documents")

	// ErrIndexNotBuilt indicates a query against an absent or empty index.
	ErrIndexNotBuilt = errors.New("index not built")

	// ErrDimensionMismatch indicates a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrBackendUnavailable indicates an embedding or generation backend is
	// missing, unreachable, rate limited or returned a malformed response.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrInvalidInput indicates malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// UserMessage maps an error to a short sentence suitable for end users.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "No text could be extracted from the provided documents. Make sure the PDF/TXT files are readable."
	case errors.Is(err, ErrIndexNotBuilt):
		return "Please upload and index documents first."
	case errors.Is(err, ErrUnsupportedType):
		return "Only PDF and TXT files are supported."
	case errors.Is(err, ErrLoad):
		return "One of the files could not be read."
	case errors.Is(err, ErrBackendUnavailable):
		return "The language model backend is not available right now."
	case errors.Is(err, ErrDimensionMismatch):
		return "The index was built with a different embedding model. Please re-index your documents."
	case errors.Is(err, ErrInvalidInput):
		return "The request was invalid."
	default:
		return "Something went wrong."
	}
}
