package convert

import "errors"

var (
	// ErrUnsupportedContentType is returned for content types with no converter.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrEmptyDocument is returned when a document yields no text.
	ErrEmptyDocument = errors.New("document contains no text")

	// ErrInvalidChunkSize is returned for a non-positive chunk size or an
	// overlap that is not smaller than the chunk size.
	ErrInvalidChunkSize = errors.New("invalid chunk size")
)
