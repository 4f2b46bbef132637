package cram

import "errors"

// Decode error taxonomy. Structural errors (magic, container, block) abort
// the whole container; per-record errors (missing reference, malformed
// feature) abort only the slice being iterated. All are wrapped with
// positional context, so callers should match with errors.Is.
var (
	// ErrTruncated means the stream ended in the middle of a structure, or
	// before the terminal empty container was observed.
	ErrTruncated = errors.New("cram: truncated stream")

	// ErrInvalidMagicOrVersion means the stream does not start with the CRAM
	// magic bytes or declares an unsupported format version.
	ErrInvalidMagicOrVersion = errors.New("cram: invalid magic or version")

	// ErrInvalidBlockCRC means a stored checksum does not match the checksum
	// of the decoded bytes.
	ErrInvalidBlockCRC = errors.New("cram: block checksum mismatch")

	// ErrUnsupportedCompressionMethod means a block declares a compression
	// method this implementation does not handle.
	ErrUnsupportedCompressionMethod = errors.New("cram: unsupported compression method")

	// ErrMissingEncoding means a data series or tag required by a record has
	// no entry in the container's compression header.
	ErrMissingEncoding = errors.New("cram: missing encoding")

	// ErrMissingReferenceSequence means the reference window needed to
	// materialize a record could not be resolved.
	ErrMissingReferenceSequence = errors.New("cram: missing reference sequence")

	// ErrMalformedReadFeature means a read feature lies outside the read it
	// belongs to.
	ErrMalformedReadFeature = errors.New("cram: malformed read feature")
)
