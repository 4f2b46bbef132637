package cram

// ReferenceProvider supplies reference bases for reference-based records.
// The codec depends only on this interface, never on a concrete sequence
// reader, so tests can inject synthetic references.
type ReferenceProvider interface {
	// ReferenceSequence returns the bases of the 1-based inclusive range
	// [start, end] of the reference with the given id. Implementations must
	// be safe for concurrent use and should fail when the reference is
	// unknown or the range exceeds it.
	ReferenceSequence(id, start, end int) ([]byte, error)
}
