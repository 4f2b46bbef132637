// Package cram implements a reader and writer for the CRAM
// reference-compressed alignment container format.
//
// A CRAM stream is a file definition followed by a sequence of containers.
// Each container carries one compression header and one or more slices; a
// slice holds a core bit-stream block plus external byte blocks, and every
// record field ("data series") is stored with an independently configured
// encoding declared in the compression header. Mapped records store their
// bases as reference-relative read features, so decoding them needs a
// ReferenceProvider.
package cram

import "fmt"

// Magic identifies a CRAM stream.
var Magic = [4]byte{'C', 'R', 'A', 'M'}

// Supported format version.
const (
	VersionMajor = 3
	VersionMinor = 0
)

// FileDefinition is the fixed 26-byte preamble of a CRAM stream.
type FileDefinition struct {
	Major  byte
	Minor  byte
	FileID [20]byte
}

// Version returns the version as a "major.minor" string.
func (d FileDefinition) Version() string {
	return fmt.Sprintf("%d.%d", d.Major, d.Minor)
}
