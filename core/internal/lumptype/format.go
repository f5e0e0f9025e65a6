package lumptype

import "io"

// Format is one container family's codec.
//
// Codecs are stateless and only issue positional reads, so probing a
// source with Detect never disturbs a later ReadDirectory on the same
// source.
type Format interface {
	// Name is the short lowercase identifier, e.g. "grp".
	Name() string

	// Extensions lists the file extensions the format is saved with,
	// including the leading dot.
	Extensions() []string

	// Detect reports whether src is a well-formed instance of the format.
	Detect(src SizedReaderAt) bool

	// ReadDirectory parses the directory table. It returns ErrUnknownFormat
	// when the signature does not match and ErrCorrupt when the directory
	// describes data src does not contain.
	ReadDirectory(src SizedReaderAt) ([]Record, error)

	// Write encodes entries in order and returns each body's offset.
	Write(w io.Writer, entries []WriteEntry) ([]int64, error)

	// MaxNameLen is the width of the on-disk name field.
	MaxNameLen() int
}

// Specializer is implemented by formats with variants that must survive a
// round trip, such as IWAD versus PWAD. Specialize returns the variant that
// matches src.
type Specializer interface {
	Specialize(src SizedReaderAt) Format
}
