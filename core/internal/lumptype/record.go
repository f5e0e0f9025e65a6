package lumptype

import "io"

// Record is one parsed directory table record.
//
// Records only live between ReadDirectory and the archive building its entry
// list; nothing keeps them afterwards.
type Record struct {
	// Name is the entry name with field padding removed.
	Name string

	// Offset is the byte offset of the entry body within the container.
	Offset int64

	// Size is the entry body size in bytes.
	Size int64
}

// End returns the offset one past the last body byte.
func (r Record) End() int64 {
	return r.Offset + r.Size
}

// WriteEntry describes one entry handed to a format writer.
//
// Open is called exactly once, in directory order, when the writer reaches
// the body. It lets unloaded entries stream straight from the old container.
type WriteEntry struct {
	Name string
	Size int64
	Open func() (io.Reader, error)
}

// SizedReaderAt is the minimal random-access source the codecs parse.
type SizedReaderAt interface {
	io.ReaderAt
	Size() int64
}
