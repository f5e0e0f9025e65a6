package lump

import (
	"io"

	"github.com/meigma/lump/core/internal/lumptype"
)

// Re-export types from internal/lumptype for public API.
type (
	// Format is one container family's codec.
	Format = lumptype.Format

	// Specializer is implemented by formats whose variant must survive a
	// round trip.
	Specializer = lumptype.Specializer

	// SizedReaderAt is the random-access view format codecs parse.
	SizedReaderAt = lumptype.SizedReaderAt

	// Record is one parsed directory record.
	Record = lumptype.Record

	// WriteEntry describes one entry handed to a format writer.
	WriteEntry = lumptype.WriteEntry

	// State tracks how an entry relates to the on-disk container.
	State = lumptype.State

	// ProgressEvent represents a progress update during operations.
	ProgressEvent = lumptype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = lumptype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = lumptype.ProgressFunc
)

// Re-export entry states.
const (
	StateUnmodified = lumptype.StateUnmodified
	StateModified   = lumptype.StateModified
	StateNew        = lumptype.StateNew
)

// Re-export progress stage constants.
const (
	StageReadingDirectory = lumptype.StageReadingDirectory
	StageLoadingData      = lumptype.StageLoadingData
	StageWriting          = lumptype.StageWriting
	StageExtracting       = lumptype.StageExtracting
)

// Sentinel errors re-exported from internal/lumptype.
var (
	// ErrUnknownFormat is returned when a source matches no known format.
	// Callers sniffing formats treat it as "try the next one".
	ErrUnknownFormat = lumptype.ErrUnknownFormat

	// ErrCorrupt is returned when a source has a valid signature but its
	// directory describes data the source does not contain.
	ErrCorrupt = lumptype.ErrCorrupt

	// ErrEntryRead is returned when an entry body cannot be read from the
	// backing source.
	ErrEntryRead = lumptype.ErrEntryRead

	// ErrNotOwned is returned when an entry is passed to an archive that
	// is not its parent.
	ErrNotOwned = lumptype.ErrNotOwned

	// ErrSizeOverflow is returned when sizes exceed what a format can store.
	ErrSizeOverflow = lumptype.ErrSizeOverflow

	// ErrClosed is returned when operating on a closed archive.
	ErrClosed = lumptype.ErrClosed

	// ErrNoFilename is returned by Save on an archive never bound to a file.
	ErrNoFilename = lumptype.ErrNoFilename

	// ErrNameEmpty is returned when an entry name is empty.
	ErrNameEmpty = lumptype.ErrNameEmpty
)

// ByteSource provides random access to a container's bytes.
//
// Implementations exist for local files, in-memory buffers, seekable
// streams and HTTP range requests. SourceID must return a stable
// identifier for the underlying content; it keys the entry cache.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// Classifier assigns a semantic type to an entry from its name and bytes.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(name string, data []byte) string
}

// Backup snapshots the file at path before a save replaces it.
type Backup interface {
	Snapshot(path string) error
}
