package lumptype

import "errors"

// Sentinel errors for archive operations.
var (
	// ErrUnknownFormat is returned when a source is not an instance of any
	// known container format (or of the format that was asked for).
	ErrUnknownFormat = errors.New("lump: unrecognized archive format")

	// ErrCorrupt is returned when a source carries a valid signature but its
	// directory describes data that the source does not contain.
	ErrCorrupt = errors.New("lump: archive is invalid or corrupt")

	// ErrEntryRead is returned when an entry body cannot be read from the
	// backing source.
	ErrEntryRead = errors.New("lump: entry data unavailable")

	// ErrNotOwned is returned when an entry is passed to an archive that is
	// not its parent.
	ErrNotOwned = errors.New("lump: entry does not belong to this archive")

	// ErrSizeOverflow is returned when sizes or offsets exceed supported limits.
	ErrSizeOverflow = errors.New("lump: size overflow")

	// ErrClosed is returned when operating on a closed archive.
	ErrClosed = errors.New("lump: archive is closed")

	// ErrNoFilename is returned when saving an archive that was never bound
	// to a file on disk.
	ErrNoFilename = errors.New("lump: archive has no filename")

	// ErrNameEmpty is returned when an entry name is empty.
	ErrNameEmpty = errors.New("lump: entry name is empty")
)
