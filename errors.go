package lump

import (
	lumpcore "github.com/meigma/lump/core"
	lumphttp "github.com/meigma/lump/core/http"
)

// Errors re-exported from core.
var (
	// ErrUnknownFormat is returned when a file matches no known container
	// format.
	ErrUnknownFormat = lumpcore.ErrUnknownFormat

	// ErrCorrupt is returned when a container's directory describes data
	// the file does not contain.
	ErrCorrupt = lumpcore.ErrCorrupt

	// ErrEntryRead is returned when an entry body cannot be read.
	ErrEntryRead = lumpcore.ErrEntryRead

	// ErrNotOwned is returned when an entry belongs to another archive.
	ErrNotOwned = lumpcore.ErrNotOwned

	// ErrSizeOverflow is returned when a size value overflows.
	ErrSizeOverflow = lumpcore.ErrSizeOverflow

	// ErrClosed is returned when operating on a closed archive.
	ErrClosed = lumpcore.ErrClosed

	// ErrNoFilename is returned by Save on an archive that was never
	// saved to or opened from a file.
	ErrNoFilename = lumpcore.ErrNoFilename

	// ErrNameEmpty is returned when an entry name is empty.
	ErrNameEmpty = lumpcore.ErrNameEmpty
)

// Errors re-exported from core/http.
var (
	// ErrRangeUnsupported is returned by OpenURL when the server ignores
	// Range headers.
	ErrRangeUnsupported = lumphttp.ErrRangeUnsupported
)
