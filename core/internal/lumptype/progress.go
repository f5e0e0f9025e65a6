package lumptype

// ProgressEvent represents a progress update during an archive operation.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Name is the entry currently being processed, if applicable.
	Name string

	// Done is the number of entries completed.
	Done int

	// Total is the total number of entries.
	// Zero indicates the total is unknown.
	Total int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for archive operations.
const (
	// StageReadingDirectory indicates the directory table is being parsed.
	StageReadingDirectory ProgressStage = iota

	// StageLoadingData indicates entry bodies are being loaded eagerly.
	StageLoadingData

	// StageWriting indicates the container is being written.
	StageWriting

	// StageExtracting indicates entries are being copied to files.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageReadingDirectory:
		return "reading directory"
	case StageLoadingData:
		return "loading data"
	case StageWriting:
		return "writing"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations. An archive
// never calls it concurrently, but it may run on a worker goroutine.
type ProgressFunc func(ProgressEvent)
