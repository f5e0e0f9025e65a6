package lump

import (
	lumpcore "github.com/meigma/lump/core"
)

// Re-exported core types.
type (
	// Archive is an open container.
	Archive = lumpcore.Archive

	// Entry is one named entry of an Archive.
	Entry = lumpcore.Entry

	// Format is one container family's codec.
	Format = lumpcore.Format

	// Event is delivered to archive listeners.
	Event = lumpcore.Event

	// EventKind identifies an archive change notification.
	EventKind = lumpcore.EventKind

	// Listener receives archive events.
	Listener = lumpcore.Listener

	// LoadPolicy controls when entry bodies are read.
	LoadPolicy = lumpcore.LoadPolicy

	// ProgressEvent represents a progress update during operations.
	ProgressEvent = lumpcore.ProgressEvent

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = lumpcore.ProgressFunc

	// Classifier assigns a semantic type to an entry.
	Classifier = lumpcore.Classifier
)

// Load policies.
const (
	LoadDeferred = lumpcore.LoadDeferred
	LoadEager    = lumpcore.LoadEager
)
