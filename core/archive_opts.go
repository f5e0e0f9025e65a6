package lump

import (
	"log/slog"

	"github.com/meigma/lump/core/cache"
)

// LoadPolicy controls when entry bodies are read.
type LoadPolicy uint8

const (
	// LoadDeferred leaves bodies on disk until first use.
	LoadDeferred LoadPolicy = iota

	// LoadEager reads every body at open time and classifies it.
	LoadEager
)

// String returns the string representation of the policy.
func (p LoadPolicy) String() string {
	switch p {
	case LoadDeferred:
		return "deferred"
	case LoadEager:
		return "eager"
	default:
		return "unknown"
	}
}

// defaultLoadConcurrency is used when no WithLoadConcurrency option is set.
const defaultLoadConcurrency = 1

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger. Archives log nothing by default.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithFilename binds the archive to a path for Save.
// Open sets it automatically.
func WithFilename(path string) Option {
	return func(a *Archive) {
		a.filename = path
	}
}

// WithLoadPolicy selects when entry bodies are read (default: LoadDeferred).
func WithLoadPolicy(p LoadPolicy) Option {
	return func(a *Archive) {
		a.loadPolicy = p
	}
}

// WithLoadConcurrency bounds concurrent body reads during eager loading.
// Values < 1 are treated as 1.
func WithLoadConcurrency(n int) Option {
	return func(a *Archive) {
		if n < 1 {
			n = 1
		}
		a.loadConcurrency = n
	}
}

// WithClassifier sets the classifier used to assign entry types.
func WithClassifier(c Classifier) Option {
	return func(a *Archive) {
		a.classifier = c
	}
}

// WithCache enables body caching.
//
// Bodies are cached by source identity, offset and size after their first
// read and served from the cache on later loads of any archive over the
// same source.
func WithCache(c cache.Cache) Option {
	return func(a *Archive) {
		a.cache = c
	}
}

// WithProgress sets a callback for progress updates during open, eager
// loading, writing and extraction. Calls are serialized, so fn never runs
// concurrently with itself even when entries load on several workers.
func WithProgress(fn ProgressFunc) Option {
	return func(a *Archive) {
		a.progress = fn
	}
}

// WithBackup snapshots the previous file before Save replaces it.
// A failed snapshot fails the save.
func WithBackup(b Backup) Option {
	return func(a *Archive) {
		a.backup = b
	}
}

// WithListener subscribes fn before the directory is parsed, so it sees
// the EventOpened that Open emits.
func WithListener(fn Listener) Option {
	return func(a *Archive) {
		a.listeners = append(a.listeners, subscription{id: -1, fn: fn})
	}
}
