package lump

import (
	"errors"
	"log/slog"
	nethttp "net/http"
	"os"
	"path/filepath"

	lumpcore "github.com/meigma/lump/core"
	corecache "github.com/meigma/lump/core/cache"
	coredisk "github.com/meigma/lump/core/cache/disk"
	"github.com/meigma/lump/backup"
	"github.com/meigma/lump/entrytype"
)

// Option configures a Client.
type Option func(*Client) error

// DefaultCacheSize is the body cache limit used by WithCacheDir.
const DefaultCacheSize int64 = 100 << 20 // 100 MB

// WithLogger sets the logger for the client and the archives it opens.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// --- Classification Options ---

// WithClassifier sets the entry classifier.
func WithClassifier(classifier Classifier) Option {
	return func(c *Client) error {
		if classifier == nil {
			return errors.New("classifier is nil")
		}
		c.classifier = classifier
		return nil
	}
}

// WithRulesFile classifies entries with the bundled rules extended by the
// YAML rules in path.
func WithRulesFile(path string) Option {
	return func(c *Client) error {
		reg, err := entrytype.LoadRegistry(path)
		if err != nil {
			return err
		}
		c.classifier = reg
		return nil
	}
}

// --- Loading Options ---

// WithLoadPolicy sets when entry bodies are read.
func WithLoadPolicy(p LoadPolicy) Option {
	return func(c *Client) error {
		c.loadPolicy = p
		return nil
	}
}

// WithLoadConcurrency bounds concurrent body reads during eager loading.
func WithLoadConcurrency(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return errors.New("load concurrency must be at least 1")
		}
		c.loadConcurrency = n
		return nil
	}
}

// WithProgress sets a callback for archive progress events.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) error {
		c.progress = fn
		return nil
	}
}

// WithHTTPClient sets the HTTP client used by OpenURL.
func WithHTTPClient(client *nethttp.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// --- Caching Options ---

// WithCacheDir caches entry bodies zstd-compressed in dir/bodies with the
// default size limit ([DefaultCacheSize]).
func WithCacheDir(dir string) Option {
	return func(c *Client) error {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
		cache, err := coredisk.New(
			filepath.Join(dir, "bodies"),
			coredisk.WithMaxBytes(DefaultCacheSize),
			coredisk.WithCompression(true),
		)
		if err != nil {
			return err
		}
		c.cache = cache
		return nil
	}
}

// WithCache sets a custom body cache.
func WithCache(cache corecache.Cache) Option {
	return func(c *Client) error {
		c.cache = cache
		return nil
	}
}

// --- Backup Options ---

// WithBackupDir snapshots archives into dir before saves overwrite them.
// Set WithLogger first for the store to log through it.
func WithBackupDir(dir string, opts ...backup.Option) Option {
	return func(c *Client) error {
		if c.logger != nil {
			opts = append([]backup.Option{backup.WithLogger(c.logger)}, opts...)
		}
		store, err := backup.New(dir, opts...)
		if err != nil {
			return err
		}
		c.backup = store
		return nil
	}
}

// WithBackup sets a custom backup hook.
func WithBackup(b lumpcore.Backup) Option {
	return func(c *Client) error {
		c.backup = b
		return nil
	}
}
