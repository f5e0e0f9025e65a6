package lump

import (
	"context"
	"log/slog"
	nethttp "net/http"
	"slices"

	lumpcore "github.com/meigma/lump/core"
	corecache "github.com/meigma/lump/core/cache"
	lumphttp "github.com/meigma/lump/core/http"
	"github.com/meigma/lump/entrytype"
)

// Client opens and creates archives with a shared configuration.
//
// A Client is safe for concurrent use. The archives it returns are not:
// each one follows the single-writer rules of [lumpcore.Archive].
type Client struct {
	logger     *slog.Logger
	classifier lumpcore.Classifier
	cache      corecache.Cache
	backup     lumpcore.Backup
	progress   ProgressFunc
	httpClient *nethttp.Client

	loadPolicy      LoadPolicy
	loadConcurrency int
}

// NewClient creates a Client with the given options.
//
// Without [WithClassifier] or [WithRulesFile], entries are classified with
// the bundled entry-type rules.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		loadPolicy:      LoadDeferred,
		loadConcurrency: 1,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.classifier == nil {
		c.classifier = entrytype.Default()
	}
	return c, nil
}

// archiveOptions returns the core options for an archive opened by c,
// followed by extra.
func (c *Client) archiveOptions(extra []lumpcore.Option) []lumpcore.Option {
	opts := []lumpcore.Option{
		lumpcore.WithClassifier(c.classifier),
		lumpcore.WithLoadPolicy(c.loadPolicy),
		lumpcore.WithLoadConcurrency(c.loadConcurrency),
	}
	if c.logger != nil {
		opts = append(opts, lumpcore.WithLogger(c.logger))
	}
	if c.cache != nil {
		opts = append(opts, lumpcore.WithCache(c.cache))
	}
	if c.backup != nil {
		opts = append(opts, lumpcore.WithBackup(c.backup))
	}
	if c.progress != nil {
		opts = append(opts, lumpcore.WithProgress(c.progress))
	}
	return append(opts, extra...)
}

// Open opens the archive at path, detecting its format from content.
func (c *Client) Open(path string, opts ...lumpcore.Option) (*Archive, error) {
	return lumpcore.Open(path, c.archiveOptions(opts)...)
}

// OpenURL opens a remote archive through HTTP range requests. Only the
// header and directory are fetched here; entry bodies are fetched when
// loaded.
func (c *Client) OpenURL(ctx context.Context, url string, opts ...lumpcore.Option) (*Archive, error) {
	var httpOpts []lumphttp.Option
	if c.httpClient != nil {
		httpOpts = append(httpOpts, lumphttp.WithClient(c.httpClient))
	}
	src, err := lumphttp.NewSource(ctx, url, httpOpts...)
	if err != nil {
		return nil, err
	}
	return lumpcore.OpenSource(src, c.archiveOptions(opts)...)
}

// Create returns a new empty archive of the named format ("grp", "wad",
// "iwad", "pak"). It is not bound to a file until SaveAs.
func (c *Client) Create(format string, opts ...lumpcore.Option) (*Archive, error) {
	f, err := lumpcore.FormatByName(format)
	if err != nil {
		return nil, err
	}
	return lumpcore.NewArchive(f, c.archiveOptions(slices.Clip(opts))...), nil
}

// Classifier returns the classifier applied to opened archives.
func (c *Client) Classifier() Classifier {
	return c.classifier
}
