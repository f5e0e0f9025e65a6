package lump

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/lump/core/internal/sink"
)

// Converter rewrites entries of one type while they are copied out.
type Converter struct {
	// Type is the classifier result the converter applies to.
	Type string

	// Suffix is appended to the output file name, e.g. ".wav".
	Suffix string

	// Convert writes the converted form of data to w.
	Convert func(data []byte, w io.WriteSeeker) error
}

// CopyOption configures CopyTo and CopyAll.
type CopyOption func(*copyConfig)

type copyConfig struct {
	overwrite  bool
	empty      bool
	workers    int
	converters []Converter
}

// CopyWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func CopyWithOverwrite(overwrite bool) CopyOption {
	return func(c *copyConfig) {
		c.overwrite = overwrite
	}
}

// CopyWithEmpty writes zero-size entries (markers) as empty files.
// By default they are skipped.
func CopyWithEmpty(empty bool) CopyOption {
	return func(c *copyConfig) {
		c.empty = empty
	}
}

// CopyWithWorkers sets the number of workers for parallel processing.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func CopyWithWorkers(n int) CopyOption {
	return func(c *copyConfig) {
		c.workers = n
	}
}

// CopyWithConverter converts entries whose type matches conv.Type.
// It has no effect on archives without a classifier.
func CopyWithConverter(conv Converter) CopyOption {
	return func(c *copyConfig) {
		c.converters = append(c.converters, conv)
	}
}

// CopyStats reports what a copy did.
type CopyStats struct {
	Written   int
	Converted int
	Skipped   int
	Bytes     int64
}

// CopyAll extracts every entry to destDir. See CopyTo.
func (a *Archive) CopyAll(ctx context.Context, destDir string, opts ...CopyOption) (CopyStats, error) {
	return a.CopyTo(ctx, destDir, a.Entries(), opts...)
}

// CopyTo extracts entries to files below destDir.
//
// Files are written atomically using temp files and renames, and parent
// directories are created as needed. Entry names map to relative paths
// ("/" separates directories in PAK names); names that would leave destDir
// fail the copy before anything is written. When a name repeats, as map
// lumps do in a WAD, later copies get a ".1", ".2", ... suffix that skips
// any name another entry already uses.
func (a *Archive) CopyTo(ctx context.Context, destDir string, entries []*Entry, opts ...CopyOption) (CopyStats, error) {
	var cfg copyConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if a.closed.Load() {
		return CopyStats{}, ErrClosed
	}

	type job struct {
		e   *Entry
		rel string
	}
	jobs := make([]job, 0, len(entries))
	names := newOutputNames(len(entries))
	for _, e := range entries {
		if err := a.checkParent(e); err != nil {
			return CopyStats{}, err
		}
		if e.Size() == 0 && !cfg.empty {
			continue
		}
		rel, err := localPath(e.Name())
		if err != nil {
			return CopyStats{}, err
		}
		names.reserve(rel)
		jobs = append(jobs, job{e: e, rel: rel})
	}
	for i := range jobs {
		jobs[i].rel = names.assign(jobs[i].rel)
	}

	dir, err := sink.Open(destDir, sink.WithOverwrite(cfg.overwrite))
	if err != nil {
		return CopyStats{}, err
	}
	defer dir.Close()

	var (
		mu    sync.Mutex
		stats CopyStats
		done  int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workerCount())
	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			written, converted, n, err := a.copyEntry(dir, j.e, j.rel, cfg.converters)
			if err != nil {
				return err
			}
			mu.Lock()
			switch {
			case !written:
				stats.Skipped++
			case converted:
				stats.Converted++
			default:
				stats.Written++
			}
			stats.Bytes += n
			mu.Unlock()
			a.step(StageExtracting, j.e.Name(), &done, len(jobs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	a.log().Debug("entries copied", "dest", destDir, "written", stats.Written,
		"converted", stats.Converted, "skipped", stats.Skipped)
	return stats, nil
}

func (c *copyConfig) workerCount() int {
	switch {
	case c.workers < 0:
		return 1
	case c.workers == 0:
		return runtime.GOMAXPROCS(0)
	default:
		return c.workers
	}
}

// copyEntry writes one entry, converting it when a converter matches.
func (a *Archive) copyEntry(dir *sink.Dir, e *Entry, rel string, converters []Converter) (written, converted bool, n int64, err error) {
	if err := a.LoadEntryData(e); err != nil {
		return false, false, 0, err
	}
	conv, ok, err := a.converterFor(e, converters)
	if err != nil {
		return false, false, 0, err
	}
	if ok {
		rel += conv.Suffix
	}
	if !dir.ShouldWrite(rel) {
		return false, false, 0, nil
	}

	data := e.Data()
	w, err := dir.Writer(rel)
	if err != nil {
		return false, false, 0, err
	}
	if ok {
		err = conv.Convert(data, w.File)
	} else {
		_, err = w.Write(data)
	}
	if err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return false, false, 0, fmt.Errorf("copy %s: %w", e.Name(), err)
	}
	if err := w.Commit(); err != nil {
		return false, false, 0, err
	}
	return true, ok, int64(len(data)), nil
}

func (a *Archive) converterFor(e *Entry, converters []Converter) (Converter, bool, error) {
	if len(converters) == 0 || a.classifier == nil {
		return Converter{}, false, nil
	}
	typ, err := a.Classify(e)
	if err != nil {
		return Converter{}, false, err
	}
	for _, c := range converters {
		if c.Type == typ {
			return c, true, nil
		}
	}
	return Converter{}, false, nil
}

// localPath maps an entry name to a relative file path.
func localPath(name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("entry name %q escapes the destination", name)
	}
	return rel, nil
}

// outputNames hands out distinct output paths. Paths compare
// case-insensitively. The first entry with a name keeps it; repeats get the
// lowest ".N" suffix not taken by another entry's real name.
type outputNames struct {
	reserved map[string]bool
	used     map[string]bool
	next     map[string]int
}

func newOutputNames(n int) *outputNames {
	return &outputNames{
		reserved: make(map[string]bool, n),
		used:     make(map[string]bool, n),
		next:     make(map[string]int),
	}
}

func (o *outputNames) reserve(rel string) {
	o.reserved[strings.ToUpper(rel)] = true
}

func (o *outputNames) assign(rel string) string {
	key := strings.ToUpper(rel)
	if !o.used[key] {
		o.used[key] = true
		return rel
	}
	for {
		o.next[key]++
		candidate := fmt.Sprintf("%s.%d", rel, o.next[key])
		ck := strings.ToUpper(candidate)
		if o.used[ck] || o.reserved[ck] {
			continue
		}
		o.used[ck] = true
		return candidate
	}
}
