package lump

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/meigma/lump/core/internal/field"
)

// Write encodes the archive to w in its format.
//
// Unloaded entries stream from the backing source, so exporting does not
// load bodies. Write changes no archive or entry state. The context is
// checked before each body.
func (a *Archive) Write(ctx context.Context, w io.Writer) error {
	if a.closed.Load() {
		return ErrClosed
	}
	_, err := a.format.Write(w, a.writeEntries(ctx))
	return err
}

// Save writes the archive over the file it was opened from.
func (a *Archive) Save(ctx context.Context) error {
	if a.filename == "" {
		return ErrNoFilename
	}
	return a.SaveAs(ctx, a.filename)
}

// SaveAs writes the archive to path and binds the archive to it.
//
// The container is written to a temp file in the destination directory
// and renamed over path, so a failed save leaves any existing file intact.
// When a Backup is configured the existing file is snapshotted first.
//
// After the rename the archive reads from the new file: stored offsets are
// replaced with the written layout, every entry becomes StateUnmodified,
// and names are cut to the format's field width as they were written.
func (a *Archive) SaveAs(ctx context.Context, path string) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if path == "" {
		return ErrNoFilename
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if a.backup != nil {
		if _, err := os.Stat(path); err == nil {
			if err := a.backup.Snapshot(path); err != nil {
				return fmt.Errorf("backup %s: %w", path, err)
			}
		}
	}

	offsets, err := a.writeFileAtomic(ctx, path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	f, err := os.Open(path) //nolint:gosec // path was just written by us
	if err != nil {
		return fmt.Errorf("reopen %s: %w", path, err)
	}
	src, err := newFileSource(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("reopen %s: %w", path, err)
	}
	a.rebind(src, f, offsets)
	a.filename = path

	a.log().Info("archive saved", "path", path, "format", a.format.Name(), "entries", len(a.entries))
	a.emit(EventSaved, nil, -1)
	return nil
}

// writeFileAtomic writes the container to a temp file then renames it to
// target, returning the body offsets as written.
func (a *Archive) writeFileAtomic(ctx context.Context, target string) ([]int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".lump-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	offsets, err := a.format.Write(tmp, a.writeEntries(ctx))
	if err != nil {
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return nil, err
	}
	success = true
	return offsets, nil
}

// rebind switches the archive to a freshly written file.
func (a *Archive) rebind(src ByteSource, closer io.Closer, offsets []int64) {
	maxName := a.format.MaxNameLen()
	for i, e := range a.entries {
		e.mu.Lock()
		e.props[PropOffset] = offsets[i]
		e.state = StateUnmodified
		if truncated := field.Truncate(e.name, maxName); truncated != e.name {
			a.log().Debug("entry name truncated", "name", e.name, "written", truncated)
			e.name = truncated
		}
		e.mu.Unlock()
	}
	a.modified = false

	a.srcMu.Lock()
	old := a.closer
	a.source = src
	a.closer = closer
	a.srcMu.Unlock()
	if old != nil {
		_ = old.Close() //nolint:errcheck // the replaced handle is read-only
	}
}

// writeEntries lists the archive for a format writer. Bodies open lazily
// in directory order.
func (a *Archive) writeEntries(ctx context.Context) []WriteEntry {
	src := a.currentSource()
	total := len(a.entries)
	out := make([]WriteEntry, total)
	for i, e := range a.entries {
		e.mu.Lock()
		name, size, loaded, data := e.name, e.size, e.loaded, e.data
		offset, hasOffset := e.offsetLocked()
		e.mu.Unlock()

		out[i] = WriteEntry{
			Name: name,
			Size: size,
			Open: func() (io.Reader, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				a.report(ProgressEvent{Stage: StageWriting, Name: name, Done: i + 1, Total: total})
				if loaded {
					return bytes.NewReader(data), nil
				}
				if src == nil || !hasOffset {
					return nil, fmt.Errorf("%w: %s has no stored body", ErrEntryRead, name)
				}
				return io.NewSectionReader(src, offset, size), nil
			},
		}
	}
	return out
}

// Close releases the backing file. Loaded bodies stay readable through
// Entry.Data; everything else fails with ErrClosed.
func (a *Archive) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	a.srcMu.Lock()
	closer := a.closer
	a.closer = nil
	a.source = nil
	a.srcMu.Unlock()

	var err error
	if closer != nil {
		err = closer.Close()
	}
	a.emit(EventClosed, nil, -1)
	return err
}
