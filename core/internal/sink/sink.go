// Package sink writes extracted entries below a destination directory.
//
// Every file is staged in a temporary file next to its final path and
// renamed into place on Commit, so a partially written file is never
// visible. All paths are resolved through an os.Root, which keeps writes
// inside the destination even when entry names contain "..".
package sink

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const tempPrefix = ".lump-"

// Dir writes files below a destination directory.
type Dir struct {
	root      *os.Root
	overwrite bool
}

// Option configures a Dir.
type Option func(*Dir)

// WithOverwrite allows replacing existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) Option {
	return func(d *Dir) {
		d.overwrite = overwrite
	}
}

// Open creates destDir if needed and returns a Dir writing below it.
func Open(destDir string, opts ...Option) (*Dir, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", destDir, err)
	}
	d := &Dir{root: root}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Close releases the destination root.
func (d *Dir) Close() error {
	return d.root.Close()
}

// ShouldWrite reports whether rel should be written: always with
// overwrite, otherwise only when nothing exists there yet.
func (d *Dir) ShouldWrite(rel string) bool {
	if d.overwrite {
		return true
	}
	_, err := d.root.Stat(rel)
	return errors.Is(err, os.ErrNotExist)
}

// Writer stages a new file for rel.
func (d *Dir) Writer(rel string) (*Committer, error) {
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("create %s: %w", rel, os.ErrInvalid)
	}
	if err := d.root.MkdirAll(filepath.Dir(rel), 0o750); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", rel, err)
	}
	f, tempRel, err := createTemp(d.root, filepath.Dir(rel))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &Committer{File: f, root: d.root, tempRel: tempRel, destRel: rel}, nil
}

// Committer is a staged file. Exactly one of Commit or Discard must be
// called.
type Committer struct {
	// File is the staging file. It is seekable, so encoders that patch
	// headers after writing can use it directly.
	File *os.File

	root    *os.Root
	tempRel string
	destRel string
}

// Write implements io.Writer.
func (c *Committer) Write(p []byte) (int, error) {
	return c.File.Write(p)
}

// Commit closes the staging file and renames it to its final path.
func (c *Committer) Commit() error {
	if err := c.File.Close(); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := c.root.Rename(c.tempRel, c.destRel); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", c.destRel, err)
	}
	return nil
}

// Discard closes and removes the staging file.
func (c *Committer) Discard() error {
	_ = c.File.Close() //nolint:errcheck // we're cleaning up
	return c.root.Remove(c.tempRel)
}

func createTemp(root *os.Root, dir string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		rel := filepath.Join(dir, tempPrefix+name)
		f, err := root.OpenFile(rel, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err == nil {
			return f, rel, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
