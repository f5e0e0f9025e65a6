package lump

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/lump/core/internal/sizing"
)

// LoadEntryData reads the body of e into memory.
//
// It fails with ErrNotOwned when e belongs to another archive. Entries of
// size zero and entries already loaded return immediately without I/O, so
// the call is idempotent. Concurrent loads of the same entry share one
// read. A failed read wraps ErrEntryRead and leaves e unchanged.
func (a *Archive) LoadEntryData(e *Entry) error {
	if err := a.checkParent(e); err != nil {
		return err
	}
	if e.Loaded() {
		return nil
	}
	if a.closed.Load() {
		return ErrClosed
	}
	_, err, _ := a.loadGroup.Do(e.id, func() (any, error) {
		return nil, a.load(e)
	})
	return err
}

func (a *Archive) load(e *Entry) error {
	e.mu.Lock()
	if e.loaded {
		e.mu.Unlock()
		return nil
	}
	name, size := e.name, e.size
	offset, ok := e.offsetLocked()
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s has no stored offset", ErrEntryRead, name)
	}
	data, err := a.readBody(name, offset, size)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// An import while the read was in flight wins.
	if !e.loaded {
		e.data = data
		e.loaded = true
	}
	return nil
}

// readBody reads size bytes at offset, consulting the cache first.
func (a *Archive) readBody(name string, offset, size int64) ([]byte, error) {
	src := a.currentSource()
	if src == nil {
		return nil, fmt.Errorf("%w: %s: archive has no backing source", ErrEntryRead, name)
	}
	n, err := sizing.ToInt(size, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEntryRead, name, err)
	}

	var key []byte
	if a.cache != nil {
		key = cacheKey(src.SourceID(), offset, size)
		if data, ok := a.cachedBody(key, size); ok {
			a.log().Debug("entry cache hit", "entry", name)
			return data, nil
		}
		a.log().Debug("entry cache miss", "entry", name)
	}

	data := make([]byte, n)
	read, err := src.ReadAt(data, offset)
	if read < n {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %s at %d: %w", ErrEntryRead, name, offset, err)
	}

	if key != nil {
		_ = a.cache.Put(key, bytes.NewReader(data)) //nolint:errcheck // caching is opportunistic
	}
	return data, nil
}

// cachedBody returns a cached body when one of exactly size bytes exists.
// Anything else is dropped from the cache.
func (a *Archive) cachedBody(key []byte, size int64) ([]byte, bool) {
	rc, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	defer rc.Close()
	data, err := sizing.ReadAllWithLimit(rc, size, ErrSizeOverflow)
	if err != nil || int64(len(data)) != size {
		_ = a.cache.Delete(key) //nolint:errcheck // best-effort cache cleanup
		return nil, false
	}
	return data, true
}

// cacheKey identifies a body by where it lives, not by what it holds, so a
// lookup needs no read.
func cacheKey(sourceID string, offset, size int64) []byte {
	h := sha256.New()
	_, _ = io.WriteString(h, sourceID)
	_, _ = io.WriteString(h, "|"+strconv.FormatInt(offset, 10))
	_, _ = io.WriteString(h, "|"+strconv.FormatInt(size, 10))
	return h.Sum(nil)
}

// ReadEntry loads e and returns a copy of its body.
func (a *Archive) ReadEntry(e *Entry) ([]byte, error) {
	if err := a.LoadEntryData(e); err != nil {
		return nil, err
	}
	return bytes.Clone(e.Data()), nil
}

// EntryReader returns a reader over the body of e without loading it.
// Loaded entries read from memory; others read from the backing source.
func (a *Archive) EntryReader(e *Entry) (io.Reader, error) {
	if err := a.checkParent(e); err != nil {
		return nil, err
	}
	e.mu.Lock()
	loaded, data, size := e.loaded, e.data, e.size
	offset, ok := e.offsetLocked()
	name := e.name
	e.mu.Unlock()

	if loaded {
		return bytes.NewReader(data), nil
	}
	if a.closed.Load() {
		return nil, ErrClosed
	}
	src := a.currentSource()
	if src == nil || !ok {
		return nil, fmt.Errorf("%w: %s has no stored body", ErrEntryRead, name)
	}
	return io.NewSectionReader(src, offset, size), nil
}

// loadAll reads every body with bounded concurrency and classifies each
// entry once its body is in memory.
func (a *Archive) loadAll() error {
	var done int
	total := len(a.entries)

	g := new(errgroup.Group)
	g.SetLimit(a.loadConcurrency)
	for _, e := range a.entries {
		g.Go(func() error {
			if err := a.LoadEntryData(e); err != nil {
				return err
			}
			if _, err := a.Classify(e); err != nil {
				return err
			}
			a.step(StageLoadingData, e.Name(), &done, total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	a.log().Debug("entries loaded", "entries", total, "concurrency", a.loadConcurrency)
	return nil
}

func (a *Archive) currentSource() ByteSource {
	a.srcMu.RLock()
	defer a.srcMu.RUnlock()
	return a.source
}
