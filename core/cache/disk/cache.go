// Package disk implements cache.Cache on the local filesystem.
package disk

import (
	"cmp"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
	tempPrefix            = "cache-"
	zstdSuffix            = ".zst"
)

// Cache stores each body as one file, sharded into subdirectories by key
// prefix. The cache is safe for concurrent use.
type Cache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64        // 0 = unlimited
	compress       bool
	bytes          atomic.Int64 // current total size of cached files
	pruneMu        sync.Mutex
}

// Option configures a disk cache.
type Option func(*Cache)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithMaxBytes sets the maximum cache size in bytes.
// Values < 0 are invalid. Use 0 to disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// WithCompression stores bodies zstd-compressed. The size limit then
// applies to compressed bytes on disk. Compressed and plain bodies use
// different file names, so toggling the option never misreads old files.
func WithCompression(enabled bool) Option {
	return func(c *Cache) {
		c.compress = enabled
	}
}

// New creates a disk-backed cache rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	c := &Cache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if c.maxBytes < 0 {
		return nil, errors.New("max bytes must be >= 0")
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	files, err := scan(dir)
	if err != nil {
		return nil, err
	}
	c.bytes.Store(totalSize(files))
	return c, nil
}

// Get opens the cached file for key.
func (c *Cache) Get(key []byte) (io.ReadCloser, bool) {
	path, err := c.path(key)
	if err != nil {
		return nil, false
	}
	f, err := os.Open(path) //nolint:gosec // path is derived from the key
	if err != nil {
		return nil, false
	}
	if !c.compress {
		return f, true
	}
	dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = f.Close()
		return nil, false
	}
	return &decodedFile{ReadCloser: dec.IOReadCloser(), f: f}, true
}

// decodedFile closes both the decoder and the file beneath it.
type decodedFile struct {
	io.ReadCloser
	f *os.File
}

func (d *decodedFile) Close() error {
	_ = d.ReadCloser.Close()
	return d.f.Close()
}

// Put copies r into the cache. Content larger than the size limit is
// silently not cached.
func (c *Cache) Put(key []byte, r io.Reader) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	written, err := c.writeBody(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	ok, err := c.ensureCapacity(written)
	if err != nil || !ok {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		if _, statErr := os.Stat(path); statErr == nil {
			return nil
		}
		return err
	}
	c.bytes.Add(written)
	return nil
}

// writeBody copies r into f and returns the number of bytes on disk.
func (c *Cache) writeBody(f *os.File, r io.Reader) (int64, error) {
	if !c.compress {
		return io.Copy(f, r)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(enc, r); err != nil {
		_ = enc.Close()
		return 0, err
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Delete removes the cached file for key.
func (c *Cache) Delete(key []byte) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	c.bytes.Add(-info.Size())
	return nil
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the current cache size in bytes.
func (c *Cache) SizeBytes() int64 {
	return c.bytes.Load()
}

// Prune removes the least recently written files until the cache is at
// or below targetBytes.
func (c *Cache) Prune(targetBytes int64) (int64, error) {
	targetBytes = max(targetBytes, 0)
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()

	files, err := scan(c.dir)
	if err != nil {
		return 0, err
	}
	remaining := totalSize(files)
	slices.SortFunc(files, func(a, b cachedFile) int {
		if n := a.modTime.Compare(b.modTime); n != 0 {
			return n
		}
		return cmp.Compare(a.path, b.path)
	})

	var freed int64
	for _, f := range files {
		if remaining <= targetBytes {
			break
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.bytes.Store(remaining)
			return freed, err
		}
		remaining -= f.size
		freed += f.size
	}
	c.bytes.Store(remaining)
	return freed, nil
}

func (c *Cache) path(key []byte) (string, error) {
	if len(key) == 0 {
		return "", errors.New("cache key is empty")
	}
	name := hex.EncodeToString(key)
	if c.compress {
		name += zstdSuffix
	}
	if c.shardPrefixLen <= 0 {
		return filepath.Join(c.dir, name), nil
	}
	prefixLen := min(c.shardPrefixLen, len(name))
	return filepath.Join(c.dir, name[:prefixLen], name), nil
}

func (c *Cache) ensureCapacity(need int64) (bool, error) {
	if c.maxBytes <= 0 {
		return true, nil
	}
	if need > c.maxBytes {
		return false, nil
	}
	if c.SizeBytes()+need <= c.maxBytes {
		return true, nil
	}
	if _, err := c.Prune(c.maxBytes - need); err != nil {
		return false, err
	}
	return c.SizeBytes()+need <= c.maxBytes, nil
}

type cachedFile struct {
	path    string
	size    int64
	modTime time.Time
}

// scan lists every cached file under root. In-flight temp files are
// skipped so a prune never removes a body that is still being written.
func scan(root string) ([]cachedFile, error) {
	var files []cachedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, cachedFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return files, err
}

func totalSize(files []cachedFile) int64 {
	var total int64
	for _, f := range files {
		total += f.size
	}
	return total
}
