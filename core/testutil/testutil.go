// Package testutil provides in-memory sources and container builders for
// archive tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
)

// MockByteSource implements a simple in-memory byte source for tests.
// It counts ReadAt calls so tests can assert when I/O happened.
type MockByteSource struct {
	data     []byte
	sourceID string
	reads    atomic.Int64

	mu      sync.Mutex
	failErr error
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + digest.FromBytes(data).Encoded(),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.reads.Add(1)
	m.mu.Lock()
	failErr := m.failErr
	m.mu.Unlock()
	if failErr != nil {
		return 0, failErr
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}

// Reads returns the number of ReadAt calls so far.
func (m *MockByteSource) Reads() int64 {
	return m.reads.Load()
}

// FailWith makes every later ReadAt return err. Pass nil to recover.
func (m *MockByteSource) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// ErrInjected is a convenient error for FailWith.
var ErrInjected = errors.New("testutil: injected read failure")

// Entry is one body for the container builders.
type Entry struct {
	Name string
	Data []byte
}

// GRP encodes entries as a Build engine GRP container. Names are cut to
// 12 bytes.
func GRP(entries ...Entry) []byte {
	var buf bytes.Buffer
	buf.WriteString("KenSilverman")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	for _, e := range entries {
		buf.Write(name(e.Name, 12))
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(e.Data)))
	}
	for _, e := range entries {
		buf.Write(e.Data)
	}
	return buf.Bytes()
}

// WAD encodes entries as a Doom WAD of the given kind ("IWAD" or "PWAD")
// with the directory after the bodies.
func WAD(kind string, entries ...Entry) []byte {
	var body, dir bytes.Buffer
	for _, e := range entries {
		_ = binary.Write(&dir, binary.LittleEndian, int32(12+body.Len()))
		_ = binary.Write(&dir, binary.LittleEndian, int32(len(e.Data)))
		dir.Write(name(e.Name, 8))
		body.Write(e.Data)
	}
	var buf bytes.Buffer
	buf.WriteString(kind)
	_ = binary.Write(&buf, binary.LittleEndian, int32(len(entries)))
	_ = binary.Write(&buf, binary.LittleEndian, int32(12+body.Len()))
	buf.Write(body.Bytes())
	buf.Write(dir.Bytes())
	return buf.Bytes()
}

// PAK encodes entries as a Quake PACK file.
func PAK(entries ...Entry) []byte {
	var body, dir bytes.Buffer
	for _, e := range entries {
		dir.Write(name(e.Name, 56))
		_ = binary.Write(&dir, binary.LittleEndian, int32(12+body.Len()))
		_ = binary.Write(&dir, binary.LittleEndian, int32(len(e.Data)))
		body.Write(e.Data)
	}
	var buf bytes.Buffer
	buf.WriteString("PACK")
	_ = binary.Write(&buf, binary.LittleEndian, int32(12+body.Len()))
	_ = binary.Write(&buf, binary.LittleEndian, int32(dir.Len()))
	buf.Write(body.Bytes())
	buf.Write(dir.Bytes())
	return buf.Bytes()
}

func name(s string, width int) []byte {
	b := make([]byte, width)
	copy(b, s)
	return b
}

// MockCache implements a basic concurrency-safe cache for tests.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte
	gets atomic.Int64
	hits atomic.Int64
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

// Get returns a reader over cached content.
func (c *MockCache) Get(key []byte) (io.ReadCloser, bool) {
	c.gets.Add(1)
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[string(key)]
	if !ok {
		return nil, false
	}
	c.hits.Add(1)
	return io.NopCloser(bytes.NewReader(data)), true
}

// Put stores everything read from r.
func (c *MockCache) Put(key []byte, r io.Reader) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[string(key)] = content
	return nil
}

// Delete removes cached content for the given key.
func (c *MockCache) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, string(key))
	return nil
}

// MaxBytes returns 0; the mock is unbounded.
func (c *MockCache) MaxBytes() int64 { return 0 }

// SizeBytes returns the current cache size in bytes.
func (c *MockCache) SizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, data := range c.data {
		total += int64(len(data))
	}
	return total
}

// Prune drops everything when targetBytes is below the current size.
func (c *MockCache) Prune(targetBytes int64) (int64, error) {
	size := c.SizeBytes()
	if size <= targetBytes {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.data)
	return size, nil
}

// Len returns the number of cached bodies.
func (c *MockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Hits returns the number of Get calls that found content.
func (c *MockCache) Hits() int64 {
	return c.hits.Load()
}

// Corrupt replaces every cached body with data.
func (c *MockCache) Corrupt(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		c.data[k] = data
	}
}
