package lump

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"
)

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so we cache the size at construction.
type fileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// newFileSource creates a fileSource from an open file.
func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	return &fileSource{file: f, size: info.Size(), sourceID: fileSourceID(f.Name(), info)}, nil
}

// ReadAt implements io.ReaderAt.
func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Size returns the size of the file when it was opened.
func (s *fileSource) Size() int64 {
	return s.size
}

// SourceID identifies the file by path, size and modification time.
func (s *fileSource) SourceID() string {
	return s.sourceID
}

func fileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

// bytesSource serves a container held in memory.
type bytesSource struct {
	*bytes.Reader
	sourceID string
}

// NewBytesSource returns a ByteSource over data. The source is identified
// by the digest of data, so equal buffers share cache entries.
func NewBytesSource(data []byte) ByteSource {
	return &bytesSource{
		Reader:   bytes.NewReader(data),
		sourceID: "bytes:" + digest.FromBytes(data).String(),
	}
}

func (s *bytesSource) SourceID() string {
	return s.sourceID
}

// streamSource adapts an io.ReadSeeker. Every read restores the stream
// position it found, so callers sharing the stream never see it move.
type streamSource struct {
	mu   sync.Mutex
	rs   io.ReadSeeker
	size int64
	id   string
}

// NewReadSeekerSource adapts a seekable stream to ByteSource.
//
// The stream size is measured once. ReadAt saves and restores the current
// position around each read, which makes probing a stream with Detect
// safe to follow with a full parse on the same stream.
func NewReadSeekerSource(rs io.ReadSeeker) (ByteSource, error) {
	if ra, ok := rs.(interface {
		io.ReaderAt
		Size() int64
	}); ok {
		return &readerAtSource{ReaderAt: ra, size: ra.Size(), id: fmt.Sprintf("stream:%p", rs)}, nil
	}
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("stream position: %w", err)
	}
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("stream size: %w", err)
	}
	if _, err := rs.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("restore stream position: %w", err)
	}
	return &streamSource{rs: rs, size: size, id: fmt.Sprintf("stream:%p:%d", rs, size)}, nil
}

// ReadAt reads at off and puts the stream back where it was.
func (s *streamSource) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	defer func() {
		if _, seekErr := s.rs.Seek(pos, io.SeekStart); seekErr != nil && err == nil {
			err = seekErr
		}
	}()

	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err = io.ReadFull(s.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

func (s *streamSource) Size() int64      { return s.size }
func (s *streamSource) SourceID() string { return s.id }

// readerAtSource is used when the stream already supports positional reads.
type readerAtSource struct {
	io.ReaderAt
	size int64
	id   string
}

func (s *readerAtSource) Size() int64      { return s.size }
func (s *readerAtSource) SourceID() string { return s.id }
