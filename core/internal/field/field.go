// Package field reads and writes the fixed-width fields shared by the
// container codecs.
//
// Multi-byte integers are little-endian on disk. encoding/binary decodes
// them byte by byte, so the host byte order never matters.
package field

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Name decodes a null-padded name field. Bytes after the first NUL are ignored.
func Name(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// PutName writes name into dst, truncating it to len(dst) and padding the
// remainder with NUL bytes. It returns true when the name was truncated.
func PutName(dst []byte, name string) bool {
	n := copy(dst, name)
	clear(dst[n:])
	return n < len(name)
}

// Truncate returns name cut to at most width bytes.
func Truncate(name string, width int) string {
	if len(name) <= width {
		return name
	}
	return name[:width]
}

// ReadAt reads exactly n bytes at off. A short read is reported as
// io.ErrUnexpectedEOF.
func ReadAt(src io.ReaderAt, off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := src.ReadAt(buf, off)
	if read == n {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// Uint32 decodes a little-endian uint32.
func Uint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// Int32 decodes a little-endian int32.
func Int32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b)) //nolint:gosec // two's complement reinterpretation
}

// PutUint32 encodes a little-endian uint32.
func PutUint32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// PutInt32 encodes a little-endian int32.
func PutInt32(b []byte, v int32) {
	binary.LittleEndian.PutUint32(b, uint32(v)) //nolint:gosec // two's complement reinterpretation
}

// CopyBody opens body and copies exactly size bytes of it to w, closing
// the reader afterwards when it implements io.Closer.
func CopyBody(w io.Writer, name string, size int64, open func() (io.Reader, error)) error {
	if size == 0 {
		return nil
	}
	r, err := open()
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	n, err := io.CopyN(w, r, size)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("write %s: short body (%d of %d bytes)", name, n, size)
		}
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
