package backup

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a snapshot is stored.
type Compression string

// Supported compressions.
const (
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
	CompressionNone Compression = "none"
)

// ParseCompression validates a compression name. An empty name selects zstd.
func ParseCompression(name string) (Compression, error) {
	c := Compression(name)
	if c == "" {
		c = CompressionZstd
	}
	if _, err := c.extension(); err != nil {
		return "", err
	}
	return c, nil
}

func (c Compression) extension() (string, error) {
	switch c {
	case CompressionZstd:
		return ".zst", nil
	case CompressionLZ4:
		return ".lz4", nil
	case CompressionNone:
		return ".bak", nil
	default:
		return "", fmt.Errorf("backup: unknown compression %q", string(c))
	}
}

func (c Compression) newWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionNone:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("backup: unknown compression %q", string(c))
	}
}

func (c Compression) newReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionNone:
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("backup: unknown compression %q", string(c))
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
