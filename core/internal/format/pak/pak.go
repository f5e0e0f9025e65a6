// Package pak implements the Quake PACK container.
//
// Layout:
//
//	0    4-byte signature "PACK"
//	4    int32 directory offset D
//	8    int32 directory length L (a multiple of 64)
//	12   file bodies
//	D    L/64 records: 56-byte null-padded path, int32 filepos, int32 size
//
// Paths keep their '/' separators; the entry list stays flat.
package pak

import (
	"fmt"
	"io"

	"github.com/meigma/lump/core/internal/field"
	"github.com/meigma/lump/core/internal/lumptype"
	"github.com/meigma/lump/core/internal/sizing"
)

const (
	// Magic is the container signature.
	Magic = "PACK"

	// HeaderSize is the size of the file header.
	HeaderSize = 12

	// RecordSize is the size of one directory record.
	RecordSize = 64

	// NameLen is the width of the path field.
	NameLen = 56
)

// Format is the PAK codec. The zero value is ready to use.
type Format struct{}

// New returns the PAK codec.
func New() *Format {
	return &Format{}
}

// Name returns "pak".
func (f *Format) Name() string { return "pak" }

// Extensions returns the file extensions PAK files use.
func (f *Format) Extensions() []string { return []string{".pak"} }

// MaxNameLen returns the path field width.
func (f *Format) MaxNameLen() int { return NameLen }

// Detect reports whether src has a PACK header with a whole number of
// records lying inside src.
func (f *Format) Detect(src lumptype.SizedReaderAt) bool {
	dirOffset, dirLen, err := readHeader(src)
	if err != nil {
		return false
	}
	return dirLen%RecordSize == 0 && sizing.Within(dirOffset, dirLen, src.Size())
}

// ReadDirectory parses the file table.
func (f *Format) ReadDirectory(src lumptype.SizedReaderAt) ([]lumptype.Record, error) {
	dirOffset, dirLen, err := readHeader(src)
	if err != nil {
		return nil, err
	}
	if dirLen%RecordSize != 0 {
		return nil, fmt.Errorf("%w: directory length %d is not a multiple of %d", lumptype.ErrCorrupt, dirLen, RecordSize)
	}
	if !sizing.Within(dirOffset, dirLen, src.Size()) {
		return nil, fmt.Errorf("%w: directory at %d ends past end of file", lumptype.ErrCorrupt, dirOffset)
	}
	n, err := sizing.ToInt(dirLen, lumptype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	dir, err := field.ReadAt(src, dirOffset, n)
	if err != nil {
		return nil, fmt.Errorf("%w: read directory: %v", lumptype.ErrCorrupt, err)
	}

	count := n / RecordSize
	records := make([]lumptype.Record, count)
	for i := range count {
		rec := dir[i*RecordSize : (i+1)*RecordSize]
		name := field.Name(rec[:NameLen])
		offset := int64(field.Int32(rec[NameLen : NameLen+4]))
		size := int64(field.Int32(rec[NameLen+4 : RecordSize]))
		if !sizing.Within(offset, size, src.Size()) {
			return nil, fmt.Errorf("%w: file %d (%q) ends past end of file", lumptype.ErrCorrupt, i, name)
		}
		records[i] = lumptype.Record{Name: name, Offset: offset, Size: size}
	}
	return records, nil
}

// Write encodes entries as a PAK: header, bodies in order, directory last.
// Paths longer than NameLen are truncated.
func (f *Format) Write(w io.Writer, entries []lumptype.WriteEntry) ([]int64, error) {
	dirLen, err := sizing.ToInt32(int64(len(entries))*RecordSize, lumptype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}

	dir := make([]byte, RecordSize*len(entries))
	offsets := make([]int64, len(entries))
	offset := int64(HeaderSize)
	for i, e := range entries {
		pos, err := sizing.ToInt32(offset, lumptype.ErrSizeOverflow)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", e.Name, err)
		}
		size, err := sizing.ToInt32(e.Size, lumptype.ErrSizeOverflow)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", e.Name, err)
		}
		rec := dir[i*RecordSize : (i+1)*RecordSize]
		field.PutName(rec[:NameLen], e.Name)
		field.PutInt32(rec[NameLen:NameLen+4], pos)
		field.PutInt32(rec[NameLen+4:RecordSize], size)
		offsets[i] = offset
		offset += e.Size
	}
	dirOffset, err := sizing.ToInt32(offset, lumptype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}

	header := make([]byte, HeaderSize)
	copy(header, Magic)
	field.PutInt32(header[4:8], dirOffset)
	field.PutInt32(header[8:12], dirLen)
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		if err := field.CopyBody(w, e.Name, e.Size, e.Open); err != nil {
			return nil, err
		}
	}
	if _, err := w.Write(dir); err != nil {
		return nil, fmt.Errorf("write directory: %w", err)
	}
	return offsets, nil
}

func readHeader(src lumptype.SizedReaderAt) (dirOffset, dirLen int64, err error) {
	if src.Size() < HeaderSize {
		return 0, 0, fmt.Errorf("%w: pak: file too small", lumptype.ErrUnknownFormat)
	}
	b, err := field.ReadAt(src, 0, HeaderSize)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: pak: read header: %v", lumptype.ErrUnknownFormat, err)
	}
	if string(b[:4]) != Magic {
		return 0, 0, fmt.Errorf("%w: pak: bad signature", lumptype.ErrUnknownFormat)
	}
	return int64(field.Int32(b[4:8])), int64(field.Int32(b[8:12])), nil
}
