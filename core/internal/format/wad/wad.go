// Package wad implements the Doom WAD container in both of its variants.
//
// Layout:
//
//	0    4-byte kind "IWAD" or "PWAD"
//	4    int32 lump count N
//	8    int32 directory offset D
//	12   lump bodies
//	D    N records: int32 filepos, int32 size, 8-byte null-padded name
//
// Zero-size lumps are markers (F_START, map headers) and are valid.
package wad

import (
	"fmt"
	"io"

	"github.com/meigma/lump/core/internal/field"
	"github.com/meigma/lump/core/internal/lumptype"
	"github.com/meigma/lump/core/internal/sizing"
)

// Kind is the four-byte variant tag at the start of the file.
type Kind string

const (
	// IWAD is a standalone game data file.
	IWAD Kind = "IWAD"

	// PWAD is a patch file loaded on top of an IWAD.
	PWAD Kind = "PWAD"
)

const (
	// HeaderSize is the size of the file header.
	HeaderSize = 12

	// RecordSize is the size of one directory record.
	RecordSize = 16

	// NameLen is the width of the name field.
	NameLen = 8
)

// Format is the WAD codec. It detects and reads both kinds and writes the
// kind it was created with.
type Format struct {
	kind Kind
}

// New returns a codec that writes PWADs.
func New() *Format {
	return &Format{kind: PWAD}
}

// NewKind returns a codec that writes the given kind. Unknown kinds fall
// back to PWAD.
func NewKind(kind Kind) *Format {
	if kind != IWAD {
		kind = PWAD
	}
	return &Format{kind: kind}
}

// Kind returns the variant this codec writes.
func (f *Format) Kind() Kind { return f.kind }

// Variant returns the kind as a string, e.g. "IWAD".
func (f *Format) Variant() string { return string(f.kind) }

// Name returns "wad".
func (f *Format) Name() string { return "wad" }

// Extensions returns the file extensions WADs use.
func (f *Format) Extensions() []string { return []string{".wad"} }

// MaxNameLen returns the name field width.
func (f *Format) MaxNameLen() int { return NameLen }

// Specialize returns a codec that writes the same kind src was read as,
// so an IWAD saves back as an IWAD.
func (f *Format) Specialize(src lumptype.SizedReaderAt) lumptype.Format {
	h, err := readHeader(src)
	if err != nil {
		return f
	}
	return NewKind(h.kind)
}

// Detect reports whether src has a WAD header whose directory lies inside src.
func (f *Format) Detect(src lumptype.SizedReaderAt) bool {
	h, err := readHeader(src)
	if err != nil {
		return false
	}
	return h.dirFits(src.Size())
}

// ReadDirectory parses the lump directory. Offsets are read from the
// directory, not computed, so lumps may appear in any physical order.
func (f *Format) ReadDirectory(src lumptype.SizedReaderAt) ([]lumptype.Record, error) {
	h, err := readHeader(src)
	if err != nil {
		return nil, err
	}
	if !h.dirFits(src.Size()) {
		return nil, fmt.Errorf("%w: directory of %d lumps at %d ends past end of file", lumptype.ErrCorrupt, h.count, h.dirOffset)
	}
	n, err := sizing.ToInt(h.count*RecordSize, lumptype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	dir, err := field.ReadAt(src, h.dirOffset, n)
	if err != nil {
		return nil, fmt.Errorf("%w: read directory: %v", lumptype.ErrCorrupt, err)
	}

	records := make([]lumptype.Record, h.count)
	for i := range h.count {
		rec := dir[i*RecordSize : (i+1)*RecordSize]
		offset := int64(field.Int32(rec[0:4]))
		size := int64(field.Int32(rec[4:8]))
		name := field.Name(rec[8:RecordSize])
		if size < 0 {
			return nil, fmt.Errorf("%w: lump %d (%q) has negative size", lumptype.ErrCorrupt, i, name)
		}
		if size > 0 && !sizing.Within(offset, size, src.Size()) {
			return nil, fmt.Errorf("%w: lump %d (%q) ends past end of file", lumptype.ErrCorrupt, i, name)
		}
		records[i] = lumptype.Record{Name: name, Offset: offset, Size: size}
	}
	return records, nil
}

// Write encodes entries as a WAD: header, bodies in order, directory last.
// Markers get the current data offset as their filepos. Names are
// truncated to NameLen; case is preserved.
func (f *Format) Write(w io.Writer, entries []lumptype.WriteEntry) ([]int64, error) {
	count, err := sizing.ToInt32(int64(len(entries)), lumptype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}

	dir := make([]byte, RecordSize*len(entries))
	offsets := make([]int64, len(entries))
	offset := int64(HeaderSize)
	for i, e := range entries {
		pos, err := sizing.ToInt32(offset, lumptype.ErrSizeOverflow)
		if err != nil {
			return nil, fmt.Errorf("lump %q: %w", e.Name, err)
		}
		size, err := sizing.ToInt32(e.Size, lumptype.ErrSizeOverflow)
		if err != nil {
			return nil, fmt.Errorf("lump %q: %w", e.Name, err)
		}
		rec := dir[i*RecordSize : (i+1)*RecordSize]
		field.PutInt32(rec[0:4], pos)
		field.PutInt32(rec[4:8], size)
		field.PutName(rec[8:RecordSize], e.Name)
		offsets[i] = offset
		offset += e.Size
	}
	dirOffset, err := sizing.ToInt32(offset, lumptype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}

	header := make([]byte, HeaderSize)
	copy(header, f.kind)
	field.PutInt32(header[4:8], count)
	field.PutInt32(header[8:12], dirOffset)
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

type header struct {
	kind      Kind
	count     int64
	dirOffset int64
}

// dirFits also rejects negative header fields.
func (h header) dirFits(size int64) bool {
	return sizing.Within(h.dirOffset, h.count*RecordSize, size)
}

func readHeader(src lumptype.SizedReaderAt) (header, error) {
	if src.Size() < HeaderSize {
		return header{}, fmt.Errorf("%w: wad: file too small", lumptype.ErrUnknownFormat)
	}
	b, err := field.ReadAt(src, 0, HeaderSize)
	if err != nil {
		return header{}, fmt.Errorf("%w: wad: read header: %v", lumptype.ErrUnknownFormat, err)
	}
	kind := Kind(b[:4])
	if kind != IWAD && kind != PWAD {
		return header{}, fmt.Errorf("%w: wad: bad signature", lumptype.ErrUnknownFormat)
	}
	return header{
		kind:      kind,
		count:     int64(field.Int32(b[4:8])),
		dirOffset: int64(field.Int32(b[8:12])),
	}, nil
}
