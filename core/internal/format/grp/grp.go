// Package grp implements the Build engine GRP container.
//
// Layout:
//
//	0          12-byte signature "KenSilverman"
//	12         uint32 entry count N
//	16         N records: 12-byte null-padded name, uint32 size
//	16*(1+N)   entry bodies back to back, in directory order
//
// Offsets are not stored; each entry starts where the previous one ended.
package grp

import (
	"fmt"
	"io"

	"github.com/meigma/lump/core/internal/field"
	"github.com/meigma/lump/core/internal/lumptype"
	"github.com/meigma/lump/core/internal/sizing"
)

const (
	// Magic is the container signature.
	Magic = "KenSilverman"

	// SlotSize is the size of the header and of each directory record.
	SlotSize = 16

	// NameLen is the width of the name field. Longer names are truncated
	// on write.
	NameLen = 12
)

// Format is the GRP codec. The zero value is ready to use.
type Format struct{}

// New returns the GRP codec.
func New() *Format {
	return &Format{}
}

// Name returns "grp".
func (f *Format) Name() string { return "grp" }

// Extensions returns the file extensions GRP containers use.
func (f *Format) Extensions() []string { return []string{".grp"} }

// MaxNameLen returns the name field width.
func (f *Format) MaxNameLen() int { return NameLen }

// Detect reports whether src is a well-formed GRP container: the signature
// matches and the header, directory and declared bodies fit in src.
// It only issues positional reads.
func (f *Format) Detect(src lumptype.SizedReaderAt) bool {
	count, err := readHeader(src)
	if err != nil {
		return false
	}
	dir, err := readDirectory(src, count)
	if err != nil {
		return false
	}
	total := dirEnd(count)
	for i := range count {
		var ok bool
		total, ok = sizing.End(total, recordSize(dir, i))
		if !ok || total > src.Size() {
			return false
		}
	}
	return true
}

// ReadDirectory parses the directory into records with computed offsets.
//
// It returns ErrUnknownFormat when the signature does not match and
// ErrCorrupt when any entry extends past the end of src. No records are
// returned on failure.
func (f *Format) ReadDirectory(src lumptype.SizedReaderAt) ([]lumptype.Record, error) {
	count, err := readHeader(src)
	if err != nil {
		return nil, err
	}
	dir, err := readDirectory(src, count)
	if err != nil {
		return nil, err
	}

	records := make([]lumptype.Record, count)
	offset := dirEnd(count)
	for i := range count {
		rec := dir[i*SlotSize : (i+1)*SlotSize]
		size := recordSize(dir, i)
		if !sizing.Within(offset, size, src.Size()) {
			return nil, fmt.Errorf("%w: entry %d (%q) ends past end of file", lumptype.ErrCorrupt, i, field.Name(rec[:NameLen]))
		}
		records[i] = lumptype.Record{
			Name:   field.Name(rec[:NameLen]),
			Offset: offset,
			Size:   size,
		}
		offset += size
	}
	return records, nil
}

// Write encodes entries as a GRP container and returns the offset at which
// each body was written.
//
// Names longer than NameLen are silently truncated. Callers that care must
// check names before writing; truncation is accepted data loss.
func (f *Format) Write(w io.Writer, entries []lumptype.WriteEntry) ([]int64, error) {
	count, err := sizing.ToUint32(int64(len(entries)), lumptype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}

	header := make([]byte, SlotSize*(1+len(entries)))
	copy(header, Magic)
	field.PutUint32(header[NameLen:], count)

	offsets := make([]int64, len(entries))
	offset := int64(len(header))
	for i, e := range entries {
		size, err := sizing.ToUint32(e.Size, lumptype.ErrSizeOverflow)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Name, err)
		}
		rec := header[(i+1)*SlotSize : (i+2)*SlotSize]
		field.PutName(rec[:NameLen], e.Name)
		field.PutUint32(rec[NameLen:], size)
		offsets[i] = offset
		offset += e.Size
	}

	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write directory: %w", err)
	}
	for _, e := range entries {
		if err := field.CopyBody(w, e.Name, e.Size, e.Open); err != nil {
			return nil, err
		}
	}
	return offsets, nil
}

// readHeader validates the signature and returns the entry count.
func readHeader(src lumptype.SizedReaderAt) (int64, error) {
	if src.Size() < SlotSize {
		return 0, fmt.Errorf("%w: grp: file too small", lumptype.ErrUnknownFormat)
	}
	header, err := field.ReadAt(src, 0, SlotSize)
	if err != nil {
		return 0, fmt.Errorf("%w: grp: read header: %v", lumptype.ErrUnknownFormat, err)
	}
	if string(header[:NameLen]) != Magic {
		return 0, fmt.Errorf("%w: grp: bad signature", lumptype.ErrUnknownFormat)
	}
	return sizing.FromUint32(field.Uint32(header[NameLen:])), nil
}

// readDirectory reads all directory records in one read. The directory
// must fit in src before anything is allocated, which bounds the work a
// hostile entry count can cause.
func readDirectory(src lumptype.SizedReaderAt, count int64) ([]byte, error) {
	if dirEnd(count) > src.Size() {
		return nil, fmt.Errorf("%w: directory of %d entries ends past end of file", lumptype.ErrCorrupt, count)
	}
	n, err := sizing.ToInt(count*SlotSize, lumptype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	dir, err := field.ReadAt(src, SlotSize, n)
	if err != nil {
		return nil, fmt.Errorf("%w: read directory: %v", lumptype.ErrCorrupt, err)
	}
	return dir, nil
}

func dirEnd(count int64) int64 {
	return SlotSize * (1 + count)
}

func recordSize(dir []byte, i int64) int64 {
	return sizing.FromUint32(field.Uint32(dir[i*SlotSize+NameLen:]))
}
