package wad

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/lump/core/internal/lumptype"
)

type lump struct {
	name string
	data []byte
}

// buildWAD lays lumps out in order with the directory at the end.
func buildWAD(kind Kind, lumps ...lump) []byte {
	var body bytes.Buffer
	var dir bytes.Buffer
	for _, l := range lumps {
		_ = binary.Write(&dir, binary.LittleEndian, int32(HeaderSize+body.Len()))
		_ = binary.Write(&dir, binary.LittleEndian, int32(len(l.data)))
		name := make([]byte, NameLen)
		copy(name, l.name)
		dir.Write(name)
		body.Write(l.data)
	}
	var out bytes.Buffer
	out.WriteString(string(kind))
	_ = binary.Write(&out, binary.LittleEndian, int32(len(lumps)))
	_ = binary.Write(&out, binary.LittleEndian, int32(HeaderSize+body.Len()))
	out.Write(body.Bytes())
	out.Write(dir.Bytes())
	return out.Bytes()
}

func toWriteEntries(lumps []lump) []lumptype.WriteEntry {
	out := make([]lumptype.WriteEntry, len(lumps))
	for i, l := range lumps {
		data := l.data
		out[i] = lumptype.WriteEntry{
			Name: l.name,
			Size: int64(len(data)),
			Open: func() (io.Reader, error) { return bytes.NewReader(data), nil },
		}
	}
	return out
}

func TestDetect(t *testing.T) {
	t.Parallel()

	valid := buildWAD(PWAD, lump{"PLAYPAL", make([]byte, 768)}, lump{"F_START", nil})

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"pwad", valid, true},
		{"iwad", buildWAD(IWAD, lump{"MAP01", nil}), true},
		{"empty", buildWAD(PWAD), true},
		{"short", []byte("PWAD"), false},
		{"bad magic", append([]byte("XWAD"), valid[4:]...), false},
		{"directory truncated", valid[:len(valid)-1], false},
		{"grp", append([]byte("KenSilverman"), 0, 0, 0, 0), false},
	}
	f := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, f.Detect(bytes.NewReader(tt.data)))
		})
	}
}

func TestReadDirectory(t *testing.T) {
	t.Parallel()

	data := buildWAD(IWAD,
		lump{"MAP01", nil},
		lump{"THINGS", []byte("things")},
		lump{"LINEDEFS", []byte("linedefs")},
	)
	records, err := New().ReadDirectory(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "MAP01", records[0].Name)
	assert.Equal(t, int64(0), records[0].Size)
	assert.Equal(t, "LINEDEFS", records[2].Name)
	assert.Equal(t, []byte("linedefs"), data[records[2].Offset:records[2].End()])
}

func TestReadDirectory_LumpPastEndIsCorrupt(t *testing.T) {
	t.Parallel()

	data := buildWAD(PWAD, lump{"DEMO1", []byte("demo")})
	// Point the lump's size past the end of the file.
	dirOffset := int(binary.LittleEndian.Uint32(data[8:12]))
	binary.LittleEndian.PutUint32(data[dirOffset+4:], 4096)

	records, err := New().ReadDirectory(bytes.NewReader(data))
	require.ErrorIs(t, err, lumptype.ErrCorrupt)
	assert.Nil(t, records)
}

func TestReadDirectory_NegativeCountIsCorrupt(t *testing.T) {
	t.Parallel()

	data := buildWAD(PWAD)
	binary.LittleEndian.PutUint32(data[4:8], 0xffffffff)

	assert.False(t, New().Detect(bytes.NewReader(data)))
	_, err := New().ReadDirectory(bytes.NewReader(data))
	require.ErrorIs(t, err, lumptype.ErrCorrupt)
}

func TestReadDirectory_BadMagicIsUnknown(t *testing.T) {
	t.Parallel()

	_, err := New().ReadDirectory(bytes.NewReader([]byte("PACK\x00\x00\x00\x00\x00\x00\x00\x00")))
	require.ErrorIs(t, err, lumptype.ErrUnknownFormat)
}

func TestWrite_RoundTrip(t *testing.T) {
	t.Parallel()

	lumps := []lump{
		{"S_START", nil},
		{"TROOA1", []byte{1, 2, 3, 4, 5}},
		{"S_END", nil},
		{"dsPistol", []byte("mixedcase")},
		{"LONGLUMPNAME", []byte("x")},
	}

	var out bytes.Buffer
	offsets, err := New().Write(&out, toWriteEntries(lumps))
	require.NoError(t, err)

	want := append(lumps[:4:4], lump{"LONGLUMP", []byte("x")})
	assert.Equal(t, buildWAD(PWAD, want...), out.Bytes())

	records, err := New().ReadDirectory(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, len(lumps))
	for i, r := range records {
		assert.Equal(t, want[i].name, r.Name)
		assert.Equal(t, offsets[i], r.Offset)
		assert.Equal(t, int64(len(want[i].data)), r.Size)
	}
	assert.Equal(t, "dsPistol", records[3].Name)
	assert.Equal(t, int64(HeaderSize), records[0].Offset)
	assert.Equal(t, int64(HeaderSize+5), records[2].Offset)
}

func TestSpecialize(t *testing.T) {
	t.Parallel()

	iwad := buildWAD(IWAD, lump{"PLAYPAL", []byte{0, 0, 0}})

	spec, ok := New().Specialize(bytes.NewReader(iwad)).(*Format)
	require.True(t, ok)
	assert.Equal(t, IWAD, spec.Kind())
	assert.Equal(t, "IWAD", spec.Variant())

	var out bytes.Buffer
	_, err := spec.Write(&out, toWriteEntries([]lump{{"PLAYPAL", []byte{0, 0, 0}}}))
	require.NoError(t, err)
	assert.Equal(t, iwad, out.Bytes())

	pwad, ok := NewKind(IWAD).Specialize(bytes.NewReader(buildWAD(PWAD))).(*Format)
	require.True(t, ok)
	assert.Equal(t, PWAD, pwad.Kind())
}
