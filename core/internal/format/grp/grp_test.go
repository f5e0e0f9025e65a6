package grp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/lump/core/internal/lumptype"
)

type testEntry struct {
	name string
	data []byte
}

// buildGRP encodes entries by hand so the reader is not tested against
// its own writer.
func buildGRP(entries ...testEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	for _, e := range entries {
		name := make([]byte, NameLen)
		copy(name, e.name)
		buf.Write(name)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(e.data)))
	}
	for _, e := range entries {
		buf.Write(e.data)
	}
	return buf.Bytes()
}

func writeEntries(entries ...testEntry) []lumptype.WriteEntry {
	out := make([]lumptype.WriteEntry, len(entries))
	for i, e := range entries {
		data := e.data
		out[i] = lumptype.WriteEntry{
			Name: e.name,
			Size: int64(len(data)),
			Open: func() (io.Reader, error) { return bytes.NewReader(data), nil },
		}
	}
	return out
}

func TestDetect(t *testing.T) {
	t.Parallel()

	valid := buildGRP(testEntry{"TILES000.ART", []byte("tiles")}, testEntry{"E1L1.MAP", []byte("map")})

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty container", buildGRP(), true},
		{"two entries", valid, true},
		{"trailing bytes allowed", append(bytes.Clone(valid), 0, 0, 0), true},
		{"too short", []byte("KenSilverma"), false},
		{"wrong case signature", append([]byte("kensilverman"), 0, 0, 0, 0), false},
		{"truncated body", valid[:len(valid)-1], false},
		{"truncated directory", valid[:20], false},
		{"huge count", append([]byte(Magic), 0xff, 0xff, 0xff, 0xff), false},
	}
	f := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, f.Detect(bytes.NewReader(tt.data)))
		})
	}
}

func TestReadDirectory_Offsets(t *testing.T) {
	t.Parallel()

	data := buildGRP(
		testEntry{"A.ART", []byte("aaaa")},
		testEntry{"EMPTY", nil},
		testEntry{"B.MAP", []byte("bbbbbbb")},
	)
	records, err := New().ReadDirectory(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 3)

	headerSize := int64(SlotSize * (1 + len(records)))
	assert.Equal(t, headerSize, records[0].Offset)
	for i := 0; i < len(records)-1; i++ {
		assert.Equal(t, records[i+1].Offset, records[i].End(), "record %d", i)
	}
	assert.Equal(t, int64(len(data)), records[2].End())

	assert.Equal(t, "A.ART", records[0].Name)
	assert.Equal(t, int64(0), records[1].Size)
	assert.Equal(t, []byte("bbbbbbb"), data[records[2].Offset:records[2].End()])
}

func TestReadDirectory_EmptyContainer(t *testing.T) {
	t.Parallel()

	data := append([]byte(Magic), 0, 0, 0, 0)
	require.Len(t, data, 16)

	f := New()
	assert.True(t, f.Detect(bytes.NewReader(data)))

	records, err := f.ReadDirectory(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, records)

	var out bytes.Buffer
	offsets, err := f.Write(&out, nil)
	require.NoError(t, err)
	assert.Empty(t, offsets)
	assert.Equal(t, data, out.Bytes())
}

func TestReadDirectory_TruncatedBodyIsCorrupt(t *testing.T) {
	t.Parallel()

	data := buildGRP(testEntry{"TEST", []byte("abcd")})
	data = data[:len(data)-2]

	records, err := New().ReadDirectory(bytes.NewReader(data))
	require.ErrorIs(t, err, lumptype.ErrCorrupt)
	assert.Nil(t, records)
}

func TestReadDirectory_SignatureMismatchIsUnknown(t *testing.T) {
	t.Parallel()

	data := buildGRP(testEntry{"TEST", []byte("abcd")})
	copy(data, "PWAD")

	_, err := New().ReadDirectory(bytes.NewReader(data))
	require.ErrorIs(t, err, lumptype.ErrUnknownFormat)
	assert.False(t, errors.Is(err, lumptype.ErrCorrupt))
}

func TestWrite_RoundTrip(t *testing.T) {
	t.Parallel()

	entries := []testEntry{
		{"TILES000.ART", bytes.Repeat([]byte{1}, 300)},
		{"GAME.CON", []byte("define LOTAG 1")},
		{"MARKER", nil},
		{"THISNAMEISWAYTOOLONG", []byte("xyz")},
	}

	f := New()
	var out bytes.Buffer
	offsets, err := f.Write(&out, writeEntries(entries...))
	require.NoError(t, err)
	assert.Equal(t, buildGRP(append(entries[:3:3], testEntry{"THISNAMEISWA", []byte("xyz")})...), out.Bytes())

	records, err := f.ReadDirectory(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, len(entries))
	for i, r := range records {
		assert.Equal(t, offsets[i], r.Offset)
		assert.Equal(t, int64(len(entries[i].data)), r.Size)
		assert.Equal(t, entries[i].data, nilIfEmpty(out.Bytes()[r.Offset:r.End()]))
	}
	assert.Equal(t, "THISNAMEISWA", records[3].Name)
}

func TestWrite_ShortBodyFails(t *testing.T) {
	t.Parallel()

	entries := []lumptype.WriteEntry{{
		Name: "SHORT",
		Size: 10,
		Open: func() (io.Reader, error) { return bytes.NewReader([]byte("abc")), nil },
	}}
	_, err := New().Write(io.Discard, entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short body")
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
