package lump

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/lump/core/testutil"
)

func sampleGRP() []byte {
	return testutil.GRP(
		testutil.Entry{Name: "TILES000.ART", Data: []byte("tiles")},
		testutil.Entry{Name: "MARKER", Data: nil},
		testutil.Entry{Name: "GAME.CON", Data: []byte("define")},
	)
}

func TestOpenSource_GRP(t *testing.T) {
	t.Parallel()

	a, err := OpenSource(testutil.NewMockByteSource(sampleGRP()))
	require.NoError(t, err)
	assert.Equal(t, "grp", a.Format().Name())
	require.Equal(t, 3, a.EntryCount())
	assert.False(t, a.Modified())

	headerSize := int64(16 * (1 + a.EntryCount()))
	var prevEnd int64 = headerSize
	for i, e := range a.All() {
		off, ok := e.Offset()
		require.True(t, ok, "entry %d", i)
		assert.Equal(t, prevEnd, off, "entry %d", i)
		prevEnd = off + e.Size()

		assert.Equal(t, StateUnmodified, e.State())
		assert.Same(t, a, e.Archive())
	}

	assert.False(t, a.EntryAt(0).Loaded())
	assert.True(t, a.EntryAt(1).Loaded(), "zero-size entries start loaded")
	assert.Nil(t, a.EntryAt(3))
	assert.Nil(t, a.EntryAt(-1))
}

func TestOpenSource_DetectsFormats(t *testing.T) {
	t.Parallel()

	entries := []testutil.Entry{{Name: "ONE", Data: []byte("1")}, {Name: "TWO", Data: []byte("22")}}
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"grp", testutil.GRP(entries...), "grp"},
		{"pwad", testutil.WAD("PWAD", entries...), "wad"},
		{"iwad", testutil.WAD("IWAD", entries...), "wad"},
		{"pak", testutil.PAK(entries...), "pak"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := OpenSource(testutil.NewMockByteSource(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Format().Name())
			require.Equal(t, 2, a.EntryCount())

			data, err := a.ReadEntry(a.Entry("two"))
			require.NoError(t, err)
			assert.Equal(t, []byte("22"), data)
		})
	}
}

func TestOpenSource_Errors(t *testing.T) {
	t.Parallel()

	truncated := testutil.GRP(testutil.Entry{Name: "TEST", Data: []byte("abcd")})
	truncated = truncated[:len(truncated)-2]

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrUnknownFormat},
		{"garbage", []byte("this is not an archive at all"), ErrUnknownFormat},
		{"truncated grp fails detection", truncated, ErrUnknownFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := OpenSource(testutil.NewMockByteSource(tt.data))
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, a)
		})
	}
}

func TestOpenFormat_CorruptIsDistinct(t *testing.T) {
	t.Parallel()

	grp, err := FormatByName("grp")
	require.NoError(t, err)

	truncated := testutil.GRP(testutil.Entry{Name: "TEST", Data: []byte("abcd")})
	truncated = truncated[:len(truncated)-2]

	a, err := OpenFormat(testutil.NewMockByteSource(truncated), grp)
	require.ErrorIs(t, err, ErrCorrupt)
	assert.NotErrorIs(t, err, ErrUnknownFormat)
	assert.Nil(t, a)

	_, err = OpenFormat(testutil.NewMockByteSource(testutil.PAK()), grp)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestOpenFormat_EmptyGRP(t *testing.T) {
	t.Parallel()

	data := append([]byte("KenSilverman"), 0, 0, 0, 0)
	grp, err := FormatByName("grp")
	require.NoError(t, err)
	require.True(t, grp.Detect(bytes.NewReader(data)))

	a, err := OpenFormat(NewBytesSource(data), grp)
	require.NoError(t, err)
	assert.Equal(t, 0, a.EntryCount())

	var out bytes.Buffer
	require.NoError(t, a.Write(t.Context(), &out))
	assert.Equal(t, data, out.Bytes())
}

// seekOnly hides ReadAt so NewReadSeekerSource must seek.
type seekOnly struct {
	io.ReadSeeker
}

func TestReadSeekerSource_ValidateThenParse(t *testing.T) {
	t.Parallel()

	rs := seekOnly{bytes.NewReader(sampleGRP())}
	_, err := rs.Seek(7, io.SeekStart)
	require.NoError(t, err)

	src, err := NewReadSeekerSource(rs)
	require.NoError(t, err)

	format, err := Detect(src)
	require.NoError(t, err)
	pos, err := rs.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos, "detection must not move the stream")

	a, err := OpenFormat(src, format)
	require.NoError(t, err)
	assert.Equal(t, 3, a.EntryCount())

	data, err := a.ReadEntry(a.Entry("GAME.CON"))
	require.NoError(t, err)
	assert.Equal(t, []byte("define"), data)

	pos, err = rs.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)
}

func TestFormatByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"grp", "WAD", "iwad", "pwad", "pak"} {
		f, err := FormatByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}
	_, err := FormatByName("zip")
	require.ErrorIs(t, err, ErrUnknownFormat)

	f, err := FormatForPath("/games/duke3d/DUKE3D.GRP")
	require.NoError(t, err)
	assert.Equal(t, "grp", f.Name())

	_, err = FormatForPath("readme.txt")
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestEntryLookup(t *testing.T) {
	t.Parallel()

	a, err := OpenSource(testutil.NewMockByteSource(sampleGRP()))
	require.NoError(t, err)

	e := a.Entry("game.con")
	require.NotNil(t, e)
	assert.Equal(t, "GAME.CON", e.Name())
	assert.Equal(t, 2, a.IndexOf(e))
	assert.Nil(t, a.Entry("missing"))

	other, err := OpenSource(testutil.NewMockByteSource(sampleGRP()))
	require.NoError(t, err)
	assert.Equal(t, -1, a.IndexOf(other.EntryAt(0)))

	entries := a.Entries()
	entries[0] = nil
	assert.NotNil(t, a.EntryAt(0), "Entries returns a copy")
}

func TestMutations(t *testing.T) {
	t.Parallel()

	a, err := OpenSource(testutil.NewMockByteSource(sampleGRP()))
	require.NoError(t, err)

	var events []Event
	cancel := a.Subscribe(func(ev Event) { events = append(events, ev) })

	added, err := a.AddEntry("NEW.TXT", []byte("new"), 1)
	require.NoError(t, err)
	assert.Equal(t, StateNew, added.State())
	assert.True(t, added.Loaded())
	assert.Equal(t, 1, a.IndexOf(added))
	assert.True(t, a.Modified())

	tiles := a.Entry("TILES000.ART")
	require.NoError(t, a.RenameEntry(tiles, "TILES001.ART"))
	assert.Equal(t, StateModified, tiles.State())

	require.NoError(t, a.RenameEntry(added, "RENAMED.TXT"))
	assert.Equal(t, StateNew, added.State(), "new entries stay new")

	con := a.Entry("GAME.CON")
	require.NoError(t, a.ImportEntry(con, []byte("replaced")))
	assert.Equal(t, int64(8), con.Size())
	assert.Equal(t, []byte("replaced"), con.Data())

	require.NoError(t, a.MoveEntry(con, 0))
	assert.Equal(t, 0, a.IndexOf(con))

	require.NoError(t, a.SwapEntries(con, added))
	assert.Equal(t, 0, a.IndexOf(added))

	marker := a.Entry("MARKER")
	require.NoError(t, a.RemoveEntry(marker))
	assert.Nil(t, marker.Archive())
	assert.Equal(t, 3, a.EntryCount())
	require.ErrorIs(t, a.RemoveEntry(marker), ErrNotOwned)

	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []EventKind{
		EventEntryAdded,
		EventEntryModified,
		EventEntryModified,
		EventEntryModified,
		EventEntryMoved,
		EventEntryMoved,
		EventEntryMoved,
		EventEntryRemoved,
	}, kinds)

	cancel()
	_, err = a.AddEntry("QUIET", nil, -1)
	require.NoError(t, err)
	assert.Len(t, events, 8)
	assert.Equal(t, "QUIET", a.EntryAt(a.EntryCount()-1).Name())
}

func TestMutations_Validation(t *testing.T) {
	t.Parallel()

	a, err := OpenSource(testutil.NewMockByteSource(sampleGRP()))
	require.NoError(t, err)
	other, err := OpenSource(testutil.NewMockByteSource(sampleGRP()))
	require.NoError(t, err)

	_, err = a.AddEntry("", []byte("x"), 0)
	require.ErrorIs(t, err, ErrNameEmpty)
	require.ErrorIs(t, a.RenameEntry(a.EntryAt(0), ""), ErrNameEmpty)

	foreign := other.EntryAt(0)
	require.ErrorIs(t, a.RenameEntry(foreign, "X"), ErrNotOwned)
	require.ErrorIs(t, a.ImportEntry(foreign, nil), ErrNotOwned)
	require.ErrorIs(t, a.MoveEntry(foreign, 0), ErrNotOwned)
	require.ErrorIs(t, a.SwapEntries(a.EntryAt(0), foreign), ErrNotOwned)
	assert.False(t, a.Modified())
}

func TestMute(t *testing.T) {
	t.Parallel()

	var opened, added int
	a, err := OpenSource(testutil.NewMockByteSource(sampleGRP()), WithListener(func(ev Event) {
		switch ev.Kind {
		case EventOpened:
			opened++
		case EventEntryAdded:
			added++
		}
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, opened, "bulk parse emits a single opened event")
	assert.False(t, a.Muted())

	unmute := a.Mute()
	inner := a.Mute()
	_, err = a.AddEntry("A", nil, -1)
	require.NoError(t, err)
	inner()
	inner()
	assert.True(t, a.Muted(), "releasing one mute twice does not unmute")
	unmute()
	assert.False(t, a.Muted())

	_, err = a.AddEntry("B", nil, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func TestProgress_ReadingDirectory(t *testing.T) {
	t.Parallel()

	var events []ProgressEvent
	_, err := OpenSource(testutil.NewMockByteSource(sampleGRP()), WithProgress(func(ev ProgressEvent) {
		events = append(events, ev)
	}))
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, StageReadingDirectory, ev.Stage)
		assert.Equal(t, i+1, ev.Done)
		assert.Equal(t, 3, ev.Total)
	}
}

func TestEntryDigestAndProps(t *testing.T) {
	t.Parallel()

	a := NewArchive(nil)
	e, err := a.AddEntry("DEMO", []byte("hello"), -1)
	require.NoError(t, err)

	d, ok := e.Digest()
	require.True(t, ok)
	assert.Equal(t, "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", d.String())

	_, ok = e.Offset()
	assert.False(t, ok, "unsaved entries have no offset")

	e.SetProp("Lump.Compressed", true)
	v, ok := e.Prop("Lump.Compressed")
	require.True(t, ok)
	assert.Equal(t, true, v)
	assert.Len(t, e.Props(), 1)
}

type sizeClassifier struct{}

func (sizeClassifier) Classify(_ string, data []byte) string {
	if len(data) == 0 {
		return "marker"
	}
	return "data"
}

func TestClassify(t *testing.T) {
	t.Parallel()

	a, err := OpenSource(testutil.NewMockByteSource(sampleGRP()), WithClassifier(sizeClassifier{}))
	require.NoError(t, err)

	e := a.EntryAt(0)
	assert.Equal(t, "", e.Type())
	typ, err := a.Classify(e)
	require.NoError(t, err)
	assert.Equal(t, "data", typ)
	assert.Equal(t, "data", e.Type())
	assert.True(t, e.Loaded())

	require.NoError(t, a.ImportEntry(e, nil))
	assert.Equal(t, "", e.Type(), "import clears the type")

	plain, err := OpenSource(testutil.NewMockByteSource(sampleGRP()))
	require.NoError(t, err)
	typ, err = plain.Classify(plain.EntryAt(0))
	require.NoError(t, err)
	assert.Equal(t, "", typ)
}

func TestClose(t *testing.T) {
	t.Parallel()

	var closed bool
	a, err := OpenSource(testutil.NewMockByteSource(sampleGRP()), WithListener(func(ev Event) {
		closed = closed || ev.Kind == EventClosed
	}))
	require.NoError(t, err)
	loaded := a.EntryAt(1)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.True(t, closed)
	assert.True(t, a.Closed())

	require.ErrorIs(t, a.LoadEntryData(a.EntryAt(0)), ErrClosed)
	require.NoError(t, a.LoadEntryData(loaded), "already-loaded entries short-circuit")
	_, err = a.AddEntry("X", nil, 0)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, a.Write(t.Context(), io.Discard), ErrClosed)
}
