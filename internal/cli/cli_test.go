package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lumpcore "github.com/meigma/lump/core"
	"github.com/meigma/lump/core/testutil"
	"github.com/meigma/lump/internal/config"
)

type result struct {
	out  string
	err  string
	code int
}

func run(t *testing.T, cfg *config.Config, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	var code int
	c := NewForTesting(&out, &errOut, append([]string{"lump"}, args...), &code)
	c.Config = cfg
	c.Run(context.Background())
	return result{out: out.String(), err: errOut.String(), code: code}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CacheDir = ""
	cfg.Backup.Dir = filepath.Join(t.TempDir(), "backups")
	cfg.Backup.Compression = "none"
	return cfg
}

func dmx(samples int) []byte {
	data := []byte{3, 0, 0x11, 0x2b, byte(samples), 0, 0, 0}
	return append(data, bytes.Repeat([]byte{0x80}, samples)...)
}

func writeGRP(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "duke3d.grp")
	data := testutil.GRP(
		testutil.Entry{Name: "GAME.CON", Data: []byte("define GRAVITY 176\n")},
		testutil.Entry{Name: "DSPISTOL", Data: dmx(16)},
		testutil.Entry{Name: "MARKER"},
	)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func entryNames(t *testing.T, path string) []string {
	t.Helper()
	a, err := lumpcore.Open(path)
	require.NoError(t, err)
	defer a.Close()
	var names []string
	for _, e := range a.All() {
		names = append(names, e.Name())
	}
	return names
}

func TestRunBasics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantOut  string
		wantErr  string
		wantCode int
	}{
		{"no args prints usage", nil, "Commands:", "", 0},
		{"help", []string{"help"}, "convert-format", "", 0},
		{"-h", []string{"-h"}, "Usage:", "", 0},
		{"version", []string{"version"}, "lump test", "", 0},
		{"unknown command", []string{"frobnicate"}, "", "unknown command", 2},
		{"missing args", []string{"rename", "x.grp"}, "", "needs at least 3", 2},
		{"bad flag", []string{"list", "-nope", "x.grp"}, "", "list", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := run(t, testConfig(t), tt.args...)
			assert.Equal(t, tt.wantCode, r.code)
			assert.Contains(t, r.out, tt.wantOut)
			assert.Contains(t, r.err, tt.wantErr)
		})
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	path := writeGRP(t)
	r := run(t, testConfig(t), "list", "-types", path)
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "GAME.CON")
	assert.Contains(t, r.out, "dmx_sound")
	assert.Contains(t, r.out, "marker")
	assert.Contains(t, r.out, "64", "first body starts after the 4-record header")
}

func TestInfo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doom.wad")
	require.NoError(t, os.WriteFile(path, testutil.WAD("IWAD",
		testutil.Entry{Name: "PLAYPAL", Data: make([]byte, 768)},
		testutil.Entry{Name: "F_START"},
	), 0o600))

	r := run(t, testConfig(t), "info", path)
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "wad (IWAD)")
	assert.Contains(t, r.out, "2 (1 empty)")
	assert.Contains(t, r.out, "768 bytes")
}

func TestCheck(t *testing.T) {
	t.Parallel()

	r := run(t, testConfig(t), "check", writeGRP(t))
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "OK 3 entries readable")

	data := testutil.GRP(testutil.Entry{Name: "A", Data: []byte("abcdef")})
	bad := filepath.Join(t.TempDir(), "bad.grp")
	require.NoError(t, os.WriteFile(bad, data[:len(data)-2], 0o600))
	r = run(t, testConfig(t), "check", bad)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.err, "corrupt")

	notArchive := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notArchive, []byte("hello"), 0o600))
	r = run(t, testConfig(t), "check", notArchive)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.err, "unrecognized")
}

func TestExtract(t *testing.T) {
	t.Parallel()

	path := writeGRP(t)
	dest := filepath.Join(t.TempDir(), "out")
	r := run(t, testConfig(t), "extract", "-convert", path, dest)
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "Extracted 2 entries")
	assert.Contains(t, r.out, "(1 converted)")

	con, err := os.ReadFile(filepath.Join(dest, "GAME.CON"))
	require.NoError(t, err)
	assert.Equal(t, "define GRAVITY 176\n", string(con))

	wav, err := os.ReadFile(filepath.Join(dest, "DSPISTOL.wav"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(wav[:4]))

	_, err = os.Stat(filepath.Join(dest, "MARKER"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractSelectedAndDuplicates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "maps.wad")
	require.NoError(t, os.WriteFile(path, testutil.WAD("PWAD",
		testutil.Entry{Name: "MAP01"},
		testutil.Entry{Name: "THINGS", Data: []byte("one")},
		testutil.Entry{Name: "MAP02"},
		testutil.Entry{Name: "THINGS", Data: []byte("two")},
		testutil.Entry{Name: "ENDOOM", Data: []byte("x")},
	), 0o600))

	dest := t.TempDir()
	r := run(t, testConfig(t), "extract", path, dest, "things")
	require.Equal(t, 0, r.code, r.err)

	first, err := os.ReadFile(filepath.Join(dest, "THINGS"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dest, "THINGS.1"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(first))
	assert.Equal(t, "two", string(second))
	_, err = os.Stat(filepath.Join(dest, "ENDOOM"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	r = run(t, testConfig(t), "extract", path, dest, "NOPE")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.err, `no entry "NOPE"`)
}

func TestExtractRejectsEscapingNames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "evil.pak")
	require.NoError(t, os.WriteFile(path, testutil.PAK(
		testutil.Entry{Name: "../escape.txt", Data: []byte("x")},
	), 0o600))

	r := run(t, testConfig(t), "extract", path, t.TempDir())
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.err, "escapes")
}

func TestEditCommandsWithBackups(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeGRP(t)
	input := filepath.Join(t.TempDir(), "TILES000.ART")
	require.NoError(t, os.WriteFile(input, []byte("art"), 0o600))

	r := run(t, cfg, "add", "-at", "0", path, input)
	require.Equal(t, 0, r.code, r.err)
	assert.Equal(t, []string{"TILES000.ART", "GAME.CON", "DSPISTOL", "MARKER"}, entryNames(t, path))

	r = run(t, cfg, "rename", path, "dspistol", "DSSHOTGN")
	require.Equal(t, 0, r.code, r.err)

	r = run(t, cfg, "move", path, "MARKER", "0")
	require.Equal(t, 0, r.code, r.err)
	assert.Equal(t, []string{"MARKER", "TILES000.ART", "GAME.CON", "DSSHOTGN"}, entryNames(t, path))

	r = run(t, cfg, "remove", path, "GAME.CON", "TILES000.ART")
	require.Equal(t, 0, r.code, r.err)
	assert.Equal(t, []string{"MARKER", "DSSHOTGN"}, entryNames(t, path))

	r = run(t, cfg, "remove", path, "MISSING")
	assert.Equal(t, 1, r.code)
	assert.Equal(t, []string{"MARKER", "DSSHOTGN"}, entryNames(t, path), "failed edit leaves the file alone")

	r = run(t, cfg, "backups")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "duke3d.grp")

	r = run(t, cfg, "backups", "duke3d.grp")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "none")

	restored := filepath.Join(t.TempDir(), "restored.grp")
	r = run(t, cfg, "restore", "duke3d.grp", restored)
	require.Equal(t, 0, r.code, r.err)
	assert.Equal(t, []string{"MARKER", "TILES000.ART", "GAME.CON", "DSSHOTGN"}, entryNames(t, restored),
		"newest snapshot holds the file as it was before the last save")
}

func TestAddWarnsOnTruncation(t *testing.T) {
	t.Parallel()

	path := writeGRP(t)
	input := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o600))

	r := run(t, testConfig(t), "add", "-name", "VERYLONGNAME.BIN", path, input)
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.err, "truncated")
	assert.Contains(t, entryNames(t, path), "VERYLONGNAME")

	r = run(t, testConfig(t), "add", "-name", "X", path, input, input)
	assert.Equal(t, 2, r.code)
}

func TestPackAndConvertFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "PLAYPAL")
	b := filepath.Join(dir, "COLORMAP")
	require.NoError(t, os.WriteFile(a, make([]byte, 768), 0o600))
	require.NoError(t, os.WriteFile(b, make([]byte, 256), 0o600))

	wad := filepath.Join(dir, "out", "new.wad")
	r := run(t, testConfig(t), "pack", "iwad", wad, a, b)
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "Wrote")
	assert.Equal(t, []string{"PLAYPAL", "COLORMAP"}, entryNames(t, wad))

	r = run(t, testConfig(t), "info", wad)
	assert.Contains(t, r.out, "IWAD")

	pak := filepath.Join(dir, "new.pak")
	r = run(t, testConfig(t), "convert-format", wad, "pak", pak)
	require.Equal(t, 0, r.code, r.err)

	converted, err := lumpcore.Open(pak)
	require.NoError(t, err)
	defer converted.Close()
	assert.Equal(t, "pak", converted.Format().Name())
	data, err := converted.ReadEntry(converted.Entry("PLAYPAL"))
	require.NoError(t, err)
	assert.Len(t, data, 768)

	r = run(t, testConfig(t), "pack", "zip", filepath.Join(dir, "x.zip"), a)
	assert.Equal(t, 1, r.code)
}

func TestBackupsNotConfigured(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Backup.Dir = ""
	r := run(t, cfg, "backups")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.err, "not configured")
}
