package lump

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/meigma/lump/core/internal/format/grp"
	"github.com/meigma/lump/core/internal/format/pak"
	"github.com/meigma/lump/core/internal/format/wad"
)

// Formats returns the built-in formats in detection order.
func Formats() []Format {
	return []Format{grp.New(), wad.New(), pak.New()}
}

// Detect returns the first built-in format that recognizes src.
//
// Detection only issues positional reads. It returns ErrUnknownFormat when
// no format matches, which callers use to tell "not an archive" apart from
// "an archive, but corrupt".
func Detect(src SizedReaderAt) (Format, error) {
	for _, f := range Formats() {
		if f.Detect(src) {
			return specialize(f, src), nil
		}
	}
	return nil, ErrUnknownFormat
}

// FormatByName resolves a format by its short name ("grp", "wad", "pak").
// "iwad" and "pwad" select a WAD writer of that kind.
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "grp":
		return grp.New(), nil
	case "wad", "pwad":
		return wad.New(), nil
	case "iwad":
		return wad.NewKind(wad.IWAD), nil
	case "pak":
		return pak.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatForPath picks a format from the extension of path.
func FormatForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range Formats() {
		for _, e := range f.Extensions() {
			if e == ext {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no format uses extension %q", ErrUnknownFormat, ext)
}

func specialize(f Format, src SizedReaderAt) Format {
	if s, ok := f.(Specializer); ok {
		return s.Specialize(src)
	}
	return f
}
