// Package convert turns engine-native entry formats into common ones.
package convert

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotDMX is returned when data is not a DMX digital sound.
var ErrNotDMX = errors.New("convert: not a DMX sound")

const (
	dmxHeaderSize = 8
	dmxFormat     = 3
)

// Sound is a decoded DMX digital sound: unsigned 8-bit mono PCM.
type Sound struct {
	SampleRate int
	Samples    []byte
}

// ParseDMX decodes a DMX sound lump. The header is a uint16 format (always
// 3), a uint16 sample rate and a uint32 sample count, all little-endian.
func ParseDMX(data []byte) (Sound, error) {
	if len(data) < dmxHeaderSize {
		return Sound{}, fmt.Errorf("%w: %d bytes", ErrNotDMX, len(data))
	}
	if f := binary.LittleEndian.Uint16(data[0:2]); f != dmxFormat {
		return Sound{}, fmt.Errorf("%w: format %d", ErrNotDMX, f)
	}
	rate := binary.LittleEndian.Uint16(data[2:4])
	count := uint64(binary.LittleEndian.Uint32(data[4:8]))
	if rate == 0 {
		return Sound{}, fmt.Errorf("%w: zero sample rate", ErrNotDMX)
	}
	if count > uint64(len(data)-dmxHeaderSize) {
		return Sound{}, fmt.Errorf("%w: %d samples declared, %d present", ErrNotDMX, count, len(data)-dmxHeaderSize)
	}
	return Sound{
		SampleRate: int(rate),
		Samples:    data[dmxHeaderSize : dmxHeaderSize+int(count)],
	}, nil
}

// Buffer returns the sound as a go-audio buffer.
func (s Sound) Buffer() *audio.IntBuffer {
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: s.SampleRate},
		SourceBitDepth: 8,
		Data:           make([]int, len(s.Samples)),
	}
	for i, b := range s.Samples {
		buf.Data[i] = int(b)
	}
	return buf
}

// DMXToWAV writes data, a DMX sound lump, to w as an 8-bit mono WAV file.
func DMXToWAV(data []byte, w io.WriteSeeker) error {
	snd, err := ParseDMX(data)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(w, snd.SampleRate, 8, 1, 1)
	if err := enc.Write(snd.Buffer()); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}
