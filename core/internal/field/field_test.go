package field

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TEST", Name([]byte("TEST\x00\x00\x00\x00")))
	assert.Equal(t, "FULLNAMEFULL", Name([]byte("FULLNAMEFULL")))
	assert.Equal(t, "A", Name([]byte("A\x00GARBAGE")))
	assert.Empty(t, Name(make([]byte, 8)))
}

func TestPutName(t *testing.T) {
	t.Parallel()

	dst := bytes.Repeat([]byte{0xff}, 12)
	truncated := PutName(dst, "TEST")
	assert.False(t, truncated)
	assert.Equal(t, []byte("TEST\x00\x00\x00\x00\x00\x00\x00\x00"), dst)

	truncated = PutName(dst, "THISNAMEISWAYTOOLONG")
	assert.True(t, truncated)
	assert.Equal(t, []byte("THISNAMEISWA"), dst)
}

func TestReadAt(t *testing.T) {
	t.Parallel()

	src := bytes.NewReader([]byte("0123456789"))

	b, err := ReadAt(src, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), b)

	b, err = ReadAt(src, 6, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("6789"), b)

	_, err = ReadAt(src, 8, 4)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	b, err = ReadAt(src, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestIntegers(t *testing.T) {
	t.Parallel()

	b := make([]byte, 4)
	PutUint32(b, 0x01020304)
	assert.Equal(t, []byte{4, 3, 2, 1}, b)
	assert.Equal(t, uint32(0x01020304), Uint32(b))

	PutInt32(b, -1)
	assert.Equal(t, int32(-1), Int32(b))
}
