// Package sizing provides safe size arithmetic for container offsets.
package sizing

import (
	"io"
	"math"
)

// End returns offset+size, reporting false when either value is negative
// or the sum overflows int64.
func End(offset, size int64) (int64, bool) {
	if offset < 0 || size < 0 {
		return 0, false
	}
	if size > math.MaxInt64-offset {
		return 0, false
	}
	return offset + size, true
}

// Within reports whether [offset, offset+size) lies inside a source of the
// given length.
func Within(offset, size, length int64) bool {
	end, ok := End(offset, size)
	return ok && end <= length
}

// ToInt converts an int64 size to int, returning overflowErr if it doesn't fit.
func ToInt(size int64, overflowErr error) (int, error) {
	if size < 0 || size > int64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// FromUint32 widens an on-disk uint32 field.
func FromUint32(v uint32) int64 {
	return int64(v)
}

// ToUint32 narrows a size for an on-disk uint32 field, returning overflowErr
// if it doesn't fit.
func ToUint32(v int64, overflowErr error) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, overflowErr
	}
	return uint32(v), nil
}

// ToInt32 narrows a size for an on-disk int32 field, returning overflowErr
// if it doesn't fit.
func ToInt32(v int64, overflowErr error) (int32, error) {
	if v < 0 || v > math.MaxInt32 {
		return 0, overflowErr
	}
	return int32(v), nil
}

// ReadAllWithLimit reads up to maxSize bytes from r.
// Returns overflowErr if more than maxSize bytes are available.
func ReadAllWithLimit(r io.Reader, maxSize int64, overflowErr error) ([]byte, error) {
	if maxSize < 0 || maxSize > math.MaxInt64-1 {
		return nil, overflowErr
	}
	lr := &io.LimitedReader{R: r, N: maxSize + 1}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, overflowErr
	}
	return data, nil
}
