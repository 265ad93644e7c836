// Package btcwire implements Bitcoin's binary transaction serialization:
// little-endian fixed-width integers, CompactSize varints, and the legacy
// and BIP-141 SegWit transaction formats.
package btcwire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is returned when deserializing truncated or inconsistent input.
var ErrMalformed = errors.New("malformed transaction encoding")

// AppendCompactSize appends a Bitcoin CompactSize varint.
func AppendCompactSize(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		return binary.LittleEndian.AppendUint16(dst, uint16(n))
	case n <= 0xffffffff:
		dst = append(dst, 0xfe)
		return binary.LittleEndian.AppendUint32(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return binary.LittleEndian.AppendUint64(dst, n)
	}
}

// ReadCompactSize reads a CompactSize varint and returns the value and the
// number of bytes consumed. Non-canonical encodings are rejected.
func ReadCompactSize(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrMalformed
	}
	switch data[0] {
	case 0xfd:
		if len(data) < 3 {
			return 0, 0, ErrMalformed
		}
		v := uint64(binary.LittleEndian.Uint16(data[1:3]))
		if v < 0xfd {
			return 0, 0, fmt.Errorf("%w: non-canonical varint", ErrMalformed)
		}
		return v, 3, nil
	case 0xfe:
		if len(data) < 5 {
			return 0, 0, ErrMalformed
		}
		v := uint64(binary.LittleEndian.Uint32(data[1:5]))
		if v <= 0xffff {
			return 0, 0, fmt.Errorf("%w: non-canonical varint", ErrMalformed)
		}
		return v, 5, nil
	case 0xff:
		if len(data) < 9 {
			return 0, 0, ErrMalformed
		}
		v := binary.LittleEndian.Uint64(data[1:9])
		if v <= 0xffffffff {
			return 0, 0, fmt.Errorf("%w: non-canonical varint", ErrMalformed)
		}
		return v, 9, nil
	default:
		return uint64(data[0]), 1, nil
	}
}

// AppendVarBytes appends a CompactSize length followed by the bytes.
func AppendVarBytes(dst, b []byte) []byte {
	dst = AppendCompactSize(dst, uint64(len(b)))
	return append(dst, b...)
}
