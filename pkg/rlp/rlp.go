// Package rlp implements Ethereum's Recursive Length Prefix serialization.
//
// Encoding rules:
//   - a single byte < 0x80 encodes as itself
//   - byte strings of length 0-55 get prefix 0x80+len
//   - longer byte strings get prefix 0xb7+len(lengthBytes) followed by the
//     big-endian length, then the payload
//   - lists use 0xc0/0xf7 the same way over the concatenated child encodings
//
// Integers encode as their minimal big-endian representation; zero encodes
// as the empty byte string.
package rlp

import (
	"encoding/binary"
	"errors"
	"math/big"
)

// ErrMalformed is returned when decoding truncated or inconsistent input.
var ErrMalformed = errors.New("malformed RLP encoding")

// Kind tags an Item as a byte string or a list.
type Kind uint8

const (
	KindBytes Kind = iota
	KindList
)

// Item is a decoded RLP item: either a byte string or a list of items.
type Item struct {
	Kind  Kind
	Bytes []byte
	List  []Item
}

// BytesItem wraps a byte string as an Item.
func BytesItem(b []byte) Item {
	return Item{Kind: KindBytes, Bytes: b}
}

// ListItem wraps child items as a list Item.
func ListItem(items ...Item) Item {
	if items == nil {
		items = []Item{}
	}
	return Item{Kind: KindList, List: items}
}

// Encode encodes an Item.
func Encode(item Item) []byte {
	if item.Kind == KindBytes {
		return EncodeBytes(item.Bytes)
	}
	var payload []byte
	for _, child := range item.List {
		payload = append(payload, Encode(child)...)
	}
	return append(encodeLength(len(payload), 0xc0), payload...)
}

// EncodeBytes encodes a byte string.
func EncodeBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return append(encodeLength(len(b), 0x80), b...)
}

// EncodeList encodes already-encoded children as a list.
func EncodeList(encodedChildren ...[]byte) []byte {
	var payload []byte
	for _, c := range encodedChildren {
		payload = append(payload, c...)
	}
	return append(encodeLength(len(payload), 0xc0), payload...)
}

// EncodeUint64 encodes an integer as its minimal big-endian byte string.
// Zero encodes as the empty byte string.
func EncodeUint64(v uint64) []byte {
	return EncodeBytes(AppendUint64(nil, v))
}

// EncodeBig encodes a non-negative big integer. A nil or zero value encodes
// as the empty byte string.
func EncodeBig(v *big.Int) []byte {
	if v == nil || v.Sign() == 0 {
		return EncodeBytes(nil)
	}
	return EncodeBytes(v.Bytes())
}

// AppendUint64 appends the minimal big-endian representation of v.
func AppendUint64(dst []byte, v uint64) []byte {
	if v == 0 {
		return dst
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	i := 0
	for buf[i] == 0 {
		i++
	}
	return append(dst, buf[i:]...)
}

// encodeLength builds the length prefix for a payload of n bytes with the
// given offset (0x80 for strings, 0xc0 for lists).
func encodeLength(n int, offset byte) []byte {
	if n <= 55 {
		return []byte{offset + byte(n)}
	}
	lenBytes := AppendUint64(nil, uint64(n))
	return append([]byte{offset + 55 + byte(len(lenBytes))}, lenBytes...)
}

// Decode decodes a complete RLP encoding. Trailing bytes after the first
// item are rejected.
func Decode(data []byte) (Item, error) {
	item, rest, err := decodeItem(data)
	if err != nil {
		return Item{}, err
	}
	if len(rest) != 0 {
		return Item{}, ErrMalformed
	}
	return item, nil
}

// DecodeUint64 interprets a decoded byte-string item as an integer.
// Leading zero bytes are invalid in canonical RLP integers.
func DecodeUint64(item Item) (uint64, error) {
	if item.Kind != KindBytes || len(item.Bytes) > 8 {
		return 0, ErrMalformed
	}
	if len(item.Bytes) > 0 && item.Bytes[0] == 0 {
		return 0, ErrMalformed
	}
	var v uint64
	for _, b := range item.Bytes {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// DecodeBig interprets a decoded byte-string item as a big integer.
func DecodeBig(item Item) (*big.Int, error) {
	if item.Kind != KindBytes {
		return nil, ErrMalformed
	}
	if len(item.Bytes) > 0 && item.Bytes[0] == 0 {
		return nil, ErrMalformed
	}
	return new(big.Int).SetBytes(item.Bytes), nil
}

// decodeItem decodes the first item in data and returns the remainder.
func decodeItem(data []byte) (Item, []byte, error) {
	if len(data) == 0 {
		return Item{}, nil, ErrMalformed
	}
	prefix := data[0]

	switch {
	case prefix < 0x80:
		// Single byte encodes itself.
		return BytesItem(data[:1]), data[1:], nil

	case prefix <= 0xb7:
		n := int(prefix - 0x80)
		if len(data) < 1+n {
			return Item{}, nil, ErrMalformed
		}
		// A single byte below 0x80 must use the single-byte form.
		if n == 1 && data[1] < 0x80 {
			return Item{}, nil, ErrMalformed
		}
		return BytesItem(data[1 : 1+n]), data[1+n:], nil

	case prefix <= 0xbf:
		n, rest, err := decodeLongLength(data, prefix-0xb7)
		if err != nil {
			return Item{}, nil, err
		}
		return BytesItem(rest[:n]), rest[n:], nil

	case prefix <= 0xf7:
		n := int(prefix - 0xc0)
		if len(data) < 1+n {
			return Item{}, nil, ErrMalformed
		}
		list, err := decodeListPayload(data[1 : 1+n])
		if err != nil {
			return Item{}, nil, err
		}
		return ListItem(list...), data[1+n:], nil

	default:
		n, rest, err := decodeLongLength(data, prefix-0xf7)
		if err != nil {
			return Item{}, nil, err
		}
		list, err := decodeListPayload(rest[:n])
		if err != nil {
			return Item{}, nil, err
		}
		return ListItem(list...), rest[n:], nil
	}
}

// decodeLongLength reads a big-endian length of lenLen bytes following the
// prefix byte and validates canonical form.
func decodeLongLength(data []byte, lenLen byte) (int, []byte, error) {
	n := int(lenLen)
	if len(data) < 1+n {
		return 0, nil, ErrMalformed
	}
	lenBytes := data[1 : 1+n]
	if lenBytes[0] == 0 {
		return 0, nil, ErrMalformed
	}
	var length uint64
	for _, b := range lenBytes {
		length = length<<8 | uint64(b)
	}
	// Long form is only canonical for payloads over 55 bytes.
	if length <= 55 {
		return 0, nil, ErrMalformed
	}
	rest := data[1+n:]
	if uint64(len(rest)) < length {
		return 0, nil, ErrMalformed
	}
	return int(length), rest, nil
}

func decodeListPayload(payload []byte) ([]Item, error) {
	items := []Item{}
	for len(payload) > 0 {
		item, rest, err := decodeItem(payload)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		payload = rest
	}
	return items, nil
}
