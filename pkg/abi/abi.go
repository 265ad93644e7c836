// Package abi implements Ethereum contract ABI parameter and function-call
// encoding with the head/tail scheme for dynamic types.
package abi

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/helixwallet/helix-core/pkg/crypto"
)

// WordSize is the ABI slot width in bytes.
const WordSize = 32

// Decoding errors.
var (
	ErrShortData = errors.New("abi: data shorter than implied length")
	ErrBadValue  = errors.New("abi: value does not fit its type")
)

// Type identifies an ABI parameter type.
type Type uint8

const (
	TypeUint Type = iota // uint256
	TypeInt              // int256, two's complement
	TypeAddress
	TypeBool
	TypeBytes  // dynamic bytes
	TypeString // dynamic UTF-8 string
	TypeArray  // dynamic array
)

// Value is a tagged ABI value.
type Value struct {
	Type    Type
	Int     *big.Int
	Address [20]byte
	Bool    bool
	Bytes   []byte
	String  string
	Elems   []Value
}

// Uint wraps a non-negative integer as an ABI uint256 value.
func Uint(v *big.Int) Value { return Value{Type: TypeUint, Int: v} }

// Int wraps a signed integer as an ABI int256 value.
func Int(v *big.Int) Value { return Value{Type: TypeInt, Int: v} }

// Address wraps a 20-byte address value.
func Address(a [20]byte) Value { return Value{Type: TypeAddress, Address: a} }

// Bool wraps a boolean value.
func Bool(b bool) Value { return Value{Type: TypeBool, Bool: b} }

// Bytes wraps a dynamic byte string.
func Bytes(b []byte) Value { return Value{Type: TypeBytes, Bytes: b} }

// String wraps a dynamic string.
func String(s string) Value { return Value{Type: TypeString, String: s} }

// Array wraps a dynamic array of values.
func Array(elems ...Value) Value { return Value{Type: TypeArray, Elems: elems} }

// isDynamic reports whether the type uses the tail section.
func (t Type) isDynamic() bool {
	return t == TypeBytes || t == TypeString || t == TypeArray
}

// MethodID returns the first 4 bytes of Keccak-256 over the canonical
// function signature, e.g. "transfer(address,uint256)".
func MethodID(signature string) [4]byte {
	h := crypto.Keccak256([]byte(signature))
	var id [4]byte
	copy(id[:], h[:4])
	return id
}

// EncodeFunctionCall builds calldata: the 4-byte selector followed by the
// encoded parameters.
func EncodeFunctionCall(signature string, values ...Value) ([]byte, error) {
	params, err := EncodeParameters(values)
	if err != nil {
		return nil, err
	}
	id := MethodID(signature)
	return append(id[:], params...), nil
}

// EncodeParameters encodes values with the head/tail scheme: static values
// inline, dynamic values as a byte offset in the head pointing into the tail.
func EncodeParameters(values []Value) ([]byte, error) {
	headSize := len(values) * WordSize
	head := make([]byte, 0, headSize)
	var tail []byte

	for _, v := range values {
		if v.Type.isDynamic() {
			offset := encodeUintWord(big.NewInt(int64(headSize + len(tail))))
			head = append(head, offset[:]...)
			enc, err := encodeDynamic(v)
			if err != nil {
				return nil, err
			}
			tail = append(tail, enc...)
			continue
		}
		word, err := encodeStatic(v)
		if err != nil {
			return nil, err
		}
		head = append(head, word[:]...)
	}
	return append(head, tail...), nil
}

// encodeStatic encodes a static value into one 32-byte word.
func encodeStatic(v Value) ([WordSize]byte, error) {
	var word [WordSize]byte
	switch v.Type {
	case TypeUint:
		if v.Int == nil || v.Int.Sign() < 0 || v.Int.BitLen() > 256 {
			return word, fmt.Errorf("%w: uint256", ErrBadValue)
		}
		return encodeUintWord(v.Int), nil
	case TypeInt:
		if v.Int == nil || v.Int.BitLen() > 255 {
			return word, fmt.Errorf("%w: int256", ErrBadValue)
		}
		u := v.Int
		if u.Sign() < 0 {
			// Two's complement: v + 2^256.
			u = new(big.Int).Add(u, twoPow256)
		}
		return encodeUintWord(u), nil
	case TypeAddress:
		copy(word[WordSize-20:], v.Address[:])
		return word, nil
	case TypeBool:
		if v.Bool {
			word[WordSize-1] = 1
		}
		return word, nil
	default:
		return word, fmt.Errorf("%w: not a static type", ErrBadValue)
	}
}

// encodeDynamic encodes the tail portion of a dynamic value.
func encodeDynamic(v Value) ([]byte, error) {
	switch v.Type {
	case TypeBytes, TypeString:
		payload := v.Bytes
		if v.Type == TypeString {
			payload = []byte(v.String)
		}
		length := encodeUintWord(big.NewInt(int64(len(payload))))
		return append(length[:], padRight(payload)...), nil
	case TypeArray:
		length := encodeUintWord(big.NewInt(int64(len(v.Elems))))
		elems, err := EncodeParameters(v.Elems)
		if err != nil {
			return nil, err
		}
		return append(length[:], elems...), nil
	default:
		return nil, fmt.Errorf("%w: not a dynamic type", ErrBadValue)
	}
}

var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)

func encodeUintWord(v *big.Int) [WordSize]byte {
	var word [WordSize]byte
	v.FillBytes(word[:])
	return word
}

// padRight zero-pads data to a 32-byte boundary.
func padRight(data []byte) []byte {
	rem := len(data) % WordSize
	if rem == 0 {
		return data
	}
	return append(data[:len(data):len(data)], make([]byte, WordSize-rem)...)
}
