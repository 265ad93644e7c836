package abi

import (
	"fmt"
	"math/big"
)

// Param describes one expected parameter when decoding. Elem is set for
// array element types.
type Param struct {
	Type Type
	Elem *Param
}

// DecodeParameters decodes an encoded parameter block against the expected
// schema. It is the exact inverse of EncodeParameters and rejects data
// shorter than any implied length.
func DecodeParameters(data []byte, schema []Param) ([]Value, error) {
	if len(data) < len(schema)*WordSize {
		return nil, ErrShortData
	}
	values := make([]Value, 0, len(schema))
	for i, p := range schema {
		head := data[i*WordSize : (i+1)*WordSize]
		if p.Type.isDynamic() {
			offset, err := wordToUint(head)
			if err != nil {
				return nil, err
			}
			if offset > uint64(len(data)) {
				return nil, ErrShortData
			}
			v, err := decodeDynamic(data[offset:], p)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			continue
		}
		v, err := decodeStatic(head, p.Type)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// DecodeUint256 decodes a single static uint256 slot.
func DecodeUint256(data []byte) (*big.Int, error) {
	if len(data) < WordSize {
		return nil, ErrShortData
	}
	return new(big.Int).SetBytes(data[:WordSize]), nil
}

// DecodeAddress decodes a single static address slot.
func DecodeAddress(data []byte) ([20]byte, error) {
	var addr [20]byte
	if len(data) < WordSize {
		return addr, ErrShortData
	}
	for _, b := range data[:WordSize-20] {
		if b != 0 {
			return addr, fmt.Errorf("%w: address with dirty upper bytes", ErrBadValue)
		}
	}
	copy(addr[:], data[WordSize-20:WordSize])
	return addr, nil
}

func decodeStatic(word []byte, t Type) (Value, error) {
	switch t {
	case TypeUint:
		return Uint(new(big.Int).SetBytes(word)), nil
	case TypeInt:
		v := new(big.Int).SetBytes(word)
		if word[0]&0x80 != 0 {
			v.Sub(v, twoPow256)
		}
		return Int(v), nil
	case TypeAddress:
		addr, err := DecodeAddress(word)
		if err != nil {
			return Value{}, err
		}
		return Address(addr), nil
	case TypeBool:
		switch word[WordSize-1] {
		case 0:
			return Bool(false), nil
		case 1:
			return Bool(true), nil
		default:
			return Value{}, fmt.Errorf("%w: bool", ErrBadValue)
		}
	default:
		return Value{}, fmt.Errorf("%w: not a static type", ErrBadValue)
	}
}

func decodeDynamic(data []byte, p Param) (Value, error) {
	if len(data) < WordSize {
		return Value{}, ErrShortData
	}
	length, err := wordToUint(data[:WordSize])
	if err != nil {
		return Value{}, err
	}
	body := data[WordSize:]

	switch p.Type {
	case TypeBytes, TypeString:
		if uint64(len(body)) < length {
			return Value{}, ErrShortData
		}
		payload := make([]byte, length)
		copy(payload, body[:length])
		if p.Type == TypeString {
			return String(string(payload)), nil
		}
		return Bytes(payload), nil
	case TypeArray:
		if p.Elem == nil {
			return Value{}, fmt.Errorf("%w: array without element type", ErrBadValue)
		}
		schema := make([]Param, length)
		for i := range schema {
			schema[i] = *p.Elem
		}
		elems, err := DecodeParameters(body, schema)
		if err != nil {
			return Value{}, err
		}
		return Array(elems...), nil
	default:
		return Value{}, fmt.Errorf("%w: not a dynamic type", ErrBadValue)
	}
}

// wordToUint reads a 32-byte word as a uint64-ranged offset or length.
func wordToUint(word []byte) (uint64, error) {
	v := new(big.Int).SetBytes(word)
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: oversized offset", ErrBadValue)
	}
	return v.Uint64(), nil
}
