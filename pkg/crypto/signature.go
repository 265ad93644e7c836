package crypto

import (
	"bytes"
	"fmt"
)

// SignatureSize is the length of a compact signature: r(32) + s(32) + recovery id(1).
const SignatureSize = 65

// Signature is a recoverable ECDSA signature over secp256k1.
type Signature struct {
	R          [32]byte
	S          [32]byte
	RecoveryID byte // 0-3
}

// Compact returns the 65-byte r || s || recoveryID form.
func (sig Signature) Compact() [SignatureSize]byte {
	var out [SignatureSize]byte
	copy(out[:32], sig.R[:])
	copy(out[32:64], sig.S[:])
	out[64] = sig.RecoveryID
	return out
}

// SignatureFromCompact parses a 65-byte r || s || recoveryID signature.
func SignatureFromCompact(b []byte) (Signature, error) {
	if len(b) != SignatureSize {
		return Signature{}, fmt.Errorf("compact signature must be %d bytes, got %d", SignatureSize, len(b))
	}
	var sig Signature
	copy(sig.R[:], b[:32])
	copy(sig.S[:], b[32:64])
	sig.RecoveryID = b[64]
	if sig.RecoveryID > 3 {
		return Signature{}, fmt.Errorf("recovery id %d out of range", sig.RecoveryID)
	}
	return sig, nil
}

// DER returns the signature in strict DER form:
// 0x30 len 0x02 rlen r 0x02 slen s. The recovery id is not representable
// in DER and is dropped.
func (sig Signature) DER() []byte {
	r := derInteger(sig.R[:])
	s := derInteger(sig.S[:])
	der := make([]byte, 0, 2+len(r)+len(s))
	der = append(der, 0x30, byte(len(r)+len(s)))
	der = append(der, r...)
	return append(der, s...)
}

// derInteger encodes a big-endian value as a DER INTEGER element:
// minimal length, with a leading zero byte if the high bit is set.
func derInteger(v []byte) []byte {
	v = bytes.TrimLeft(v, "\x00")
	if len(v) == 0 {
		v = []byte{0x00}
	}
	pad := 0
	if v[0]&0x80 != 0 {
		pad = 1
	}
	out := make([]byte, 0, 2+pad+len(v))
	out = append(out, 0x02, byte(pad+len(v)))
	if pad == 1 {
		out = append(out, 0x00)
	}
	return append(out, v...)
}

// SignatureFromDER parses a strict DER signature. The recovery id is not
// carried in DER and comes back as zero.
func SignatureFromDER(der []byte) (Signature, error) {
	if len(der) < 8 || der[0] != 0x30 {
		return Signature{}, fmt.Errorf("malformed DER signature")
	}
	if int(der[1]) != len(der)-2 {
		return Signature{}, fmt.Errorf("DER length mismatch")
	}
	rest := der[2:]
	r, rest, err := parseDERInteger(rest)
	if err != nil {
		return Signature{}, err
	}
	s, rest, err := parseDERInteger(rest)
	if err != nil {
		return Signature{}, err
	}
	if len(rest) != 0 {
		return Signature{}, fmt.Errorf("trailing bytes after DER signature")
	}
	var sig Signature
	copy(sig.R[32-len(r):], r)
	copy(sig.S[32-len(s):], s)
	return sig, nil
}

func parseDERInteger(b []byte) (value, rest []byte, err error) {
	if len(b) < 2 || b[0] != 0x02 {
		return nil, nil, fmt.Errorf("malformed DER integer")
	}
	n := int(b[1])
	if n == 0 || len(b) < 2+n {
		return nil, nil, fmt.Errorf("truncated DER integer")
	}
	v := b[2 : 2+n]
	// Strip the sign padding byte.
	if v[0] == 0x00 && len(v) > 1 {
		v = v[1:]
	}
	if len(v) > 32 {
		return nil, nil, fmt.Errorf("DER integer exceeds 32 bytes")
	}
	return v, b[2+n:], nil
}
