package crypto

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ECDSA errors.
var (
	ErrInvalidPrivateKey = errors.New("private key not in (0, curve order)")
	ErrInvalidHash       = errors.New("hash must be exactly 32 bytes")
)

// Backend is the secp256k1 ECDSA capability. Modeling it as an interface
// keeps the pipeline portable across any correct curve implementation.
//
// Sign must be deterministic (RFC 6979): repeated signs of the same
// hash and key produce bit-identical signatures.
type Backend interface {
	// Sign produces a recoverable signature over a 32-byte hash.
	Sign(hash, privateKey []byte) (Signature, error)
	// Verify checks a signature against a 32-byte hash and a public key
	// in compressed (33-byte) or uncompressed (65-byte) form.
	Verify(sig Signature, hash, publicKey []byte) bool
	// RecoverPublicKey returns the 64-byte uncompressed public key
	// (X || Y, no 0x04 prefix) that produced the signature.
	RecoverPublicKey(hash []byte, sig Signature) ([]byte, error)
	// DerivePublicKey returns the public key for a private key, in
	// compressed (33-byte) or uncompressed (65-byte, 0x04-prefixed) form.
	DerivePublicKey(privateKey []byte, compressed bool) ([]byte, error)
}

// secpBackend implements Backend with decred's secp256k1 package.
type secpBackend struct{}

// NewBackend returns the default secp256k1 backend.
func NewBackend() Backend {
	return secpBackend{}
}

// parsePrivateKey validates a 32-byte scalar and loads it as a private key.
func parsePrivateKey(b []byte) (*secp256k1.PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: key must be 32 bytes, got %d", ErrInvalidPrivateKey, len(b))
	}
	var key secp256k1.PrivateKey
	if overflow := key.Key.SetByteSlice(b); overflow || key.Key.IsZero() {
		return nil, ErrInvalidPrivateKey
	}
	return &key, nil
}

// Sign produces an RFC 6979 deterministic recoverable signature.
func (secpBackend) Sign(hash, privateKey []byte) (Signature, error) {
	if len(hash) != 32 {
		return Signature{}, ErrInvalidHash
	}
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return Signature{}, err
	}
	defer key.Zero()

	// SignCompact returns header(1) || r(32) || s(32) with
	// header = 27 + recoveryID (+4 when the key is compressed).
	compact := secpecdsa.SignCompact(key, hash, false)

	var sig Signature
	sig.RecoveryID = compact[0] - 27
	copy(sig.R[:], compact[1:33])
	copy(sig.S[:], compact[33:65])
	return sig, nil
}

// Verify checks the signature against the hash and public key.
// Returns false on any parse failure.
func (secpBackend) Verify(sig Signature, hash, publicKey []byte) bool {
	if len(hash) != 32 {
		return false
	}
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return false
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig.R[:]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(sig.S[:]); overflow {
		return false
	}
	return secpecdsa.NewSignature(&r, &s).Verify(hash, pub)
}

// RecoverPublicKey recovers the 64-byte uncompressed public key.
func (secpBackend) RecoverPublicKey(hash []byte, sig Signature) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidHash
	}
	var compact [SignatureSize]byte
	compact[0] = sig.RecoveryID + 27
	copy(compact[1:33], sig.R[:])
	copy(compact[33:65], sig.S[:])

	pub, _, err := secpecdsa.RecoverCompact(compact[:], hash)
	if err != nil {
		return nil, fmt.Errorf("recover public key: %w", err)
	}
	// Drop the 0x04 prefix from the uncompressed serialization.
	return pub.SerializeUncompressed()[1:], nil
}

// DerivePublicKey derives the public key for a 32-byte private key.
func (secpBackend) DerivePublicKey(privateKey []byte, compressed bool) ([]byte, error) {
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	if compressed {
		return key.PubKey().SerializeCompressed(), nil
	}
	return key.PubKey().SerializeUncompressed(), nil
}

// parsePublicKey accepts compressed (33-byte), uncompressed (65-byte) and
// bare 64-byte X||Y public keys.
func parsePublicKey(b []byte) (*secp256k1.PublicKey, error) {
	if len(b) == 64 {
		prefixed := make([]byte, 65)
		prefixed[0] = 0x04
		copy(prefixed[1:], b)
		b = prefixed
	}
	return secp256k1.ParsePubKey(b)
}
