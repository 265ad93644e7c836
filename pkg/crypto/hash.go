// Package crypto provides the hashing and secp256k1 signing primitives used
// by the helix transaction pipeline.
package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"

	"github.com/helixwallet/helix-core/pkg/types"
)

// Keccak256 computes the Keccak-256 hash of the input data.
//
// This is Ethereum's pre-NIST Keccak (0x01 padding), not NIST SHA3-256.
func Keccak256(data ...[]byte) types.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out types.Hash
	h.Sum(out[:0])
	return out
}

// SHA256d computes SHA-256(SHA-256(data)), Bitcoin's transaction hash.
func SHA256d(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return types.Hash(sha256.Sum256(first[:]))
}

// Hash160 computes RIPEMD-160(SHA-256(data)), the 20-byte hash Bitcoin
// addresses and P2PKH/P2WPKH scripts are built from.
func Hash160(data []byte) [20]byte {
	sha := sha256.Sum256(data)
	r := ripemd160.New()
	r.Write(sha[:])
	var out [20]byte
	r.Sum(out[:0])
	return out
}
