package ethtx

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/helixwallet/helix-core/pkg/crypto"
)

var ErrInvalidAddress = errors.New("ethtx: invalid address")

// Address is a 20-byte Ethereum account address.
type Address [20]byte

// PubkeyToAddress derives the address from a 64-byte uncompressed public
// key (X||Y without the 0x04 prefix): the last 20 bytes of its Keccak-256.
func PubkeyToAddress(pubKey []byte) (Address, error) {
	if len(pubKey) == 65 && pubKey[0] == 0x04 {
		pubKey = pubKey[1:]
	}
	if len(pubKey) != 64 {
		return Address{}, fmt.Errorf("%w: public key is %d bytes", ErrInvalidAddress, len(pubKey))
	}
	h := crypto.Keccak256(pubKey)
	var a Address
	copy(a[:], h[12:])
	return a, nil
}

// ParseAddress parses a 0x-prefixed hex address. Mixed-case input must
// carry a valid EIP-55 checksum; all-lower and all-upper input is
// accepted without one.
func ParseAddress(s string) (Address, error) {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	var a Address
	copy(a[:], raw)

	hexPart := s[2:]
	lower := strings.ToLower(hexPart)
	upper := strings.ToUpper(hexPart)
	if hexPart != lower && hexPart != upper && a.String() != s {
		return Address{}, fmt.Errorf("%w: bad checksum in %q", ErrInvalidAddress, s)
	}
	return a, nil
}

// String renders the address with the EIP-55 mixed-case checksum: a hex
// letter is uppercased when the corresponding nibble of the Keccak-256
// hash of the lowercase hex address is 8 or above.
func (a Address) String() string {
	lower := hex.EncodeToString(a[:])
	sum := crypto.Keccak256([]byte(lower))

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool { return a == Address{} }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
