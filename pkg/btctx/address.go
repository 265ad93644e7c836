package btctx

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Network carries the address encoding parameters of a Bitcoin network.
type Network struct {
	Name         string
	P2PKHVersion byte
	P2SHVersion  byte
	Bech32HRP    string
}

var (
	MainNet = Network{Name: "mainnet", P2PKHVersion: 0x00, P2SHVersion: 0x05, Bech32HRP: "bc"}
	TestNet = Network{Name: "testnet", P2PKHVersion: 0x6f, P2SHVersion: 0xc4, Bech32HRP: "tb"}
	RegTest = Network{Name: "regtest", P2PKHVersion: 0x6f, P2SHVersion: 0xc4, Bech32HRP: "bcrt"}
)

// EncodeP2PKH returns the base58check address for a public key hash.
func (n Network) EncodeP2PKH(pubKeyHash [20]byte) string {
	return base58.CheckEncode(pubKeyHash[:], n.P2PKHVersion)
}

// EncodeP2SH returns the base58check address for a script hash.
func (n Network) EncodeP2SH(scriptHash [20]byte) string {
	return base58.CheckEncode(scriptHash[:], n.P2SHVersion)
}

// EncodeP2WPKH returns the bech32 address for a v0 20-byte witness program.
func (n Network) EncodeP2WPKH(pubKeyHash [20]byte) (string, error) {
	return segwitEncode(n.Bech32HRP, 0, pubKeyHash[:])
}

// EncodeP2WSH returns the bech32 address for a v0 32-byte witness program.
func (n Network) EncodeP2WSH(scriptHash [32]byte) (string, error) {
	return segwitEncode(n.Bech32HRP, 0, scriptHash[:])
}

// DecodeAddress parses any supported address form and returns the
// locking script it pays to.
func (n Network) DecodeAddress(addr string) ([]byte, error) {
	lower := strings.ToLower(addr)
	if strings.HasPrefix(lower, n.Bech32HRP+"1") {
		version, program, err := segwitDecode(n.Bech32HRP, addr)
		if err != nil {
			return nil, fmt.Errorf("decode address %q: %w", addr, err)
		}
		if version != 0 {
			return nil, fmt.Errorf("decode address %q: unsupported witness version %d", addr, version)
		}
		switch len(program) {
		case 20:
			var h [20]byte
			copy(h[:], program)
			return P2WPKHScript(h), nil
		case 32:
			var h [32]byte
			copy(h[:], program)
			return P2WSHScript(h), nil
		}
		return nil, fmt.Errorf("decode address %q: bad witness program length %d", addr, len(program))
	}

	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(payload) != 20 {
		return nil, fmt.Errorf("decode address %q: payload is %d bytes, want 20", addr, len(payload))
	}
	var h [20]byte
	copy(h[:], payload)
	switch version {
	case n.P2PKHVersion:
		return P2PKHScript(h), nil
	case n.P2SHVersion:
		return P2SHScript(h), nil
	}
	return nil, fmt.Errorf("decode address %q: unknown version byte %#02x", addr, version)
}
