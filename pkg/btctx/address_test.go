package btctx

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestEncodeP2WPKHVector(t *testing.T) {
	raw, _ := hex.DecodeString("751e76e8199196d454941c45d1b3a323f1433bd6")
	var h [20]byte
	copy(h[:], raw)

	got, err := MainNet.EncodeP2WPKH(h)
	if err != nil {
		t.Fatalf("EncodeP2WPKH: %v", err)
	}
	want := "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	if got != want {
		t.Errorf("EncodeP2WPKH = %s, want %s", got, want)
	}
}

func TestDecodeAddressRoundTrips(t *testing.T) {
	raw, _ := hex.DecodeString("751e76e8199196d454941c45d1b3a323f1433bd6")
	var h20 [20]byte
	copy(h20[:], raw)
	var h32 [32]byte
	copy(h32[:], bytes.Repeat([]byte{0x42}, 32))

	p2wpkh, _ := MainNet.EncodeP2WPKH(h20)
	p2wsh, _ := MainNet.EncodeP2WSH(h32)

	cases := []struct {
		addr string
		want []byte
	}{
		{MainNet.EncodeP2PKH(h20), P2PKHScript(h20)},
		{MainNet.EncodeP2SH(h20), P2SHScript(h20)},
		{p2wpkh, P2WPKHScript(h20)},
		{p2wsh, P2WSHScript(h32)},
	}
	for _, c := range cases {
		got, err := MainNet.DecodeAddress(c.addr)
		if err != nil {
			t.Fatalf("DecodeAddress(%s): %v", c.addr, err)
		}
		if !bytes.Equal(got, c.want) {
			t.Errorf("DecodeAddress(%s) = %x, want %x", c.addr, got, c.want)
		}
	}
}

func TestDecodeAddressUppercaseBech32(t *testing.T) {
	raw, _ := hex.DecodeString("751e76e8199196d454941c45d1b3a323f1433bd6")
	got, err := MainNet.DecodeAddress("BC1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KV8F3T4")
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	var h [20]byte
	copy(h[:], raw)
	if !bytes.Equal(got, P2WPKHScript(h)) {
		t.Errorf("DecodeAddress = %x", got)
	}
}

func TestDecodeAddressRejectsBad(t *testing.T) {
	bad := []string{
		"",
		"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t5", // checksum flipped
		"tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx", // wrong network
		"bc1qw508d6qejxtdg4y5r3zarvarY0c5xw7kv8f3t4", // mixed case
		"1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAM",          // truncated base58
	}
	for _, addr := range bad {
		if _, err := MainNet.DecodeAddress(addr); err == nil {
			t.Errorf("DecodeAddress(%q) accepted a bad address", addr)
		}
	}
}

func TestNetworkVersionBytes(t *testing.T) {
	var h [20]byte
	mainnet := MainNet.EncodeP2PKH(h)
	testnet := TestNet.EncodeP2PKH(h)
	if mainnet == testnet {
		t.Error("mainnet and testnet addresses must differ")
	}
	if mainnet[0] != '1' {
		t.Errorf("mainnet P2PKH address %s does not start with 1", mainnet)
	}
	if _, err := TestNet.DecodeAddress(mainnet); err == nil {
		t.Error("testnet decode accepted a mainnet address")
	}
}

func TestSegwitProgramLengthRules(t *testing.T) {
	if _, err := segwitEncode("bc", 0, make([]byte, 25)); err == nil {
		t.Error("segwitEncode accepted a 25-byte v0 program")
	}
	if _, err := segwitEncode("bc", 17, make([]byte, 20)); err == nil {
		t.Error("segwitEncode accepted witness version 17")
	}
	if _, err := segwitEncode("bc", 1, make([]byte, 41)); err == nil {
		t.Error("segwitEncode accepted a 41-byte program")
	}
}
