package rlp

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
)

func TestEncodeBytes_Vectors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"empty string", nil, "80"},
		{"single low byte", []byte{0x00}, "00"},
		{"single byte 0x7f", []byte{0x7f}, "7f"},
		{"single byte 0x80", []byte{0x80}, "8180"},
		{"dog", []byte("dog"), "83646f67"},
		{
			"56-byte string uses long form",
			[]byte("Lorem ipsum dolor sit amet, consectetur adipisicing elit"),
			"b8384c6f72656d20697073756d20646f6c6f722073697420616d65742c20636f6e7365637465747572206164697069736963696e6720656c6974",
		},
	}
	for _, tt := range tests {
		got := hex.EncodeToString(EncodeBytes(tt.input))
		if got != tt.want {
			t.Errorf("%s: EncodeBytes = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestEncodeList_Vectors(t *testing.T) {
	catDog := EncodeList(EncodeBytes([]byte("cat")), EncodeBytes([]byte("dog")))
	if got := hex.EncodeToString(catDog); got != "c88363617483646f67" {
		t.Errorf("[cat dog] = %s, want c88363617483646f67", got)
	}

	empty := EncodeList()
	if got := hex.EncodeToString(empty); got != "c0" {
		t.Errorf("empty list = %s, want c0", got)
	}

	// The set-theoretic representation of 3: [ [], [[]], [ [], [[]] ] ].
	nested := Encode(ListItem(
		ListItem(),
		ListItem(ListItem()),
		ListItem(ListItem(), ListItem(ListItem())),
	))
	if got := hex.EncodeToString(nested); got != "c7c0c1c0c3c0c1c0" {
		t.Errorf("nested = %s, want c7c0c1c0c3c0c1c0", got)
	}
}

func TestEncodeUint64_Vectors(t *testing.T) {
	tests := []struct {
		v    uint64
		want string
	}{
		{0, "80"},
		{1, "01"},
		{15, "0f"},
		{1024, "820400"},
		{0xffffffffffffffff, "88ffffffffffffffff"},
	}
	for _, tt := range tests {
		if got := hex.EncodeToString(EncodeUint64(tt.v)); got != tt.want {
			t.Errorf("EncodeUint64(%d) = %s, want %s", tt.v, got, tt.want)
		}
	}
}

func TestEncodeBig(t *testing.T) {
	if got := hex.EncodeToString(EncodeBig(nil)); got != "80" {
		t.Errorf("EncodeBig(nil) = %s, want 80", got)
	}
	if got := hex.EncodeToString(EncodeBig(big.NewInt(0))); got != "80" {
		t.Errorf("EncodeBig(0) = %s, want 80", got)
	}
	v := new(big.Int).Lsh(big.NewInt(1), 64) // 2^64
	if got := hex.EncodeToString(EncodeBig(v)); got != "89010000000000000000" {
		t.Errorf("EncodeBig(2^64) = %s, want 89010000000000000000", got)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	items := []Item{
		BytesItem(nil),
		BytesItem([]byte{0x01}),
		BytesItem([]byte("dog")),
		BytesItem(bytes.Repeat([]byte{0xab}, 300)),
		ListItem(),
		ListItem(BytesItem([]byte("cat")), BytesItem([]byte("dog"))),
		ListItem(
			ListItem(BytesItem([]byte("deep"))),
			ListItem(ListItem(ListItem(BytesItem([]byte{0x7f}))))),
	}
	for i, item := range items {
		decoded, err := Decode(Encode(item))
		if err != nil {
			t.Fatalf("item %d: Decode: %v", i, err)
		}
		if !itemsEqual(item, decoded) {
			t.Errorf("item %d: round trip mismatch", i)
		}
	}
}

func TestDecodeUint64_RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 1024, 1<<64 - 1} {
		item, err := Decode(EncodeUint64(v))
		if err != nil {
			t.Fatalf("Decode(%d): %v", v, err)
		}
		got, err := DecodeUint64(item)
		if err != nil {
			t.Fatalf("DecodeUint64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip: got %d, want %d", got, v)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"truncated string", "83646f"},
		{"truncated long string", "b838" + strings.Repeat("61", 10)},
		{"truncated list", "c883636174"},
		{"trailing bytes", "83646f6767"},
		{"non-canonical single byte", "8100"},
		{"non-canonical long form", "b801ff"},
		{"length with leading zero", "b90001" + strings.Repeat("61", 256)},
	}
	for _, tt := range tests {
		data, err := hex.DecodeString(tt.input)
		if err != nil {
			t.Fatalf("%s: bad test hex: %v", tt.name, err)
		}
		if _, err := Decode(data); err == nil {
			t.Errorf("%s: Decode should fail", tt.name)
		}
	}
}

func itemsEqual(a, b Item) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindBytes {
		return bytes.Equal(a.Bytes, b.Bytes)
	}
	if len(a.List) != len(b.List) {
		return false
	}
	for i := range a.List {
		if !itemsEqual(a.List[i], b.List[i]) {
			return false
		}
	}
	return true
}
