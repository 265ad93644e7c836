package ethtx

import (
	"strings"
	"testing"
)

func TestAddressChecksum(t *testing.T) {
	// EIP-55 reference strings.
	cases := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range cases {
		a, err := ParseAddress(want)
		if err != nil {
			t.Fatalf("ParseAddress(%s): %v", want, err)
		}
		if got := a.String(); got != want {
			t.Errorf("String = %s, want %s", got, want)
		}
	}
}

func TestParseAddressCaseHandling(t *testing.T) {
	checksummed := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	if _, err := ParseAddress(strings.ToLower(checksummed)); err != nil {
		t.Errorf("all-lowercase rejected: %v", err)
	}
	if _, err := ParseAddress("0x" + strings.ToUpper(checksummed[2:])); err != nil {
		t.Errorf("all-uppercase rejected: %v", err)
	}

	// Flip one checksummed letter's case.
	broken := strings.Replace(checksummed, "Aeb", "aeb", 1)
	if _, err := ParseAddress(broken); err == nil {
		t.Error("bad checksum accepted")
	}
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",     // no prefix
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe",    // short
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAedd2", // long
		"0xzzAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",   // not hex
	}
	for _, s := range bad {
		if _, err := ParseAddress(s); err == nil {
			t.Errorf("ParseAddress(%q) accepted malformed input", s)
		}
	}
}

func TestAddressTextRoundTrip(t *testing.T) {
	a, _ := ParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	text, err := a.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var back Address
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back != a {
		t.Errorf("round trip = %s, want %s", back, a)
	}
}

func TestPubkeyToAddressLengths(t *testing.T) {
	if _, err := PubkeyToAddress(make([]byte, 33)); err == nil {
		t.Error("compressed key accepted")
	}
	if _, err := PubkeyToAddress(nil); err == nil {
		t.Error("empty key accepted")
	}
}
