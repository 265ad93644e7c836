package main

import (
	"math/big"
	"testing"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in       string
		decimals int
		want     string
		wantErr  bool
	}{
		{"1", 8, "100000000", false},
		{"1.5", 8, "150000000", false},
		{"0.00000001", 8, "1", false},
		{"21000000", 8, "2100000000000000", false},
		{"1.000000001", 8, "", true}, // more places than the coin has
		{"-1", 8, "", true},
		{"", 8, "", true},
		{"abc", 8, "", true},
		{"1.5", 18, "1500000000000000000", false},
		{"0.000000000000000001", 18, "1", false},
	}
	for _, tt := range tests {
		got, err := parseDecimal(tt.in, tt.decimals)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDecimal(%q, %d) = %v, want error", tt.in, tt.decimals, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDecimal(%q, %d): %v", tt.in, tt.decimals, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("parseDecimal(%q, %d) = %s, want %s", tt.in, tt.decimals, got, tt.want)
		}
	}
}

func TestParseBTC(t *testing.T) {
	sats, err := parseBTC("0.001")
	if err != nil {
		t.Fatalf("parseBTC: %v", err)
	}
	if sats != 100000 {
		t.Errorf("parseBTC(0.001) = %d, want 100000", sats)
	}

	// Beyond uint64 range.
	if _, err := parseBTC("999999999999999999999"); err == nil {
		t.Error("parseBTC accepted an amount past uint64 range")
	}
}

func TestParseEther(t *testing.T) {
	wei, err := parseEther("2.5")
	if err != nil {
		t.Fatalf("parseEther: %v", err)
	}
	want, _ := new(big.Int).SetString("2500000000000000000", 10)
	if wei.Cmp(want) != 0 {
		t.Errorf("parseEther(2.5) = %s, want %s", wei, want)
	}
}

func TestGweiToWei(t *testing.T) {
	if got := gweiToWei(30); got.Cmp(big.NewInt(30000000000)) != 0 {
		t.Errorf("gweiToWei(30) = %s, want 30000000000", got)
	}
}

func TestTrim0x(t *testing.T) {
	for in, want := range map[string]string{
		"0xdeadbeef": "deadbeef",
		"0Xdeadbeef": "deadbeef",
		"deadbeef":   "deadbeef",
		"0x":         "",
		"":           "",
	} {
		if got := trim0x(in); got != want {
			t.Errorf("trim0x(%q) = %q, want %q", in, got, want)
		}
	}
}
