package types

import (
	"strings"
	"testing"
)

func TestHash_IsZero(t *testing.T) {
	var zero Hash
	if !zero.IsZero() {
		t.Error("zero-value Hash should be zero")
	}

	nonZero := Hash{0x01}
	if nonZero.IsZero() {
		t.Error("non-zero Hash should not be zero")
	}
}

func TestHash_String(t *testing.T) {
	var h Hash
	s := h.String()
	if len(s) != 64 {
		t.Errorf("String() length = %d, want 64", len(s))
	}
	if s != strings.Repeat("0", 64) {
		t.Errorf("zero hash String() = %s, want all zeros", s)
	}

	h[0] = 0xab
	h[31] = 0xcd
	s = h.String()
	if !strings.HasPrefix(s, "ab") {
		t.Errorf("String() should start with 'ab', got %s", s[:2])
	}
	if !strings.HasSuffix(s, "cd") {
		t.Errorf("String() should end with 'cd', got %s", s[62:])
	}
}

func TestHash_Reversed(t *testing.T) {
	h := Hash{0x01}
	r := h.Reversed()
	if r[31] != 0x01 || r[0] != 0x00 {
		t.Errorf("Reversed() = %s", r)
	}
	if r.Reversed() != h {
		t.Error("double reversal should restore the original hash")
	}
}

func TestHash_Bytes(t *testing.T) {
	h := Hash{0x01, 0x02, 0x03}
	b := h.Bytes()

	if len(b) != HashSize {
		t.Errorf("Bytes() length = %d, want %d", len(b), HashSize)
	}

	// Ensure it's a copy, not a reference
	b[0] = 0xFF
	if h[0] == 0xFF {
		t.Error("Bytes() should return a copy, not a reference")
	}
}

func TestHexToHash(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "valid 64 hex chars",
			input: "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
			want:  "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
		},
		{
			name:  "0x prefix accepted",
			input: "0x" + strings.Repeat("ab", 32),
			want:  strings.Repeat("ab", 32),
		},
		{
			name:  "all zeros",
			input: strings.Repeat("0", 64),
			want:  strings.Repeat("0", 64),
		},
		{
			name:    "too short",
			input:   "abcd",
			wantErr: true,
		},
		{
			name:    "too long",
			input:   strings.Repeat("a", 66),
			wantErr: true,
		},
		{
			name:    "invalid hex character",
			input:   strings.Repeat("g", 64),
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := HexToHash(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("HexToHash(%q) should have returned error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("HexToHash(%q) unexpected error: %v", tt.input, err)
			}
			if h.String() != tt.want {
				t.Errorf("roundtrip: got %s, want %s", h.String(), tt.want)
			}
		})
	}
}

func TestParseBlockchain(t *testing.T) {
	if b, err := ParseBlockchain("bitcoin"); err != nil || b != Bitcoin {
		t.Errorf("ParseBlockchain(bitcoin) = %v, %v", b, err)
	}
	if b, err := ParseBlockchain("ethereum"); err != nil || b != Ethereum {
		t.Errorf("ParseBlockchain(ethereum) = %v, %v", b, err)
	}
	if _, err := ParseBlockchain("dogecoin"); err == nil {
		t.Error("ParseBlockchain should reject unknown chains")
	}
}

func TestOutpoint_String(t *testing.T) {
	op := Outpoint{TxHash: Hash{0x01}, Index: 3}
	s := op.String()
	if !strings.HasSuffix(s, ":3") {
		t.Errorf("Outpoint.String() = %s, want :3 suffix", s)
	}
	if !strings.HasPrefix(s, "01") {
		t.Errorf("Outpoint.String() = %s, want txid hex prefix", s)
	}
}
