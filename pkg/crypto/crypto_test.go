package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestKeccak256_Vectors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"abc", "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
	}
	for _, tt := range tests {
		got := Keccak256([]byte(tt.input))
		if got.String() != tt.want {
			t.Errorf("Keccak256(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestKeccak256_MultiWrite(t *testing.T) {
	joined := Keccak256([]byte("ab"), []byte("c"))
	whole := Keccak256([]byte("abc"))
	if joined != whole {
		t.Error("Keccak256 over split input should equal hash of concatenation")
	}
}

func TestSHA256d(t *testing.T) {
	got := SHA256d([]byte("hello"))
	want := "9595c9df90075148eb06860365df33584b75bff782a510c6cd4883a419833d50"
	if got.String() != want {
		t.Errorf("SHA256d(hello) = %s, want %s", got, want)
	}
}

func TestHash160_GeneratorPoint(t *testing.T) {
	// Hash160 of the compressed secp256k1 generator point, the same
	// program used in the BIP-173 address examples.
	pub := mustHex(t, "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	got := Hash160(pub)
	want := "751e76e8199196d454941c45d1b3a323f1433bd6"
	if hex.EncodeToString(got[:]) != want {
		t.Errorf("Hash160 = %x, want %s", got, want)
	}
}

func TestSign_Deterministic(t *testing.T) {
	backend := NewBackend()
	key := mustHex(t, "4646464646464646464646464646464646464646464646464646464646464646")
	hash := SHA256d([]byte("deterministic"))

	sig1, err := backend.Sign(hash[:], key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig2, err := backend.Sign(hash[:], key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig1 != sig2 {
		t.Error("signing the same hash twice should be bit-identical")
	}
}

func TestSign_VerifyRoundTrip(t *testing.T) {
	backend := NewBackend()
	key := mustHex(t, "0000000000000000000000000000000000000000000000000000000000000001")
	hash := SHA256d([]byte("round trip"))

	sig, err := backend.Sign(hash[:], key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	compressed, err := backend.DerivePublicKey(key, true)
	if err != nil {
		t.Fatalf("DerivePublicKey: %v", err)
	}
	if !backend.Verify(sig, hash[:], compressed) {
		t.Error("Verify should accept a valid signature with a compressed key")
	}

	uncompressed, err := backend.DerivePublicKey(key, false)
	if err != nil {
		t.Fatalf("DerivePublicKey: %v", err)
	}
	if !backend.Verify(sig, hash[:], uncompressed) {
		t.Error("Verify should accept a valid signature with an uncompressed key")
	}

	hash[0] ^= 0xff
	if backend.Verify(sig, hash[:], compressed) {
		t.Error("Verify should reject a signature over a different hash")
	}
}

func TestRecoverPublicKey(t *testing.T) {
	backend := NewBackend()
	key := mustHex(t, "1111111111111111111111111111111111111111111111111111111111111111")
	hash := SHA256d([]byte("recover"))

	sig, err := backend.Sign(hash[:], key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	recovered, err := backend.RecoverPublicKey(hash[:], sig)
	if err != nil {
		t.Fatalf("RecoverPublicKey: %v", err)
	}
	if len(recovered) != 64 {
		t.Fatalf("recovered key length = %d, want 64", len(recovered))
	}

	uncompressed, err := backend.DerivePublicKey(key, false)
	if err != nil {
		t.Fatalf("DerivePublicKey: %v", err)
	}
	if !bytes.Equal(recovered, uncompressed[1:]) {
		t.Error("recovered key does not match the derived key")
	}
}

func TestSign_InvalidInputs(t *testing.T) {
	backend := NewBackend()
	validHash := make([]byte, 32)
	validKey := mustHex(t, "0000000000000000000000000000000000000000000000000000000000000001")

	if _, err := backend.Sign(validHash[:16], validKey); err != ErrInvalidHash {
		t.Errorf("short hash: err = %v, want ErrInvalidHash", err)
	}

	zeroKey := make([]byte, 32)
	if _, err := backend.Sign(validHash, zeroKey); err == nil {
		t.Error("zero key should be rejected")
	}

	// The curve order itself is out of range.
	order := mustHex(t, "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")
	if _, err := backend.Sign(validHash, order); err == nil {
		t.Error("key equal to the curve order should be rejected")
	}

	if _, err := backend.Sign(validHash, validKey[:31]); err == nil {
		t.Error("short key should be rejected")
	}
}

func TestSignature_CompactRoundTrip(t *testing.T) {
	sig := Signature{RecoveryID: 1}
	sig.R[0] = 0xaa
	sig.S[31] = 0xbb

	compact := sig.Compact()
	parsed, err := SignatureFromCompact(compact[:])
	if err != nil {
		t.Fatalf("SignatureFromCompact: %v", err)
	}
	if parsed != sig {
		t.Error("compact round trip mismatch")
	}

	if _, err := SignatureFromCompact(compact[:64]); err == nil {
		t.Error("short compact signature should be rejected")
	}
	compact[64] = 4
	if _, err := SignatureFromCompact(compact[:]); err == nil {
		t.Error("recovery id 4 should be rejected")
	}
}

func TestSignature_DERRoundTrip(t *testing.T) {
	backend := NewBackend()
	key := mustHex(t, "2222222222222222222222222222222222222222222222222222222222222222")
	hash := SHA256d([]byte("der"))

	sig, err := backend.Sign(hash[:], key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	der := sig.DER()
	if der[0] != 0x30 {
		t.Fatalf("DER should start with 0x30, got %#x", der[0])
	}
	parsed, err := SignatureFromDER(der)
	if err != nil {
		t.Fatalf("SignatureFromDER: %v", err)
	}
	if parsed.R != sig.R || parsed.S != sig.S {
		t.Error("DER round trip mismatch")
	}

	if _, err := SignatureFromDER(der[:len(der)-1]); err == nil {
		t.Error("truncated DER should be rejected")
	}
}
