package btcwire

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/helixwallet/helix-core/pkg/types"
)

// Unsigned 1-input/2-output transaction from the BIP-143 P2SH-P2WPKH example.
const bip143UnsignedHex = "0100000001db6b1b20aa0fd7b23880be2ecbd4a98130974cf4748fb66092ac4d3ceb1a54770100000000feffffff02b8b4eb0b000000001976a914a457b684d7f0d539a46a45bbc043f35b59d0d96388ac0008af2f000000001976a914fd270b1ee6abcaea97fea7ad0402e8bd8ad6d77c88ac92040000"

func TestCompactSize_Vectors(t *testing.T) {
	tests := []struct {
		v    uint64
		want string
	}{
		{0, "00"},
		{0xfc, "fc"},
		{0xfd, "fdfd00"},
		{0xffff, "fdffff"},
		{0x10000, "fe00000100"},
		{0xffffffff, "feffffffff"},
		{0x100000000, "ff0000000001000000"},
	}
	for _, tt := range tests {
		enc := AppendCompactSize(nil, tt.v)
		if got := hex.EncodeToString(enc); got != tt.want {
			t.Errorf("AppendCompactSize(%d) = %s, want %s", tt.v, got, tt.want)
		}
		dec, n, err := ReadCompactSize(enc)
		if err != nil {
			t.Fatalf("ReadCompactSize(%d): %v", tt.v, err)
		}
		if dec != tt.v || n != len(enc) {
			t.Errorf("ReadCompactSize round trip: got %d (%d bytes)", dec, n)
		}
	}
}

func TestReadCompactSize_NonCanonical(t *testing.T) {
	for _, in := range []string{"fd0100", "feffff0000", "ffffffffff00000000", ""} {
		data, _ := hex.DecodeString(in)
		if _, _, err := ReadCompactSize(data); err == nil {
			t.Errorf("ReadCompactSize(%s) should fail", in)
		}
	}
}

func TestDeserialize_BIP143Vector(t *testing.T) {
	raw, err := hex.DecodeString(bip143UnsignedHex)
	if err != nil {
		t.Fatalf("bad vector hex: %v", err)
	}
	tx, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if tx.Version != 1 {
		t.Errorf("version = %d, want 1", tx.Version)
	}
	if len(tx.Inputs) != 1 || len(tx.Outputs) != 2 {
		t.Fatalf("shape = %d in / %d out, want 1/2", len(tx.Inputs), len(tx.Outputs))
	}
	// Display-order txid reverses the wire bytes.
	wantTxid := "77541aeb3c4dac9260b68f74f44c973081a9d4cb2ebe8038b2d70faa201b6bdb"
	if got := tx.Inputs[0].PrevOut.TxHash.String(); got != wantTxid {
		t.Errorf("prevout txid = %s, want %s", got, wantTxid)
	}
	if tx.Inputs[0].PrevOut.Index != 1 {
		t.Errorf("prevout index = %d, want 1", tx.Inputs[0].PrevOut.Index)
	}
	if tx.Inputs[0].Sequence != 0xfffffffe {
		t.Errorf("sequence = %#x", tx.Inputs[0].Sequence)
	}
	if tx.Outputs[0].Value != 199996600 {
		t.Errorf("output 0 value = %d, want 199996600", tx.Outputs[0].Value)
	}
	if tx.Outputs[1].Value != 800000000 {
		t.Errorf("output 1 value = %d, want 800000000", tx.Outputs[1].Value)
	}
	if tx.LockTime != 1170 {
		t.Errorf("locktime = %d, want 1170", tx.LockTime)
	}

	if !bytes.Equal(tx.Serialize(false), raw) {
		t.Error("re-serialization does not match the original bytes")
	}
}

func TestSerialize_SegWitFraming(t *testing.T) {
	tx := &Transaction{
		Version: 2,
		Inputs: []Input{{
			PrevOut:  types.Outpoint{TxHash: types.Hash{0x01}, Index: 0},
			Sequence: 0xffffffff,
			Witness:  [][]byte{{0xaa, 0xbb}, {0xcc}},
		}},
		Outputs: []Output{{Value: 5000, Script: []byte{0x51}}},
	}

	withWitness := tx.Serialize(true)
	if withWitness[4] != SegWitMarker || withWitness[5] != SegWitFlag {
		t.Errorf("witness serialization missing marker/flag: %x", withWitness[:6])
	}

	stripped := tx.Serialize(false)
	// Without witness framing the input count follows the version directly.
	if stripped[4] != 0x01 {
		t.Errorf("non-witness serialization must not carry marker/flag: %x", stripped[:6])
	}

	// txid never covers witness bytes; wtxid does.
	if tx.TxID() == tx.WTxID() {
		t.Error("TxID and WTxID should differ for a witness transaction")
	}

	decoded, err := Deserialize(withWitness)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(decoded.Inputs[0].Witness) != 2 {
		t.Fatalf("witness items = %d, want 2", len(decoded.Inputs[0].Witness))
	}
	if !bytes.Equal(decoded.Inputs[0].Witness[0], []byte{0xaa, 0xbb}) {
		t.Errorf("witness item 0 = %x", decoded.Inputs[0].Witness[0])
	}
	if decoded.TxID() != tx.TxID() {
		t.Error("txid mismatch after witness round trip")
	}
}

func TestDeserialize_Truncated(t *testing.T) {
	raw, _ := hex.DecodeString(bip143UnsignedHex)
	for _, cut := range []int{1, 5, 40, len(raw) - 1} {
		if _, err := Deserialize(raw[:cut]); err == nil {
			t.Errorf("Deserialize with %d bytes should fail", cut)
		}
	}
	if _, err := Deserialize(append(raw, 0x00)); err == nil {
		t.Error("trailing bytes should be rejected")
	}
}

func TestCopy_Isolated(t *testing.T) {
	tx := &Transaction{
		Version: 1,
		Inputs: []Input{{
			PrevOut: types.Outpoint{TxHash: types.Hash{0x02}, Index: 1},
			Script:  []byte{0x01, 0x02},
			Witness: [][]byte{{0x03}},
		}},
		Outputs: []Output{{Value: 1, Script: []byte{0x51}}},
	}
	dup := tx.Copy()
	dup.Inputs[0].Script[0] = 0xff
	dup.Inputs[0].Witness[0][0] = 0xff
	dup.Outputs[0].Script[0] = 0xff

	if tx.Inputs[0].Script[0] != 0x01 || tx.Inputs[0].Witness[0][0] != 0x03 || tx.Outputs[0].Script[0] != 0x51 {
		t.Error("Copy must not share backing arrays with the original")
	}
}
