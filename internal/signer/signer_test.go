package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/helixwallet/helix-core/pkg/btctx"
	"github.com/helixwallet/helix-core/pkg/btcwire"
	"github.com/helixwallet/helix-core/pkg/crypto"
	"github.com/helixwallet/helix-core/pkg/ethtx"
	"github.com/helixwallet/helix-core/pkg/types"
)

var testKey = bytes.Repeat([]byte{0x46}, 32)

func newSigner() *Signer {
	return New(crypto.NewBackend(), NewNonceManager(), nil)
}

func ethUnsigned(nonce uint64) *UnsignedTx {
	to, _ := ethtx.ParseAddress("0x3535353535353535353535353535353535353535")
	value, _ := new(big.Int).SetString("1000000000000000000", 10)
	return &UnsignedTx{
		Blockchain: types.Ethereum,
		Ethereum: &ethtx.Transaction{
			Type:     ethtx.LegacyTxType,
			ChainID:  big.NewInt(1),
			Nonce:    nonce,
			GasPrice: big.NewInt(20000000000),
			Gas:      21000,
			To:       &to,
			Value:    value,
		},
	}
}

func TestSignEthereum(t *testing.T) {
	s := newSigner()
	signed, err := s.Sign(context.Background(), ethUnsigned(9), KeyMaterial{PrivateKey: testKey}, Context{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	wantRaw := "f86c098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a76400008025a028ef61340bd939bc2195fe537567866003e1a15d3c71ff63e1590620aa636276a067cbe9d8997f761aecb703304b3800ccf555c9f3dc64214b297fb1966a3b6d83"
	if got := hex.EncodeToString(signed.Raw); got != wantRaw {
		t.Errorf("Raw =\n%s, want\n%s", got, wantRaw)
	}
	if signed.TxHash.IsZero() || signed.Timestamp.IsZero() {
		t.Error("signed transaction missing hash or timestamp")
	}

	pub, _ := crypto.NewBackend().DerivePublicKey(testKey, false)
	ok, err := s.Verify(signed, pub)
	if err != nil || !ok {
		t.Errorf("Verify = %v, %v, want true", ok, err)
	}
}

func TestSignEthereumConsumesNonceOnce(t *testing.T) {
	s := newSigner()
	tx := ethUnsigned(9)

	if _, err := s.Sign(context.Background(), tx, KeyMaterial{PrivateKey: testKey}, Context{}); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	signed, err := s.Sign(context.Background(), tx, KeyMaterial{PrivateKey: testKey}, Context{})
	if err != nil {
		t.Fatalf("second Sign: %v", err)
	}
	if signed.Unsigned.Ethereum.Nonce != 10 {
		t.Errorf("second sign nonce = %d, want 10", signed.Unsigned.Ethereum.Nonce)
	}
}

func TestNonceExclusiveUnderConcurrency(t *testing.T) {
	s := newSigner()
	const n = 20

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			signed, err := s.Sign(context.Background(), ethUnsigned(9), KeyMaterial{PrivateKey: testKey}, Context{})
			if err != nil {
				t.Errorf("Sign: %v", err)
				return
			}
			mu.Lock()
			seen[signed.Unsigned.Ethereum.Nonce] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("%d distinct nonces across %d signs, want no duplicates", len(seen), n)
	}
	for nonce := uint64(9); nonce < 9+n; nonce++ {
		if !seen[nonce] {
			t.Errorf("nonce %d never allocated", nonce)
		}
	}
}

func TestFailedSignDoesNotConsumeNonce(t *testing.T) {
	hw := &fakeHardware{err: errors.New("hsm offline")}
	s := New(crypto.NewBackend(), NewNonceManager(), hw)
	sender, _ := ethtx.ParseAddress("0x9d8A62f656a8d1615C1294fd71e9CFb3E4855A4F")

	_, err := s.Sign(context.Background(), ethUnsigned(9), KeyMaterial{HardwareKeyID: "k1"}, Context{Sender: sender})
	var hwErr *HardwareSignError
	if !errors.As(err, &hwErr) {
		t.Fatalf("error = %v, want *HardwareSignError", err)
	}

	key := NonceKey{Blockchain: types.Ethereum, ChainID: "1", Sender: sender.String()}
	if next, ok := s.Nonces().Next(key); !ok || next != 9 {
		t.Errorf("next nonce = %d (%v), want 9 preserved after failure", next, ok)
	}
}

type fakeHardware struct {
	backend crypto.Backend
	key     []byte
	err     error
	signed  int
}

func (f *fakeHardware) Sign(_ context.Context, keyID string, digest types.Hash) (crypto.Signature, error) {
	if f.err != nil {
		return crypto.Signature{}, f.err
	}
	f.signed++
	return f.backend.Sign(digest[:], f.key)
}

func (f *fakeHardware) PublicKey(context.Context, string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.backend.DerivePublicKey(f.key, true)
}

func TestSignEthereumHardware(t *testing.T) {
	hw := &fakeHardware{backend: crypto.NewBackend(), key: testKey}
	s := New(crypto.NewBackend(), NewNonceManager(), hw)
	sender, _ := ethtx.ParseAddress("0x9d8A62f656a8d1615C1294fd71e9CFb3E4855A4F")

	signed, err := s.Sign(context.Background(), ethUnsigned(9), KeyMaterial{HardwareKeyID: "k1"}, Context{Sender: sender})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if hw.signed != 1 {
		t.Errorf("hardware signer invoked %d times, want 1", hw.signed)
	}
	// The delegated signature is the same deterministic one a direct
	// key produces.
	wantRaw := "f86c098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a76400008025a028ef61340bd939bc2195fe537567866003e1a15d3c71ff63e1590620aa636276a067cbe9d8997f761aecb703304b3800ccf555c9f3dc64214b297fb1966a3b6d83"
	if got := hex.EncodeToString(signed.Raw); got != wantRaw {
		t.Errorf("Raw = %s, want direct-path encoding", got)
	}
}

func TestSignEthereumHardwareNeedsSender(t *testing.T) {
	hw := &fakeHardware{backend: crypto.NewBackend(), key: testKey}
	s := New(crypto.NewBackend(), NewNonceManager(), hw)
	if _, err := s.Sign(context.Background(), ethUnsigned(9), KeyMaterial{HardwareKeyID: "k1"}, Context{}); !errors.Is(err, ErrInvalidContext) {
		t.Errorf("error = %v, want ErrInvalidContext", err)
	}
}

func btcUnsigned(t *testing.T, script []byte, amount uint64) *UnsignedTx {
	t.Helper()
	prev, _ := types.HexToHash("77541aeb3c4dac9260b68f74f44c973081a9d4cb2ebe8038b2d70faa201b6bdb")
	var payHash [20]byte
	payHash[0] = 0x11
	return &UnsignedTx{
		Blockchain: types.Bitcoin,
		Bitcoin: &btcwire.Transaction{
			Version: 2,
			Inputs: []btcwire.Input{{
				PrevOut:  types.Outpoint{TxHash: prev, Index: 1},
				Sequence: 0xffffffff,
			}},
			Outputs: []btcwire.Output{{
				Value:  amount - 5000,
				Script: btctx.P2PKHScript(payHash),
			}},
		},
		BitcoinInputs: []BitcoinInput{{Script: script, Amount: amount}},
	}
}

func TestSignBitcoinSegwit(t *testing.T) {
	s := newSigner()
	pub, _ := crypto.NewBackend().DerivePublicKey(testKey, true)
	script := btctx.P2WPKHScript(crypto.Hash160(pub))

	tx := btcUnsigned(t, script, 100000)
	signed, err := s.Sign(context.Background(), tx, KeyMaterial{PrivateKey: testKey}, Context{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	// The raw encoding is a segwit transaction with marker/flag framing.
	if signed.Raw[4] != 0x00 || signed.Raw[5] != 0x01 {
		t.Errorf("raw[4:6] = %x, want segwit marker/flag", signed.Raw[4:6])
	}
	decoded, err := btcwire.Deserialize(signed.Raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(decoded.Inputs[0].Witness) != 2 {
		t.Fatalf("witness has %d items, want signature and pubkey", len(decoded.Inputs[0].Witness))
	}
	if !bytes.Equal(decoded.Inputs[0].Witness[1], pub) {
		t.Error("witness pubkey mismatch")
	}
	if last := decoded.Inputs[0].Witness[0][len(decoded.Inputs[0].Witness[0])-1]; last != byte(btctx.SigHashAll) {
		t.Errorf("sighash byte = %#02x, want SIGHASH_ALL", last)
	}

	// The input transaction was not mutated.
	if tx.Bitcoin.Inputs[0].Witness != nil || tx.Bitcoin.Inputs[0].Script != nil {
		t.Error("signing mutated the unsigned transaction")
	}

	ok, err := s.Verify(signed, pub)
	if err != nil || !ok {
		t.Errorf("Verify = %v, %v, want true", ok, err)
	}
}

func TestSignBitcoinLegacy(t *testing.T) {
	s := newSigner()
	pub, _ := crypto.NewBackend().DerivePublicKey(testKey, true)
	script := btctx.P2PKHScript(crypto.Hash160(pub))

	signed, err := s.Sign(context.Background(), btcUnsigned(t, script, 100000), KeyMaterial{PrivateKey: testKey}, Context{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	decoded, err := btcwire.Deserialize(signed.Raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if decoded.HasWitness() {
		t.Error("legacy spend must not carry witness data")
	}
	sig, embeddedPub, err := splitScriptSig(decoded.Inputs[0].Script)
	if err != nil {
		t.Fatalf("splitScriptSig: %v", err)
	}
	if !bytes.Equal(embeddedPub, pub) {
		t.Error("scriptSig pubkey mismatch")
	}
	if len(sig) == 0 {
		t.Error("scriptSig signature empty")
	}

	ok, err := s.Verify(signed, pub)
	if err != nil || !ok {
		t.Errorf("Verify = %v, %v, want true", ok, err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	s := newSigner()
	pub, _ := crypto.NewBackend().DerivePublicKey(testKey, true)
	script := btctx.P2WPKHScript(crypto.Hash160(pub))

	signed, err := s.Sign(context.Background(), btcUnsigned(t, script, 100000), KeyMaterial{PrivateKey: testKey}, Context{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	otherKey := bytes.Repeat([]byte{0x47}, 32)
	otherPub, _ := crypto.NewBackend().DerivePublicKey(otherKey, true)
	ok, err := s.Verify(signed, otherPub)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("Verify accepted the wrong public key")
	}
}

func TestSignMulti(t *testing.T) {
	s := newSigner()
	keys := []KeyMaterial{
		{PrivateKey: bytes.Repeat([]byte{0x46}, 32)},
		{PrivateKey: bytes.Repeat([]byte{0x47}, 32)},
		{PrivateKey: bytes.Repeat([]byte{0x48}, 32)},
	}
	signed, err := s.SignMulti(context.Background(), ethUnsigned(9), keys, Context{})
	if err != nil {
		t.Fatalf("SignMulti: %v", err)
	}
	if len(signed.Signatures) != 3 {
		t.Fatalf("got %d signatures, want 3", len(signed.Signatures))
	}

	backend := crypto.NewBackend()
	for i, key := range keys {
		pub, _ := backend.DerivePublicKey(key.PrivateKey, false)
		if !backend.Verify(signed.Signatures[i], signed.TxHash[:], pub) {
			t.Errorf("signature %d does not verify against its key", i)
		}
	}
}

func TestSignValidation(t *testing.T) {
	s := newSigner()
	ctx := context.Background()

	missingChain := ethUnsigned(0)
	missingChain.Ethereum.ChainID = nil
	if _, err := s.Sign(ctx, missingChain, KeyMaterial{PrivateKey: testKey}, Context{}); !errors.Is(err, ErrInvalidContext) {
		t.Errorf("missing chain id error = %v, want ErrInvalidContext", err)
	}

	missingGas := ethUnsigned(0)
	missingGas.Ethereum.Gas = 0
	if _, err := s.Sign(ctx, missingGas, KeyMaterial{PrivateKey: testKey}, Context{}); !errors.Is(err, ErrInvalidContext) {
		t.Errorf("missing gas error = %v, want ErrInvalidContext", err)
	}

	unknown := &UnsignedTx{Blockchain: types.Blockchain("solana")}
	if _, err := s.Sign(ctx, unknown, KeyMaterial{PrivateKey: testKey}, Context{}); !errors.Is(err, ErrUnsupportedBlockchain) {
		t.Errorf("unknown chain error = %v, want ErrUnsupportedBlockchain", err)
	}

	if _, err := s.Sign(ctx, ethUnsigned(0), KeyMaterial{}, Context{}); !errors.Is(err, ErrNoKey) {
		t.Errorf("no key error = %v, want ErrNoKey", err)
	}
	both := KeyMaterial{PrivateKey: testKey, HardwareKeyID: "k1"}
	if _, err := s.Sign(ctx, ethUnsigned(0), both, Context{}); !errors.Is(err, ErrNoKey) {
		t.Errorf("ambiguous key error = %v, want ErrNoKey", err)
	}

	badScript := btcUnsigned(t, []byte{0x51}, 1000)
	if _, err := s.Sign(ctx, badScript, KeyMaterial{PrivateKey: testKey}, Context{}); !errors.Is(err, ErrInvalidTransaction) {
		t.Errorf("unsupported script error = %v, want ErrInvalidTransaction", err)
	}
}
