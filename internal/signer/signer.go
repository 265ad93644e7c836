// Package signer is the chain-agnostic signing facade. It dispatches
// unsigned transactions by blockchain tag to the right digest and
// encoding routines, allocates Ethereum nonces exactly once per
// successful sign, and supports direct keys, hardware-delegated keys
// and naive multi-signature aggregation.
package signer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helixwallet/helix-core/internal/log"
	"github.com/helixwallet/helix-core/pkg/btctx"
	"github.com/helixwallet/helix-core/pkg/btcwire"
	"github.com/helixwallet/helix-core/pkg/crypto"
	"github.com/helixwallet/helix-core/pkg/ethtx"
	"github.com/helixwallet/helix-core/pkg/types"
)

var (
	ErrInvalidTransaction    = errors.New("signer: invalid transaction")
	ErrInvalidSignature      = errors.New("signer: invalid signature")
	ErrUnsupportedBlockchain = errors.New("signer: unsupported blockchain")
	ErrInvalidContext        = errors.New("signer: signing context incomplete")
	ErrNoKey                 = errors.New("signer: key material has neither a private key nor a hardware reference")
)

// HardwareSignError reports a failure inside a delegated hardware
// signer.
type HardwareSignError struct {
	KeyID string
	Err   error
}

func (e *HardwareSignError) Error() string {
	return fmt.Sprintf("hardware signing failed for key %q: %v", e.KeyID, e.Err)
}

func (e *HardwareSignError) Unwrap() error { return e.Err }

// HardwareSigner produces signatures without the private key ever
// crossing this process boundary; only a key identifier is passed.
type HardwareSigner interface {
	Sign(ctx context.Context, keyID string, digest types.Hash) (crypto.Signature, error)
	// PublicKey returns the key's public key, compressed (33 bytes) or
	// uncompressed (65 bytes).
	PublicKey(ctx context.Context, keyID string) ([]byte, error)
}

// KeyMaterial selects the signing path: a raw private key for direct
// signing, or a hardware key identifier for delegated signing. Exactly
// one must be set.
type KeyMaterial struct {
	PrivateKey    []byte
	HardwareKeyID string
}

// BitcoinInput carries what signing input i of a Bitcoin transaction
// needs to know about the output it spends.
type BitcoinInput struct {
	// Script is the locking script of the spent output. Its template
	// selects the signing path (legacy P2PKH or segwit v0 P2WPKH).
	Script []byte
	// Amount in satoshis of the spent output, committed by the segwit
	// digest.
	Amount uint64
}

// UnsignedTx is a blockchain-tagged unsigned transaction. Exactly one
// payload is set, matching the tag. It is never mutated by signing;
// digests and encodings are derived from copies.
type UnsignedTx struct {
	Blockchain types.Blockchain

	Bitcoin       *btcwire.Transaction
	BitcoinInputs []BitcoinInput

	Ethereum *ethtx.Transaction
}

// SignedTx is an immutable signing result.
type SignedTx struct {
	Unsigned   *UnsignedTx
	Signatures []crypto.Signature
	Raw        []byte
	TxHash     types.Hash
	Timestamp  time.Time
}

// Context carries per-call signing parameters. Nothing in it is
// persisted.
type Context struct {
	// SigHashType for Bitcoin inputs. Zero means SIGHASH_ALL.
	SigHashType btctx.SigHashType
	// Sender is required for hardware-delegated Ethereum signing,
	// where the sender address cannot be derived locally before the
	// public key is fetched.
	Sender ethtx.Address
}

// Signer signs transactions for any supported blockchain.
type Signer struct {
	backend  crypto.Backend
	nonces   *NonceManager
	hardware HardwareSigner
}

// New creates a Signer. hardware may be nil when only direct keys are
// used.
func New(backend crypto.Backend, nonces *NonceManager, hardware HardwareSigner) *Signer {
	if nonces == nil {
		nonces = NewNonceManager()
	}
	return &Signer{backend: backend, nonces: nonces, hardware: hardware}
}

// Nonces exposes the nonce manager, for seeding from chain state.
func (s *Signer) Nonces() *NonceManager { return s.nonces }

// Sign signs the transaction with one key and returns the
// broadcast-ready result.
func (s *Signer) Sign(ctx context.Context, tx *UnsignedTx, key KeyMaterial, sctx Context) (*SignedTx, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	switch tx.Blockchain {
	case types.Bitcoin:
		return s.signBitcoin(ctx, tx, key, sctx)
	case types.Ethereum:
		return s.signEthereum(ctx, tx, key, sctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedBlockchain, tx.Blockchain)
}

// SignMulti produces N independent signatures over the transaction's
// signing digest, one per key. The result carries the signatures for
// aggregation by the caller; it has no single broadcastable encoding.
func (s *Signer) SignMulti(ctx context.Context, tx *UnsignedTx, keys []KeyMaterial, sctx Context) (*SignedTx, error) {
	if len(keys) == 0 {
		return nil, ErrNoKey
	}
	digest, err := s.multiDigest(tx, sctx)
	if err != nil {
		return nil, err
	}

	sigs := make([]crypto.Signature, 0, len(keys))
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return nil, err
		}
		sig, err := s.produce(ctx, key, digest)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return &SignedTx{
		Unsigned:   tx,
		Signatures: sigs,
		TxHash:     digest,
		Timestamp:  time.Now(),
	}, nil
}

// multiDigest is the single digest all multi-signature participants
// sign: the Ethereum signing hash, or the SIGHASH of the first Bitcoin
// input.
func (s *Signer) multiDigest(tx *UnsignedTx, sctx Context) (types.Hash, error) {
	switch tx.Blockchain {
	case types.Ethereum:
		if err := validateEthereum(tx); err != nil {
			return types.Hash{}, err
		}
		return tx.Ethereum.SigningHash()
	case types.Bitcoin:
		if err := validateBitcoin(tx); err != nil {
			return types.Hash{}, err
		}
		info := tx.BitcoinInputs[0]
		ht := sigHashType(sctx)
		if btctx.IsP2WPKH(info.Script) {
			return btctx.SegwitSigHash(tx.Bitcoin, 0, scriptCodeForWitness(info.Script), info.Amount, ht)
		}
		return btctx.LegacySigHash(tx.Bitcoin, 0, info.Script, ht)
	}
	return types.Hash{}, fmt.Errorf("%w: %q", ErrUnsupportedBlockchain, tx.Blockchain)
}

// produce signs a digest through the path the key material selects.
func (s *Signer) produce(ctx context.Context, key KeyMaterial, digest types.Hash) (crypto.Signature, error) {
	if key.HardwareKeyID != "" {
		if s.hardware == nil {
			return crypto.Signature{}, &HardwareSignError{KeyID: key.HardwareKeyID, Err: errors.New("no hardware signer configured")}
		}
		sig, err := s.hardware.Sign(ctx, key.HardwareKeyID, digest)
		if err != nil {
			return crypto.Signature{}, &HardwareSignError{KeyID: key.HardwareKeyID, Err: err}
		}
		return sig, nil
	}
	return s.backend.Sign(digest[:], key.PrivateKey)
}

// publicKey returns the compressed public key for the key material.
func (s *Signer) publicKey(ctx context.Context, key KeyMaterial) ([]byte, error) {
	if key.HardwareKeyID != "" {
		if s.hardware == nil {
			return nil, &HardwareSignError{KeyID: key.HardwareKeyID, Err: errors.New("no hardware signer configured")}
		}
		pub, err := s.hardware.PublicKey(ctx, key.HardwareKeyID)
		if err != nil {
			return nil, &HardwareSignError{KeyID: key.HardwareKeyID, Err: err}
		}
		return pub, nil
	}
	return s.backend.DerivePublicKey(key.PrivateKey, true)
}

func validateKey(key KeyMaterial) error {
	hasDirect := len(key.PrivateKey) > 0
	hasHardware := key.HardwareKeyID != ""
	if hasDirect == hasHardware {
		return ErrNoKey
	}
	return nil
}

func validateEthereum(tx *UnsignedTx) error {
	if tx.Ethereum == nil {
		return fmt.Errorf("%w: missing ethereum payload", ErrInvalidTransaction)
	}
	e := tx.Ethereum
	if e.ChainID == nil || e.ChainID.Sign() <= 0 {
		return fmt.Errorf("%w: missing chain id", ErrInvalidContext)
	}
	if e.Gas == 0 {
		return fmt.Errorf("%w: missing gas limit", ErrInvalidContext)
	}
	switch e.Type {
	case ethtx.LegacyTxType:
		if e.GasPrice == nil {
			return fmt.Errorf("%w: missing gas price", ErrInvalidContext)
		}
	case ethtx.DynamicFeeTxType:
		if e.GasFeeCap == nil || e.GasTipCap == nil {
			return fmt.Errorf("%w: missing fee caps", ErrInvalidContext)
		}
	}
	return nil
}

func validateBitcoin(tx *UnsignedTx) error {
	if tx.Bitcoin == nil {
		return fmt.Errorf("%w: missing bitcoin payload", ErrInvalidTransaction)
	}
	if len(tx.Bitcoin.Inputs) == 0 {
		return fmt.Errorf("%w: no inputs", ErrInvalidTransaction)
	}
	if len(tx.BitcoinInputs) != len(tx.Bitcoin.Inputs) {
		return fmt.Errorf("%w: %d inputs but %d input descriptors",
			ErrInvalidTransaction, len(tx.Bitcoin.Inputs), len(tx.BitcoinInputs))
	}
	return nil
}

func sigHashType(sctx Context) btctx.SigHashType {
	if sctx.SigHashType == 0 {
		return btctx.SigHashAll
	}
	return sctx.SigHashType
}

// scriptCodeForWitness maps a P2WPKH locking script to its BIP 143
// scriptCode.
func scriptCodeForWitness(script []byte) []byte {
	var h [20]byte
	copy(h[:], script[2:22])
	return btctx.P2WPKHScriptCode(h)
}

func (s *Signer) signEthereum(ctx context.Context, tx *UnsignedTx, key KeyMaterial, sctx Context) (*SignedTx, error) {
	if err := validateEthereum(tx); err != nil {
		return nil, err
	}

	sender := sctx.Sender
	if key.PrivateKey != nil {
		pub, err := s.backend.DerivePublicKey(key.PrivateKey, false)
		if err != nil {
			return nil, err
		}
		sender, err = ethtx.PubkeyToAddress(pub)
		if err != nil {
			return nil, err
		}
	} else if sender.IsZero() {
		return nil, fmt.Errorf("%w: hardware signing needs the sender address", ErrInvalidContext)
	}

	nonceKey := NonceKey{
		Blockchain: types.Ethereum,
		ChainID:    tx.Ethereum.ChainID.String(),
		Sender:     sender.String(),
	}
	s.nonces.SeedIfAbsent(nonceKey, tx.Ethereum.Nonce)

	var signed *SignedTx
	err := s.nonces.Do(nonceKey, func(nonce uint64) error {
		// Sign a copy carrying the allocated nonce; the input stays
		// untouched.
		etx := *tx.Ethereum
		etx.Nonce = nonce

		digest, err := etx.SigningHash()
		if err != nil {
			return err
		}
		sig, err := s.produce(ctx, key, digest)
		if err != nil {
			return err
		}
		raw, err := etx.RawWithSignature(sig)
		if err != nil {
			return err
		}
		signed = &SignedTx{
			Unsigned:   &UnsignedTx{Blockchain: types.Ethereum, Ethereum: &etx},
			Signatures: []crypto.Signature{sig},
			Raw:        raw,
			TxHash:     ethtx.TxHash(raw),
			Timestamp:  time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Signer.Info().Str("blockchain", "ethereum").
		Str("tx_hash", signed.TxHash.String()).
		Uint64("nonce", signed.Unsigned.Ethereum.Nonce).
		Msg("transaction signed")
	return signed, nil
}

func (s *Signer) signBitcoin(ctx context.Context, tx *UnsignedTx, key KeyMaterial, sctx Context) (*SignedTx, error) {
	if err := validateBitcoin(tx); err != nil {
		return nil, err
	}
	pubKey, err := s.publicKey(ctx, key)
	if err != nil {
		return nil, err
	}
	ht := sigHashType(sctx)

	signed := tx.Bitcoin.Copy()
	sigs := make([]crypto.Signature, 0, len(signed.Inputs))
	for i := range signed.Inputs {
		info := tx.BitcoinInputs[i]

		var digest types.Hash
		switch {
		case btctx.IsP2WPKH(info.Script):
			digest, err = btctx.SegwitSigHash(tx.Bitcoin, i, scriptCodeForWitness(info.Script), info.Amount, ht)
		case btctx.IsP2PKH(info.Script):
			digest, err = btctx.LegacySigHash(tx.Bitcoin, i, info.Script, ht)
		default:
			return nil, fmt.Errorf("%w: input %d spends an unsupported script %x",
				ErrInvalidTransaction, i, info.Script)
		}
		if err != nil {
			return nil, err
		}

		sig, err := s.produce(ctx, key, digest)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)

		sigBytes := append(sig.DER(), byte(ht))
		if btctx.IsP2WPKH(info.Script) {
			signed.Inputs[i].Script = nil
			signed.Inputs[i].Witness = [][]byte{sigBytes, pubKey}
		} else {
			signed.Inputs[i].Script = pushData(pushData(nil, sigBytes), pubKey)
		}
	}

	raw := signed.Serialize(signed.HasWitness())
	result := &SignedTx{
		Unsigned:   tx,
		Signatures: sigs,
		Raw:        raw,
		TxHash:     signed.TxID(),
		Timestamp:  time.Now(),
	}
	log.Signer.Info().Str("blockchain", "bitcoin").
		Str("txid", result.TxHash.String()).
		Int("inputs", len(signed.Inputs)).
		Msg("transaction signed")
	return result, nil
}

// pushData appends a minimal data push for payloads up to 75 bytes,
// which covers signatures and public keys.
func pushData(script, data []byte) []byte {
	script = append(script, byte(len(data)))
	return append(script, data...)
}
