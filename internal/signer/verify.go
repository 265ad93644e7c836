package signer

import (
	"bytes"
	"fmt"

	"github.com/helixwallet/helix-core/pkg/btctx"
	"github.com/helixwallet/helix-core/pkg/btcwire"
	"github.com/helixwallet/helix-core/pkg/crypto"
	"github.com/helixwallet/helix-core/pkg/types"
)

// Verify checks that every signature of a signed transaction is valid
// for the given public key.
func (s *Signer) Verify(tx *SignedTx, pubKey []byte) (bool, error) {
	if tx == nil || tx.Unsigned == nil {
		return false, fmt.Errorf("%w: empty signed transaction", ErrInvalidTransaction)
	}
	switch tx.Unsigned.Blockchain {
	case types.Ethereum:
		return s.verifyEthereum(tx, pubKey)
	case types.Bitcoin:
		return s.VerifyBitcoinTransaction(tx, pubKey)
	}
	return false, fmt.Errorf("%w: %q", ErrUnsupportedBlockchain, tx.Unsigned.Blockchain)
}

func (s *Signer) verifyEthereum(tx *SignedTx, pubKey []byte) (bool, error) {
	if err := validateEthereum(tx.Unsigned); err != nil {
		return false, err
	}
	if len(tx.Signatures) == 0 {
		return false, fmt.Errorf("%w: no signatures", ErrInvalidSignature)
	}
	digest, err := tx.Unsigned.Ethereum.SigningHash()
	if err != nil {
		return false, err
	}
	for _, sig := range tx.Signatures {
		if !s.backend.Verify(sig, digest[:], pubKey) {
			return false, nil
		}
	}
	return true, nil
}

// VerifyBitcoinTransaction re-derives the SIGHASH of every input from
// the raw bytes, checks each embedded ECDSA signature, and
// sanity-checks the SegWit marker and flag framing.
func (s *Signer) VerifyBitcoinTransaction(tx *SignedTx, pubKey []byte) (bool, error) {
	if err := validateBitcoin(tx.Unsigned); err != nil {
		return false, err
	}
	decoded, err := btcwire.Deserialize(tx.Raw)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if decoded.HasWitness() {
		// Marker 0x00, flag 0x01 directly after the version.
		if len(tx.Raw) < 6 || tx.Raw[4] != btcwire.SegWitMarker || tx.Raw[5] != btcwire.SegWitFlag {
			return false, fmt.Errorf("%w: bad segwit marker/flag framing", ErrInvalidTransaction)
		}
	}
	if len(decoded.Inputs) != len(tx.Unsigned.BitcoinInputs) {
		return false, fmt.Errorf("%w: input count mismatch", ErrInvalidTransaction)
	}

	for i, in := range decoded.Inputs {
		info := tx.Unsigned.BitcoinInputs[i]

		var sigBytes []byte
		switch {
		case btctx.IsP2WPKH(info.Script):
			if len(in.Witness) != 2 {
				return false, fmt.Errorf("%w: input %d has %d witness items, want 2",
					ErrInvalidSignature, i, len(in.Witness))
			}
			if !bytes.Equal(in.Witness[1], pubKey) {
				return false, nil
			}
			sigBytes = in.Witness[0]
		case btctx.IsP2PKH(info.Script):
			var embeddedPub []byte
			sigBytes, embeddedPub, err = splitScriptSig(in.Script)
			if err != nil {
				return false, err
			}
			if !bytes.Equal(embeddedPub, pubKey) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("%w: input %d spends an unsupported script",
				ErrInvalidTransaction, i)
		}

		if len(sigBytes) < 1 {
			return false, fmt.Errorf("%w: input %d has an empty signature", ErrInvalidSignature, i)
		}
		inputHT := btctx.SigHashType(sigBytes[len(sigBytes)-1])
		sig, err := crypto.SignatureFromDER(sigBytes[:len(sigBytes)-1])
		if err != nil {
			return false, fmt.Errorf("%w: input %d: %v", ErrInvalidSignature, i, err)
		}

		var digest types.Hash
		if btctx.IsP2WPKH(info.Script) {
			digest, err = btctx.SegwitSigHash(tx.Unsigned.Bitcoin, i, scriptCodeForWitness(info.Script), info.Amount, inputHT)
		} else {
			digest, err = btctx.LegacySigHash(tx.Unsigned.Bitcoin, i, info.Script, inputHT)
		}
		if err != nil {
			return false, err
		}
		if !s.backend.Verify(sig, digest[:], pubKey) {
			return false, nil
		}
	}
	return true, nil
}

// splitScriptSig parses the two pushes of a P2PKH scriptSig:
// <signature> <public key>.
func splitScriptSig(script []byte) (sig, pubKey []byte, err error) {
	sig, rest, err := readPush(script)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	pubKey, rest, err = readPush(rest)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("%w: trailing scriptSig bytes", ErrInvalidSignature)
	}
	return sig, pubKey, nil
}

func readPush(script []byte) (data, rest []byte, err error) {
	if len(script) == 0 {
		return nil, nil, fmt.Errorf("empty script")
	}
	n := int(script[0])
	if n == 0 || n > 75 || len(script) < 1+n {
		return nil, nil, fmt.Errorf("bad push length %d", n)
	}
	return script[1 : 1+n], script[1+n:], nil
}
