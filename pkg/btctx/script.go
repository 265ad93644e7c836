package btctx

// Script opcodes used by the standard output templates.
const (
	Op0           = 0x00
	OpDup         = 0x76
	OpEqual       = 0x87
	OpEqualVerify = 0x88
	OpHash160     = 0xa9
	OpCheckSig    = 0xac
)

// P2PKHScript returns the pay-to-pubkey-hash locking script
// OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG.
func P2PKHScript(pubKeyHash [20]byte) []byte {
	script := make([]byte, 0, 25)
	script = append(script, OpDup, OpHash160, 0x14)
	script = append(script, pubKeyHash[:]...)
	return append(script, OpEqualVerify, OpCheckSig)
}

// P2SHScript returns the pay-to-script-hash locking script
// OP_HASH160 <20 bytes> OP_EQUAL.
func P2SHScript(scriptHash [20]byte) []byte {
	script := make([]byte, 0, 23)
	script = append(script, OpHash160, 0x14)
	script = append(script, scriptHash[:]...)
	return append(script, OpEqual)
}

// P2WPKHScript returns the native segwit v0 pay-to-witness-pubkey-hash
// locking script OP_0 <20 bytes>.
func P2WPKHScript(pubKeyHash [20]byte) []byte {
	script := make([]byte, 0, 22)
	script = append(script, Op0, 0x14)
	return append(script, pubKeyHash[:]...)
}

// P2WSHScript returns the native segwit v0 pay-to-witness-script-hash
// locking script OP_0 <32 bytes>.
func P2WSHScript(scriptHash [32]byte) []byte {
	script := make([]byte, 0, 34)
	script = append(script, Op0, 0x20)
	return append(script, scriptHash[:]...)
}

// IsP2WPKH reports whether script is an OP_0 <20 bytes> witness program.
func IsP2WPKH(script []byte) bool {
	return len(script) == 22 && script[0] == Op0 && script[1] == 0x14
}

// IsP2WSH reports whether script is an OP_0 <32 bytes> witness program.
func IsP2WSH(script []byte) bool {
	return len(script) == 34 && script[0] == Op0 && script[1] == 0x20
}

// IsP2PKH reports whether script is a standard pay-to-pubkey-hash script.
func IsP2PKH(script []byte) bool {
	return len(script) == 25 &&
		script[0] == OpDup && script[1] == OpHash160 && script[2] == 0x14 &&
		script[23] == OpEqualVerify && script[24] == OpCheckSig
}

// IsP2SH reports whether script is a standard pay-to-script-hash script.
func IsP2SH(script []byte) bool {
	return len(script) == 23 &&
		script[0] == OpHash160 && script[1] == 0x14 && script[22] == OpEqual
}
