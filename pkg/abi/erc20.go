package abi

import "math/big"

// ERC-20 function signatures.
const (
	SigTransfer     = "transfer(address,uint256)"
	SigApprove      = "approve(address,uint256)"
	SigBalanceOf    = "balanceOf(address)"
	SigTransferFrom = "transferFrom(address,address,uint256)"
)

// ERC20Transfer builds calldata for transfer(to, amount).
func ERC20Transfer(to [20]byte, amount *big.Int) ([]byte, error) {
	return EncodeFunctionCall(SigTransfer, Address(to), Uint(amount))
}

// ERC20Approve builds calldata for approve(spender, amount).
func ERC20Approve(spender [20]byte, amount *big.Int) ([]byte, error) {
	return EncodeFunctionCall(SigApprove, Address(spender), Uint(amount))
}

// ERC20BalanceOf builds calldata for balanceOf(owner).
func ERC20BalanceOf(owner [20]byte) ([]byte, error) {
	return EncodeFunctionCall(SigBalanceOf, Address(owner))
}

// ERC20TransferFrom builds calldata for transferFrom(from, to, amount).
func ERC20TransferFrom(from, to [20]byte, amount *big.Int) ([]byte, error) {
	return EncodeFunctionCall(SigTransferFrom, Address(from), Address(to), Uint(amount))
}
