package types

import "fmt"

// Blockchain tags which chain family a transaction belongs to.
type Blockchain string

const (
	Bitcoin  Blockchain = "bitcoin"
	Ethereum Blockchain = "ethereum"
)

// Valid reports whether the tag names a supported blockchain.
func (b Blockchain) Valid() bool {
	return b == Bitcoin || b == Ethereum
}

// ParseBlockchain converts a string to a Blockchain tag.
func ParseBlockchain(s string) (Blockchain, error) {
	switch Blockchain(s) {
	case Bitcoin:
		return Bitcoin, nil
	case Ethereum:
		return Ethereum, nil
	default:
		return "", fmt.Errorf("unknown blockchain %q", s)
	}
}
