package domain

import "math/big"

// CallEnvelope is an unsigned transaction shape used for gas estimation and
// read-only calls. Addresses and data are 0x-hex strings.
type CallEnvelope struct {
	From  string
	To    string
	Data  string
	Gas   uint64
	Value *big.Int
}
