package domain

import "time"

// TransactionStatus is the lifecycle state of a submitted transaction.
type TransactionStatus uint8

const (
	StatusUnconfirmed TransactionStatus = iota
	StatusAccepted
	StatusRejected
)

// Terminal reports whether the status can no longer change.
func (s TransactionStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

func (s TransactionStatus) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	default:
		return "unconfirmed"
	}
}

// Transaction is the persisted record of a submitted transaction.
// The nonce is assigned once at submission time and never reassigned.
type Transaction struct {
	ChainID         uint64
	TxHash          string
	Sender          string
	KeyRef          string
	ContractName    string
	FunctionName    string
	Args            []string
	Nonce           uint64
	Status          TransactionStatus
	GasUsed         uint64
	BlockNumber     *uint64
	ContractAddress string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
