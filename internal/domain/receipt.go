package domain

// Receipt is the node-reported outcome of a transaction once included
// in a block.
type Receipt struct {
	TxHash          string
	BlockNumber     uint64
	Status          uint64
	GasUsed         uint64
	ContractAddress string
}

// Succeeded reports whether the transaction executed without reverting.
func (r Receipt) Succeeded() bool {
	return r.Status == 1
}
