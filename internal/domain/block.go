package domain

// BlockRecord identifies a chain block observed during confirmation.
// Records are shared: the first tracker to observe a number creates it,
// later trackers reuse it.
type BlockRecord struct {
	ChainID     uint64
	BlockNumber uint64
}
