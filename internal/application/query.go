package application

import "txbridge/internal/domain"

// TransactionQueryFilter narrows transaction-record queries from the HTTP
// gateway.
type TransactionQueryFilter struct {
	ChainID *uint64
	Sender  string
	TxHash  string
	Status  *domain.TransactionStatus
	Limit   int
}
