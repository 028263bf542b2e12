package domain

import "time"

// LifecycleEventType names a point in the transaction lifecycle worth
// auditing.
type LifecycleEventType string

const (
	EventSubmitted    LifecycleEventType = "submitted"
	EventRetried      LifecycleEventType = "retried"
	EventGasEscalated LifecycleEventType = "gas_escalated"
	EventObserved     LifecycleEventType = "observed"
	EventConfirmed    LifecycleEventType = "confirmed"
)

// LifecycleEvent is one append-only audit entry for a transaction.
type LifecycleEvent struct {
	ChainID uint64
	TxHash  string
	Sender  string
	Event   LifecycleEventType
	Detail  string
	At      time.Time
}
