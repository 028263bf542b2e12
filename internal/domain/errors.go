package domain

import "errors"

// ErrCallableNotFound is returned when a contract exists but the requested
// function is not part of its interface.
var ErrCallableNotFound = errors.New("callable not found")

// ErrContractNotFound is returned when no descriptor exists for a contract
// name.
var ErrContractNotFound = errors.New("contract not found")

// ErrTransactionNotFound is returned when no persisted record exists for a
// transaction hash.
var ErrTransactionNotFound = errors.New("transaction not found")

// ValidationError is a node rejection carrying a human-readable message.
// It is surfaced to callers unretried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NodeErrorKind names a known node/client failure category.
type NodeErrorKind string

const (
	KindBadOutput           NodeErrorKind = "bad_function_output"
	KindBlockNotFound       NodeErrorKind = "block_not_found"
	KindBlockOutOfRange     NodeErrorKind = "block_out_of_range"
	KindCannotHandleRequest NodeErrorKind = "cannot_handle_request"
	KindNoFallback          NodeErrorKind = "fallback_not_found"
	KindMissingKey          NodeErrorKind = "missing_key"
	KindInsufficientData    NodeErrorKind = "insufficient_data"
	KindInvalidAddress      NodeErrorKind = "invalid_address"
	KindInvalidEventABI     NodeErrorKind = "invalid_event_abi"
	KindNameNotFound        NodeErrorKind = "name_not_found"
	KindManifestValidation  NodeErrorKind = "manifest_validation"
	KindMismatchedABI       NodeErrorKind = "mismatched_abi"
	KindNoMatchingABI       NodeErrorKind = "no_matching_abi"
	KindTimeExhausted       NodeErrorKind = "time_exhausted"
	KindTxNotFound          NodeErrorKind = "transaction_not_found"
	KindValidation          NodeErrorKind = "validation"
)

// NodeError is a provider failure in one of the known categories. The raw
// message may embed escaped byte groups ahead of the useful text; the
// classifier strips those before surfacing.
type NodeError struct {
	Kind    NodeErrorKind
	Message string
}

func (e *NodeError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// CallFailure is the normalized form of a classified node error.
type CallFailure struct {
	Message string
}

func (e *CallFailure) Error() string {
	return e.Message
}
