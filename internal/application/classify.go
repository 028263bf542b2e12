package application

import (
	"errors"
	"regexp"
	"strings"

	"txbridge/internal/domain"
	"txbridge/internal/infrastructure/ethrpc"
)

// escapedBytes matches a run of escaped byte groups followed by free text.
// Node diagnostics often embed the revert payload this way; only the
// trailing human-readable fragment is worth surfacing.
var escapedBytes = regexp.MustCompile(`(?:\\x[0-9a-z]{2,3} ?)+([^\\]+)`)

// Classify normalizes provider failures in the known category set into a
// *domain.CallFailure carrying the best-available human-readable message.
// Failures outside the set propagate unmodified.
func Classify(err error) error {
	var nodeErr *domain.NodeError
	if !errors.As(err, &nodeErr) {
		return err
	}
	if m := escapedBytes.FindStringSubmatch(nodeErr.Message); m != nil {
		return &domain.CallFailure{Message: m[1]}
	}
	return &domain.CallFailure{Message: nodeErr.Message}
}

// kindOf buckets a node rejection by message. Anything not matched still
// belongs to the known set as a generic validation failure: read calls
// only ever fail with a node-raised condition or a transport error, and
// transport errors never reach this mapping.
func kindOf(err *ethrpc.Error) domain.NodeErrorKind {
	msg := strings.ToLower(err.Message)
	switch {
	case strings.Contains(msg, "block not found"):
		return domain.KindBlockNotFound
	case strings.Contains(msg, "out of range"):
		return domain.KindBlockOutOfRange
	case strings.Contains(msg, "transaction not found"), strings.Contains(msg, "transaction indexing"):
		return domain.KindTxNotFound
	case strings.Contains(msg, "invalid address"):
		return domain.KindInvalidAddress
	case strings.Contains(msg, "insufficient"):
		return domain.KindInsufficientData
	case strings.Contains(msg, "key not found"):
		return domain.KindMissingKey
	case strings.Contains(msg, "name not found"), strings.Contains(msg, "no resolver"):
		return domain.KindNameNotFound
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return domain.KindTimeExhausted
	default:
		return domain.KindValidation
	}
}
