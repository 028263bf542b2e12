package application

import (
	"errors"
	"testing"

	"txbridge/internal/domain"
	"txbridge/internal/infrastructure/ethrpc"
)

func TestClassifyStripsEscapedBytes(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "escaped prefix",
			message: `\x08\xc3\x79 Insufficient funds.`,
			want:    "Insufficient funds.",
		},
		{
			name:    "spaced groups",
			message: `revert \x19\x08 \x6c not enough allowance`,
			want:    "not enough allowance",
		},
		{
			name:    "no escapes",
			message: "gas required exceeds allowance",
			want:    "gas required exceeds allowance",
		},
		{
			name:    "empty message",
			message: "",
			want:    "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Classify(&domain.NodeError{Kind: domain.KindValidation, Message: tc.message})
			var failure *domain.CallFailure
			if !errors.As(err, &failure) {
				t.Fatalf("expected CallFailure, got %v", err)
			}
			if failure.Message != tc.want {
				t.Errorf("expected %q, got %q", tc.want, failure.Message)
			}
		})
	}
}

func TestClassifyPassesThroughUnknownErrors(t *testing.T) {
	if got := Classify(errTransport); got != errTransport {
		t.Errorf("expected transport error unchanged, got %v", got)
	}
	if got := Classify(nil); got != nil {
		t.Errorf("expected nil unchanged, got %v", got)
	}
}

func TestKindOfBucketsByMessage(t *testing.T) {
	tests := []struct {
		message string
		want    domain.NodeErrorKind
	}{
		{"block not found", domain.KindBlockNotFound},
		{"requested block is out of range", domain.KindBlockOutOfRange},
		{"transaction not found", domain.KindTxNotFound},
		{"transaction indexing in progress", domain.KindTxNotFound},
		{"invalid address checksum", domain.KindInvalidAddress},
		{"insufficient funds for gas", domain.KindInsufficientData},
		{"key not found in store", domain.KindMissingKey},
		{"name not found", domain.KindNameNotFound},
		{"no resolver configured", domain.KindNameNotFound},
		{"request timed out", domain.KindTimeExhausted},
		{"execution reverted", domain.KindValidation},
	}
	for _, tc := range tests {
		got := kindOf(&ethrpc.Error{Message: tc.message})
		if got != tc.want {
			t.Errorf("%q: expected %s, got %s", tc.message, tc.want, got)
		}
	}
}
