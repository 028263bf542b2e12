package application

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

func mustType(t *testing.T, name string) abi.Type {
	t.Helper()
	typ, err := abi.NewType(name, "", nil)
	if err != nil {
		t.Fatalf("abi type %s: %v", name, err)
	}
	return typ
}

func TestCoerceArgumentsLengthMismatch(t *testing.T) {
	inputs := abi.Arguments{{Name: "value", Type: mustType(t, "uint256")}}
	if _, err := coerceArguments(inputs, nil); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestCoerceAddressFromString(t *testing.T) {
	out, err := coerceArgument(mustType(t, "address"), "0x000000000000000000000000000000000000dEaD")
	if err != nil {
		t.Fatal(err)
	}
	addr, ok := out.(common.Address)
	if !ok {
		t.Fatalf("expected common.Address, got %T", out)
	}
	if addr != common.HexToAddress("0x000000000000000000000000000000000000dead") {
		t.Errorf("unexpected address %s", addr)
	}
}

func TestCoerceFixedBytesFromHex(t *testing.T) {
	hex := "0x" + "ab" + strings.Repeat("0", 60) + "01"
	out, err := coerceArgument(mustType(t, "bytes32"), hex)
	if err != nil {
		t.Fatal(err)
	}
	fixed, ok := out.([32]byte)
	if !ok {
		t.Fatalf("expected [32]byte, got %T", out)
	}
	if fixed[0] != 0xab || fixed[31] != 0x01 {
		t.Errorf("unexpected bytes %x", fixed)
	}

	if _, err := coerceArgument(mustType(t, "bytes32"), "0xab"); err == nil {
		t.Error("expected length error for short bytes32")
	}
}

func TestCoerceIntegers(t *testing.T) {
	tests := []struct {
		abiType string
		in      any
		want    any
	}{
		{"uint8", float64(7), uint8(7)},
		{"uint32", 42, uint32(42)},
		{"uint64", "18", uint64(18)},
		{"uint256", "0xff", nil}, // big.Int, compared below
		{"int64", int64(-3), int64(-3)},
		{"int8", -1, int8(-1)},
	}
	for _, tc := range tests {
		out, err := coerceArgument(mustType(t, tc.abiType), tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.abiType, err)
		}
		if tc.abiType == "uint256" {
			n, ok := out.(*big.Int)
			if !ok || n.Cmp(big.NewInt(255)) != 0 {
				t.Errorf("uint256: expected 255, got %v", out)
			}
			continue
		}
		if out != tc.want {
			t.Errorf("%s: expected %v (%T), got %v (%T)", tc.abiType, tc.want, tc.want, out, out)
		}
	}

	if _, err := coerceArgument(mustType(t, "uint256"), "not-a-number"); err == nil {
		t.Error("expected error for invalid integer string")
	}
	if _, err := coerceArgument(mustType(t, "uint256"), struct{}{}); err == nil {
		t.Error("expected error for unsupported type")
	}
}
