package application

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// coerceArguments converts loosely typed caller arguments (typically
// decoded JSON) into the Go shapes the ABI encoder expects. Fixed 32-byte
// inputs given as hex strings are decoded before binding.
func coerceArguments(inputs abi.Arguments, args []any) ([]any, error) {
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(inputs), len(args))
	}
	out := make([]any, len(args))
	for i, input := range inputs {
		value, err := coerceArgument(input.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, input.Name, err)
		}
		out[i] = value
	}
	return out, nil
}

func coerceArgument(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.FixedBytesTy:
		s, ok := v.(string)
		if !ok || t.Size != 32 {
			return v, nil
		}
		decoded, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
		}
		var fixed [32]byte
		copy(fixed[:], decoded)
		return fixed, nil
	case abi.AddressTy:
		if s, ok := v.(string); ok {
			return common.HexToAddress(s), nil
		}
		return v, nil
	case abi.BytesTy:
		if s, ok := v.(string); ok {
			return hexutil.Decode(s)
		}
		return v, nil
	case abi.UintTy, abi.IntTy:
		return coerceInteger(t, v)
	default:
		return v, nil
	}
}

func coerceInteger(t abi.Type, v any) (any, error) {
	n, err := toBig(v)
	if err != nil {
		return nil, err
	}
	if t.Size > 64 {
		return n, nil
	}
	if t.T == abi.UintTy {
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		default:
			return n.Uint64(), nil
		}
	}
	switch t.Size {
	case 8:
		return int8(n.Int64()), nil
	case 16:
		return int16(n.Int64()), nil
	case 32:
		return int32(n.Int64()), nil
	default:
		return n.Int64(), nil
	}
}

func toBig(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		return x, nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case float64:
		return big.NewInt(int64(x)), nil
	case string:
		base := 10
		trimmed := x
		if strings.HasPrefix(x, "0x") || strings.HasPrefix(x, "0X") {
			base = 16
			trimmed = x[2:]
		}
		n, ok := new(big.Int).SetString(trimmed, base)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", x)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported integer value %T", v)
	}
}
