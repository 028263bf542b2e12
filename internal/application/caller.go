package application

import (
	"context"
	"errors"

	"txbridge/internal/domain"
	"txbridge/internal/infrastructure/ethrpc"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Call invokes a read-only contract function. A single-output callable
// returns the bare value; multiple outputs return a map keyed by output
// name. Fixed 32-byte outputs are rendered as 0x-hex strings either way.
func (p *Provider) Call(ctx context.Context, contractName, contractAddress, function string, args ...any) (any, error) {
	descriptor, method, err := p.contracts.Callable(contractName, function)
	if err != nil {
		return nil, err
	}
	converted, err := coerceArguments(method.Inputs, args)
	if err != nil {
		return nil, err
	}
	data, err := descriptor.ABI.Pack(function, converted...)
	if err != nil {
		return nil, err
	}

	out, err := p.node.CallContract(ctx, domain.CallEnvelope{
		To:   contractAddress,
		Data: hexutil.Encode(data),
	})
	if err != nil {
		return nil, Classify(nodeErrorFrom(err))
	}

	raw, err := hexutil.Decode(out)
	if err != nil {
		return nil, Classify(&domain.NodeError{Kind: domain.KindBadOutput, Message: err.Error()})
	}
	values, err := method.Outputs.UnpackValues(raw)
	if err != nil {
		return nil, Classify(&domain.NodeError{Kind: domain.KindBadOutput, Message: err.Error()})
	}

	if len(method.Outputs) == 1 {
		return renderOutput(method.Outputs[0], values[0]), nil
	}
	result := make(map[string]any, len(method.Outputs))
	for i, output := range method.Outputs {
		result[output.Name] = renderOutput(output, values[i])
	}
	return result, nil
}

func renderOutput(output abi.Argument, value any) any {
	if fixed, ok := value.([32]byte); ok {
		return hexutil.Encode(fixed[:])
	}
	return value
}

// nodeErrorFrom lifts a node rejection into the known failure taxonomy so
// the classifier can normalize its message. Transport failures pass through
// untouched.
func nodeErrorFrom(err error) error {
	var rpcErr *ethrpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	return &domain.NodeError{Kind: kindOf(rpcErr), Message: rpcErr.Message}
}
