package application

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"txbridge/internal/domain"
	"txbridge/internal/infrastructure/ethrpc"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// gasEstimateCeiling caps the multiplied constructor-style estimate.
	gasEstimateCeiling uint64 = 10_000_000
	// forcedGasCeiling is applied when the node rejects the supplied gas as
	// exceeding its allowance, before re-estimating.
	forcedGasCeiling uint64 = 20_000_000

	deployFunctionName = "deploy"
)

// submission is the mutable state threaded through retry attempts. The
// nonce is fixed before the first attempt and never reassigned; escalated
// flips at most once.
type submission struct {
	sender    string
	to        string
	data      []byte
	nonce     uint64
	escalated bool
}

// Submit builds, signs, and broadcasts a transaction and returns its
// canonical hash, derived from the signed payload rather than the node's
// acknowledgment. An empty function deploys the contract's bytecode. The
// whole build-sign-broadcast sequence is retried on transient failure;
// node rejections carrying a structured message surface as
// *domain.ValidationError without further retries.
func (p *Provider) Submit(ctx context.Context, sender, privateKey, contractName, contractAddress, function string, args ...any) (string, error) {
	descriptor, err := p.contracts.Load(contractName)
	if err != nil {
		return "", err
	}

	var data []byte
	if function == "" {
		if !descriptor.Deployable() {
			return "", fmt.Errorf("contract %s has no bytecode to deploy", contractName)
		}
		converted, err := coerceArguments(descriptor.ABI.Constructor.Inputs, args)
		if err != nil {
			return "", err
		}
		packed, err := descriptor.ABI.Pack("", converted...)
		if err != nil {
			return "", err
		}
		data = make([]byte, 0, len(descriptor.Bytecode)+len(packed))
		data = append(data, descriptor.Bytecode...)
		data = append(data, packed...)
	} else {
		_, method, err := p.contracts.Callable(contractName, function)
		if err != nil {
			return "", err
		}
		converted, err := coerceArguments(method.Inputs, args)
		if err != nil {
			return "", err
		}
		data, err = descriptor.ABI.Pack(function, converted...)
		if err != nil {
			return "", err
		}
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid signing key: %w", err)
	}

	nonce, err := p.nextNonce(ctx, sender)
	if err != nil {
		return "", err
	}

	sub := &submission{
		sender: sender,
		to:     contractAddress,
		data:   data,
		nonce:  nonce,
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.cfg.RetryDelay), p.cfg.RetryAttempts-1),
		ctx,
	)
	attempt := 0
	txHash, err := backoff.RetryWithData(func() (string, error) {
		attempt++
		if attempt > 1 {
			slog.Debug("retrying submission", "sender", sender, "contract", contractName, "attempt", attempt)
			p.recordEvent(ctx, domain.LifecycleEvent{
				Sender: sender,
				Event:  domain.EventRetried,
				Detail: fmt.Sprintf("attempt %d", attempt),
			})
		}
		return p.buildSignBroadcast(ctx, key, sub)
	}, policy)
	if err != nil {
		return "", err
	}

	record := domain.Transaction{
		ChainID:      p.cfg.ChainID,
		TxHash:       txHash,
		Sender:       strings.ToLower(sender),
		KeyRef:       strings.ToLower(sender),
		ContractName: contractName,
		FunctionName: function,
		Args:         stringifyArgs(args),
		Nonce:        nonce,
		Status:       domain.StatusUnconfirmed,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if function == "" {
		record.FunctionName = deployFunctionName
	}
	if err := p.transactions.CreateTransaction(ctx, record); err != nil {
		// The transaction is already broadcast; the missing record is
		// surfaced rather than retried here.
		return txHash, fmt.Errorf("transaction %s broadcast but not recorded: %w", txHash, err)
	}

	slog.Info("transaction submitted",
		"sender", sender,
		"contract", contractName,
		"function", record.FunctionName,
		"nonce", nonce,
		"tx_hash", txHash,
	)
	p.recordEvent(ctx, domain.LifecycleEvent{
		TxHash: txHash,
		Sender: sender,
		Event:  domain.EventSubmitted,
		Detail: contractName + "." + record.FunctionName,
	})
	return txHash, nil
}

// nextNonce returns the count of transactions already recorded for the
// sender. The node's own pending count is fetched only to log divergence;
// the local count is authoritative, avoiding races over the node's shared
// mutable counter.
func (p *Provider) nextNonce(ctx context.Context, sender string) (uint64, error) {
	local, err := p.transactions.CountBySender(ctx, p.cfg.ChainID, strings.ToLower(sender))
	if err != nil {
		return 0, err
	}
	if nodeCount, err := p.node.TransactionCount(ctx, sender); err != nil {
		slog.Warn("node transaction count unavailable", "sender", sender, "err", err)
	} else if nodeCount != local {
		slog.Info("nonce divergence", "sender", sender, "local", local, "node", nodeCount)
	}
	return local, nil
}

func (p *Provider) buildSignBroadcast(ctx context.Context, key *ecdsa.PrivateKey, sub *submission) (string, error) {
	env := domain.CallEnvelope{
		From: sub.sender,
		To:   sub.to,
		Data: hexutil.Encode(sub.data),
	}

	gas, err := p.resolveGas(ctx, env)
	if err != nil {
		if isGasAllowanceRejection(err) && !sub.escalated {
			sub.escalated = true
			p.recordEvent(ctx, domain.LifecycleEvent{Sender: sub.sender, Event: domain.EventGasEscalated})
			gas, err = p.forceGas(ctx, env)
		}
		if err != nil {
			return "", permanentIfRejected(err)
		}
	}

	gasPrice, err := p.node.GasPrice(ctx)
	if err != nil {
		return "", err
	}

	signed, raw, err := p.signTransaction(key, sub, gas, gasPrice)
	if err != nil {
		return "", backoff.Permanent(err)
	}

	if _, err := p.node.SendRawTransaction(ctx, raw); err != nil {
		if !isGasAllowanceRejection(err) || sub.escalated {
			return "", permanentIfRejected(err)
		}
		// One forced re-estimate, rebuild, and resubmit before giving up.
		sub.escalated = true
		p.recordEvent(ctx, domain.LifecycleEvent{Sender: sub.sender, Event: domain.EventGasEscalated})
		gas, err = p.forceGas(ctx, env)
		if err != nil {
			return "", permanentIfRejected(err)
		}
		slog.Info("gas escalated", "sender", sub.sender, "gas", gas)
		signed, raw, err = p.signTransaction(key, sub, gas, gasPrice)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		if _, err := p.node.SendRawTransaction(ctx, raw); err != nil {
			return "", permanentIfRejected(err)
		}
	}

	return strings.ToLower(signed.Hash().Hex()), nil
}

// resolveGas computes the gas limit to attach. When gas-limit enforcement
// is on, a constructor-style estimate is tried first; a node value
// rejection falls back to estimating against the full envelope. Without
// enforcement the node estimate is used directly.
func (p *Provider) resolveGas(ctx context.Context, env domain.CallEnvelope) (uint64, error) {
	if !p.cfg.GasLimitEnabled {
		return p.node.EstimateGas(ctx, env)
	}
	estimate, err := p.node.EstimateGas(ctx, domain.CallEnvelope{From: env.From, Data: env.Data})
	if err != nil {
		var rpcErr *ethrpc.Error
		if !errors.As(err, &rpcErr) {
			return 0, err
		}
		return p.node.EstimateGas(ctx, env)
	}
	gas := estimate * p.cfg.GasMultiplier
	if gas > gasEstimateCeiling {
		gas = gasEstimateCeiling
	}
	slog.Debug("gas estimated", "sender", env.From, "gas", gas)
	return gas, nil
}

func (p *Provider) forceGas(ctx context.Context, env domain.CallEnvelope) (uint64, error) {
	env.Gas = forcedGasCeiling
	return p.node.EstimateGas(ctx, env)
}

func (p *Provider) signTransaction(key *ecdsa.PrivateKey, sub *submission, gas uint64, gasPrice *big.Int) (*types.Transaction, string, error) {
	inner := &types.LegacyTx{
		Nonce:    sub.nonce,
		Gas:      gas,
		GasPrice: gasPrice,
		Value:    big.NewInt(0),
		Data:     sub.data,
	}
	if sub.to != "" {
		to := common.HexToAddress(sub.to)
		inner.To = &to
	}
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(p.cfg.ChainID))
	signed, err := types.SignTx(types.NewTx(inner), signer, key)
	if err != nil {
		return nil, "", err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, "", err
	}
	return signed, hexutil.Encode(raw), nil
}

// isGasAllowanceRejection matches the node's malformed-request rejection
// for gas exceeding its allowance, which is recoverable via escalation.
func isGasAllowanceRejection(err error) bool {
	var rpcErr *ethrpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Code == -32000 && strings.Contains(rpcErr.Message, "gas required exceeds allowance")
}

// permanentIfRejected stops retrying on node value rejections: those with a
// structured message become caller-facing validation failures, the rest are
// re-raised as-is. Transport errors stay retryable.
func permanentIfRejected(err error) error {
	var rpcErr *ethrpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	if rpcErr.Message != "" {
		return backoff.Permanent(&domain.ValidationError{Message: rpcErr.Message})
	}
	return backoff.Permanent(err)
}

func stringifyArgs(args []any) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = fmt.Sprint(arg)
	}
	return out
}
