package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"txbridge/internal/domain"
	"txbridge/internal/streaming"
)

// TrackOptions controls one tracking run. Dispatch hands the run to the
// async worker instead of blocking the caller; the state machine and its
// guarantees are identical either way.
type TrackOptions struct {
	Dispatch bool
	Hook     string
	HookArgs map[string]string
}

// Track drives a transaction to terminal state: wait for a receipt, wait
// for the configured confirmation depth, persist the outcome, then invoke
// the completion hook. A transaction already terminal is a no-op, so
// re-dispatch is always safe.
func (p *Provider) Track(ctx context.Context, txHash string, opts TrackOptions) error {
	txHash = strings.ToLower(txHash)
	record, ok, err := p.transactions.GetTransaction(ctx, p.cfg.ChainID, txHash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, txHash)
	}
	if record.Status.Terminal() {
		return nil
	}

	if opts.Dispatch {
		if p.dispatcher == nil {
			return errors.New("no dispatcher configured")
		}
		return p.dispatcher.DispatchTrack(ctx, streaming.Task{
			Type:     streaming.TaskTypeTrack,
			ChainID:  p.cfg.ChainID,
			TxHash:   txHash,
			Hook:     opts.Hook,
			HookArgs: opts.HookArgs,
		})
	}

	slog.Debug("tracking transaction",
		"tx_hash", txHash,
		"contract", record.ContractName,
		"function", record.FunctionName,
	)

	receipt, err := p.waitForReceipt(ctx, txHash)
	if err != nil {
		return err
	}
	p.recordEvent(ctx, domain.LifecycleEvent{
		TxHash: txHash,
		Sender: record.Sender,
		Event:  domain.EventObserved,
		Detail: fmt.Sprintf("block %d", receipt.BlockNumber),
	})

	head, err := p.node.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	// The receipt's block may move under a reorg, so it is re-fetched on
	// every pass until the depth condition holds against the current head.
	// The comparison is additive: a lagging node can report a head behind
	// the receipt's block, and an unsigned subtraction would wrap.
	for head < receipt.BlockNumber+p.cfg.Confirmations {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}
		receipt, err = p.waitForReceipt(ctx, txHash)
		if err != nil {
			return err
		}
		head, err = p.node.LatestBlockNumber(ctx)
		if err != nil {
			return err
		}
	}

	record.GasUsed = receipt.GasUsed
	block, err := p.blocks.GetOrCreateBlock(ctx, p.cfg.ChainID, receipt.BlockNumber)
	if err != nil {
		return err
	}
	record.BlockNumber = &block.BlockNumber
	if receipt.ContractAddress != "" {
		record.ContractAddress = receipt.ContractAddress
	}
	if receipt.Succeeded() {
		record.Status = domain.StatusAccepted
	} else {
		record.Status = domain.StatusRejected
	}
	record.UpdatedAt = time.Now().UTC()
	if err := p.transactions.UpdateTransaction(ctx, record); err != nil {
		return err
	}

	slog.Info("transaction confirmed",
		"tx_hash", txHash,
		"status", record.Status.String(),
		"block", receipt.BlockNumber,
		"gas_used", receipt.GasUsed,
	)
	p.recordEvent(ctx, domain.LifecycleEvent{
		TxHash: txHash,
		Sender: record.Sender,
		Event:  domain.EventConfirmed,
		Detail: record.Status.String(),
	})

	// The hook fires only after persistence succeeds, at most once per
	// tracker run. Hook failures surface to the dispatching context.
	if opts.Hook != "" {
		hook, err := p.hooks.Lookup(opts.Hook)
		if err != nil {
			return err
		}
		if err := hook(ctx, record, opts.HookArgs); err != nil {
			return fmt.Errorf("completion hook %s: %w", opts.Hook, err)
		}
	}
	return nil
}

// waitForReceipt polls until the node reports a receipt for the hash.
// "Receipt not yet available" is a blocking wait, bounded per call by the
// configured receipt timeout, not a fast failure.
func (p *Provider) waitForReceipt(ctx context.Context, txHash string) (domain.Receipt, error) {
	deadline := time.Now().Add(p.cfg.ReceiptTimeout)
	for {
		receipt, ok, err := p.node.TransactionReceipt(ctx, txHash)
		if err != nil {
			return domain.Receipt{}, err
		}
		if ok {
			return receipt, nil
		}
		if time.Now().After(deadline) {
			return domain.Receipt{}, &domain.NodeError{
				Kind:    domain.KindTimeExhausted,
				Message: fmt.Sprintf("no receipt for %s within %s", txHash, p.cfg.ReceiptTimeout),
			}
		}
		select {
		case <-ctx.Done():
			return domain.Receipt{}, ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}
	}
}
