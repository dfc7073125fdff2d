// Package batch submits an ordered list of prepared transactions as one
// attempted atomic unit.
//
// ERC-20 approve-then-spend is inherently two transactions; submitting them
// independently risks the approval landing without the spend or the spend
// running before the approval is mined. Routing both through one submission
// path makes the pair observably atomic from the caller's perspective, even
// though the chain gives no true atomicity: a partially failed batch leaves
// real effects behind and is reported as such, never hidden.
package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auctionfi/auctionpay"
)

// Executor submits prepared transactions through the chain collaborator's
// batch path and classifies the result. Transactions are already fully
// populated; the executor never touches nonces, gas or calldata and never
// reorders.
type Executor struct {
	submitter auctionpay.BatchSubmitter
	log       *zap.Logger
}

// NewExecutor creates a batch executor.
func NewExecutor(submitter auctionpay.BatchSubmitter, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{submitter: submitter, log: log}
}

// Submit sends the ordered transactions as one unit and returns the aligned
// per-transaction outcomes. An error return means the batch never reached the
// chain; a returned outcome with failed elements means some transactions may
// have been mined and the caller must treat the residual state as real.
func (e *Executor) Submit(ctx context.Context, txs []auctionpay.PreparedTransaction) (auctionpay.BatchOutcome, error) {
	if len(txs) == 0 {
		return auctionpay.BatchOutcome{}, fmt.Errorf("batch: empty transaction list")
	}

	batchID := uuid.NewString()
	log := e.log.With(zap.String("batchId", batchID), zap.Int("size", len(txs)))
	log.Debug("submitting batch")

	results, err := e.submitter.SubmitBatch(ctx, txs)
	if err != nil {
		return auctionpay.BatchOutcome{}, fmt.Errorf("batch %s: submission failed: %w", batchID, err)
	}
	if len(results) != len(txs) {
		return auctionpay.BatchOutcome{}, fmt.Errorf("batch %s: %d transactions submitted but %d outcomes reported", batchID, len(txs), len(results))
	}
	for i, r := range results {
		if r.Index != i {
			return auctionpay.BatchOutcome{}, fmt.Errorf("batch %s: outcome %d reported for index %d, order not preserved", batchID, i, r.Index)
		}
		if r.IsError {
			log.Warn("batch member failed", zap.Int("index", i), zap.String("error", r.Error))
		}
	}

	outcome := auctionpay.BatchOutcome{BatchID: batchID, Results: results}
	log.Debug("batch complete", zap.Bool("valid", outcome.Valid()))
	return outcome, nil
}
