package auctionpay

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auctionfi/auctionpay/contracts"
)

// Config carries the collaborators and addresses an Orchestrator needs. It is
// explicit construction-time state; nothing is read from process-wide
// configuration.
type Config struct {
	Chain     ChainBackend
	Auctions  AuctionReader
	Estimator FeeEstimator
	Sponsor   SponsorshipBuilder
	Batch     BatchExecutor
	Poller    ArtifactPoller
	Store     ArtifactStore
	Metadata  MetadataValidator

	// AuctionFactory is the contract auctions are created through and the
	// spender of the flat listing fee.
	AuctionFactory common.Address
	// PaymentTokens maps supported symbols to token addresses.
	PaymentTokens map[string]common.Address
	// Feeds names the price feeds fees are computed against.
	Feeds PriceFeedSet
}

// Option tunes an Orchestrator beyond its required configuration.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithTuning overrides the safety margins for one action.
func WithTuning(action Action, tuning ActionTuning) Option {
	return func(o *Orchestrator) { o.tunings[action] = tuning }
}

// Default per-action safety margins. The allowance inflations exist because
// the action transaction's real fee is unknown until the approval lands; the
// sponsor must be pre-authorized for more than the strict estimate or it
// rejects the transaction. The exact factors are tunable margins with no
// derivation beyond operational experience.
var defaultTunings = map[Action]ActionTuning{
	ActionCreateAuction: {ApprovalAllowanceInflation: 1, ActionAllowanceInflation: 1, ActionGasMultiplier: 1},
	ActionPlaceBid:      {ApprovalAllowanceInflation: 1, ActionAllowanceInflation: 20, ActionGasMultiplier: 100},
	ActionBuyItNow:      {ApprovalAllowanceInflation: 1, ActionAllowanceInflation: 100, ActionGasMultiplier: 20},
	ActionWithdraw:      {ApprovalAllowanceInflation: 1, ActionAllowanceInflation: 20, ActionGasMultiplier: 2},
}

// Orchestrator composes fee estimation, sponsorship construction and batch
// submission into the four caller-facing auction actions.
//
// Each action is one sequential blocking flow: every step depends on the
// previous step's result, and the transactions it builds consume the signing
// key's current nonce and sponsor-allowance state. Callers must keep at most
// one flow in flight per signing key; the orchestrator does not serialize
// concurrent callers. Once a batch is submitted the flow runs to chain-
// reported completion — a caller-side timeout means "unknown outcome", not
// "cancelled".
type Orchestrator struct {
	cfg     Config
	tunings map[Action]ActionTuning
	log     *zap.Logger
}

// New creates an orchestrator. All Config collaborators are required.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	switch {
	case cfg.Chain == nil:
		return nil, fmt.Errorf("auctionpay: chain backend is required")
	case cfg.Auctions == nil:
		return nil, fmt.Errorf("auctionpay: auction reader is required")
	case cfg.Estimator == nil:
		return nil, fmt.Errorf("auctionpay: fee estimator is required")
	case cfg.Sponsor == nil:
		return nil, fmt.Errorf("auctionpay: sponsorship builder is required")
	case cfg.Batch == nil:
		return nil, fmt.Errorf("auctionpay: batch executor is required")
	case cfg.Poller == nil:
		return nil, fmt.Errorf("auctionpay: artifact poller is required")
	case cfg.Store == nil:
		return nil, fmt.Errorf("auctionpay: artifact store is required")
	case cfg.Metadata == nil:
		return nil, fmt.Errorf("auctionpay: metadata validator is required")
	case len(cfg.PaymentTokens) == 0:
		return nil, fmt.Errorf("auctionpay: at least one payment token is required")
	}

	o := &Orchestrator{
		cfg:     cfg,
		tunings: make(map[Action]ActionTuning, len(defaultTunings)),
		log:     zap.NewNop(),
	}
	for action, tuning := range defaultTunings {
		o.tunings[action] = tuning
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// CreateAuction lists a new item: it confirms the item metadata is
// retrievable, then submits approve(factory, listingFee) followed by the
// factory's createAuction call as one batch, both paid in payingSymbol.
func (o *Orchestrator) CreateAuction(ctx context.Context, item ItemData, payingSymbol string) (bool, BatchOutcome, error) {
	log := o.flowLogger(ActionCreateAuction)

	tokenAddr, ok := o.cfg.PaymentTokens[payingSymbol]
	if !ok {
		return false, BatchOutcome{}, NewFlowError(ErrCodePriceUnavailable,
			"unsupported payment token", map[string]interface{}{
				"symbol": payingSymbol,
			}).WithAction(ActionCreateAuction)
	}
	token, err := o.cfg.Auctions.Token(ctx, tokenAddr)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionCreateAuction, err)
	}

	// The metadata must be confirmed retrievable before its address is
	// embedded in calldata; on-chain state cannot be edited afterwards.
	ref, err := o.cfg.Poller.Resolve(ctx, item.MetadataHandle)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionCreateAuction, err)
	}
	log.Debug("item metadata resolved", zap.String("handle", string(ref.Handle)))

	fee := ListingFee(token)
	approveData, err := contracts.PackApprove(o.cfg.AuctionFactory, fee)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionCreateAuction, err)
	}
	createData, err := contracts.PackCreateAuction(
		token.Address,
		o.cfg.Chain.Address(),
		ref.URI(),
		item.StartPrice,
		item.BuyItNowPrice,
		big.NewInt(int64(item.Duration.Seconds())),
	)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionCreateAuction, err)
	}

	return o.runApproveAndCall(ctx, ActionCreateAuction, token, flowCalls{
		approveTo:   token.Address,
		approveData: approveData,
		actionTo:    o.cfg.AuctionFactory,
		actionData:  createData,
	})
}

// PlaceBid raises the caller's bid by the auction's minimum valid increment,
// submitting approve(auction, increment) and placeBid as one batch paid in
// the auction's bid token.
func (o *Orchestrator) PlaceBid(ctx context.Context, auctionRef common.Address) (bool, BatchOutcome, error) {
	token, err := o.bidTokenOf(ctx, auctionRef)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionPlaceBid, err)
	}
	increment, err := o.cfg.Auctions.MinimalIncrement(ctx, auctionRef)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionPlaceBid, err)
	}
	return o.bidFlow(ctx, ActionPlaceBid, auctionRef, token, increment)
}

// BuyItNow raises the caller's bid straight to the auction's buy-it-now
// price. The increment is the difference between that price and whatever the
// caller already has locked in the auction; a zero or negative difference is
// still attempted so the caller observes the contract's own semantics.
func (o *Orchestrator) BuyItNow(ctx context.Context, auctionRef common.Address) (bool, BatchOutcome, error) {
	token, err := o.bidTokenOf(ctx, auctionRef)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionBuyItNow, err)
	}
	cfg, err := o.cfg.Auctions.Config(ctx, auctionRef)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionBuyItNow, err)
	}
	existing, err := o.cfg.Auctions.FundsByBidder(ctx, auctionRef, o.cfg.Chain.Address())
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionBuyItNow, err)
	}
	increment := new(big.Int).Sub(cfg.BuyItNowPrice, existing)
	return o.bidFlow(ctx, ActionBuyItNow, auctionRef, token, increment)
}

// Withdraw reclaims the caller's funds from an auction. It is a single
// transaction — no approval step — but runs through the same estimation,
// sponsorship and batch path as the paired actions.
func (o *Orchestrator) Withdraw(ctx context.Context, auctionRef common.Address) (bool, BatchOutcome, error) {
	log := o.flowLogger(ActionWithdraw)

	token, err := o.bidTokenOf(ctx, auctionRef)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionWithdraw, err)
	}
	data, err := contracts.PackWithdrawAll()
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionWithdraw, err)
	}

	tuning := o.tunings[ActionWithdraw]
	quote, err := o.cfg.Estimator.Estimate(ctx, SimulatedCall{
		From: o.cfg.Chain.Address(),
		To:   auctionRef,
		Data: data,
	}, token)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionWithdraw, err)
	}

	auth, err := o.cfg.Sponsor.Build(token.Address, inflate(quote.TokenFee, tuning.ActionAllowanceInflation))
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionWithdraw, err)
	}
	gasPrice, err := o.cfg.Chain.GasPrice(ctx)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionWithdraw, err)
	}

	log.Debug("withdraw prepared",
		zap.String("token", token.Symbol),
		zap.Uint64("gasLimit", quote.GasLimit),
		zap.String("tokenFee", quote.TokenFee.String()),
	)

	outcome, err := o.cfg.Batch.Submit(ctx, []PreparedTransaction{{
		To:                   auctionRef,
		Data:                 data,
		GasLimit:             quote.GasLimit * uint64(tuning.ActionGasMultiplier),
		MaxFeePerGas:         gasPrice,
		MaxPriorityFeePerGas: new(big.Int),
		Sponsorship:          auth,
	}})
	if err != nil {
		return false, BatchOutcome{}, o.wrap(ActionWithdraw, err)
	}
	return o.interpret(ActionWithdraw, outcome)
}

// flowCalls are the two populated call targets of an approve-then-act flow.
type flowCalls struct {
	approveTo   common.Address
	approveData []byte
	actionTo    common.Address
	actionData  []byte
}

// bidFlow is the shared approve-then-act path of PlaceBid and BuyItNow.
func (o *Orchestrator) bidFlow(ctx context.Context, action Action, auctionRef common.Address, token TokenDescriptor, increment *big.Int) (bool, BatchOutcome, error) {
	approveData, err := contracts.PackApprove(auctionRef, increment)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(action, err)
	}
	actionData, err := contracts.PackPlaceBid(o.cfg.Chain.Address(), increment)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(action, err)
	}
	o.flowLogger(action).Debug("bid flow prepared",
		zap.String("auction", auctionRef.Hex()),
		zap.String("token", token.Symbol),
		zap.String("increment", increment.String()),
	)
	return o.runApproveAndCall(ctx, action, token, flowCalls{
		approveTo:   token.Address,
		approveData: approveData,
		actionTo:    auctionRef,
		actionData:  actionData,
	})
}

// runApproveAndCall estimates both calls independently, builds one
// authorization per transaction and submits them as an ordered batch with the
// approval at index 0.
func (o *Orchestrator) runApproveAndCall(ctx context.Context, action Action, token TokenDescriptor, calls flowCalls) (bool, BatchOutcome, error) {
	sender := o.cfg.Chain.Address()
	tuning := o.tunings[action]

	approveQuote, err := o.cfg.Estimator.Estimate(ctx, SimulatedCall{
		From: sender,
		To:   calls.approveTo,
		Data: calls.approveData,
	}, token)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(action, err)
	}
	actionQuote, err := o.cfg.Estimator.Estimate(ctx, SimulatedCall{
		From: sender,
		To:   calls.actionTo,
		Data: calls.actionData,
	}, token)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(action, err)
	}

	// The approval is sized to its own fee; the action over-authorizes
	// because its real fee is unknown until the approval lands.
	approveAuth, err := o.cfg.Sponsor.Build(token.Address, inflate(approveQuote.TokenFee, tuning.ApprovalAllowanceInflation))
	if err != nil {
		return false, BatchOutcome{}, o.wrap(action, err)
	}
	actionAuth, err := o.cfg.Sponsor.Build(token.Address, inflate(actionQuote.TokenFee, tuning.ActionAllowanceInflation))
	if err != nil {
		return false, BatchOutcome{}, o.wrap(action, err)
	}

	gasPrice, err := o.cfg.Chain.GasPrice(ctx)
	if err != nil {
		return false, BatchOutcome{}, o.wrap(action, err)
	}

	outcome, err := o.cfg.Batch.Submit(ctx, []PreparedTransaction{
		{
			To:                   calls.approveTo,
			Data:                 calls.approveData,
			GasLimit:             approveQuote.GasLimit,
			MaxFeePerGas:         gasPrice,
			MaxPriorityFeePerGas: new(big.Int),
			Sponsorship:          approveAuth,
		},
		{
			To:                   calls.actionTo,
			Data:                 calls.actionData,
			GasLimit:             actionQuote.GasLimit * uint64(tuning.ActionGasMultiplier),
			MaxFeePerGas:         gasPrice,
			MaxPriorityFeePerGas: new(big.Int),
			Sponsorship:          actionAuth,
		},
	})
	if err != nil {
		return false, BatchOutcome{}, o.wrap(action, err)
	}
	return o.interpret(action, outcome)
}

// interpret classifies a batch outcome for the caller. A partial failure is
// reported as whole-operation failure with the outcome attached; nothing is
// rolled back, since a mined approval cannot be un-mined. The caller can
// re-attempt the dependent action without re-approving.
func (o *Orchestrator) interpret(action Action, outcome BatchOutcome) (bool, BatchOutcome, error) {
	if outcome.Valid() {
		return true, outcome, nil
	}
	failures := outcome.Failed()
	indexes := make([]int, 0, len(failures))
	reasons := make([]string, 0, len(failures))
	for _, f := range failures {
		indexes = append(indexes, f.Index)
		reasons = append(reasons, f.Error)
	}
	return false, outcome, NewFlowError(ErrCodeBatchPartialFailure,
		"one or more batch transactions failed", map[string]interface{}{
			"batchId":       outcome.BatchID,
			"failedIndexes": indexes,
			"errors":        reasons,
		}).WithAction(action)
}

func (o *Orchestrator) bidTokenOf(ctx context.Context, auctionRef common.Address) (TokenDescriptor, error) {
	addr, err := o.cfg.Auctions.BidToken(ctx, auctionRef)
	if err != nil {
		return TokenDescriptor{}, err
	}
	return o.cfg.Auctions.Token(ctx, addr)
}

// wrap tags taxonomy errors with the failing action; infrastructure errors
// (reads, encoding) are wrapped with plain context.
func (o *Orchestrator) wrap(action Action, err error) error {
	if fe, ok := err.(*FlowError); ok {
		if fe.Action == "" {
			fe.Action = action
		}
		return fe
	}
	return fmt.Errorf("%s: %w", action, err)
}

func (o *Orchestrator) flowLogger(action Action) *zap.Logger {
	return o.log.With(
		zap.String("action", string(action)),
		zap.String("flowId", uuid.NewString()),
	)
}
