// Package auctionpay orchestrates gasless auction actions against an
// approval-based fee sponsor ("paymaster").
//
// The caller pays every network fee of a multi-step action (create auction,
// place bid, buy-it-now, withdraw) in a whitelisted ERC-20 token instead of
// the chain's native currency. The package estimates the native gas cost of
// each call, prices it in the paying token through two chained price feeds,
// builds the sponsorship authorization the paymaster requires to pull exactly
// that token amount, and submits the approval and the action as one ordered
// batch so the pair is observably atomic from the caller's perspective.
package auctionpay

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenDescriptor identifies an ERC-20 token accepted for fee payment.
// Decimals drive all scaling arithmetic: a 6-decimal token requires explicit
// rescaling wherever an amount is derived from an 18-decimal price.
type TokenDescriptor struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// FeeQuote is the token-denominated cost of a single call.
//
// GasLimit is the raw simulated value; callers apply their own safety
// multiplier before populating the transaction. A quote is valid only for the
// transaction it was computed for and is never persisted.
type FeeQuote struct {
	// TokenFee is the fee expressed in the paying token's smallest unit.
	TokenFee *big.Int `json:"tokenFee"`
	// GasLimit is the unmodified gas usage reported by simulation.
	GasLimit uint64 `json:"gasLimit"`
}

// SponsorshipKind discriminates paymaster flows. Only the approval-based
// flow is supported: the sponsor pulls a pre-approved ERC-20 amount in
// exchange for paying native gas.
type SponsorshipKind string

// SponsorshipApprovalBased is the approval-based paymaster flow.
const SponsorshipApprovalBased SponsorshipKind = "ApprovalBased"

// SimulationAuthorization is a sponsorship payload whose declared allowance
// is an oversized placeholder, attached to gas simulations only so they do
// not revert for lack of allowance. It must never be submitted on-chain;
// the distinct type keeps it from being interchanged with RealAuthorization.
type SimulationAuthorization struct {
	Paymaster common.Address
	Input     []byte
}

// RealAuthorization is the sponsorship payload submitted with a transaction.
// Its minimal allowance is the caller-inflated fee estimate.
type RealAuthorization struct {
	Paymaster common.Address
	Input     []byte
}

// PreparedTransaction is a fully populated transaction ready for batch
// submission: calldata, gas fields and sponsorship are fixed and this layer
// will not touch them again.
type PreparedTransaction struct {
	To           common.Address
	Data         []byte
	GasLimit     uint64
	MaxFeePerGas *big.Int
	// MaxPriorityFeePerGas is zero under the sponsor flow.
	MaxPriorityFeePerGas *big.Int
	Sponsorship          RealAuthorization
}

// TxOutcome is the result of one transaction within a submitted batch,
// aligned by Index with the submission order.
type TxOutcome struct {
	Index   int    `json:"index"`
	IsError bool   `json:"isError"`
	Error   string `json:"error,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
}

// BatchOutcome is the ordered per-transaction result of one submitted batch.
// The batch is valid iff every element succeeded; partial effects (an approval
// that landed before the action reverted) are real even when the batch as a
// whole is reported failed.
type BatchOutcome struct {
	// BatchID is a trace identifier assigned at submission time.
	BatchID string      `json:"batchId"`
	Results []TxOutcome `json:"results"`
}

// Valid reports whether every transaction in the batch succeeded.
func (o BatchOutcome) Valid() bool {
	if len(o.Results) == 0 {
		return false
	}
	for _, r := range o.Results {
		if r.IsError {
			return false
		}
	}
	return true
}

// Failed returns the outcomes of the transactions that did not succeed.
func (o BatchOutcome) Failed() []TxOutcome {
	var failed []TxOutcome
	for _, r := range o.Results {
		if r.IsError {
			failed = append(failed, r)
		}
	}
	return failed
}

// ArtifactHandle is the content identifier returned by the storage
// collaborator at upload time. It is not guaranteed to be resolvable
// immediately; ResolveArtifact bridges that eventual-consistency window.
type ArtifactHandle string

// ArtifactFile is one file stored under a content-addressed handle.
type ArtifactFile struct {
	Name    string
	CID     string
	Size    int64
	Content []byte
}

// ResolvedReference is an artifact handle that has been confirmed
// retrievable and may safely be referenced on-chain.
type ResolvedReference struct {
	Handle ArtifactHandle
	Files  []ArtifactFile
}

// URI returns the on-chain reference for the resolved artifact.
func (r ResolvedReference) URI() string {
	return "ipfs://" + string(r.Handle)
}

// SimulatedCall describes the exact call a caller intends to submit,
// for gas simulation. The fee estimator attaches the placeholder
// sponsorship before simulating.
type SimulatedCall struct {
	From        common.Address
	To          common.Address
	Data        []byte
	Sponsorship SimulationAuthorization
}

// PriceFeedSet names the two chained feeds a fee estimate reads: the native
// asset's USD feed and one USD feed per supported payment token symbol.
// A symbol absent from TokenUSD cannot be priced and fails estimation fast.
type PriceFeedSet struct {
	NativeUSD common.Address
	TokenUSD  map[string]common.Address
}

// ItemData is the caller-supplied description of a new auction listing.
// MetadataHandle must point at already-uploaded item metadata; CreateAuction
// polls it for retrievability before referencing it on-chain.
type ItemData struct {
	MetadataHandle ArtifactHandle
	StartPrice     *big.Int
	BuyItNowPrice  *big.Int
	Duration       time.Duration
}

// Action names a caller-facing operation, used for per-action tuning and
// error context.
type Action string

const (
	ActionCreateAuction Action = "createAuction"
	ActionPlaceBid      Action = "placeBid"
	ActionBuyItNow      Action = "buyItNow"
	ActionWithdraw      Action = "withdraw"
)

// ActionTuning carries the safety margins applied per action. The inflation
// multipliers widen the sponsor allowance beyond the strict estimate because
// the action transaction's real fee is unknown until the approval lands; the
// gas multiplier widens the action's gas limit for the same reason. They are
// tunable margins, not correctness constants.
type ActionTuning struct {
	// ApprovalAllowanceInflation scales the approval transaction's
	// sponsor allowance relative to its own fee estimate.
	ApprovalAllowanceInflation int64
	// ActionAllowanceInflation scales the action transaction's sponsor
	// allowance relative to its fee estimate.
	ActionAllowanceInflation int64
	// ActionGasMultiplier scales the action transaction's simulated gas
	// limit.
	ActionGasMultiplier int64
}
