package auctionpay

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/auctionfi/auctionpay/contracts"
)

// ChainBackend is the chain collaborator: reads, gas queries and gas
// simulation against the connected network. All monetary values are integers
// scaled by the asset's declared decimals; floating point is never used for
// amounts.
type ChainBackend interface {
	// Address returns the signing address every flow is built for.
	Address() common.Address

	// GasPrice returns the current native gas price.
	GasPrice(ctx context.Context) (*big.Int, error)

	// EstimateGas simulates the exact call the caller intends to submit,
	// with the attached placeholder sponsorship, and returns the raw gas
	// usage.
	EstimateGas(ctx context.Context, call SimulatedCall) (uint64, error)

	// CallContract executes a read-only contract call.
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// TokenAllowance reads the ERC-20 allowance granted by owner to
	// spender. Used by callers to inspect residual state after a partial
	// batch failure.
	TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// PriceReader is the fee-sponsor read interface: an 18-decimal fixed-point
// price per feed address, re-fetched on every estimation.
type PriceReader interface {
	ReadPrice(ctx context.Context, feed common.Address) (*big.Int, error)
}

// AuctionReader is the read side of the on-chain auction collaborators.
// Auction business rules live entirely behind this interface.
type AuctionReader interface {
	// Token resolves an ERC-20 address to its descriptor.
	Token(ctx context.Context, addr common.Address) (TokenDescriptor, error)

	// BidToken returns the ERC-20 an auction is denominated in.
	BidToken(ctx context.Context, auction common.Address) (common.Address, error)

	// MinimalIncrement returns the minimum valid bid increment.
	MinimalIncrement(ctx context.Context, auction common.Address) (*big.Int, error)

	// FundsByBidder returns the bidder's current locked bid.
	FundsByBidder(ctx context.Context, auction, bidder common.Address) (*big.Int, error)

	// Config returns the auction's static configuration.
	Config(ctx context.Context, auction common.Address) (contracts.AuctionConfig, error)

	// Status returns the auction's lifecycle status.
	Status(ctx context.Context, auction common.Address) (contracts.AuctionStatus, error)

	// HighestBindingBid returns the current highest binding bid.
	HighestBindingBid(ctx context.Context, auction common.Address) (*big.Int, error)

	// HighestBidder returns the current highest bidder.
	HighestBidder(ctx context.Context, auction common.Address) (common.Address, error)

	// Auctions lists all auction addresses known to the factory.
	Auctions(ctx context.Context) ([]common.Address, error)

	// ItemsContract returns the auction-items (NFT) contract address.
	ItemsContract(ctx context.Context) (common.Address, error)

	// TokenURI returns the metadata URI of an auctioned item.
	TokenURI(ctx context.Context, items common.Address, tokenID *big.Int) (string, error)

	// ItemBalance returns how many items an address holds.
	ItemBalance(ctx context.Context, items, owner common.Address) (*big.Int, error)
}

// FeeEstimator simulates a call, prices its gas cost in native currency and
// expresses it in the paying token.
type FeeEstimator interface {
	Estimate(ctx context.Context, call SimulatedCall, token TokenDescriptor) (FeeQuote, error)
}

// SponsorshipBuilder constructs the opaque payloads the fee sponsor accepts.
// Pure and deterministic; it applies no inflation — minimal allowances are
// inflated by the caller before invocation.
type SponsorshipBuilder interface {
	// Build encodes the real approval-based authorization for the given
	// token and minimal allowance.
	Build(token common.Address, minimalAllowance *big.Int) (RealAuthorization, error)

	// BuildSimulation encodes a simulation-only authorization whose
	// allowance is an oversized placeholder.
	BuildSimulation(token common.Address) (SimulationAuthorization, error)
}

// BatchSubmitter is the chain collaborator's batch path: it submits the
// ordered transactions and reports one outcome per transaction without
// reordering.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, txs []PreparedTransaction) ([]TxOutcome, error)
}

// BatchExecutor submits an ordered list of prepared transactions as one
// attempted atomic unit and classifies the whole batch.
type BatchExecutor interface {
	Submit(ctx context.Context, txs []PreparedTransaction) (BatchOutcome, error)
}

// ArtifactStore is the content-addressed storage collaborator.
type ArtifactStore interface {
	Put(ctx context.Context, files []ArtifactFile) (ArtifactHandle, error)
	Status(ctx context.Context, handle ArtifactHandle) (bool, error)
	Get(ctx context.Context, handle ArtifactHandle) ([]ArtifactFile, error)
}

// ArtifactPoller blocks until an uploaded artifact becomes retrievable or a
// bounded retry budget is exhausted.
type ArtifactPoller interface {
	Resolve(ctx context.Context, handle ArtifactHandle) (ResolvedReference, error)
}

// MetadataValidator checks an item metadata document against the listing
// schema before upload.
type MetadataValidator interface {
	Validate(doc []byte) error
}
