package auctionpay

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/auctionfi/auctionpay/contracts"
)

// MetadataFileName is the file every listing's metadata is stored under.
const MetadataFileName = "item.json"

// Read-only views over the auction collaborators, surfaced for callers that
// render listings. These never touch fees or sponsorship.

// AuctionAddresses lists every auction the factory has created.
func (o *Orchestrator) AuctionAddresses(ctx context.Context) ([]common.Address, error) {
	return o.cfg.Auctions.Auctions(ctx)
}

// AuctionConfig returns an auction's static configuration.
func (o *Orchestrator) AuctionConfig(ctx context.Context, auctionRef common.Address) (contracts.AuctionConfig, error) {
	return o.cfg.Auctions.Config(ctx, auctionRef)
}

// AuctionStatus returns an auction's lifecycle status.
func (o *Orchestrator) AuctionStatus(ctx context.Context, auctionRef common.Address) (contracts.AuctionStatus, error) {
	return o.cfg.Auctions.Status(ctx, auctionRef)
}

// HighestBindingBid returns the current highest binding bid formatted at the
// bid token's precision.
func (o *Orchestrator) HighestBindingBid(ctx context.Context, auctionRef common.Address) (string, error) {
	token, err := o.bidTokenOf(ctx, auctionRef)
	if err != nil {
		return "", err
	}
	bid, err := o.cfg.Auctions.HighestBindingBid(ctx, auctionRef)
	if err != nil {
		return "", err
	}
	return FormatUnits(bid, token.Decimals), nil
}

// HighestBidder returns the current highest bidder.
func (o *Orchestrator) HighestBidder(ctx context.Context, auctionRef common.Address) (common.Address, error) {
	return o.cfg.Auctions.HighestBidder(ctx, auctionRef)
}

// ItemHandle returns the artifact handle of an auctioned item, with the
// on-chain ipfs:// prefix stripped.
func (o *Orchestrator) ItemHandle(ctx context.Context, tokenID *big.Int) (ArtifactHandle, error) {
	items, err := o.cfg.Auctions.ItemsContract(ctx)
	if err != nil {
		return "", err
	}
	uri, err := o.cfg.Auctions.TokenURI(ctx, items, tokenID)
	if err != nil {
		return "", err
	}
	return ArtifactHandle(strings.TrimPrefix(uri, "ipfs://")), nil
}

// ItemBalance returns how many auction items the caller holds.
func (o *Orchestrator) ItemBalance(ctx context.Context) (*big.Int, error) {
	items, err := o.cfg.Auctions.ItemsContract(ctx)
	if err != nil {
		return nil, err
	}
	return o.cfg.Auctions.ItemBalance(ctx, items, o.cfg.Chain.Address())
}

// UploadItemMetadata validates and stores a raw metadata document, returning
// its handle. The handle is not yet guaranteed retrievable; CreateAuction
// polls it before referencing it on-chain.
func (o *Orchestrator) UploadItemMetadata(ctx context.Context, doc []byte) (ArtifactHandle, error) {
	if err := o.cfg.Metadata.Validate(doc); err != nil {
		return "", err
	}
	return o.cfg.Store.Put(ctx, []ArtifactFile{{
		Name:    MetadataFileName,
		Size:    int64(len(doc)),
		Content: doc,
	}})
}

// FetchItemMetadata retrieves a stored metadata document.
func (o *Orchestrator) FetchItemMetadata(ctx context.Context, handle ArtifactHandle) ([]byte, error) {
	files, err := o.cfg.Store.Get(ctx, handle)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Name == MetadataFileName {
			return f.Content, nil
		}
	}
	return nil, NewFlowError(ErrCodeArtifactUnresolved,
		"artifact carries no metadata file", map[string]interface{}{
			"handle": string(handle),
		})
}
