package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/auctionfi/auctionpay"
	"github.com/auctionfi/auctionpay/contracts"
)

// Reader implements auctionpay.AuctionReader over a chain backend and one
// auction factory.
type Reader struct {
	chain   auctionpay.ChainBackend
	factory common.Address
}

// NewReader creates an auction reader.
func NewReader(chain auctionpay.ChainBackend, factory common.Address) *Reader {
	return &Reader{chain: chain, factory: factory}
}

func (r *Reader) call(ctx context.Context, to common.Address, data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return r.chain.CallContract(ctx, to, data)
}

// Token resolves an ERC-20 address to its descriptor.
func (r *Reader) Token(ctx context.Context, addr common.Address) (auctionpay.TokenDescriptor, error) {
	symbolData, err := contracts.ERC20.Pack("symbol")
	if err != nil {
		return auctionpay.TokenDescriptor{}, err
	}
	out, err := r.chain.CallContract(ctx, addr, symbolData)
	if err != nil {
		return auctionpay.TokenDescriptor{}, err
	}
	symbol, err := contracts.UnpackString(contracts.ERC20, "symbol", out)
	if err != nil {
		return auctionpay.TokenDescriptor{}, err
	}

	decimalsData, err := contracts.ERC20.Pack("decimals")
	if err != nil {
		return auctionpay.TokenDescriptor{}, err
	}
	out, err = r.chain.CallContract(ctx, addr, decimalsData)
	if err != nil {
		return auctionpay.TokenDescriptor{}, err
	}
	decimals, err := contracts.UnpackUint8(contracts.ERC20, "decimals", out)
	if err != nil {
		return auctionpay.TokenDescriptor{}, err
	}

	return auctionpay.TokenDescriptor{Address: addr, Symbol: symbol, Decimals: decimals}, nil
}

// BidToken returns the ERC-20 an auction is denominated in.
func (r *Reader) BidToken(ctx context.Context, auction common.Address) (common.Address, error) {
	data, err := contracts.Auction.Pack("bidToken")
	out, err := r.call(ctx, auction, data, err)
	if err != nil {
		return common.Address{}, err
	}
	return contracts.UnpackAddress(contracts.Auction, "bidToken", out)
}

// MinimalIncrement returns the minimum valid bid increment.
func (r *Reader) MinimalIncrement(ctx context.Context, auction common.Address) (*big.Int, error) {
	data, err := contracts.Auction.Pack("getMinimalIncrementTokens")
	out, err := r.call(ctx, auction, data, err)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackBigInt(contracts.Auction, "getMinimalIncrementTokens", out)
}

// FundsByBidder returns the bidder's current locked bid.
func (r *Reader) FundsByBidder(ctx context.Context, auction, bidder common.Address) (*big.Int, error) {
	data, err := contracts.Auction.Pack("fundsByBidder", bidder)
	out, err := r.call(ctx, auction, data, err)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackBigInt(contracts.Auction, "fundsByBidder", out)
}

// Config returns the auction's static configuration.
func (r *Reader) Config(ctx context.Context, auction common.Address) (contracts.AuctionConfig, error) {
	data, err := contracts.Auction.Pack("config")
	out, err := r.call(ctx, auction, data, err)
	if err != nil {
		return contracts.AuctionConfig{}, err
	}
	return contracts.UnpackAuctionConfig(out)
}

// Status returns the auction's lifecycle status.
func (r *Reader) Status(ctx context.Context, auction common.Address) (contracts.AuctionStatus, error) {
	data, err := contracts.Auction.Pack("auctionStatus")
	out, err := r.call(ctx, auction, data, err)
	if err != nil {
		return contracts.StatusUnexpected, err
	}
	status, err := contracts.UnpackUint8(contracts.Auction, "auctionStatus", out)
	if err != nil {
		return contracts.StatusUnexpected, err
	}
	return contracts.AuctionStatus(status), nil
}

// HighestBindingBid returns the current highest binding bid.
func (r *Reader) HighestBindingBid(ctx context.Context, auction common.Address) (*big.Int, error) {
	data, err := contracts.Auction.Pack("highestBindingBid")
	out, err := r.call(ctx, auction, data, err)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackBigInt(contracts.Auction, "highestBindingBid", out)
}

// HighestBidder returns the current highest bidder.
func (r *Reader) HighestBidder(ctx context.Context, auction common.Address) (common.Address, error) {
	data, err := contracts.Auction.Pack("highestBidder")
	out, err := r.call(ctx, auction, data, err)
	if err != nil {
		return common.Address{}, err
	}
	return contracts.UnpackAddress(contracts.Auction, "highestBidder", out)
}

// Auctions lists every auction the factory has created.
func (r *Reader) Auctions(ctx context.Context) ([]common.Address, error) {
	data, err := contracts.Factory.Pack("getAuctions")
	out, err := r.call(ctx, r.factory, data, err)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackAddressSlice(contracts.Factory, "getAuctions", out)
}

// ItemsContract returns the auction-items contract address.
func (r *Reader) ItemsContract(ctx context.Context) (common.Address, error) {
	data, err := contracts.Factory.Pack("AUCTION_ITEMS_ADDR")
	out, err := r.call(ctx, r.factory, data, err)
	if err != nil {
		return common.Address{}, err
	}
	return contracts.UnpackAddress(contracts.Factory, "AUCTION_ITEMS_ADDR", out)
}

// TokenURI returns the metadata URI of an auctioned item.
func (r *Reader) TokenURI(ctx context.Context, items common.Address, tokenID *big.Int) (string, error) {
	data, err := contracts.Items.Pack("tokenURI", tokenID)
	out, err := r.call(ctx, items, data, err)
	if err != nil {
		return "", err
	}
	return contracts.UnpackString(contracts.Items, "tokenURI", out)
}

// ItemBalance returns how many items an address holds.
func (r *Reader) ItemBalance(ctx context.Context, items, owner common.Address) (*big.Int, error) {
	data, err := contracts.Items.Pack("balanceOf", owner)
	out, err := r.call(ctx, items, data, err)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackBigInt(contracts.Items, "balanceOf", out)
}
