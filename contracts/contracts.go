// Package contracts holds thin ABI bindings for the external on-chain
// collaborators: the ERC-20 payment tokens, the auction and its factory, the
// auction-items contract and the fee sponsor. Only the fragments this module
// calls are declared.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABI = `[
	{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const auctionABI = `[
	{"name":"bidToken","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"getMinimalIncrementTokens","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"fundsByBidder","type":"function","stateMutability":"view","inputs":[{"name":"bidder","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"highestBindingBid","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"highestBidder","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"auctionStatus","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"config","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"owner","type":"address"},{"name":"startTimestamp","type":"uint256"},{"name":"endTimestamp","type":"uint256"},{"name":"startingPrice","type":"uint256"},{"name":"buyItNowPrice","type":"uint256"},{"name":"itemTokenId","type":"uint256"}]},
	{"name":"placeBid","type":"function","inputs":[{"name":"bidder","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"withdrawAll","type":"function","inputs":[],"outputs":[]}
]`

const factoryABI = `[
	{"name":"createAuction","type":"function","inputs":[{"name":"bidToken","type":"address"},{"name":"seller","type":"address"},{"name":"tokenUri","type":"string"},{"name":"startingPrice","type":"uint256"},{"name":"buyItNowPrice","type":"uint256"},{"name":"duration","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"getAuctions","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"name":"AUCTION_ITEMS_ADDR","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const itemsABI = `[
	{"name":"tokenURI","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const paymasterABI = `[
	{"name":"readPrice","type":"function","stateMutability":"view","inputs":[{"name":"feed","type":"address"}],"outputs":[{"name":"","type":"int224"}]}
]`

var (
	// ERC20 is the payment-token fragment.
	ERC20 = mustParse(erc20ABI)
	// Auction is the auction contract fragment.
	Auction = mustParse(auctionABI)
	// Factory is the auction factory fragment.
	Factory = mustParse(factoryABI)
	// Items is the auction-items (NFT) fragment.
	Items = mustParse(itemsABI)
	// Paymaster is the fee-sponsor read fragment.
	Paymaster = mustParse(paymasterABI)
)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("contracts: invalid ABI fragment: %v", err))
	}
	return parsed
}

// AuctionStatus mirrors the auction contract's lifecycle enum.
type AuctionStatus uint8

const (
	StatusInit AuctionStatus = iota
	StatusOnGoing
	StatusEnded
	StatusCanceled
	StatusDeletable
	StatusUnexpected
)

func (s AuctionStatus) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusOnGoing:
		return "ongoing"
	case StatusEnded:
		return "ended"
	case StatusCanceled:
		return "canceled"
	case StatusDeletable:
		return "deletable"
	default:
		return "unexpected"
	}
}

// AuctionConfig is the auction's static configuration as stored on-chain.
type AuctionConfig struct {
	Owner          common.Address
	StartTimestamp *big.Int
	EndTimestamp   *big.Int
	StartingPrice  *big.Int
	BuyItNowPrice  *big.Int
	ItemTokenID    *big.Int
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20.Pack("approve", spender, amount)
}

// PackAllowance encodes allowance(owner, spender).
func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return ERC20.Pack("allowance", owner, spender)
}

// PackPlaceBid encodes placeBid(bidder, amount).
func PackPlaceBid(bidder common.Address, amount *big.Int) ([]byte, error) {
	return Auction.Pack("placeBid", bidder, amount)
}

// PackWithdrawAll encodes withdrawAll().
func PackWithdrawAll() ([]byte, error) {
	return Auction.Pack("withdrawAll")
}

// PackCreateAuction encodes createAuction(bidToken, seller, tokenUri,
// startingPrice, buyItNowPrice, duration).
func PackCreateAuction(bidToken, seller common.Address, tokenURI string, startingPrice, buyItNowPrice, duration *big.Int) ([]byte, error) {
	return Factory.Pack("createAuction", bidToken, seller, tokenURI, startingPrice, buyItNowPrice, duration)
}

// PackReadPrice encodes readPrice(feed) against the fee sponsor.
func PackReadPrice(feed common.Address) ([]byte, error) {
	return Paymaster.Pack("readPrice", feed)
}

// UnpackAddress decodes a single-address return value.
func UnpackAddress(parsed abi.ABI, method string, data []byte) (common.Address, error) {
	out, err := parsed.Unpack(method, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unpack %s: not an address", method)
	}
	return addr, nil
}

// UnpackBigInt decodes a single-integer return value.
func UnpackBigInt(parsed abi.ABI, method string, data []byte) (*big.Int, error) {
	out, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: not an integer", method)
	}
	return value, nil
}

// UnpackString decodes a single-string return value.
func UnpackString(parsed abi.ABI, method string, data []byte) (string, error) {
	out, err := parsed.Unpack(method, data)
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", method, err)
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unpack %s: not a string", method)
	}
	return s, nil
}

// UnpackUint8 decodes a single-uint8 return value.
func UnpackUint8(parsed abi.ABI, method string, data []byte) (uint8, error) {
	out, err := parsed.Unpack(method, data)
	if err != nil {
		return 0, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unpack %s: not a uint8", method)
	}
	return v, nil
}

// UnpackAddressSlice decodes a single address[] return value.
func UnpackAddressSlice(parsed abi.ABI, method string, data []byte) ([]common.Address, error) {
	out, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unpack %s: not an address slice", method)
	}
	return addrs, nil
}

// UnpackAuctionConfig decodes the auction config() tuple.
func UnpackAuctionConfig(data []byte) (AuctionConfig, error) {
	out, err := Auction.Unpack("config", data)
	if err != nil {
		return AuctionConfig{}, fmt.Errorf("unpack config: %w", err)
	}
	if len(out) != 6 {
		return AuctionConfig{}, fmt.Errorf("unpack config: expected 6 values, got %d", len(out))
	}
	cfg := AuctionConfig{}
	var ok bool
	if cfg.Owner, ok = out[0].(common.Address); !ok {
		return AuctionConfig{}, fmt.Errorf("unpack config: owner is not an address")
	}
	fields := []**big.Int{&cfg.StartTimestamp, &cfg.EndTimestamp, &cfg.StartingPrice, &cfg.BuyItNowPrice, &cfg.ItemTokenID}
	for i, field := range fields {
		value, ok := out[i+1].(*big.Int)
		if !ok {
			return AuctionConfig{}, fmt.Errorf("unpack config: field %d is not an integer", i+1)
		}
		*field = value
	}
	return cfg, nil
}
