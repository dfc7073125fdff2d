// Package pricing converts native gas costs into token-denominated fees
// through two chained 18-decimal fixed-point price feeds, and estimates the
// fee of a concrete call by simulating it against the chain.
package pricing

import (
	"math/big"

	"github.com/auctionfi/auctionpay"
)

// priceBase is the fixed-point base every feed quote is scaled by.
var priceBase = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Convert expresses a native-currency amount in the paying token at the
// token's declared decimal precision:
//
//	tokenAmount = amountNative * priceNativeUSD / priceTokenUSD * 10^tokenDecimals / 10^18
//
// Multiplication happens before each division so integer truncation loses at
// most one unit. Intermediates are big.Int, so width is never a concern.
//
// A nil or zero price means the feed is unavailable; converting with it would
// silently produce a zero or unbounded fee, so it is a fatal precondition
// violation surfaced as price_unavailable.
func Convert(amountNative, priceNativeUSD, priceTokenUSD *big.Int, tokenDecimals uint8) (*big.Int, error) {
	if priceNativeUSD == nil || priceNativeUSD.Sign() == 0 {
		return nil, auctionpay.NewFlowError(auctionpay.ErrCodePriceUnavailable,
			"native/USD price feed returned zero", nil)
	}
	if priceTokenUSD == nil || priceTokenUSD.Sign() == 0 {
		return nil, auctionpay.NewFlowError(auctionpay.ErrCodePriceUnavailable,
			"token/USD price feed returned zero", nil)
	}
	if amountNative == nil {
		amountNative = new(big.Int)
	}

	decimalsBase := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(tokenDecimals)), nil)

	amount := new(big.Int).Mul(amountNative, priceNativeUSD)
	amount.Div(amount, priceTokenUSD)
	amount.Mul(amount, decimalsBase)
	amount.Div(amount, priceBase)
	return amount, nil
}
