package auctionpay

import (
	"math/big"
	"strings"
)

// listingFeeTenths is the flat listing fee in tenths of a token unit: 0.5 of
// the paying token regardless of its decimals.
const listingFeeTenths = 5

// ListingFee returns the flat auction-listing fee expressed in the token's
// smallest unit.
func ListingFee(token TokenDescriptor) *big.Int {
	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(token.Decimals)), nil)
	fee := new(big.Int).Mul(base, big.NewInt(listingFeeTenths))
	return fee.Div(fee, big.NewInt(10))
}

// inflate widens an estimated amount by an integer safety factor. Factors
// below one are treated as one so an estimate is never shrunk.
func inflate(amount *big.Int, factor int64) *big.Int {
	if factor < 1 {
		factor = 1
	}
	return new(big.Int).Mul(amount, big.NewInt(factor))
}

// FormatUnits renders an integer token amount as a decimal string at the
// given precision, for display and diagnostics. Amount arithmetic itself
// never leaves integer space.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, base, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	digits := strings.TrimRight(
		strings.Repeat("0", int(decimals)-len(frac.String()))+frac.String(),
		"0",
	)
	return whole.String() + "." + digits
}
