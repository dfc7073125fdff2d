package pricing

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/auctionfi/auctionpay"
)

// Estimator prices a concrete call in the paying token.
//
// Every estimation re-reads the gas price and both feeds; nothing is cached,
// so the staleness window of a quote is exactly one estimation call.
type Estimator struct {
	chain   auctionpay.ChainBackend
	prices  auctionpay.PriceReader
	sponsor auctionpay.SponsorshipBuilder
	feeds   auctionpay.PriceFeedSet
	log     *zap.Logger
}

// NewEstimator creates a fee estimator bound to one feed set.
func NewEstimator(chain auctionpay.ChainBackend, prices auctionpay.PriceReader, sponsor auctionpay.SponsorshipBuilder, feeds auctionpay.PriceFeedSet, log *zap.Logger) *Estimator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Estimator{
		chain:   chain,
		prices:  prices,
		sponsor: sponsor,
		feeds:   feeds,
		log:     log,
	}
}

// Estimate simulates the call with a placeholder sponsorship attached,
// prices the simulated gas in native currency and converts it into the
// paying token.
//
// The returned gas limit is the raw simulated value; the caller applies its
// own safety multiplier, because a simulation against stale state can
// under-estimate the real call. The placeholder authorization exists only so
// the simulation does not revert for lack of allowance and is never reused
// for the real transaction.
func (e *Estimator) Estimate(ctx context.Context, call auctionpay.SimulatedCall, token auctionpay.TokenDescriptor) (auctionpay.FeeQuote, error) {
	tokenFeed, ok := e.feeds.TokenUSD[token.Symbol]
	if !ok {
		return auctionpay.FeeQuote{}, auctionpay.NewFlowError(auctionpay.ErrCodePriceUnavailable,
			"no price feed for payment token", map[string]interface{}{
				"symbol": token.Symbol,
			})
	}

	gasPrice, err := e.chain.GasPrice(ctx)
	if err != nil {
		return auctionpay.FeeQuote{}, auctionpay.NewFlowError(auctionpay.ErrCodeEstimationFailed,
			"gas price query failed: "+err.Error(), nil)
	}

	simAuth, err := e.sponsor.BuildSimulation(token.Address)
	if err != nil {
		return auctionpay.FeeQuote{}, err
	}
	call.Sponsorship = simAuth

	gasUsed, err := e.chain.EstimateGas(ctx, call)
	if err != nil {
		return auctionpay.FeeQuote{}, classifySimulationError(err, token)
	}

	nativeFee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasUsed))

	nativeUSD, err := e.readFeed(ctx, e.feeds.NativeUSD, "native/USD")
	if err != nil {
		return auctionpay.FeeQuote{}, err
	}
	tokenUSD, err := e.readFeed(ctx, tokenFeed, token.Symbol+"/USD")
	if err != nil {
		return auctionpay.FeeQuote{}, err
	}

	tokenFee, err := Convert(nativeFee, nativeUSD, tokenUSD, token.Decimals)
	if err != nil {
		return auctionpay.FeeQuote{}, err
	}

	e.log.Debug("fee estimated",
		zap.String("token", token.Symbol),
		zap.String("gasPrice", gasPrice.String()),
		zap.Uint64("gasUsed", gasUsed),
		zap.String("nativeFee", nativeFee.String()),
		zap.String("tokenFee", tokenFee.String()),
	)

	return auctionpay.FeeQuote{TokenFee: tokenFee, GasLimit: gasUsed}, nil
}

func (e *Estimator) readFeed(ctx context.Context, feed common.Address, name string) (*big.Int, error) {
	price, err := e.prices.ReadPrice(ctx, feed)
	if err != nil {
		return nil, auctionpay.NewFlowError(auctionpay.ErrCodePriceUnavailable,
			name+" feed read failed: "+err.Error(), nil)
	}
	if price == nil || price.Sign() == 0 {
		return nil, auctionpay.NewFlowError(auctionpay.ErrCodePriceUnavailable,
			name+" feed returned zero", nil)
	}
	return price, nil
}

// classifySimulationError distinguishes a sponsor rejection from an ordinary
// simulation revert. Paymaster validation errors carry the sponsor contract's
// revert reason, which is surfaced verbatim.
func classifySimulationError(err error, token auctionpay.TokenDescriptor) *auctionpay.FlowError {
	msg := err.Error()
	code := auctionpay.ErrCodeEstimationFailed
	if strings.Contains(strings.ToLower(msg), "paymaster") {
		code = auctionpay.ErrCodeSponsorshipRejected
	}
	return auctionpay.NewFlowError(code, msg, map[string]interface{}{
		"token": token.Symbol,
	})
}
