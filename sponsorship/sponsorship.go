// Package sponsorship encodes the authorization payloads an approval-based
// fee sponsor requires to pay gas on a user's behalf. Encoding is pure and
// deterministic; no inflation is applied here — minimal allowances arrive
// already sized by the caller.
package sponsorship

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/auctionfi/auctionpay"
)

// paymasterFlowABI declares the sponsor's input selectors. The approval-based
// flow pulls minimalAllowance of token from the sender; the general flow
// carries only opaque input.
const paymasterFlowABI = `[
	{"name":"approvalBased","type":"function","inputs":[{"name":"_token","type":"address"},{"name":"_minAllowance","type":"uint256"},{"name":"_innerInput","type":"bytes"}],"outputs":[]},
	{"name":"general","type":"function","inputs":[{"name":"input","type":"bytes"}],"outputs":[]}
]`

var flowABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(paymasterFlowABI))
	if err != nil {
		panic(fmt.Sprintf("sponsorship: invalid flow ABI: %v", err))
	}
	return parsed
}()

// placeholderAllowance is the allowance declared in simulation-only
// authorizations. It only has to be large enough that no simulation reverts
// for lack of allowance; it is never submitted on-chain.
var placeholderAllowance = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

// Builder encodes authorizations for one fee sponsor contract.
type Builder struct {
	paymaster common.Address
}

// NewBuilder creates a builder bound to the sponsor's address.
func NewBuilder(paymaster common.Address) *Builder {
	return &Builder{paymaster: paymaster}
}

// Paymaster returns the sponsor contract address the builder encodes for.
func (b *Builder) Paymaster() common.Address {
	return b.paymaster
}

// Build encodes the real approval-based authorization. minimalAllowance must
// be at least the amount the sponsor will charge; callers inflate their fee
// estimate before passing it in.
func (b *Builder) Build(token common.Address, minimalAllowance *big.Int) (auctionpay.RealAuthorization, error) {
	input, err := encodeApprovalBased(token, minimalAllowance)
	if err != nil {
		return auctionpay.RealAuthorization{}, err
	}
	return auctionpay.RealAuthorization{Paymaster: b.paymaster, Input: input}, nil
}

// BuildSimulation encodes a simulation-only authorization with the oversized
// placeholder allowance.
func (b *Builder) BuildSimulation(token common.Address) (auctionpay.SimulationAuthorization, error) {
	input, err := encodeApprovalBased(token, placeholderAllowance)
	if err != nil {
		return auctionpay.SimulationAuthorization{}, err
	}
	return auctionpay.SimulationAuthorization{Paymaster: b.paymaster, Input: input}, nil
}

// BuildGeneral encodes the general sponsor flow with opaque auxiliary input.
func (b *Builder) BuildGeneral(auxiliaryInput []byte) (auctionpay.RealAuthorization, error) {
	if auxiliaryInput == nil {
		auxiliaryInput = []byte{}
	}
	input, err := flowABI.Pack("general", auxiliaryInput)
	if err != nil {
		return auctionpay.RealAuthorization{}, fmt.Errorf("encode general input: %w", err)
	}
	return auctionpay.RealAuthorization{Paymaster: b.paymaster, Input: input}, nil
}

func encodeApprovalBased(token common.Address, minimalAllowance *big.Int) ([]byte, error) {
	if minimalAllowance == nil || minimalAllowance.Sign() <= 0 {
		return nil, fmt.Errorf("sponsorship: minimal allowance must be positive")
	}
	input, err := flowABI.Pack("approvalBased", token, minimalAllowance, []byte{})
	if err != nil {
		return nil, fmt.Errorf("encode approval-based input: %w", err)
	}
	return input, nil
}
