// Package evm binds the auctionpay collaborator interfaces to a live
// EVM-compatible chain with native fee-sponsorship support (zkSync-style
// typed transactions), using go-ethereum's client, ABI and signing stacks.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/auctionfi/auctionpay"
	"github.com/auctionfi/auctionpay/contracts"
)

// defaultGasPerPubdata is the chain's default limit of gas charged per byte
// of published data, carried in every sponsored transaction.
var defaultGasPerPubdata = big.NewInt(50_000)

// Backend implements auctionpay.ChainBackend, PriceReader and BatchSubmitter
// against one endpoint and one signing key.
type Backend struct {
	rpc           *rpc.Client
	eth           *ethclient.Client
	privateKey    *ecdsa.PrivateKey
	address       common.Address
	chainID       *big.Int
	paymaster     common.Address
	gasPerPubdata *big.Int
	log           *zap.Logger
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithGasPerPubdata overrides the per-pubdata gas limit.
func WithGasPerPubdata(limit *big.Int) BackendOption {
	return func(b *Backend) { b.gasPerPubdata = limit }
}

// WithBackendLogger sets the backend's logger.
func WithBackendLogger(log *zap.Logger) BackendOption {
	return func(b *Backend) { b.log = log }
}

// Dial connects to the chain endpoint and derives the signing address from
// the hex-encoded private key.
func Dial(ctx context.Context, endpoint, privateKeyHex string, paymaster common.Address, opts ...BackendOption) (*Backend, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	eth := ethclient.NewClient(client)
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("query chain id: %w", err)
	}

	b := &Backend{
		rpc:           client,
		eth:           eth,
		privateKey:    privateKey,
		address:       crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:       chainID,
		paymaster:     paymaster,
		gasPerPubdata: defaultGasPerPubdata,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Address returns the signing address.
func (b *Backend) Address() common.Address {
	return b.address
}

// ChainID returns the connected network's chain id.
func (b *Backend) ChainID() *big.Int {
	return b.chainID
}

// GasPrice returns the current suggested gas price.
func (b *Backend) GasPrice(ctx context.Context) (*big.Int, error) {
	return b.eth.SuggestGasPrice(ctx)
}

// CallContract executes a read-only call.
func (b *Backend) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return b.eth.CallContract(ctx, ethereum.CallMsg{
		From: b.address,
		To:   &to,
		Data: data,
	}, nil)
}

// EstimateGas simulates the call with its placeholder sponsorship attached.
// The sponsorship rides in the typed-transaction metadata, so the estimate is
// requested through the raw RPC surface rather than ethclient.
func (b *Backend) EstimateGas(ctx context.Context, call auctionpay.SimulatedCall) (uint64, error) {
	arg := map[string]interface{}{
		"from": call.From,
		"to":   call.To,
		"data": hexutil.Bytes(call.Data),
		"eip712Meta": map[string]interface{}{
			"gasPerPubdata": hexutil.EncodeBig(b.gasPerPubdata),
			"paymasterParams": map[string]interface{}{
				"paymaster":      call.Sponsorship.Paymaster,
				"paymasterInput": hexutil.Bytes(call.Sponsorship.Input),
			},
		},
	}
	var hex hexutil.Uint64
	if err := b.rpc.CallContext(ctx, &hex, "eth_estimateGas", arg); err != nil {
		return 0, err
	}
	return uint64(hex), nil
}

// TokenAllowance reads allowance(owner, spender) on an ERC-20.
func (b *Backend) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := contracts.PackAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := b.CallContract(ctx, token, data)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackBigInt(contracts.ERC20, "allowance", out)
}

// ReadPrice reads an 18-decimal fixed-point quote from the sponsor's price
// feed surface.
func (b *Backend) ReadPrice(ctx context.Context, feed common.Address) (*big.Int, error) {
	data, err := contracts.PackReadPrice(feed)
	if err != nil {
		return nil, err
	}
	out, err := b.CallContract(ctx, b.paymaster, data)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackBigInt(contracts.Paymaster, "readPrice", out)
}
