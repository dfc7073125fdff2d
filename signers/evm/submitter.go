package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"

	"github.com/auctionfi/auctionpay"
)

// sponsoredTxType is the typed-transaction envelope carrying paymaster
// metadata.
const sponsoredTxType = 0x71

// receiptPollInterval spaces the receipt polls while waiting for a
// submitted transaction to be mined.
const receiptPollInterval = 2 * time.Second

// SubmitBatch signs and submits the prepared transactions in order with
// consecutive nonces, waiting for each to be mined before sending the next
// so the approval is always on-chain before the action executes. Outcomes
// align 1:1 with the submission order; once an element fails, the remaining
// elements are reported failed without being sent, since their prerequisite
// did not apply.
func (b *Backend) SubmitBatch(ctx context.Context, txs []auctionpay.PreparedTransaction) ([]auctionpay.TxOutcome, error) {
	nonce, err := b.eth.PendingNonceAt(ctx, b.address)
	if err != nil {
		return nil, fmt.Errorf("query nonce: %w", err)
	}

	outcomes := make([]auctionpay.TxOutcome, len(txs))
	failed := false
	for i, tx := range txs {
		outcomes[i].Index = i
		if failed {
			outcomes[i].IsError = true
			outcomes[i].Error = "not executed: a preceding batch transaction failed"
			continue
		}

		hash, err := b.sendSponsored(ctx, tx, nonce)
		if err != nil {
			outcomes[i].IsError = true
			outcomes[i].Error = err.Error()
			failed = true
			continue
		}
		nonce++
		outcomes[i].TxHash = hash.Hex()

		if err := b.waitMined(ctx, hash); err != nil {
			outcomes[i].IsError = true
			outcomes[i].Error = err.Error()
			failed = true
		}
	}
	return outcomes, nil
}

// sendSponsored signs one prepared transaction with the sponsorship envelope
// and broadcasts it.
func (b *Backend) sendSponsored(ctx context.Context, tx auctionpay.PreparedTransaction, nonce uint64) (common.Hash, error) {
	signature, err := b.signSponsored(tx, nonce)
	if err != nil {
		return common.Hash{}, err
	}
	raw, err := encodeSponsored(tx, nonce, b.chainID, b.address, b.gasPerPubdata, signature)
	if err != nil {
		return common.Hash{}, err
	}

	var hash common.Hash
	if err := b.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	b.log.Debug("transaction sent",
		zap.String("hash", hash.Hex()),
		zap.Uint64("nonce", nonce),
		zap.String("to", tx.To.Hex()),
	)
	return hash, nil
}

// signSponsored produces the EIP-712 signature over the sponsored
// transaction envelope.
func (b *Backend) signSponsored(tx auctionpay.PreparedTransaction, nonce uint64) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Transaction": {
				{Name: "txType", Type: "uint256"},
				{Name: "from", Type: "uint256"},
				{Name: "to", Type: "uint256"},
				{Name: "gasLimit", Type: "uint256"},
				{Name: "gasPerPubdataByteLimit", Type: "uint256"},
				{Name: "maxFeePerGas", Type: "uint256"},
				{Name: "maxPriorityFeePerGas", Type: "uint256"},
				{Name: "paymaster", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "value", Type: "uint256"},
				{Name: "data", Type: "bytes"},
				{Name: "factoryDeps", Type: "bytes32[]"},
				{Name: "paymasterInput", Type: "bytes"},
			},
		},
		PrimaryType: "Transaction",
		Domain: apitypes.TypedDataDomain{
			Name:    "zkSync",
			Version: "2",
			ChainId: (*math.HexOrDecimal256)(b.chainID),
		},
		Message: apitypes.TypedDataMessage{
			"txType":                 big.NewInt(sponsoredTxType).String(),
			"from":                   addressAsUint(b.address),
			"to":                     addressAsUint(tx.To),
			"gasLimit":               new(big.Int).SetUint64(tx.GasLimit).String(),
			"gasPerPubdataByteLimit": b.gasPerPubdata.String(),
			"maxFeePerGas":           tx.MaxFeePerGas.String(),
			"maxPriorityFeePerGas":   tx.MaxPriorityFeePerGas.String(),
			"paymaster":              addressAsUint(tx.Sponsorship.Paymaster),
			"nonce":                  new(big.Int).SetUint64(nonce).String(),
			"value":                  "0",
			"data":                   hexutil.Encode(tx.Data),
			"factoryDeps":            []interface{}{},
			"paymasterInput":         hexutil.Encode(tx.Sponsorship.Input),
		},
	}

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash transaction: %w", err)
	}
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}

	digest := crypto.Keccak256(append(append([]byte{0x19, 0x01}, domainSeparator...), dataHash...))
	signature, err := crypto.Sign(digest, b.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	signature[64] += 27
	return signature, nil
}

// encodeSponsored serializes the signed envelope as a type-0x71 raw
// transaction.
func encodeSponsored(tx auctionpay.PreparedTransaction, nonce uint64, chainID *big.Int, from common.Address, gasPerPubdata *big.Int, signature []byte) ([]byte, error) {
	fields := []interface{}{
		nonce,
		tx.MaxPriorityFeePerGas,
		tx.MaxFeePerGas,
		tx.GasLimit,
		tx.To,
		new(big.Int), // value
		tx.Data,
		chainID,
		[]byte{}, // unused legacy v
		[]byte{}, // unused legacy r/s
		chainID,
		from,
		gasPerPubdata,
		[][32]byte{}, // factory deps
		signature,
		[]interface{}{tx.Sponsorship.Paymaster, tx.Sponsorship.Input},
	}
	encoded, err := rlp.EncodeToBytes(fields)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return append([]byte{sponsoredTxType}, encoded...), nil
}

// waitMined blocks until the transaction has a receipt and checks its status.
func (b *Backend) waitMined(ctx context.Context, hash common.Hash) error {
	for {
		receipt, err := b.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == 0 {
				return fmt.Errorf("transaction %s reverted", hash.Hex())
			}
			return nil
		}
		if err != ethereum.NotFound {
			return fmt.Errorf("query receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", hash.Hex(), ctx.Err())
		case <-time.After(receiptPollInterval):
		}
	}
}

func addressAsUint(addr common.Address) string {
	return new(big.Int).SetBytes(addr.Bytes()).String()
}
