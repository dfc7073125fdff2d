package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/auctionfi/auctionpay"
	"github.com/auctionfi/auctionpay/artifact"
	"github.com/auctionfi/auctionpay/batch"
	"github.com/auctionfi/auctionpay/pricing"
	"github.com/auctionfi/auctionpay/sponsorship"
)

// OrchestratorConfig is everything needed to stand up a fully wired
// orchestrator against one chain endpoint. All chain addresses are explicit;
// nothing is read from process-wide state.
type OrchestratorConfig struct {
	// Endpoint is the chain's JSON-RPC URL.
	Endpoint string
	// PrivateKey is the signing key, hex encoded.
	PrivateKey string
	// AuctionFactory is the factory contract address.
	AuctionFactory common.Address
	// Paymaster is the fee sponsor contract address.
	Paymaster common.Address
	// PaymentTokens maps supported symbols to token addresses.
	PaymentTokens map[string]common.Address
	// Feeds names the price feeds fees are computed against.
	Feeds auctionpay.PriceFeedSet
	// StorageAPI is the content-addressed storage API base URL.
	StorageAPI string
	// StorageToken authenticates against the storage API.
	StorageToken string
	// Logger is optional; nil disables logging.
	Logger *zap.Logger
}

// NewOrchestrator dials the endpoint and wires every auctionpay component to
// it: the fee estimator over the sponsor's price feeds, the sponsorship
// builder for the configured paymaster, the batch path over the signing key
// and the artifact poller over the storage API.
func NewOrchestrator(ctx context.Context, cfg OrchestratorConfig, opts ...auctionpay.Option) (*auctionpay.Orchestrator, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	backend, err := Dial(ctx, cfg.Endpoint, cfg.PrivateKey, cfg.Paymaster, WithBackendLogger(log))
	if err != nil {
		return nil, err
	}

	validator, err := artifact.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("build metadata validator: %w", err)
	}

	store := artifact.NewWebStore(cfg.StorageAPI, cfg.StorageToken, artifact.WithStoreLogger(log))
	sponsor := sponsorship.NewBuilder(cfg.Paymaster)

	orchestratorOpts := append([]auctionpay.Option{auctionpay.WithLogger(log)}, opts...)
	return auctionpay.New(auctionpay.Config{
		Chain:          backend,
		Auctions:       NewReader(backend, cfg.AuctionFactory),
		Estimator:      pricing.NewEstimator(backend, backend, sponsor, cfg.Feeds, log),
		Sponsor:        sponsor,
		Batch:          batch.NewExecutor(backend, log),
		Poller:         artifact.NewPoller(store, artifact.WithLogger(log)),
		Store:          store,
		Metadata:       validator,
		AuctionFactory: cfg.AuctionFactory,
		PaymentTokens:  cfg.PaymentTokens,
		Feeds:          cfg.Feeds,
	}, orchestratorOpts...)
}
