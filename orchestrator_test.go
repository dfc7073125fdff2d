package auctionpay

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/auctionfi/auctionpay/contracts"
)

var (
	sender      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	auctionAddr = common.HexToAddress("0x00000000000000000000000000000000000000ac")
	usdcAddr    = common.HexToAddress("0x00000000000000000000000000000000000000cc")

	usdc = TokenDescriptor{Address: usdcAddr, Symbol: "USDC", Decimals: 6}
)

type mockChain struct {
	gasPrice  *big.Int
	allowance *big.Int
}

func (m *mockChain) Address() common.Address { return sender }

func (m *mockChain) GasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(m.gasPrice), nil
}

func (m *mockChain) EstimateGas(ctx context.Context, call SimulatedCall) (uint64, error) {
	return 0, errors.New("orchestrator must estimate through the FeeEstimator")
}

func (m *mockChain) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (m *mockChain) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if m.allowance == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(m.allowance), nil
}

type mockAuctions struct {
	bidToken  common.Address
	tokens    map[common.Address]TokenDescriptor
	increment *big.Int
	funds     *big.Int
	config    contracts.AuctionConfig
}

func (m *mockAuctions) Token(ctx context.Context, addr common.Address) (TokenDescriptor, error) {
	token, ok := m.tokens[addr]
	if !ok {
		return TokenDescriptor{}, errors.New("unknown token")
	}
	return token, nil
}

func (m *mockAuctions) BidToken(ctx context.Context, auction common.Address) (common.Address, error) {
	return m.bidToken, nil
}

func (m *mockAuctions) MinimalIncrement(ctx context.Context, auction common.Address) (*big.Int, error) {
	return new(big.Int).Set(m.increment), nil
}

func (m *mockAuctions) FundsByBidder(ctx context.Context, auction, bidder common.Address) (*big.Int, error) {
	return new(big.Int).Set(m.funds), nil
}

func (m *mockAuctions) Config(ctx context.Context, auction common.Address) (contracts.AuctionConfig, error) {
	return m.config, nil
}

func (m *mockAuctions) Status(ctx context.Context, auction common.Address) (contracts.AuctionStatus, error) {
	return contracts.StatusOnGoing, nil
}

func (m *mockAuctions) HighestBindingBid(ctx context.Context, auction common.Address) (*big.Int, error) {
	return big.NewInt(1_500_000), nil
}

func (m *mockAuctions) HighestBidder(ctx context.Context, auction common.Address) (common.Address, error) {
	return sender, nil
}

func (m *mockAuctions) Auctions(ctx context.Context) ([]common.Address, error) {
	return []common.Address{auctionAddr}, nil
}

func (m *mockAuctions) ItemsContract(ctx context.Context) (common.Address, error) {
	return common.HexToAddress("0x17e3"), nil
}

func (m *mockAuctions) TokenURI(ctx context.Context, items common.Address, tokenID *big.Int) (string, error) {
	return "ipfs://bafy-item", nil
}

func (m *mockAuctions) ItemBalance(ctx context.Context, items, owner common.Address) (*big.Int, error) {
	return big.NewInt(2), nil
}

type mockEstimator struct {
	fees  map[common.Address]FeeQuote
	err   error
	calls []SimulatedCall
}

func (m *mockEstimator) Estimate(ctx context.Context, call SimulatedCall, token TokenDescriptor) (FeeQuote, error) {
	m.calls = append(m.calls, call)
	if m.err != nil {
		return FeeQuote{}, m.err
	}
	quote, ok := m.fees[call.To]
	if !ok {
		return FeeQuote{}, errors.New("no fee configured for target")
	}
	return quote, nil
}

type builtAuth struct {
	token     common.Address
	allowance *big.Int
}

type mockSponsor struct {
	built []builtAuth
}

func (m *mockSponsor) Build(token common.Address, minimalAllowance *big.Int) (RealAuthorization, error) {
	m.built = append(m.built, builtAuth{token: token, allowance: new(big.Int).Set(minimalAllowance)})
	return RealAuthorization{Input: minimalAllowance.Bytes()}, nil
}

func (m *mockSponsor) BuildSimulation(token common.Address) (SimulationAuthorization, error) {
	return SimulationAuthorization{Input: []byte("sim")}, nil
}

type mockBatch struct {
	outcome   BatchOutcome
	err       error
	submitted [][]PreparedTransaction
}

func (m *mockBatch) Submit(ctx context.Context, txs []PreparedTransaction) (BatchOutcome, error) {
	m.submitted = append(m.submitted, txs)
	if m.err != nil {
		return BatchOutcome{}, m.err
	}
	if len(m.outcome.Results) == 0 {
		results := make([]TxOutcome, len(txs))
		for i := range results {
			results[i].Index = i
		}
		return BatchOutcome{BatchID: "batch-1", Results: results}, nil
	}
	return m.outcome, nil
}

type mockPoller struct {
	resolved []ArtifactHandle
	err      error
}

func (m *mockPoller) Resolve(ctx context.Context, handle ArtifactHandle) (ResolvedReference, error) {
	m.resolved = append(m.resolved, handle)
	if m.err != nil {
		return ResolvedReference{}, m.err
	}
	return ResolvedReference{Handle: handle}, nil
}

type mockStore struct {
	putHandle ArtifactHandle
	files     []ArtifactFile
}

func (m *mockStore) Put(ctx context.Context, files []ArtifactFile) (ArtifactHandle, error) {
	m.files = files
	return m.putHandle, nil
}

func (m *mockStore) Status(ctx context.Context, handle ArtifactHandle) (bool, error) {
	return true, nil
}

func (m *mockStore) Get(ctx context.Context, handle ArtifactHandle) ([]ArtifactFile, error) {
	return m.files, nil
}

type mockValidator struct {
	err error
}

func (m *mockValidator) Validate(doc []byte) error { return m.err }

type fixture struct {
	chain     *mockChain
	auctions  *mockAuctions
	estimator *mockEstimator
	sponsor   *mockSponsor
	batch     *mockBatch
	poller    *mockPoller
	store     *mockStore
}

func newFixture() *fixture {
	return &fixture{
		chain: &mockChain{gasPrice: big.NewInt(250)},
		auctions: &mockAuctions{
			bidToken:  usdcAddr,
			tokens:    map[common.Address]TokenDescriptor{usdcAddr: usdc},
			increment: big.NewInt(1_000_000),
			funds:     big.NewInt(250_000),
			config: contracts.AuctionConfig{
				Owner:         sender,
				BuyItNowPrice: big.NewInt(9_000_000),
				StartingPrice: big.NewInt(1_000_000),
				ItemTokenID:   big.NewInt(7),
			},
		},
		estimator: &mockEstimator{fees: map[common.Address]FeeQuote{
			usdcAddr:    {TokenFee: big.NewInt(9), GasLimit: 60_000},
			auctionAddr: {TokenFee: big.NewInt(15), GasLimit: 150_000},
			factoryAddr: {TokenFee: big.NewInt(40), GasLimit: 900_000},
		}},
		sponsor: &mockSponsor{},
		batch:   &mockBatch{},
		poller:  &mockPoller{},
		store:   &mockStore{putHandle: "bafy-new"},
	}
}

func (f *fixture) orchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		Chain:          f.chain,
		Auctions:       f.auctions,
		Estimator:      f.estimator,
		Sponsor:        f.sponsor,
		Batch:          f.batch,
		Poller:         f.poller,
		Store:          f.store,
		Metadata:       &mockValidator{},
		AuctionFactory: factoryAddr,
		PaymentTokens:  map[string]common.Address{"USDC": usdcAddr},
		Feeds: PriceFeedSet{
			NativeUSD: common.HexToAddress("0x01"),
			TokenUSD:  map[string]common.Address{"USDC": common.HexToAddress("0x02")},
		},
	}, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return o
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}

func TestPlaceBidBuildsApprovalFirstBatch(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t)

	ok, outcome, err := o.PlaceBid(context.Background(), auctionAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !outcome.Valid() {
		t.Fatal("expected successful flow")
	}

	if len(f.batch.submitted) != 1 {
		t.Fatalf("expected one batch, got %d", len(f.batch.submitted))
	}
	txs := f.batch.submitted[0]
	if len(txs) != 2 {
		t.Fatalf("expected approve+action pair, got %d transactions", len(txs))
	}

	// The approval must be index 0 and target the token contract.
	if txs[0].To != usdcAddr {
		t.Fatalf("approval must be first; index 0 targets %s", txs[0].To)
	}
	if txs[1].To != auctionAddr {
		t.Fatalf("action must be second; index 1 targets %s", txs[1].To)
	}

	wantApprove, err := contracts.PackApprove(auctionAddr, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(txs[0].Data, wantApprove) {
		t.Fatal("approval calldata does not approve the auction for the increment")
	}

	// Raw approval gas, multiplied action gas.
	if txs[0].GasLimit != 60_000 {
		t.Fatalf("approval gas limit must stay raw, got %d", txs[0].GasLimit)
	}
	if txs[1].GasLimit != 150_000*100 {
		t.Fatalf("action gas limit must carry the x100 margin, got %d", txs[1].GasLimit)
	}

	// One authorization per transaction: approval at its own fee, action
	// inflated x20.
	if len(f.sponsor.built) != 2 {
		t.Fatalf("expected 2 real authorizations, got %d", len(f.sponsor.built))
	}
	if f.sponsor.built[0].allowance.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("approval allowance should equal its fee, got %s", f.sponsor.built[0].allowance)
	}
	if f.sponsor.built[1].allowance.Cmp(big.NewInt(15*20)) != 0 {
		t.Fatalf("action allowance should be fee x20, got %s", f.sponsor.built[1].allowance)
	}
}

func TestPlaceBidTuningOverride(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t, WithTuning(ActionPlaceBid, ActionTuning{
		ApprovalAllowanceInflation: 2,
		ActionAllowanceInflation:   50,
		ActionGasMultiplier:        3,
	}))

	if _, _, err := o.PlaceBid(context.Background(), auctionAddr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.sponsor.built[0].allowance.Cmp(big.NewInt(18)) != 0 {
		t.Fatalf("expected approval allowance 18, got %s", f.sponsor.built[0].allowance)
	}
	if f.sponsor.built[1].allowance.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("expected action allowance 750, got %s", f.sponsor.built[1].allowance)
	}
	if f.batch.submitted[0][1].GasLimit != 450_000 {
		t.Fatalf("expected action gas 450000, got %d", f.batch.submitted[0][1].GasLimit)
	}
}

func TestPlaceBidPartialFailure(t *testing.T) {
	f := newFixture()
	f.batch.outcome = BatchOutcome{BatchID: "batch-2", Results: []TxOutcome{
		{Index: 0},
		{Index: 1, IsError: true, Error: "execution reverted: bid too low"},
	}}
	// The approval was mined before the action reverted: its allowance is
	// real residual state the caller can observe.
	f.chain.allowance = big.NewInt(1_000_000)
	o := f.orchestrator(t)

	ok, outcome, err := o.PlaceBid(context.Background(), auctionAddr)
	if ok {
		t.Fatal("partially failed batch must fail the whole operation")
	}
	if !IsCode(err, ErrCodeBatchPartialFailure) {
		t.Fatalf("expected batch_partial_failure, got %v", err)
	}
	if outcome.Valid() || len(outcome.Failed()) != 1 || outcome.Failed()[0].Index != 1 {
		t.Fatalf("expected failure at index 1, got %+v", outcome)
	}

	allowance, aerr := f.chain.TokenAllowance(context.Background(), usdcAddr, sender, auctionAddr)
	if aerr != nil {
		t.Fatalf("unexpected error: %v", aerr)
	}
	if allowance.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatal("the mined approval's allowance must remain observable")
	}
}

func TestBuyItNowIncrement(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t)

	if _, _, err := o.BuyItNow(context.Background(), auctionAddr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// increment = buyItNowPrice - existing bid
	want, err := contracts.PackApprove(auctionAddr, big.NewInt(9_000_000-250_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(f.batch.submitted[0][0].Data, want) {
		t.Fatal("buy-it-now approval must cover the price minus the existing bid")
	}
	// Action authorization carries the x100 margin.
	if f.sponsor.built[1].allowance.Cmp(big.NewInt(15*100)) != 0 {
		t.Fatalf("expected action allowance 1500, got %s", f.sponsor.built[1].allowance)
	}
}

func TestBuyItNowZeroIncrementStillAttempted(t *testing.T) {
	f := newFixture()
	f.auctions.funds = big.NewInt(9_000_000) // already fully funded
	o := f.orchestrator(t)

	if _, _, err := o.BuyItNow(context.Background(), auctionAddr); err != nil {
		t.Fatalf("zero-owed action must still be attempted: %v", err)
	}
	if len(f.batch.submitted) != 1 {
		t.Fatal("expected the batch to be submitted")
	}
}

func TestWithdrawSingleTransaction(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t)

	ok, outcome, err := o.Withdraw(context.Background(), auctionAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !outcome.Valid() {
		t.Fatal("expected successful withdraw")
	}

	txs := f.batch.submitted[0]
	if len(txs) != 1 {
		t.Fatalf("withdraw is a one-element batch, got %d", len(txs))
	}
	want, err := contracts.PackWithdrawAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(txs[0].Data, want) {
		t.Fatal("unexpected withdraw calldata")
	}
	if txs[0].GasLimit != 150_000*2 {
		t.Fatalf("withdraw gas must carry the x2 margin, got %d", txs[0].GasLimit)
	}
	if f.sponsor.built[0].allowance.Cmp(big.NewInt(15*20)) != 0 {
		t.Fatalf("withdraw allowance should be fee x20, got %s", f.sponsor.built[0].allowance)
	}
}

func TestCreateAuctionResolvesMetadataFirst(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t)

	item := ItemData{
		MetadataHandle: "bafy-item",
		StartPrice:     big.NewInt(1_000_000),
		BuyItNowPrice:  big.NewInt(9_000_000),
		Duration:       72 * time.Hour,
	}
	ok, _, err := o.CreateAuction(context.Background(), item, "USDC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected successful create")
	}

	if len(f.poller.resolved) != 1 || f.poller.resolved[0] != "bafy-item" {
		t.Fatal("metadata must be resolved before the batch is built")
	}

	txs := f.batch.submitted[0]
	wantApprove, err := contracts.PackApprove(factoryAddr, big.NewInt(500_000)) // 0.5 USDC
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(txs[0].Data, wantApprove) {
		t.Fatal("listing fee approval must target the factory for 0.5 tokens")
	}
	wantCreate, err := contracts.PackCreateAuction(usdcAddr, sender, "ipfs://bafy-item",
		big.NewInt(1_000_000), big.NewInt(9_000_000), big.NewInt(int64((72*time.Hour).Seconds())))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(txs[1].Data, wantCreate) {
		t.Fatal("unexpected createAuction calldata")
	}
}

func TestCreateAuctionUnresolvedMetadata(t *testing.T) {
	f := newFixture()
	f.poller.err = NewFlowError(ErrCodeArtifactUnresolved, "artifact did not become retrievable", nil)
	o := f.orchestrator(t)

	ok, _, err := o.CreateAuction(context.Background(), ItemData{MetadataHandle: "bafy-gone"}, "USDC")
	if ok {
		t.Fatal("unresolved metadata must fail the flow")
	}
	if !IsCode(err, ErrCodeArtifactUnresolved) {
		t.Fatalf("expected artifact_unresolved, got %v", err)
	}
	if len(f.batch.submitted) != 0 {
		t.Fatal("no batch may be submitted without resolved metadata")
	}
}

func TestCreateAuctionUnknownToken(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t)

	_, _, err := o.CreateAuction(context.Background(), ItemData{MetadataHandle: "bafy-item"}, "DOGE")
	if !IsCode(err, ErrCodePriceUnavailable) {
		t.Fatalf("expected price_unavailable for unsupported token, got %v", err)
	}
}

func TestUploadItemMetadata(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t)

	handle, err := o.UploadItemMetadata(context.Background(), []byte(`{"product_name":"amp"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle != "bafy-new" {
		t.Fatalf("unexpected handle %q", handle)
	}
	if len(f.store.files) != 1 || f.store.files[0].Name != MetadataFileName {
		t.Fatalf("expected one %s upload, got %+v", MetadataFileName, f.store.files)
	}

	got, err := o.FetchItemMetadata(context.Background(), handle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != `{"product_name":"amp"}` {
		t.Fatalf("unexpected document %s", got)
	}
}

func TestViews(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t)
	ctx := context.Background()

	addrs, err := o.AuctionAddresses(ctx)
	if err != nil || len(addrs) != 1 {
		t.Fatalf("unexpected auctions %v/%v", addrs, err)
	}
	bid, err := o.HighestBindingBid(ctx, auctionAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bid != "1.5" {
		t.Fatalf("expected formatted bid 1.5, got %q", bid)
	}
	handle, err := o.ItemHandle(ctx, big.NewInt(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle != "bafy-item" {
		t.Fatalf("expected stripped handle, got %q", handle)
	}
}
