// Package artifact handles the off-chain item metadata an auction references:
// schema validation, upload to content-addressed storage, and the bounded
// polling that bridges the store's eventual consistency.
//
// Upload acknowledgement does not guarantee immediate retrievability. An
// on-chain reference to an unresolvable artifact would be a silent,
// unrecoverable data-integrity defect, so no action may reference a handle
// before the poller has confirmed it resolvable.
package artifact

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/auctionfi/auctionpay"
)

// Default polling parameters, matching the store's typical propagation time.
const (
	DefaultMaxAttempts = 10
	DefaultInterval    = 20 * time.Second
)

// Poller retries artifact lookups with a fixed inter-attempt delay until the
// handle resolves or the attempt budget is spent. The loop is explicit and
// the timer injectable, so tests run without real delays and cancellation is
// honored between attempts.
type Poller struct {
	store       auctionpay.ArtifactStore
	maxAttempts int
	interval    time.Duration
	timer       backoff.Timer
	log         *zap.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithMaxAttempts overrides the attempt budget.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) { p.maxAttempts = n }
}

// WithInterval overrides the fixed inter-attempt delay.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithTimer injects the timer used between attempts.
func WithTimer(t backoff.Timer) PollerOption {
	return func(p *Poller) { p.timer = t }
}

// WithLogger sets the poller's logger.
func WithLogger(log *zap.Logger) PollerOption {
	return func(p *Poller) { p.log = log }
}

// NewPoller creates a poller over the given store.
func NewPoller(store auctionpay.ArtifactStore, opts ...PollerOption) *Poller {
	p := &Poller{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultInterval,
		timer:       &systemTimer{},
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve blocks until the handle becomes retrievable and returns the stored
// files. Each attempt waits the fixed interval, then performs one lookup; a
// failed lookup consumes one attempt. After maxAttempts failures the handle
// is reported artifact_unresolved — terminal for the flow that needed it,
// though the uploaded content itself is left in place.
func (p *Poller) Resolve(ctx context.Context, handle auctionpay.ArtifactHandle) (auctionpay.ResolvedReference, error) {
	delay := backoff.NewConstantBackOff(p.interval)
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		p.timer.Start(delay.NextBackOff())
		select {
		case <-ctx.Done():
			p.timer.Stop()
			return auctionpay.ResolvedReference{}, auctionpay.NewFlowError(
				auctionpay.ErrCodeArtifactUnresolved,
				"polling interrupted: "+ctx.Err().Error(),
				map[string]interface{}{
					"handle":   string(handle),
					"attempts": attempt - 1,
				})
		case <-p.timer.C():
		}

		files, err := p.store.Get(ctx, handle)
		if err == nil {
			p.log.Debug("artifact resolved",
				zap.String("handle", string(handle)),
				zap.Int("attempt", attempt),
			)
			return auctionpay.ResolvedReference{Handle: handle, Files: files}, nil
		}
		lastErr = err
		p.log.Debug("artifact not yet retrievable",
			zap.String("handle", string(handle)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	details := map[string]interface{}{
		"handle":   string(handle),
		"attempts": p.maxAttempts,
	}
	if lastErr != nil {
		details["lastError"] = lastErr.Error()
	}
	return auctionpay.ResolvedReference{}, auctionpay.NewFlowError(
		auctionpay.ErrCodeArtifactUnresolved,
		"artifact did not become retrievable",
		details)
}

// systemTimer is the real-clock backoff.Timer used outside tests.
type systemTimer struct {
	timer *time.Timer
}

func (t *systemTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *systemTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *systemTimer) C() <-chan time.Time {
	return t.timer.C
}
