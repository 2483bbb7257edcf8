// Package sender executes the queue's drain cycle: lease a batch, ship it,
// and track the consecutive-failure counter that drives backoff.
package sender

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/trapd-io/trapd-agent/internal/queue"
)

const (
	defaultBatchSize  = 100
	defaultLeaseFor   = 5 * time.Minute
	defaultMaxRetries = 10
)

// Transport ships a batch of queue items and classifies the outcome.
type Transport interface {
	SendBatch(ctx context.Context, items []queue.Item) error
}

// Sender owns the consecutive-failure counter and drives one drain cycle
// per RunOnce call.
type Sender struct {
	queue     *queue.Queue
	transport Transport
	log       *zap.Logger
	backoff   Backoff

	BatchSize  int
	LeaseFor   time.Duration
	MaxRetries int
}

// New constructs a Sender with the default batch size (100) and lease
// duration (5 minutes).
func New(q *queue.Queue, t Transport, log *zap.Logger) *Sender {
	return &Sender{
		queue:      q,
		transport:  t,
		log:        log,
		BatchSize:  defaultBatchSize,
		LeaseFor:   defaultLeaseFor,
		MaxRetries: defaultMaxRetries,
	}
}

// RunOnce leases a batch, ships it, and acknowledges or backs off.
//
// An empty lease is a no-op: no success and no failure is recorded. On
// success the leased ids are marked Sent and the failure counter resets. On
// failure the failure counter is incremented and RunOnce sleeps the
// computed backoff delay honouring ctx cancellation; leased items are left
// Leased and are reclaimed to Pending by a future LeaseBatch once their
// lease expires — the sender never explicitly releases on failure, so
// crash behaviour and failure behaviour collapse to a single reclamation
// path.
func (s *Sender) RunOnce(ctx context.Context) error {
	items, err := s.queue.LeaseBatch(ctx, s.BatchSize, s.LeaseFor)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	// Items that have exceeded the retry ceiling are given up on: the
	// policy layer above the queue (this package), not the queue itself,
	// decides when a repeatedly-failing item becomes Dead.
	items, err = s.retireExhausted(ctx, items)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}

	if err := s.transport.SendBatch(ctx, items); err != nil {
		// Cancellation mid-request is not a send failure: the caller is
		// shutting down, not the remote rejecting us. Don't charge the
		// failure counter or sleep a backoff that will never elapse.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		s.logf("batch send failed", err, len(items))
		delay := s.backoff.Next()
		return sleepCancellable(ctx, delay)
	}

	if err := s.queue.MarkSent(ctx, ids); err != nil {
		return err
	}
	s.backoff.Reset()
	return nil
}

// retireExhausted marks items past MaxRetries as Dead and returns the
// remaining items still worth attempting.
func (s *Sender) retireExhausted(ctx context.Context, items []queue.Item) ([]queue.Item, error) {
	if s.MaxRetries <= 0 {
		return items, nil
	}

	var dead []int64
	kept := items[:0:0]
	for _, it := range items {
		if it.RetryCount > s.MaxRetries {
			dead = append(dead, it.ID)
		} else {
			kept = append(kept, it)
		}
	}

	if len(dead) == 0 {
		return items, nil
	}

	if err := s.queue.MarkDead(ctx, dead); err != nil {
		return nil, err
	}
	s.logf("retired items past max retry count", nil, len(dead))
	return kept, nil
}

func (s *Sender) logf(msg string, err error, n int) {
	if s.log == nil {
		return
	}
	s.log.Warn(msg, zap.Error(err), zap.Int("items", n), zap.Int("consecutive_failures", s.backoff.Failures()+1))
}

func sleepCancellable(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
