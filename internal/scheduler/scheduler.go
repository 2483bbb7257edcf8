// Package scheduler drives the agent at a configured cadence: gather
// inventory, enqueue a heartbeat, invoke the sender, then sleep a
// jittered interval honouring cancellation.
package scheduler

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/trapd-io/trapd-agent/internal/collector"
	"github.com/trapd-io/trapd-agent/internal/queue"
)

const (
	cadenceJitterFraction = 0.10
	errorBackoffDelay     = 5 * time.Second

	// defaultMaxQueueRows bounds queue.db's growth if the remote intake is
	// unreachable for an extended period. Not specified numerically by
	// the durable queue's contract; chosen generously relative to the
	// default batch size (100) and tick cadence (60s) so a healthy agent
	// never approaches it.
	defaultMaxQueueRows = 50_000
)

// Runner executes one drain cycle; satisfied by *sender.Sender.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// Scheduler owns the steady-state loop.
type Scheduler struct {
	queue     *queue.Queue
	sender    Runner
	collector *collector.Collector
	log       *zap.Logger

	SensorID        string
	ProjectID       string
	Version         string
	IntervalSeconds int
	LastRestart     time.Time
	MaxQueueRows    int64
}

// New constructs a Scheduler.
func New(q *queue.Queue, sender Runner, c *collector.Collector, log *zap.Logger) *Scheduler {
	return &Scheduler{queue: q, sender: sender, collector: c, log: log, MaxQueueRows: defaultMaxQueueRows}
}

// RunOnce performs exactly one collect/enqueue/send cycle, for the
// agent's --once invocation mode.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.tick(ctx)
}

// Run drives the steady-state loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logWarn("tick failed", err)
			if sleepErr := sleepCancellable(ctx, errorBackoffDelay); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		delay := jitteredInterval(time.Duration(s.IntervalSeconds)*time.Second, cadenceJitterFraction)
		if sleepErr := sleepCancellable(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	snapshot := s.collector.Collect()
	envelope := s.buildEnvelope(snapshot)

	if _, err := s.queue.Enqueue(ctx, "heartbeat", envelope); err != nil {
		return err
	}

	if err := s.sender.RunOnce(ctx); err != nil {
		return err
	}

	s.runMaintenance(ctx)
	return nil
}

// runMaintenance purges terminal rows and enforces the bounded-growth
// safety valve. A maintenance failure is logged and does not fail the
// tick — the heartbeat has already been enqueued and sent, and a failed
// trim this tick will simply be retried next tick.
func (s *Scheduler) runMaintenance(ctx context.Context) {
	sent, err := s.queue.DeleteSent(ctx)
	if err != nil {
		s.logWarn("delete sent rows failed", err)
	}
	dead, err := s.queue.DeleteDead(ctx)
	if err != nil {
		s.logWarn("delete dead rows failed", err)
	}
	var trimmed int64
	if s.MaxQueueRows > 0 {
		trimmed, err = s.queue.TrimOldestByCount(ctx, s.MaxQueueRows)
		if err != nil {
			s.logWarn("trim oldest rows failed", err)
		}
	}

	if s.log != nil && (sent+dead+trimmed) > 0 {
		s.log.Debug("queue maintenance swept rows",
			zap.String("sent_removed", humanize.Comma(sent)),
			zap.String("dead_removed", humanize.Comma(dead)),
			zap.String("trimmed", humanize.Comma(trimmed)),
		)
	}
}

func (s *Scheduler) logWarn(msg string, err error) {
	if s.log != nil {
		s.log.Warn(msg, zap.Error(err))
	}
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
