package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/trapd-io/trapd-agent/internal/collector"
	"github.com/trapd-io/trapd-agent/internal/queue"
)

type fakeRunner struct {
	calls int
	err   error
}

func (f *fakeRunner) RunOnce(ctx context.Context) error {
	f.calls++
	return f.err
}

func openTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestRunOnceEnqueuesHeartbeatAndInvokesSender(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)
	runner := &fakeRunner{}
	c := collector.New(time.Now())

	s := New(q, runner, c, nil)
	s.SensorID = "deadbeef"
	s.ProjectID = "proj-1"
	s.Version = "1.2.3"
	s.LastRestart = time.Now()

	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("expected sender invoked once, got %d", runner.calls)
	}

	total, err := q.TotalCount(ctx)
	if err != nil {
		t.Fatalf("TotalCount: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 enqueued item, got %d", total)
	}
}

func TestBuildEnvelopeShapeIsValidJSON(t *testing.T) {
	s := &Scheduler{SensorID: "abc123", ProjectID: "proj", Version: "1.0.0", LastRestart: time.Now()}
	snap := collector.Snapshot{
		Host:     collector.Host{Hostname: "box1", Arch: "x86_64", OS: "linux"},
		Identity: collector.Identity{Joined: false},
	}

	env := s.buildEnvelope(snap)
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if decoded["kind"] != "heartbeat" {
		t.Fatalf("expected kind=heartbeat, got %v", decoded["kind"])
	}
	if decoded["sensor_id"] != "abc123" {
		t.Fatalf("expected sensor_id=abc123, got %v", decoded["sensor_id"])
	}
	if _, ok := decoded["hardware"]; ok {
		t.Fatalf("expected hardware omitted when nil, got %v", decoded["hardware"])
	}
}

func TestRunRecoversFromTickErrorAndContinues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := openTestQueue(t)
	runner := &fakeRunner{err: errors.New("send failed")}
	c := collector.New(time.Now())

	s := New(q, runner, c, nil)
	s.IntervalSeconds = 3600 // long enough that only the error path executes

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := s.Run(ctx)
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if runner.calls == 0 {
		t.Fatal("expected at least one tick before cancellation")
	}
}
