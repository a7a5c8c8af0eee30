package paint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type scriptedQuerier struct {
	mu      sync.Mutex
	replies []func() (TaskState, error)
	calls   int
}

func (q *scriptedQuerier) QueryStatus(ctx context.Context, taskID string) (TaskState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.calls
	q.calls++
	if i >= len(q.replies) {
		i = len(q.replies) - 1
	}
	return q.replies[i]()
}

func pendingReply() func() (TaskState, error) {
	return func() (TaskState, error) { return TaskState{Status: "PENDING"}, nil }
}

func finishedReply(imgID, imgURL string) func() (TaskState, error) {
	return func() (TaskState, error) {
		return TaskState{Status: remoteStatusFinished, ImgID: imgID, ImgURL: imgURL}, nil
	}
}

func failedReply() func() (TaskState, error) {
	return func() (TaskState, error) { return TaskState{}, &QueryError{Err: fmt.Errorf("boom")} }
}

type recordingDelivery struct {
	mu     sync.Mutex
	images []string
	texts  []string
	err    error
}

func (d *recordingDelivery) SendImage(ctx context.Context, conversationID, imgURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.images = append(d.images, imgURL)
	return d.err
}

func (d *recordingDelivery) SendText(ctx context.Context, conversationID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	return d.err
}

func (d *recordingDelivery) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.images), len(d.texts)
}

func newTestPoller(t *testing.T, q StatusQuerier, delivery Delivery) (*Poller, *Registry) {
	t.Helper()
	reg := NewRegistry()
	logger := slog.Default()
	dispatcher := NewDispatcher(delivery, "$", logger)
	return NewPoller(reg, q, dispatcher, logger, time.Millisecond), reg
}

func waitForTerminal(t *testing.T, reg *Registry, id string) Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if task, ok := reg.Get(id); ok && task.Terminal() {
			return task
		}
		time.Sleep(2 * time.Millisecond)
	}
	task, _ := reg.Get(id)
	t.Fatalf("task %s never reached a terminal state: %+v", id, task)
	return Task{}
}

func TestPollerFinishesAndDispatchesOnce(t *testing.T) {
	q := &scriptedQuerier{replies: []func() (TaskState, error){
		pendingReply(),
		pendingReply(),
		finishedReply("42", "https://img.example/42.png"),
	}}
	delivery := &recordingDelivery{}
	p, reg := newTestPoller(t, q, delivery)
	reg.Put(pendingTask("t1", "u1", time.Hour))

	p.Watch(context.Background(), "t1")
	task := waitForTerminal(t, reg, "t1")

	if task.Status != StatusFinished {
		t.Fatalf("status = %s, want finished", task.Status)
	}
	if task.ImgID != "42" {
		t.Fatalf("img id = %q, want 42", task.ImgID)
	}
	// Dispatch happens just after the status transition; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		images, texts := delivery.counts()
		if images == 1 && texts == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("delivery counts images=%d texts=%d, want 1 and 1", images, texts)
		}
		time.Sleep(2 * time.Millisecond)
	}
	delivery.mu.Lock()
	defer delivery.mu.Unlock()
	if delivery.images[0] != "https://img.example/42.png" {
		t.Fatalf("delivered url = %q", delivery.images[0])
	}
}

func TestPollerExpiresAfterBudget(t *testing.T) {
	q := &scriptedQuerier{replies: []func() (TaskState, error){pendingReply()}}
	delivery := &recordingDelivery{}
	p, reg := newTestPoller(t, q, delivery)
	reg.Put(pendingTask("t1", "u1", time.Hour))

	p.Watch(context.Background(), "t1")
	task := waitForTerminal(t, reg, "t1")

	if task.Status != StatusExpired {
		t.Fatalf("status = %s, want expired", task.Status)
	}
	if q.calls != pollBudget {
		t.Fatalf("queries = %d, want %d", q.calls, pollBudget)
	}
	if images, texts := delivery.counts(); images != 0 || texts != 0 {
		t.Fatalf("expired task must not dispatch (images=%d texts=%d)", images, texts)
	}
}

func TestPollerFailuresDrainBudgetFaster(t *testing.T) {
	q := &scriptedQuerier{replies: []func() (TaskState, error){failedReply()}}
	delivery := &recordingDelivery{}
	p, reg := newTestPoller(t, q, delivery)
	reg.Put(pendingTask("t1", "u1", time.Hour))

	p.Watch(context.Background(), "t1")
	task := waitForTerminal(t, reg, "t1")

	if task.Status != StatusExpired {
		t.Fatalf("status = %s, want expired", task.Status)
	}
	// 90 units at 20 per failure: the fifth failure overshoots to -10.
	if q.calls != 5 {
		t.Fatalf("queries = %d, want 5", q.calls)
	}
}

func TestPollerDispatchIdempotentUnderRace(t *testing.T) {
	delivery := &recordingDelivery{}
	reg := NewRegistry()
	dispatcher := NewDispatcher(delivery, "$", slog.Default())
	reg.Put(pendingTask("t1", "u1", time.Hour))

	// Simulate two loops observing Finished at once: only the CAS winner
	// dispatches.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if task, won := reg.Finish("t1", "42", "url"); won {
				dispatcher.Deliver(context.Background(), task)
			}
		}()
	}
	wg.Wait()
	if images, texts := delivery.counts(); images != 1 || texts != 1 {
		t.Fatalf("dispatched %d/%d times, want exactly once", images, texts)
	}
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	q := &scriptedQuerier{replies: []func() (TaskState, error){pendingReply()}}
	delivery := &recordingDelivery{}
	p, reg := newTestPoller(t, q, delivery)
	reg.Put(pendingTask("t1", "u1", time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Watch(ctx, "t1")

	time.Sleep(20 * time.Millisecond)
	task, _ := reg.Get("t1")
	if task.Status != StatusPending {
		t.Fatalf("cancelled poll must abandon the task as-is, got %s", task.Status)
	}
}
