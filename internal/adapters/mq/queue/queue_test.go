package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/oarbit/internal/domain/model"
)

func job(id string) Job {
	return NewJob(model.ProcessJob{JobID: id, SessionID: "session-" + id})
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.Enqueue(ctx, job("1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.JobID != "1" || got.SessionID != "session-1" {
		t.Errorf("unexpected job %+v", got.ProcessJob)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if q.Capacity() != 2 {
		t.Fatalf("expected capacity 2, got %d", q.Capacity())
	}
	for _, id := range []string{"1", "2"} {
		if err := q.Enqueue(ctx, job(id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	if err := q.Enqueue(ctx, job("3")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if err := q.Enqueue(ctx, job("1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if err := q.Enqueue(ctx, job("2")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// queued jobs drain before the channel closes
	ch := q.Dequeue(ctx)
	if j, ok := <-ch; !ok || j.JobID != "1" {
		t.Errorf("expected queued job to drain, got %+v ok=%v", j.ProcessJob, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after drain")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, job("1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestJob_ReplyDelivery(t *testing.T) {
	j := job("1")
	go j.Done(model.ProcessResult{SessionID: "session-1"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := j.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if res.SessionID != "session-1" {
		t.Errorf("unexpected result %+v", res)
	}

	// further results are dropped rather than blocking the worker
	j.Done(model.ProcessResult{}, errors.New("late"))
	j.Done(model.ProcessResult{}, errors.New("later"))
}

func TestJob_WaitHonoursContext(t *testing.T) {
	j := job("1")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := j.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
