package taskqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petrijr/taskgraph/pkg/api"
)

func TestInMemoryQueue_EnqueueDequeueOrder(t *testing.T) {
	q := NewInMemoryQueue(8)
	ctx := context.Background()

	for i, id := range []string{"1", "2", "3"} {
		j := Job{ID: id, Type: JobTypePath, Entity: api.EntityID(i + 1)}
		if err := q.Enqueue(ctx, j); err != nil {
			t.Fatalf("Enqueue %s failed: %v", id, err)
		}
	}

	if q.Len() != 3 {
		t.Fatalf("expected Len 3, got %d", q.Len())
	}

	var got []string
	for i := 0; i < 3; i++ {
		j, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue %d failed: %v", i, err)
		}
		got = append(got, j.ID)
	}

	if got[0] != "1" || got[1] != "2" || got[2] != "3" {
		t.Fatalf("unexpected dequeue order: %v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("expected Len 0 after dequeues, got %d", q.Len())
	}
}

func TestInMemoryQueue_DequeueHonorsContextCancellation(t *testing.T) {
	q := NewInMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestInMemoryQueue_TryEnqueueReportsFull(t *testing.T) {
	q := NewInMemoryQueue(1)

	if err := q.TryEnqueue(Job{ID: "a"}); err != nil {
		t.Fatalf("first TryEnqueue: %v", err)
	}
	if err := q.TryEnqueue(Job{ID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, Job{ID: "c"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected blocking Enqueue to time out, got %v", err)
	}
}

func TestNewInMemoryQueue_DefaultCapacity(t *testing.T) {
	if got := NewInMemoryQueue(0).Cap(); got != 1024 {
		t.Fatalf("expected default capacity 1024, got %d", got)
	}
}
