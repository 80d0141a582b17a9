package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 5; i++ {
		if err := q.Push(Item{Text: fmt.Sprint(i)}); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}
	if q.Len() != 5 {
		t.Fatalf("expected 5 items, got %d", q.Len())
	}

	for i := 0; i < 5; i++ {
		item, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if item.Text != fmt.Sprint(i) {
			t.Fatalf("expected item %d, got %q", i, item.Text)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueueMultipleProducersKeepPerSourceOrder(t *testing.T) {
	q := NewQueue()
	const perProducer = 200

	var wg sync.WaitGroup
	for _, source := range []string{"mic", "system", "deepgram"} {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Push(Item{Source: source, Text: fmt.Sprint(i)})
			}
		}(source)
	}
	wg.Wait()
	q.Close()

	next := map[string]int{}
	total := 0
	for {
		item, err := q.Pop(context.Background())
		if errors.Is(err, ErrQueueClosed) {
			break
		}
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if item.Text != fmt.Sprint(next[item.Source]) {
			t.Fatalf("source %s out of order: expected %d, got %s", item.Source, next[item.Source], item.Text)
		}
		next[item.Source]++
		total++
	}
	if total != 3*perProducer {
		t.Fatalf("expected %d items, got %d", 3*perProducer, total)
	}
}

func TestQueuePopWaitsForPush(t *testing.T) {
	q := NewQueue()
	got := make(chan Item, 1)
	go func() {
		item, err := q.Pop(context.Background())
		if err == nil {
			got <- item
		}
	}()

	time.Sleep(10 * time.Millisecond)
	_ = q.Push(Item{Text: "late"})

	select {
	case item := <-got:
		if item.Text != "late" {
			t.Fatalf("expected late item, got %q", item.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestQueuePopHonoursContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestQueueCloseDrainsThenReportsClosed(t *testing.T) {
	q := NewQueue()
	_ = q.Push(Item{Text: "kept"})
	q.Close()
	q.Close()

	if err := q.Push(Item{Text: "rejected"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed on push, got %v", err)
	}

	item, err := q.Pop(context.Background())
	if err != nil || item.Text != "kept" {
		t.Fatalf("expected queued item after close, got %q, %v", item.Text, err)
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}
