package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/smsrelay/internal/types"
)

func TestQueueSerializesPerKey(t *testing.T) {
	queue := NewQueue(8)
	queue.Start(context.Background())
	defer queue.Stop()

	var mu sync.Mutex
	var order []int
	var inFlight, maxInFlight int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		if err := queue.Enqueue("key-a", func(context.Context) {
			defer wg.Done()
			current := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxInFlight)
				if current <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, current) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			atomic.AddInt32(&inFlight, -1)
		}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	if m := atomic.LoadInt32(&maxInFlight); m > 1 {
		t.Errorf("same-key jobs overlapped: max in flight %d", m)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("arrival order violated: %v", order)
		}
	}
}

func TestQueueConcurrentAcrossKeys(t *testing.T) {
	queue := NewQueue(4)
	queue.Start(context.Background())
	defer queue.Stop()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		key := types.ConversationKey(fmt.Sprintf("key-%d", i))
		wg.Add(1)
		if err := queue.Enqueue(key, func(context.Context) {
			defer wg.Done()
			current := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxInFlight)
				if current <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, current) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	if m := atomic.LoadInt32(&maxInFlight); m < 2 {
		t.Errorf("expected cross-key concurrency, max in flight %d", m)
	}
}

func TestQueueSemaphoreCap(t *testing.T) {
	queue := NewQueue(2)
	queue.Start(context.Background())
	defer queue.Stop()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		key := types.ConversationKey(fmt.Sprintf("key-%d", i))
		wg.Add(1)
		if err := queue.Enqueue(key, func(context.Context) {
			defer wg.Done()
			current := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxInFlight)
				if current <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, current) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	if m := atomic.LoadInt32(&maxInFlight); m > 2 {
		t.Errorf("semaphore cap exceeded: %d", m)
	}
}

func TestQueueCleansUpDrainedLanes(t *testing.T) {
	queue := NewQueue(2)
	queue.Start(context.Background())
	defer queue.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		key := types.ConversationKey(fmt.Sprintf("key-%d", i))
		wg.Add(1)
		if err := queue.Enqueue(key, func(context.Context) {
			wg.Done()
		}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	// Lane teardown happens just after the last job; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for queue.ActiveLanes() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("lanes leaked: %d still registered", queue.ActiveLanes())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQueueRequiresStart(t *testing.T) {
	queue := NewQueue(1)
	if err := queue.Enqueue("k", func(context.Context) {}); err == nil {
		t.Error("expected error before Start")
	}
}
