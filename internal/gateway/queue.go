package gateway

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/smsrelay/internal/types"
)

const laneBuffer = 128

// Job is one unit of per-conversation work. It receives the queue's context
// and must do its own error handling; the queue never inspects outcomes.
type Job func(ctx context.Context)

// lane is the FIFO for one conversation key. pending counts jobs accepted
// but not yet finished, and is the cleanup signal: the lane's registry entry
// is removed and its goroutine exits when pending reaches zero.
type lane struct {
	jobs    chan Job
	pending int
}

// Queue serializes work per conversation key. Jobs with the same key run in
// strict arrival order and never overlap; distinct keys proceed concurrently
// up to a global semaphore cap. Lanes are created on first use and torn down
// once drained, so the registry stays bounded by the number of keys with
// in-flight work.
type Queue struct {
	lanes map[types.ConversationKey]*lane
	sem   *semaphore.Weighted

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a Queue allowing up to maxConcurrent jobs to execute
// simultaneously across all lanes.
func NewQueue(maxConcurrent int64) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Queue{
		lanes: make(map[types.ConversationKey]*lane),
		sem:   semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context and waits for lane goroutines to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
}

// Enqueue appends a job to the key's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the queue is not running or
// the lane's buffer is full.
func (q *Queue) Enqueue(key types.ConversationKey, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx == nil {
		return fmt.Errorf("queue not started")
	}
	if q.ctx.Err() != nil {
		return fmt.Errorf("queue stopped")
	}

	ln, exists := q.lanes[key]
	if !exists {
		ln = &lane{jobs: make(chan Job, laneBuffer)}
		q.lanes[key] = ln
		q.wg.Add(1)
		go q.drain(key, ln)
	}

	select {
	case ln.jobs <- job:
		ln.pending++
		return nil
	default:
		return fmt.Errorf("queue full for conversation key %s", key)
	}
}

// drain runs one lane's jobs sequentially. Each job acquires a global
// semaphore slot first; if the queue is shutting down the job still runs,
// with a canceled context, so callers waiting on its completion are never
// stranded.
func (q *Queue) drain(key types.ConversationKey, ln *lane) {
	defer q.wg.Done()
	for {
		select {
		case job := <-ln.jobs:
			if err := q.sem.Acquire(q.ctx, 1); err == nil {
				job(q.ctx)
				q.sem.Release(1)
			} else {
				job(q.ctx)
			}
			q.mu.Lock()
			ln.pending--
			if ln.pending == 0 {
				delete(q.lanes, key)
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
		case <-q.ctx.Done():
			q.drainRemaining(key, ln)
			return
		}
	}
}

// drainRemaining runs whatever is left in a lane after shutdown so that
// completion callbacks still fire (with a canceled context).
func (q *Queue) drainRemaining(key types.ConversationKey, ln *lane) {
	for {
		q.mu.Lock()
		if ln.pending == 0 {
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		job := <-ln.jobs
		job(q.ctx)

		q.mu.Lock()
		ln.pending--
		q.mu.Unlock()
	}
}

// ActiveLanes reports how many conversation keys currently have queued or
// running work. Used to verify the registry does not leak drained lanes.
func (q *Queue) ActiveLanes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}
