package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/salestock/internal/port"
)

var ErrQueueClosed = errors.New("queue closed")

var _ port.Queue = (*InMem)(nil)

// DefaultBackoff is the delay before attempts 2, 3, ...
var DefaultBackoff = []time.Duration{5 * time.Second, 15 * time.Second, 60 * time.Second}

const (
	defaultMaxAttempts = 3
	defaultWorkers     = 10
	defaultBufferSize  = 1024
)

// RetryableFunc decides whether a failed attempt is worth repeating.
// Business-rule failures (insufficient stock, invalid sale data) are
// excluded at wiring time; repeating them cannot change the outcome.
type RetryableFunc func(err error) bool

type Config struct {
	Workers     int
	BufferSize  int
	MaxAttempts int
	Backoff     []time.Duration
	Retryable   RetryableFunc
}

type envelope struct {
	task    port.Task
	attempt int
}

// InMem is a channel-fed worker pool with per-task attempt tracking. Retries
// are re-enqueued after the configured backoff; the task's Failed hook runs
// exactly once, after the final attempt.
type InMem struct {
	cfg    Config
	jobs   chan envelope
	logger *zap.Logger

	wg      sync.WaitGroup // workers
	pending sync.WaitGroup // enqueued but unfinished tasks, incl. parked retries

	mu     sync.Mutex
	closed bool
}

func NewInMem(cfg Config, logger *zap.Logger) *InMem {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Retryable == nil {
		cfg.Retryable = func(error) bool { return true }
	}

	q := &InMem{
		cfg:    cfg,
		jobs:   make(chan envelope, cfg.BufferSize),
		logger: logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

func (q *InMem) Enqueue(ctx context.Context, task port.Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending.Add(1)
	q.mu.Unlock()

	select {
	case q.jobs <- envelope{task: task, attempt: 1}:
		return nil
	case <-ctx.Done():
		q.pending.Done()
		return ctx.Err()
	}
}

// Close stops accepting work, waits for in-flight tasks (including parked
// retries) to finish, then shuts the workers down.
func (q *InMem) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.pending.Wait()
	close(q.jobs)
	q.wg.Wait()
}

func (q *InMem) worker(id int) {
	defer q.wg.Done()

	for env := range q.jobs {
		q.runAttempt(id, env)
	}
}

func (q *InMem) runAttempt(workerID int, env envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := env.task.Handle(ctx)
	cancel()

	if err == nil {
		q.pending.Done()
		return
	}

	log := q.logger.With(
		zap.String("task", env.task.Name()),
		zap.Int("worker", workerID),
		zap.Int("attempt", env.attempt),
		zap.Error(err),
	)

	if env.attempt >= q.cfg.MaxAttempts || !q.cfg.Retryable(err) {
		log.Error("task failed terminally")
		q.fail(env.task, err)
		q.pending.Done()
		return
	}

	delay := q.cfg.Backoff[min(env.attempt-1, len(q.cfg.Backoff)-1)]
	log.Warn("task failed, retrying", zap.Duration("backoff", delay))

	// Park the retry off-worker so the pool keeps draining the queue.
	next := envelope{task: env.task, attempt: env.attempt + 1}
	time.AfterFunc(delay, func() {
		q.jobs <- next
	})
}

func (q *InMem) fail(task port.Task, err error) {
	// The failure hook records state for operators; it must never take the
	// worker down.
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task Failed hook panicked",
				zap.String("task", task.Name()), zap.Any("panic", r))
		}
	}()
	task.Failed(err)
}
