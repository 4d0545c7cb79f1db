package port

import "context"

// Task is a unit of queued work. Handle is invoked once per attempt; Failed
// is invoked exactly once, after the last attempt, with the final error.
type Task interface {
	Name() string
	Handle(ctx context.Context) error
	Failed(err error)
}

type Queue interface {
	// Enqueue schedules a task for asynchronous execution by the worker
	// pool. It fails only when the queue is shut down or full.
	Enqueue(ctx context.Context, task Task) error
}
