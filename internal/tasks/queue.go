package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of background work. Tasks may run more than once and must
// tolerate it.
type Task interface {
	Name() string
	// Key identifies the work; a task whose key is already pending is dropped.
	Key() string
	Run(ctx context.Context) error
}

type Config struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

// Queue runs tasks on a fixed pool of workers. Dispatch never blocks the
// caller; a full queue drops the task and logs it.
type Queue struct {
	cfg    Config
	logger *zap.Logger
	tasks  chan Task
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]struct{}
	closed  bool
}

func NewQueue(cfg Config, logger *zap.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		cfg:     cfg,
		logger:  logger,
		tasks:   make(chan Task, cfg.QueueSize),
		pending: make(map[string]struct{}),
	}
}

// Start launches the workers. They stop once Stop has drained the queue.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
}

// Dispatch enqueues t and reports whether it was accepted.
func (q *Queue) Dispatch(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("task queue stopped, dropping task", zap.String("task", t.Name()))
		return false
	}
	if _, ok := q.pending[t.Key()]; ok {
		return true
	}

	select {
	case q.tasks <- t:
		q.pending[t.Key()] = struct{}{}
		return true
	default:
		q.logger.Warn("task queue full, dropping task",
			zap.String("task", t.Name()),
			zap.String("key", t.Key()),
		)
		return false
	}
}

// Stop closes the queue and waits for queued tasks to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for t := range q.tasks {
		q.mu.Lock()
		delete(q.pending, t.Key())
		q.mu.Unlock()

		q.run(ctx, t)
	}
}

func (q *Queue) run(ctx context.Context, t Task) {
	for attempt := 1; ; attempt++ {
		err := t.Run(ctx)
		if err == nil {
			q.logger.Debug("task done", zap.String("task", t.Name()), zap.String("key", t.Key()))
			return
		}
		if attempt > q.cfg.MaxRetries {
			q.logger.Error("task failed",
				zap.String("task", t.Name()),
				zap.String("key", t.Key()),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.cfg.RetryDelay):
		}
	}
}
