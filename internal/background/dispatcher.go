package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"http-primer/internal/domain"
	"http-primer/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultQueueSize = 1024
	defaultWorkers   = 4
	recordTimeout    = 2 * time.Second
)

// batch is the ordered set of tasks registered by one request.
type batch struct {
	tasks    []*domain.Task
	queuedAt time.Time
	link     trace.SpanContext
}

// Dispatcher runs request batches on a fixed set of worker goroutines fed by a bounded queue.
type Dispatcher struct {
	queue   chan batch
	workers int
	repo    domain.ExecutionRepository
	logger  *slog.Logger
	tracer  trace.Tracer

	mu        sync.RWMutex
	stopped   bool
	startOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	queueSize int
	workers   int
}

// WithQueueSize sets how many batches may wait for a worker.
func WithQueueSize(n int) Option {
	return func(o *dispatcherOptions) { o.queueSize = n }
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(o *dispatcherOptions) { o.workers = n }
}

// NewDispatcher creates a dispatcher that records executions in repo.
// Call Start before dispatching and Shutdown to drain it.
func NewDispatcher(repo domain.ExecutionRepository, logger *slog.Logger, opts ...Option) *Dispatcher {
	o := dispatcherOptions{queueSize: defaultQueueSize, workers: defaultWorkers}
	for _, opt := range opts {
		opt(&o)
	}
	if o.queueSize <= 0 {
		o.queueSize = defaultQueueSize
	}
	if o.workers <= 0 {
		o.workers = 1
	}

	return &Dispatcher{
		queue:   make(chan batch, o.queueSize),
		workers: o.workers,
		repo:    repo,
		logger:  logger.With("component", "background-dispatcher"),
		tracer:  otel.Tracer("http-primer-background"),
	}
}

// Start launches the worker goroutines. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker(i)
		}
		d.logger.Info("background dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
	})
}

// Dispatch queues the tasks of one request. It never blocks on a full queue:
// the batch is rejected with ErrQueueFull and its tasks are recorded as failed.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	b := batch{
		tasks:    tasks,
		queuedAt: time.Now(),
		link:     trace.SpanContextFromContext(ctx),
	}

	// Queued records go in before the batch can reach a worker, so they never overwrite a later status.
	d.recordQueued(ctx, b)

	d.mu.RLock()
	err := d.enqueue(b)
	d.mu.RUnlock()

	if err != nil {
		metrics.BackgroundBatchesDropped.Inc()
		d.logger.Error("dropping deferred tasks", "request_id", tasks[0].RequestID, "tasks", len(tasks), "error", err)
		d.recordRejected(ctx, b, err)
		return err
	}

	metrics.BackgroundQueueDepth.Set(float64(len(d.queue)))
	return nil
}

// enqueue must be called with d.mu held for reading, so the queue cannot be closed underneath it.
func (d *Dispatcher) enqueue(b batch) error {
	if d.stopped {
		return domain.ErrDispatcherStopped
	}
	select {
	case d.queue <- b:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// QueueDepth returns the number of batches waiting for a worker.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// Shutdown stops accepting batches, lets the workers drain the queue and
// waits for them until ctx is done. Running tasks are never interrupted.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("background dispatcher drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background workers: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for b := range d.queue {
		metrics.BackgroundQueueDepth.Set(float64(len(d.queue)))
		d.logger.Debug("worker picked up batch", "worker", id, "tasks", len(b.tasks))
		for _, task := range b.tasks {
			d.runTask(b, task)
		}
	}
}

// runTask executes one task. Errors and panics end this task only.
func (d *Dispatcher) runTask(b batch, task *domain.Task) {
	ctx, span := d.tracer.Start(
		context.Background(),
		"background.runTask",
		trace.WithLinks(trace.Link{SpanContext: b.link}),
		trace.WithAttributes(
			attribute.String("task.name", task.Name),
			attribute.String("task.id", task.ID),
			attribute.String("request.id", task.RequestID),
			attribute.Int("task.position", task.Position),
		),
	)
	defer span.End()

	logger := d.logger.With("task_name", task.Name, "task_id", task.ID, "request_id", task.RequestID)

	record := domain.NewExecutionRecord(task, b.queuedAt)
	record.Status = domain.ExecutionStatusRunning
	record.StartTime = time.Now()
	d.save(ctx, logger, record)

	var execErr error
	defer func() {
		if r := recover(); r != nil {
			execErr = fmt.Errorf("panic: %v", r)
			logger.Error("deferred task panicked", "panic", r, "stack", string(debug.Stack()))
		}

		record.EndTime = time.Now()
		metrics.BackgroundTaskDuration.WithLabelValues(task.Name).Observe(record.EndTime.Sub(record.StartTime).Seconds())
		if execErr != nil {
			record.Status = domain.ExecutionStatusFailed
			record.Error = execErr.Error()
			metrics.BackgroundTasksTotal.WithLabelValues(task.Name, "failed").Inc()
			span.RecordError(execErr)
			span.SetStatus(codes.Error, "deferred task failed")
			logger.Error("deferred task failed", "error", execErr)
		} else {
			record.Status = domain.ExecutionStatusSuccess
			metrics.BackgroundTasksTotal.WithLabelValues(task.Name, "success").Inc()
			span.SetStatus(codes.Ok, "deferred task finished")
			logger.Info("deferred task finished", "duration", record.EndTime.Sub(record.StartTime))
		}
		d.save(context.Background(), logger, record)
	}()

	logger.Info("running deferred task")
	execErr = task.Run(ctx)
}

func (d *Dispatcher) recordQueued(ctx context.Context, b batch) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	for _, task := range b.tasks {
		d.save(ctx, d.logger, domain.NewExecutionRecord(task, b.queuedAt))
	}
}

func (d *Dispatcher) recordRejected(ctx context.Context, b batch, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	now := time.Now()
	for _, task := range b.tasks {
		record := domain.NewExecutionRecord(task, b.queuedAt)
		record.Status = domain.ExecutionStatusFailed
		record.EndTime = now
		record.Error = cause.Error()
		metrics.BackgroundTasksTotal.WithLabelValues(task.Name, "failed").Inc()
		d.save(ctx, d.logger, record)
	}
}

// save is best-effort: a broken store must not stop task execution.
func (d *Dispatcher) save(ctx context.Context, logger *slog.Logger, record *domain.ExecutionRecord) {
	if d.repo == nil {
		return
	}
	if err := d.repo.Save(ctx, record); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("failed to save execution record", "execution_id", record.ID, "status", record.Status, "error", err)
	}
}
