package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"http-primer/internal/domain"
	"http-primer/internal/infra/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registered(t *testing.T, requestID string, fns ...domain.TaskFunc) []*domain.Task {
	t.Helper()
	tasks := NewTasks(requestID)
	for i, fn := range fns {
		if err := tasks.Add("task", fn, i); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	return tasks.seal()
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func TestDispatcher_RunsBatchInRegistrationOrder(t *testing.T) {
	d := NewDispatcher(memory.NewExecutionRepository(), discardLogger(), WithWorkers(4))
	d.Start()
	defer d.Shutdown(context.Background())

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	fns := make([]domain.TaskFunc, 10)
	for i := range fns {
		fns[i] = func(_ context.Context, args ...any) error {
			mu.Lock()
			order = append(order, args[0].(int))
			n := len(order)
			mu.Unlock()
			if n == len(fns) {
				close(done)
			}
			return nil
		}
	}

	if err := d.Dispatch(context.Background(), registered(t, "req-1", fns...)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	waitFor(t, done, "batch")

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("expected registration order, got %v", order)
		}
	}
}

func TestDispatcher_FailureAndPanicDoNotStopBatch(t *testing.T) {
	repo := memory.NewExecutionRepository()
	d := NewDispatcher(repo, discardLogger(), WithWorkers(1))
	d.Start()

	lastRan := make(chan struct{})
	tasks := registered(t, "req-2",
		func(context.Context, ...any) error { return errors.New("boom") },
		func(context.Context, ...any) error { panic("kaboom") },
		func(context.Context, ...any) error { close(lastRan); return nil },
	)
	if err := d.Dispatch(context.Background(), tasks); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	waitFor(t, lastRan, "last task")

	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	want := []domain.ExecutionStatus{domain.ExecutionStatusFailed, domain.ExecutionStatusFailed, domain.ExecutionStatusSuccess}
	for i, task := range tasks {
		rec, err := repo.Get(context.Background(), task.ID)
		if err != nil {
			t.Fatalf("get record %d: %v", i, err)
		}
		if rec.Status != want[i] {
			t.Fatalf("task %d: expected %s, got %s (%s)", i, want[i], rec.Status, rec.Error)
		}
		if rec.RequestID != "req-2" || rec.Position != i {
			t.Fatalf("task %d: unexpected record identity %+v", i, rec)
		}
	}
	rec, _ := repo.Get(context.Background(), tasks[1].ID)
	if rec.Error != "panic: kaboom" {
		t.Fatalf("expected panic recorded, got %q", rec.Error)
	}
}

func TestDispatcher_FullQueueDropsBatch(t *testing.T) {
	repo := memory.NewExecutionRepository()
	d := NewDispatcher(repo, discardLogger(), WithQueueSize(1), WithWorkers(1))

	noop := func(context.Context, ...any) error { return nil }
	if err := d.Dispatch(context.Background(), registered(t, "first", noop)); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	dropped := registered(t, "second", noop)
	if err := d.Dispatch(context.Background(), dropped); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	rec, err := repo.Get(context.Background(), dropped[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected dropped task recorded as failed, got %s", rec.Status)
	}

	d.Start()
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestDispatcher_ShutdownDrainsAndRejects(t *testing.T) {
	d := NewDispatcher(memory.NewExecutionRepository(), discardLogger(), WithWorkers(1))

	ran := 0
	var mu sync.Mutex
	count := func(context.Context, ...any) error {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		ran++
		mu.Unlock()
		return nil
	}
	for i := 0; i < 3; i++ {
		if err := d.Dispatch(context.Background(), registered(t, "req", count)); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}

	d.Start()
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	mu.Lock()
	if ran != 3 {
		t.Fatalf("expected queued batches drained, ran %d", ran)
	}
	mu.Unlock()

	err := d.Dispatch(context.Background(), registered(t, "late", count))
	if !errors.Is(err, domain.ErrDispatcherStopped) {
		t.Fatalf("expected ErrDispatcherStopped, got %v", err)
	}
}

func TestDispatcher_ShutdownHonoursDeadline(t *testing.T) {
	d := NewDispatcher(memory.NewExecutionRepository(), discardLogger(), WithWorkers(1))
	d.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	block := func(context.Context, ...any) error {
		close(started)
		<-release
		return nil
	}
	if err := d.Dispatch(context.Background(), registered(t, "req", block)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	waitFor(t, started, "blocking task")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	close(release)
}

func TestTasks_AddAfterSealFails(t *testing.T) {
	tasks := NewTasks("req")
	if err := tasks.Add("a", func(context.Context, ...any) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	sealed := tasks.seal()
	if len(sealed) != 1 || sealed[0].Position != 0 || sealed[0].RequestID != "req" {
		t.Fatalf("unexpected sealed tasks: %+v", sealed)
	}
	if err := tasks.Add("b", nil); !errors.Is(err, domain.ErrTasksSealed) {
		t.Fatalf("expected ErrTasksSealed, got %v", err)
	}
}

func TestDispatcher_StartIsIdempotent(t *testing.T) {
	d := NewDispatcher(memory.NewExecutionRepository(), discardLogger(), WithWorkers(1))
	d.Start()
	d.Start()
	defer d.Shutdown(context.Background())

	release := make(chan struct{})
	firstStarted := make(chan struct{})
	secondStarted := make(chan struct{})

	first := registered(t, "r1", func(ctx context.Context, args ...any) error {
		close(firstStarted)
		<-release
		return nil
	})
	second := registered(t, "r2", func(ctx context.Context, args ...any) error {
		close(secondStarted)
		return nil
	})

	if err := d.Dispatch(context.Background(), first); err != nil {
		t.Fatalf("dispatch first: %v", err)
	}
	waitFor(t, firstStarted, "first batch")
	if err := d.Dispatch(context.Background(), second); err != nil {
		t.Fatalf("dispatch second: %v", err)
	}

	select {
	case <-secondStarted:
		close(release)
		t.Fatalf("second batch ran alongside the first: Start launched extra workers")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	waitFor(t, secondStarted, "second batch")
}
