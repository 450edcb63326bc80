package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTasksSealed is returned when a task is added after its request finished.
	ErrTasksSealed = errors.New("background tasks already handed to dispatcher")
	// ErrQueueFull is returned when the dispatcher queue has no free slot.
	ErrQueueFull = errors.New("background task queue is full")
	// ErrDispatcherStopped is returned once the dispatcher is shutting down.
	ErrDispatcherStopped = errors.New("background dispatcher stopped")
)

// TaskFunc is a unit of deferred work. Its arguments are bound when the task is registered.
type TaskFunc func(ctx context.Context, args ...any) error

// Task is a deferred unit of work captured while a request was being handled.
type Task struct {
	ID           string
	Name         string
	Fn           TaskFunc
	Args         []any
	RequestID    string
	Position     int // order of registration within the request
	RegisteredAt time.Time
}

// Run executes the task's work with its bound arguments.
func (t *Task) Run(ctx context.Context) error {
	if t.Fn == nil {
		return fmt.Errorf("task %s has no work function", t.Name)
	}
	return t.Fn(ctx, t.Args...)
}

// ArgStrings renders the bound arguments for execution records.
func (t *Task) ArgStrings() []string {
	out := make([]string, len(t.Args))
	for i, a := range t.Args {
		out[i] = fmt.Sprint(a)
	}
	return out
}
