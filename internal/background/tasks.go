// Package background runs work registered during request handling after the
// response has been written.
//
// A handler obtains the request's task list with FromContext and adds work to
// it. Middleware hands the list to a Dispatcher once the handler has returned
// and the response has been flushed; a worker goroutine then runs the tasks in
// the order they were added.
package background

import (
	"context"
	"sync"
	"time"

	"http-primer/internal/domain"

	"github.com/google/uuid"
)

// Tasks collects the deferred tasks of a single request.
type Tasks struct {
	mu        sync.Mutex
	requestID string
	tasks     []*domain.Task
	sealed    bool
}

// NewTasks creates an empty task list for the given request.
func NewTasks(requestID string) *Tasks {
	return &Tasks{requestID: requestID}
}

// RequestID returns the ID of the request owning the list.
func (t *Tasks) RequestID() string {
	return t.requestID
}

// Add registers fn to run with args after the response is sent. It never runs fn itself.
func (t *Tasks) Add(name string, fn domain.TaskFunc, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return domain.ErrTasksSealed
	}
	t.tasks = append(t.tasks, &domain.Task{
		ID:           uuid.NewString(),
		Name:         name,
		Fn:           fn,
		Args:         append([]any(nil), args...),
		RequestID:    t.requestID,
		Position:     len(t.tasks),
		RegisteredAt: time.Now(),
	})
	return nil
}

// Len returns the number of registered tasks.
func (t *Tasks) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// seal stops further registrations and returns the tasks in registration order.
func (t *Tasks) seal() []*domain.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sealed = true
	return t.tasks
}

type tasksKey struct{}

// NewContext returns a copy of ctx carrying tasks.
func NewContext(ctx context.Context, tasks *Tasks) context.Context {
	return context.WithValue(ctx, tasksKey{}, tasks)
}

// FromContext returns the request's task list, if the background middleware installed one.
func FromContext(ctx context.Context) (*Tasks, bool) {
	tasks, ok := ctx.Value(tasksKey{}).(*Tasks)
	return tasks, ok
}
