package domain

import "context"

// Dispatcher accepts the deferred tasks of one request for execution after the response.
// Dispatch must not block on, or run, the tasks themselves.
type Dispatcher interface {
	Dispatch(ctx context.Context, tasks []*Task) error
}
