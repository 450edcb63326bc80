// internal/domain/execution.go
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExecutionNotFound is a sentinel error returned when an execution record does not exist.
var ErrExecutionNotFound = errors.New("execution record not found")

// ExecutionStatus defines the status of a deferred task execution.
type ExecutionStatus string

const (
	ExecutionStatusQueued  ExecutionStatus = "queued"
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// Finished reports whether the status is terminal.
func (s ExecutionStatus) Finished() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed
}

// ExecutionRecord represents the single execution of a deferred task.
type ExecutionRecord struct {
	ID        string          `json:"id"`         // Task ID
	TaskName  string          `json:"task_name"`  // Name the task was registered under
	RequestID string          `json:"request_id"` // Request that registered the task
	Position  int             `json:"position"`   // Registration order within the request
	Args      []string        `json:"args,omitempty"`
	Status    ExecutionStatus `json:"status"`
	QueuedAt  time.Time       `json:"queued_at"`
	StartTime time.Time       `json:"start_time,omitzero"`
	EndTime   time.Time       `json:"end_time,omitzero"`
	Error     string          `json:"error,omitempty"`
}

// NewExecutionRecord creates the queued record for a task.
func NewExecutionRecord(task *Task, queuedAt time.Time) *ExecutionRecord {
	return &ExecutionRecord{
		ID:        task.ID,
		TaskName:  task.Name,
		RequestID: task.RequestID,
		Position:  task.Position,
		Args:      task.ArgStrings(),
		Status:    ExecutionStatusQueued,
		QueuedAt:  queuedAt,
	}
}

// Validate checks if the execution record is valid.
func (r *ExecutionRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("execution record ID cannot be empty")
	}
	if r.TaskName == "" {
		return fmt.Errorf("execution record task name cannot be empty")
	}
	if r.QueuedAt.IsZero() {
		return fmt.Errorf("execution record queued time cannot be zero")
	}
	if r.Status == "" {
		return fmt.Errorf("execution record status cannot be empty")
	}
	return nil
}

// ExecutionRepository defines the interface for persisting and retrieving execution records.
type ExecutionRepository interface {
	// Save persists a single execution record, replacing any earlier state.
	Save(ctx context.Context, record *ExecutionRecord) error
	// Get retrieves a single execution record by ID. Returns ErrExecutionNotFound if absent.
	Get(ctx context.Context, id string) (*ExecutionRecord, error)
	// List returns records newest first (by queued time), paginated from page 1.
	List(ctx context.Context, page, pageSize int) ([]*ExecutionRecord, error)
	// DeleteBefore removes finished records whose end time is before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
