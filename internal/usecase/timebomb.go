package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"http-primer/internal/domain"
)

// NoticeTimeLayout renders notice timestamps with microseconds.
const NoticeTimeLayout = "2006-01-02 15:04:05.000000"

// NoticeWriter serializes notices from concurrently running tasks onto one stream.
type NoticeWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewNoticeWriter wraps w.
func NewNoticeWriter(w io.Writer) *NoticeWriter {
	return &NoticeWriter{w: w}
}

// Notice writes one line.
func (n *NoticeWriter) Notice(line string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintln(n.w, line)
	return err
}

// TimeBomb returns work that waits count units, then emits a timestamped notice.
// It expects a single int argument, the count.
func TimeBomb(out *NoticeWriter, unit time.Duration, logger *slog.Logger) domain.TaskFunc {
	logger = logger.With("task", "time-bomb")

	return func(ctx context.Context, args ...any) error {
		if len(args) != 1 {
			return fmt.Errorf("time bomb takes 1 argument, got %d", len(args))
		}
		count, ok := args[0].(int)
		if !ok {
			return fmt.Errorf("time bomb count must be int, got %T", args[0])
		}
		if count < 0 {
			return fmt.Errorf("time bomb count must be non-negative, got %d", count)
		}

		if unit > 0 && int64(count) > math.MaxInt64/int64(unit) {
			return fmt.Errorf("time bomb delay overflows: %d x %v", count, unit)
		}
		delay := time.Duration(count) * unit
		logger.Debug("time bomb armed", "delay", delay)
		time.Sleep(delay)

		now := time.Now().UTC()
		if err := out.Notice("bomb!!! " + now.Format(NoticeTimeLayout)); err != nil {
			return fmt.Errorf("writing notice: %w", err)
		}
		logger.Info("time bomb exploded", "delay", delay, "at", now)
		return nil
	}
}
