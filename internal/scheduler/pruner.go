// internal/scheduler/pruner.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"http-primer/internal/domain"
	"http-primer/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const pruneTimeout = 30 * time.Second

// Pruner deletes finished execution records older than the retention window on a cron schedule.
type Pruner struct {
	cron      *cron.Cron
	repo      domain.ExecutionRepository
	retention time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPruner schedules the retention job. The schedule has a leading seconds field.
func NewPruner(repo domain.ExecutionRepository, retention time.Duration, schedule string, logger *slog.Logger) (*Pruner, error) {
	p := &Pruner{
		cron:      cron.New(cron.WithSeconds()),
		repo:      repo,
		retention: retention,
		logger:    logger.With("component", "history-pruner"),
		tracer:    otel.Tracer("http-primer-scheduler"),
		now:       time.Now,
	}
	if _, err := p.cron.AddJob(schedule, p); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	p.logger.Info("history pruner scheduled", "schedule", schedule, "retention", retention)
	return p, nil
}

// Start runs the schedule until ctx is done, then waits for a running prune to finish.
func (p *Pruner) Start(ctx context.Context) error {
	p.logger.Info("history pruner started")
	p.cron.Start()
	<-ctx.Done()
	p.logger.Info("history pruner stopping...")
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
	p.logger.Info("history pruner stopped")
	return ctx.Err()
}

// Run is called by the cron library.
func (p *Pruner) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()
	if _, err := p.Prune(ctx); err != nil {
		p.logger.Error("failed to prune execution history", "error", err)
	}
}

// Prune deletes the records that finished before now minus the retention window.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.retention)
	ctx, span := p.tracer.Start(ctx, "scheduler.PruneExecutions",
		trace.WithAttributes(attribute.String("cutoff", cutoff.Format(time.RFC3339))))
	defer span.End()

	deleted, err := p.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete expired executions")
		return 0, err
	}
	metrics.ExecutionRecordsPruned.Add(float64(deleted))
	span.SetAttributes(attribute.Int("records_deleted", deleted))
	if deleted > 0 {
		p.logger.Info("pruned execution history", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
