package usecase

import (
	"context"
	"log/slog"

	"http-primer/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxPageSize = 100

// ExecutionService reads the history of deferred task executions.
type ExecutionService struct {
	repo   domain.ExecutionRepository
	logger *slog.Logger
	tracer trace.Tracer
}

// NewExecutionService creates a new ExecutionService instance.
func NewExecutionService(repo domain.ExecutionRepository, logger *slog.Logger) *ExecutionService {
	return &ExecutionService{
		repo:   repo,
		logger: logger.With("component", "execution-service"),
		tracer: otel.Tracer("http-primer-usecase"),
	}
}

// List returns execution records newest first. Page starts at 1; the page size is capped.
func (s *ExecutionService) List(ctx context.Context, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListExecutions")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = 20
	}
	span.SetAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize))

	records, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list executions from repository")
	}
	return records, err
}

// Get returns one execution record.
func (s *ExecutionService) Get(ctx context.Context, id string) (*domain.ExecutionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetExecution")
	defer span.End()
	span.SetAttributes(attribute.String("execution.id", id))

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get execution from repository")
	}
	return record, err
}
