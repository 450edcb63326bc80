// Package redis stores execution records in Redis: one JSON value per record
// plus a sorted set indexing record IDs by queued time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"http-primer/internal/domain"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ExecutionRepository struct {
	rdb    *goredis.Client
	prefix string
	logger *slog.Logger
	tracer trace.Tracer
}

var _ domain.ExecutionRepository = (*ExecutionRepository)(nil)

type Option func(*ExecutionRepository)

// WithPrefix sets the namespace of every key; surrounding colons are dropped.
func WithPrefix(prefix string) Option {
	return func(r *ExecutionRepository) {
		if p := strings.Trim(prefix, ":"); p != "" {
			r.prefix = p
		}
	}
}

// NewExecutionRepository creates a domain.ExecutionRepository backed by rdb.
func NewExecutionRepository(rdb *goredis.Client, logger *slog.Logger, opts ...Option) *ExecutionRepository {
	r := &ExecutionRepository{
		rdb:    rdb,
		prefix: "primer",
		logger: logger.With("component", "redis-execution-repo"),
		tracer: otel.Tracer("http-primer-redis-execution-repo"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ExecutionRepository) recordKey(id string) string {
	return r.prefix + ":exec:" + id
}

func (r *ExecutionRepository) indexKey() string {
	return r.prefix + ":execs"
}

// score orders records by queued time; microseconds stay exact in a float64.
func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func (r *ExecutionRepository) Save(ctx context.Context, record *domain.ExecutionRecord) error {
	ctx, span := r.tracer.Start(ctx, "repo.redis.SaveExecution")
	defer span.End()
	span.SetAttributes(
		attribute.String("execution.id", record.ID),
		attribute.String("execution.status", string(record.Status)),
	)

	if err := record.Validate(); err != nil {
		span.RecordError(err)
		return err
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal execution record")
		return fmt.Errorf("failed to marshal execution record %s to JSON: %w", record.ID, err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.recordKey(record.ID), recordJSON, 0)
	pipe.ZAdd(ctx, r.indexKey(), goredis.Z{Score: score(record.QueuedAt), Member: record.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save execution record to redis")
		return fmt.Errorf("failed to save execution record %s to redis: %w", record.ID, err)
	}
	return nil
}

func (r *ExecutionRepository) Get(ctx context.Context, id string) (*domain.ExecutionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "repo.redis.GetExecution")
	defer span.End()
	span.SetAttributes(attribute.String("execution.id", id))

	raw, err := r.rdb.Get(ctx, r.recordKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrExecutionNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get execution record from redis")
		return nil, fmt.Errorf("failed to get execution record %s from redis: %w", id, err)
	}

	var record domain.ExecutionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal execution record %s from JSON: %w", id, err)
	}
	return &record, nil
}

// List pages through the index newest first. Records sharing a queued time
// are ordered by position within the page.
func (r *ExecutionRepository) List(ctx context.Context, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "repo.redis.ListExecutions")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize))

	if page < 1 || pageSize <= 0 {
		return []*domain.ExecutionRecord{}, nil
	}
	start := int64((page - 1) * pageSize)
	ids, err := r.rdb.ZRevRange(ctx, r.indexKey(), start, start+int64(pageSize)-1).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read execution index")
		return nil, fmt.Errorf("failed to list execution records from redis: %w", err)
	}

	records, err := r.load(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].QueuedAt.Equal(records[j].QueuedAt) {
			return records[i].QueuedAt.After(records[j].QueuedAt)
		}
		return records[i].Position < records[j].Position
	})
	span.SetAttributes(attribute.Int("records_returned", len(records)))
	return records, nil
}

// DeleteBefore removes finished records that ended before cutoff. Only
// records queued before cutoff can qualify, so the index bounds the scan.
func (r *ExecutionRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "repo.redis.DeleteExecutionsBefore")
	defer span.End()
	span.SetAttributes(attribute.String("cutoff", cutoff.Format(time.RFC3339)))

	ids, err := r.rdb.ZRangeByScore(ctx, r.indexKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMicro(), 10),
	}).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to scan execution index")
		return 0, fmt.Errorf("failed to scan execution records in redis: %w", err)
	}

	records, err := r.load(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	pipe := r.rdb.TxPipeline()
	deleted := 0
	for _, record := range records {
		if !record.Status.Finished() || !record.EndTime.Before(cutoff) {
			continue
		}
		pipe.Del(ctx, r.recordKey(record.ID))
		pipe.ZRem(ctx, r.indexKey(), record.ID)
		deleted++
	}
	if deleted == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete execution records")
		return 0, fmt.Errorf("failed to delete execution records from redis: %w", err)
	}
	span.SetAttributes(attribute.Int("records_deleted", deleted))
	return deleted, nil
}

// load fetches records by ID in one MGET; IDs whose value is gone are skipped.
func (r *ExecutionRepository) load(ctx context.Context, ids []string) ([]*domain.ExecutionRecord, error) {
	if len(ids) == 0 {
		return []*domain.ExecutionRecord{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load execution records from redis: %w", err)
	}

	records := make([]*domain.ExecutionRecord, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var record domain.ExecutionRecord
		if err := json.Unmarshal([]byte(s), &record); err != nil {
			r.logger.Warn("failed to unmarshal execution record from redis", "key", keys[i], "error", err)
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}
