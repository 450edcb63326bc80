// internal/infra/etcd/etcd_execution_repository.go
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"http-primer/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ExecutionHistoryDir = "/primer/executions/"
)

type etcdExecutionRepository struct {
	client *clientv3.Client
	dir    string
	logger *slog.Logger
	tracer trace.Tracer
}

type Option func(*etcdExecutionRepository)

// WithHistoryDir stores records under dir instead of ExecutionHistoryDir.
func WithHistoryDir(dir string) Option {
	return func(r *etcdExecutionRepository) {
		if dir != "" {
			r.dir = strings.TrimSuffix(dir, "/") + "/"
		}
	}
}

// NewEtcdExecutionRepository creates a new repository for execution records backed by etcd.
func NewEtcdExecutionRepository(client *clientv3.Client, logger *slog.Logger, opts ...Option) domain.ExecutionRepository {
	r := &etcdExecutionRepository{
		client: client,
		dir:    ExecutionHistoryDir,
		logger: logger.With("component", "etcd-execution-repo"),
		tracer: otel.Tracer("http-primer-etcd-execution-repo"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *etcdExecutionRepository) executionKey(id string) string {
	return path.Join(r.dir, id)
}

// Save persists a single execution record under {dir}/{id}.
func (r *etcdExecutionRepository) Save(ctx context.Context, record *domain.ExecutionRecord) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveExecution")
	defer span.End()

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

	key := r.executionKey(record.ID)
	span.SetAttributes(
		attribute.String("execution.id", record.ID),
		attribute.String("execution.status", string(record.Status)),
		attribute.String("etcd.key", key),
	)

	if _, err := r.client.Put(ctx, key, string(recordJSON)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put execution record to etcd")
		return fmt.Errorf("failed to save execution record %s to etcd: %w", record.ID, err)
	}
	return nil
}

func (r *etcdExecutionRepository) Get(ctx context.Context, id string) (*domain.ExecutionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.GetExecution")
	defer span.End()
	span.SetAttributes(attribute.String("execution.id", id))

	resp, err := r.client.Get(ctx, r.executionKey(id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get execution record from etcd")
		return nil, fmt.Errorf("failed to get execution record %s from etcd: %w", id, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, domain.ErrExecutionNotFound
	}

	var record domain.ExecutionRecord
	if err := json.Unmarshal(resp.Kvs[0].Value, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal execution record")
		return nil, fmt.Errorf("failed to unmarshal execution record %s from JSON: %w", id, err)
	}
	return &record, nil
}

// List returns records newest first. etcd sorts by create revision; the page
// is then ordered by queued time so records of one batch keep their positions.
func (r *etcdExecutionRepository) List(ctx context.Context, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListExecutions")
	defer span.End()
	span.SetAttributes(
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	all, err := r.loadAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list execution records from etcd")
		return nil, err
	}
	sortNewestFirst(all)

	records := paginate(all, page, pageSize)
	span.SetAttributes(attribute.Int("records_returned", len(records)))
	return records, nil
}

// DeleteBefore removes finished records that ended before cutoff. Each delete
// is guarded by the record's mod revision, so a record rewritten meanwhile survives.
func (r *etcdExecutionRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.DeleteExecutionsBefore")
	defer span.End()
	span.SetAttributes(attribute.String("cutoff", cutoff.Format(time.RFC3339)))

	resp, err := r.client.Get(ctx, r.dir, clientv3.WithPrefix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to scan execution records")
		return 0, fmt.Errorf("failed to scan execution records in etcd: %w", err)
	}

	deleted := 0
	for _, kv := range resp.Kvs {
		var record domain.ExecutionRecord
		if err := json.Unmarshal(kv.Value, &record); err != nil {
			r.logger.Warn("failed to unmarshal execution record from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		if !expired(&record, cutoff) {
			continue
		}

		key := string(kv.Key)
		txn, err := r.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)).
			Then(clientv3.OpDelete(key)).
			Commit()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete execution record")
			return deleted, fmt.Errorf("failed to delete execution record %s from etcd: %w", record.ID, err)
		}
		if txn.Succeeded {
			deleted++
		}
	}
	span.SetAttributes(attribute.Int("records_deleted", deleted))
	return deleted, nil
}

func (r *etcdExecutionRepository) loadAll(ctx context.Context) ([]*domain.ExecutionRecord, error) {
	resp, err := r.client.Get(ctx, r.dir,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortDescend), // Newest first
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution records from etcd: %w", err)
	}

	records := make([]*domain.ExecutionRecord, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var record domain.ExecutionRecord
		if err := json.Unmarshal(kv.Value, &record); err != nil {
			r.logger.Warn("failed to unmarshal execution record from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

func expired(record *domain.ExecutionRecord, cutoff time.Time) bool {
	return record.Status.Finished() && record.EndTime.Before(cutoff)
}

func sortNewestFirst(records []*domain.ExecutionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].QueuedAt.Equal(records[j].QueuedAt) {
			return records[i].QueuedAt.After(records[j].QueuedAt)
		}
		return records[i].Position < records[j].Position
	})
}

// paginate slices a page out of records. Etcd Get with Limit counts keys,
// so pages are cut client-side.
func paginate(records []*domain.ExecutionRecord, page, pageSize int) []*domain.ExecutionRecord {
	start := (page - 1) * pageSize
	if page < 1 || pageSize <= 0 || start >= len(records) {
		return []*domain.ExecutionRecord{}
	}
	return records[start:min(start+pageSize, len(records))]
}
