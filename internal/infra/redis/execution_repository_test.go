package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"http-primer/internal/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestRepository(opts ...Option) *ExecutionRepository {
	rdb := goredis.NewClient(&goredis.Options{Addr: "localhost:0"})
	return NewExecutionRepository(rdb, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		record string
		index  string
	}{
		{"default prefix", nil, "primer:exec:abc", "primer:execs"},
		{"custom prefix", []Option{WithPrefix("app:")}, "app:exec:abc", "app:execs"},
		{"empty prefix keeps default", []Option{WithPrefix("::")}, "primer:exec:abc", "primer:execs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRepository(tt.opts...)
			if got := r.recordKey("abc"); got != tt.record {
				t.Errorf("record key: expected %s, got %s", tt.record, got)
			}
			if got := r.indexKey(); got != tt.index {
				t.Errorf("index key: expected %s, got %s", tt.index, got)
			}
		})
	}
}

func TestScoreKeepsMicrosecondOrder(t *testing.T) {
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if score(base.Add(time.Microsecond)) <= score(base) {
		t.Fatalf("expected later queued time to score higher")
	}
}

type redisFixture struct {
	server *miniredis.Miniredis
	repo   *ExecutionRepository
}

func newRedisFixture(t *testing.T) *redisFixture {
	t.Helper()
	server := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return &redisFixture{
		server: server,
		repo:   NewExecutionRepository(rdb, slog.New(slog.NewTextHandler(io.Discard, nil)), WithPrefix("test")),
	}
}

func record(id string, status domain.ExecutionStatus, queuedAt time.Time, position int) *domain.ExecutionRecord {
	r := &domain.ExecutionRecord{
		ID:        id,
		TaskName:  "time_bomb",
		RequestID: "req-" + id,
		Position:  position,
		Status:    status,
		QueuedAt:  queuedAt,
	}
	if status.Finished() {
		r.StartTime = queuedAt
		r.EndTime = queuedAt.Add(time.Second)
	}
	return r
}

func TestRedisRepository_SaveAndGet(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	queued := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := f.repo.Save(ctx, record("a", domain.ExecutionStatusQueued, queued, 0)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := f.repo.Save(ctx, record("a", domain.ExecutionStatusSuccess, queued, 0)); err != nil {
		t.Fatalf("save update: %v", err)
	}

	got, err := f.repo.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.ExecutionStatusSuccess || got.RequestID != "req-a" || !got.QueuedAt.Equal(queued) {
		t.Fatalf("unexpected record %+v", got)
	}

	members, err := f.server.ZMembers("test:execs")
	if err != nil || len(members) != 1 {
		t.Fatalf("expected one index entry after an update, got %v (%v)", members, err)
	}

	if _, err := f.repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrExecutionNotFound) {
		t.Fatalf("expected ErrExecutionNotFound, got %v", err)
	}
	if err := f.repo.Save(ctx, &domain.ExecutionRecord{ID: "bad"}); err == nil {
		t.Fatalf("expected invalid record to be rejected")
	}
}

func TestRedisRepository_ListNewestFirst(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, r := range []*domain.ExecutionRecord{
		record("a", domain.ExecutionStatusSuccess, base, 0),
		record("b1", domain.ExecutionStatusQueued, base.Add(time.Second), 1),
		record("b0", domain.ExecutionStatusRunning, base.Add(time.Second), 0),
		record("c", domain.ExecutionStatusFailed, base.Add(2*time.Second), 0),
	} {
		if err := f.repo.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	all, err := f.repo.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"c", "b0", "b1", "a"}
	if len(all) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(all))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, all[i].ID)
		}
	}

	page, err := f.repo.List(ctx, 2, 3)
	if err != nil || len(page) != 1 || page[0].ID != "a" {
		t.Fatalf("unexpected second page %v (%v)", page, err)
	}
	if page, err := f.repo.List(ctx, 3, 3); err != nil || len(page) != 0 {
		t.Fatalf("expected empty page past the end, got %v (%v)", page, err)
	}
}

func TestRedisRepository_ListSkipsMissingValues(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{"kept", "gone"} {
		if err := f.repo.Save(ctx, record(id, domain.ExecutionStatusSuccess, base, 0)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	f.server.Del("test:exec:gone")

	all, err := f.repo.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].ID != "kept" {
		t.Fatalf("expected only the record with a value, got %v", all)
	}
}

func TestRedisRepository_DeleteBeforeKeepsUnfinishedAndRecent(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	cutoff := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, r := range []*domain.ExecutionRecord{
		record("old-success", domain.ExecutionStatusSuccess, cutoff.Add(-time.Hour), 0),
		record("old-failed", domain.ExecutionStatusFailed, cutoff.Add(-time.Hour), 1),
		record("old-running", domain.ExecutionStatusRunning, cutoff.Add(-time.Hour), 2),
		record("at-cutoff", domain.ExecutionStatusQueued, cutoff, 0),
		record("recent", domain.ExecutionStatusSuccess, cutoff.Add(time.Minute), 0),
	} {
		if err := f.repo.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	deleted, err := f.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
	for _, id := range []string{"old-success", "old-failed"} {
		if _, err := f.repo.Get(ctx, id); !errors.Is(err, domain.ErrExecutionNotFound) {
			t.Errorf("expected %s to be deleted, got %v", id, err)
		}
	}
	for _, id := range []string{"old-running", "at-cutoff", "recent"} {
		if _, err := f.repo.Get(ctx, id); err != nil {
			t.Errorf("expected %s to survive: %v", id, err)
		}
	}

	members, err := f.server.ZMembers("test:execs")
	if err != nil || len(members) != 3 {
		t.Fatalf("expected deleted records to leave the index, got %v (%v)", members, err)
	}

	if deleted, err := f.repo.DeleteBefore(ctx, cutoff); err != nil || deleted != 0 {
		t.Fatalf("expected nothing left to delete, got %d (%v)", deleted, err)
	}
}
