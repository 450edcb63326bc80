package etcd

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"http-primer/internal/domain"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdEndpointsEnv names a comma-separated endpoint list; the tests in this
// file are skipped when it is unset.
const EtcdEndpointsEnv = "PRIMER_TEST_ETCD_ENDPOINTS"

type etcdFixture struct {
	client *clientv3.Client
	dir    string
	repo   domain.ExecutionRepository
}

func newEtcdFixture(t *testing.T) *etcdFixture {
	t.Helper()
	endpoints := os.Getenv(EtcdEndpointsEnv)
	if endpoints == "" {
		t.Skipf("%s not set", EtcdEndpointsEnv)
	}

	cli, err := NewClient(strings.Split(endpoints, ","), 2*time.Second)
	if err != nil {
		t.Fatalf("connect etcd: %v", err)
	}
	dir := "/primer-test/" + uuid.NewString() + "/"
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = cli.Delete(ctx, dir, clientv3.WithPrefix())
		cli.Close()
	})

	return &etcdFixture{
		client: cli,
		dir:    dir,
		repo:   NewEtcdExecutionRepository(cli, discardLogger(), WithHistoryDir(dir)),
	}
}

func record(id string, status domain.ExecutionStatus, queuedAt time.Time, position int) *domain.ExecutionRecord {
	r := &domain.ExecutionRecord{
		ID:        id,
		TaskName:  "time_bomb",
		RequestID: "req-" + id,
		Position:  position,
		Args:      []string{"3"},
		Status:    status,
		QueuedAt:  queuedAt,
	}
	if status.Finished() {
		r.StartTime = queuedAt
		r.EndTime = queuedAt.Add(time.Second)
	}
	return r
}

func TestEtcdRepository_SaveAndGet(t *testing.T) {
	f := newEtcdFixture(t)
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

	if _, err := f.repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrExecutionNotFound) {
		t.Fatalf("expected ErrExecutionNotFound, got %v", err)
	}
	if err := f.repo.Save(ctx, &domain.ExecutionRecord{ID: "bad"}); err == nil {
		t.Fatalf("expected invalid record to be rejected")
	}
}

func TestEtcdRepository_ListNewestFirst(t *testing.T) {
	f := newEtcdFixture(t)
	ctx := context.Background()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, r := range []*domain.ExecutionRecord{
		record("a", domain.ExecutionStatusSuccess, base, 0),
		record("b0", domain.ExecutionStatusRunning, base.Add(time.Second), 0),
		record("b1", domain.ExecutionStatusQueued, base.Add(time.Second), 1),
		record("c", domain.ExecutionStatusFailed, base.Add(2*time.Second), 0),
	} {
		if err := f.repo.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}
	if _, err := f.client.Put(ctx, f.dir+"garbage", "{not json"); err != nil {
		t.Fatalf("put garbage: %v", err)
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
}

func TestEtcdRepository_DeleteBeforeKeepsUnfinishedAndRecent(t *testing.T) {
	f := newEtcdFixture(t)
	ctx := context.Background()
	cutoff := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, r := range []*domain.ExecutionRecord{
		record("old-success", domain.ExecutionStatusSuccess, cutoff.Add(-time.Hour), 0),
		record("old-failed", domain.ExecutionStatusFailed, cutoff.Add(-time.Hour), 1),
		record("old-running", domain.ExecutionStatusRunning, cutoff.Add(-time.Hour), 2),
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
	for _, id := range []string{"old-running", "recent"} {
		if _, err := f.repo.Get(ctx, id); err != nil {
			t.Errorf("expected %s to survive: %v", id, err)
		}
	}
}
