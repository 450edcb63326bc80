package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HttpListenAddr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.HttpListenAddr)
	}
	if cfg.TaskQueueSize != 1024 || cfg.TaskWorkers != 4 {
		t.Errorf("unexpected dispatcher defaults: %+v", cfg)
	}
	if cfg.TaskDelayUnit != time.Second {
		t.Errorf("expected 1s delay unit, got %v", cfg.TaskDelayUnit)
	}
	if cfg.ExecutionStore != "memory" {
		t.Errorf("expected memory store, got %s", cfg.ExecutionStore)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "http_listen_addr: \":9090\"\ntask_workers: 2\nexecution_store: redis\nredis_addr: cache:6379\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PRIMER_TASK_WORKERS", "8")
	t.Setenv("PRIMER_TASK_DELAY_UNIT", "10ms")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HttpListenAddr != ":9090" {
		t.Errorf("expected file value :9090, got %s", cfg.HttpListenAddr)
	}
	if cfg.TaskWorkers != 8 {
		t.Errorf("expected env to override file, got %d", cfg.TaskWorkers)
	}
	if cfg.TaskDelayUnit != 10*time.Millisecond {
		t.Errorf("expected 10ms, got %v", cfg.TaskDelayUnit)
	}
	if cfg.ExecutionStore != "redis" || cfg.RedisAddr != "cache:6379" {
		t.Errorf("unexpected store config: %+v", cfg)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown store", "PRIMER_EXECUTION_STORE", "sqlite"},
		{"bad schedule", "PRIMER_HISTORY_PRUNE_SCHEDULE", "every day"},
		{"no workers", "PRIMER_TASK_WORKERS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(t.TempDir()); err == nil {
				t.Fatalf("expected %s=%s to be rejected", tt.key, tt.value)
			}
		})
	}
}

func TestCronParser(t *testing.T) {
	for _, expr := range []string{"0 */5 * * * *", "@hourly", "*/10 * * * * *"} {
		if _, err := CronParser.Parse(expr); err != nil {
			t.Errorf("expected %q to parse: %v", expr, err)
		}
	}
	if _, err := CronParser.Parse("*/5 * * * *"); err == nil {
		t.Errorf("expected five-field expression to be rejected")
	}
}
