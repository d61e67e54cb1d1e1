package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CURIO_CONFIG_PATH",
		"LOG_MODE",
		"CURIO_HTTP_ADDR",
		"CURIO_DATA_DIR",
		"METRICS_ADDR",
		"CURIO_API_TOKEN",
		"CURIO_JWT_SECRET",
		"CURIO_SCHEDULER_ENABLED",
		"CURIO_SCHEDULER_INTERVAL",
		"CURIO_SCHEDULER_INCLUDE_TOPICS",
	} {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "development" {
		t.Fatalf("env: got=%q", cfg.Env)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("http addr: got=%q", cfg.HTTP.Addr)
	}
	if cfg.HTTP.IdleTimeout.Duration != 2*time.Minute {
		t.Fatalf("idle timeout: got=%s", cfg.HTTP.IdleTimeout.Duration)
	}
	if cfg.HTTP.ShutdownTimeout.Duration != 15*time.Second {
		t.Fatalf("shutdown timeout: got=%s", cfg.HTTP.ShutdownTimeout.Duration)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Interval.Duration != time.Hour {
		t.Fatalf("scheduler defaults: got=%+v", cfg.Scheduler)
	}
	if !cfg.Scheduler.IncludeTopics {
		t.Fatalf("include_topics should default on")
	}
	if cfg.ServiceName != "curio-graph" || cfg.DataDir != "./data" {
		t.Fatalf("identity defaults: got=%q %q", cfg.ServiceName, cfg.DataDir)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{
		"env": "production",
		"http": {"addr": ":9999", "read_header_timeout": "10s"},
		"scheduler": {"enabled": false, "interval": "30m", "include_topics": false},
		"build": {"concept_threshold": 0.8, "concept_limit": 50}
	}`)
	t.Setenv("CURIO_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "production" || cfg.HTTP.Addr != ":9999" {
		t.Fatalf("file values: got env=%q addr=%q", cfg.Env, cfg.HTTP.Addr)
	}
	if cfg.HTTP.ReadHeaderTimeout.Duration != 10*time.Second {
		t.Fatalf("read header timeout: got=%s", cfg.HTTP.ReadHeaderTimeout.Duration)
	}
	if cfg.Scheduler.Enabled || cfg.Scheduler.Interval.Duration != 30*time.Minute || cfg.Scheduler.IncludeTopics {
		t.Fatalf("scheduler: got=%+v", cfg.Scheduler)
	}
	if cfg.Build.ConceptThreshold != 0.8 || cfg.Build.ConceptLimit != 50 {
		t.Fatalf("build tuning: got=%+v", cfg.Build)
	}

	// Fields the file omits keep their compiled defaults.
	if cfg.HTTP.IdleTimeout.Duration != 2*time.Minute {
		t.Fatalf("idle timeout default lost: got=%s", cfg.HTTP.IdleTimeout.Duration)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{"http": {"addr": ":9999"}}`)
	t.Setenv("CURIO_CONFIG_PATH", path)
	t.Setenv("CURIO_HTTP_ADDR", ":7777")
	t.Setenv("CURIO_SCHEDULER_INTERVAL", "45m")
	t.Setenv("CURIO_SCHEDULER_ENABLED", "no")
	t.Setenv("CURIO_API_TOKEN", "s3cr3t")
	t.Setenv("METRICS_ADDR", ":9091")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":7777" {
		t.Fatalf("env override: got=%q", cfg.HTTP.Addr)
	}
	if cfg.Scheduler.Interval.Duration != 45*time.Minute || cfg.Scheduler.Enabled {
		t.Fatalf("scheduler overrides: got=%+v", cfg.Scheduler)
	}
	if cfg.Auth.APIToken != "s3cr3t" || cfg.MetricsAddr != ":9091" {
		t.Fatalf("auth/metrics overrides: got=%q %q", cfg.Auth.APIToken, cfg.MetricsAddr)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{"build": {"concept_threshold": 1.5}}`)
	t.Setenv("CURIO_CONFIG_PATH", path)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "concept_threshold") {
		t.Fatalf("expected threshold error, got %v", err)
	}
}

func TestLoadRejectsNegativeInterval(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{"scheduler": {"interval": "-5m"}}`)
	t.Setenv("CURIO_CONFIG_PATH", path)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "scheduler.interval") {
		t.Fatalf("expected interval error, got %v", err)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"90s"`), &d); err != nil || d.Duration != 90*time.Second {
		t.Fatalf(`"90s": got=%s err=%v`, d.Duration, err)
	}
	if err := json.Unmarshal([]byte(`1500000000`), &d); err != nil || d.Duration != 1500*time.Millisecond {
		t.Fatalf("int nanos: got=%s err=%v", d.Duration, err)
	}
	if err := json.Unmarshal([]byte(`"not-a-duration"`), &d); err == nil {
		t.Fatalf("expected parse error")
	}
}
