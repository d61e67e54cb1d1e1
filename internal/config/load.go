package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		if strings.TrimSpace(u) == "" {
			d.Duration = 0
			return nil
		}
		dd, err := time.ParseDuration(u)
		if err != nil {
			return err
		}
		d.Duration = dd
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"30m\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Env:         "development",
		ServiceName: "curio-graph",
		DataDir:     "./data",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			Interval:      Duration{Duration: time.Hour},
			IncludeTopics: true,
		},
	}
}

// Load resolves the effective config: compiled defaults, then the optional
// JSON file named by CURIO_CONFIG_PATH (falling back to ./config/config.json
// when present), then CURIO_* env overrides, then validation.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("CURIO_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.json")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}

	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		loaded := *defaultConfig()
		if err := json.Unmarshal(b, &loaded); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
		*cfg = loaded
	}

	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("CURIO_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("CURIO_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("CURIO_API_TOKEN")); v != "" {
		cfg.Auth.APIToken = v
	}
	if v := strings.TrimSpace(os.Getenv("CURIO_JWT_SECRET")); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("CURIO_SCHEDULER_ENABLED")); v != "" {
		cfg.Scheduler.Enabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("CURIO_SCHEDULER_INTERVAL")); v != "" {
		dd, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CURIO_SCHEDULER_INTERVAL %q: %w", v, err)
		}
		cfg.Scheduler.Interval = Duration{Duration: dd}
	}
	if v := strings.TrimSpace(os.Getenv("CURIO_SCHEDULER_INCLUDE_TOPICS")); v != "" {
		cfg.Scheduler.IncludeTopics = parseBool(v)
	}

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "curio-graph"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadHeaderTimeout.Duration <= 0 {
		cfg.HTTP.ReadHeaderTimeout = Duration{Duration: 5 * time.Second}
	}
	if cfg.HTTP.ShutdownTimeout.Duration <= 0 {
		cfg.HTTP.ShutdownTimeout = Duration{Duration: 15 * time.Second}
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if cfg.Scheduler.Interval.Duration < 0 {
		return nil, fmt.Errorf("scheduler.interval must not be negative, got %s", cfg.Scheduler.Interval.Duration)
	}
	if err := validateBuild(&cfg.Build); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateBuild(b *BuildConfig) error {
	checkThreshold := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("build.%s must be within [0,1], got %v", name, v)
		}
		return nil
	}
	if err := checkThreshold("concept_threshold", b.ConceptThreshold); err != nil {
		return err
	}
	if err := checkThreshold("activity_threshold", b.ActivityThreshold); err != nil {
		return err
	}
	if err := checkThreshold("topic_threshold", b.TopicThreshold); err != nil {
		return err
	}
	if b.ConceptLimit < 0 || b.ActivityLimit < 0 || b.TopicMinClusterSize < 0 {
		return fmt.Errorf("build limits must not be negative")
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}
