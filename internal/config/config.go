package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `json:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout"`
	IdleTimeout       Duration `json:"idle_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout"`
}

// AuthConfig gates /api. Both fields empty means the API is open, which is
// the expected shape for a desktop-local deployment.
type AuthConfig struct {
	APIToken  string `json:"api_token,omitempty"`
	JWTSecret string `json:"jwt_secret,omitempty"`
}

type SchedulerConfig struct {
	Enabled       bool     `json:"enabled"`
	Interval      Duration `json:"interval"`
	IncludeTopics bool     `json:"include_topics"`
}

// BuildConfig holds per-pass tuning defaults handed to the scheduler. Zero
// values defer to the pipeline spec, so a config file only needs the knobs
// it actually changes.
type BuildConfig struct {
	ConceptThreshold    float64 `json:"concept_threshold,omitempty"`
	ConceptLimit        int     `json:"concept_limit,omitempty"`
	ActivityThreshold   float64 `json:"activity_threshold,omitempty"`
	ActivityLimit       int     `json:"activity_limit,omitempty"`
	TopicThreshold      float64 `json:"topic_threshold,omitempty"`
	TopicMinClusterSize int     `json:"topic_min_cluster_size,omitempty"`
}

type Config struct {
	Env         string          `json:"env"`
	ServiceName string          `json:"service_name,omitempty"`
	DataDir     string          `json:"data_dir,omitempty"`
	MetricsAddr string          `json:"metrics_addr,omitempty"`
	HTTP        HTTPConfig      `json:"http"`
	Auth        AuthConfig      `json:"auth"`
	Scheduler   SchedulerConfig `json:"scheduler"`
	Build       BuildConfig     `json:"build"`
}
