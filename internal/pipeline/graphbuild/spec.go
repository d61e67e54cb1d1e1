// Package graphbuild defines the knowledge-graph build pipeline: which
// stages run, in what order, and with what tuning. The compiled default
// ships as embedded YAML; CURIO_BUILD_PIPELINE_YAML points at an override
// file of the same shape.
package graphbuild

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

// Stage names, in canonical run order.
const (
	StageConceptRelationships  = "concept_relationships"
	StageActivityRelationships = "activity_relationships"
	StageTopicClusters         = "topic_clusters"
)

//go:embed graph_build.yaml
var embeddedSpec []byte

// Stage is one pipeline step. Threshold and Limit tune the relationship
// passes; MinClusterSize only applies to topic_clusters.
type Stage struct {
	Name           string  `yaml:"name"`
	Enabled        bool    `yaml:"enabled"`
	Threshold      float64 `yaml:"threshold,omitempty"`
	Limit          int     `yaml:"limit,omitempty"`
	MinClusterSize int     `yaml:"min_cluster_size,omitempty"`
}

type Spec struct {
	Stages []Stage `yaml:"stages"`
}

// Stage returns the named stage and whether the spec defines it.
func (s *Spec) Stage(name string) (Stage, bool) {
	if s == nil {
		return Stage{}, false
	}
	for _, st := range s.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return Stage{}, false
}

func (s *Spec) Validate() error {
	if s == nil || len(s.Stages) == 0 {
		return errors.New("pipeline spec: no stages")
	}
	seen := map[string]bool{}
	for i := range s.Stages {
		st := &s.Stages[i]
		st.Name = strings.TrimSpace(st.Name)
		if !knownStage(st.Name) {
			return fmt.Errorf("pipeline spec: unknown stage %q", st.Name)
		}
		if seen[st.Name] {
			return fmt.Errorf("pipeline spec: duplicate stage %q", st.Name)
		}
		seen[st.Name] = true
		if st.Threshold < 0 || st.Threshold > 1 {
			return fmt.Errorf("pipeline spec: stage %q threshold %v out of range", st.Name, st.Threshold)
		}
		if st.Limit < 0 {
			return fmt.Errorf("pipeline spec: stage %q has a negative limit", st.Name)
		}
		if st.MinClusterSize < 0 {
			return fmt.Errorf("pipeline spec: stage %q has a negative min_cluster_size", st.Name)
		}
	}
	return nil
}

func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse pipeline spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

var (
	defaultsOnce sync.Once
	defaultsSpec *Spec
)

// Defaults returns the embedded pipeline spec.
func Defaults() *Spec {
	defaultsOnce.Do(func() {
		spec, err := Parse(embeddedSpec)
		if err != nil {
			spec = compiledFallback()
		}
		defaultsSpec = spec
	})
	return defaultsSpec
}

func compiledFallback() *Spec {
	return &Spec{Stages: []Stage{
		{Name: StageConceptRelationships, Enabled: true, Threshold: 0.7, Limit: 100},
		{Name: StageActivityRelationships, Enabled: true, Threshold: 0.75, Limit: 50},
		{Name: StageTopicClusters, Enabled: true, Threshold: 0.65, MinClusterSize: 3},
	}}
}

var (
	runtimeOnce sync.Once
	runtimeSpec *Spec
)

// Runtime resolves the pipeline spec once per process: the override file if
// CURIO_BUILD_PIPELINE_YAML is set and valid, the embedded defaults otherwise.
func Runtime(log *logger.Logger) *Spec {
	runtimeOnce.Do(func() {
		runtimeSpec = load(log)
	})
	return runtimeSpec
}

func load(log *logger.Logger) *Spec {
	path := strings.TrimSpace(os.Getenv("CURIO_BUILD_PIPELINE_YAML"))
	if path == "" {
		return Defaults()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if log != nil {
			log.Warn("build pipeline override unreadable (using defaults)", "path", path, "error", err)
		}
		return Defaults()
	}
	spec, err := Parse(data)
	if err != nil {
		if log != nil {
			log.Warn("build pipeline override rejected (using defaults)", "path", path, "error", err)
		}
		return Defaults()
	}
	if log != nil {
		log.Info("build pipeline override loaded", "path", path, "stages", len(spec.Stages))
	}
	return spec
}

func knownStage(name string) bool {
	switch name {
	case StageConceptRelationships, StageActivityRelationships, StageTopicClusters:
		return true
	}
	return false
}
