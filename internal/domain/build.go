package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Build triggers.
const (
	BuildTriggerManual    = "manual"
	BuildTriggerScheduled = "scheduled"
)

// Build run statuses.
const (
	BuildStatusRunning   = "running"
	BuildStatusSucceeded = "succeeded"
	BuildStatusFailed    = "failed"
)

// BuildReport is the outcome of one full knowledge-graph build.
type BuildReport struct {
	ConceptRelationships  int `json:"concept_relationships"`
	ActivityRelationships int `json:"activity_relationships"`
	TopicClusters         int `json:"topic_clusters"`
}

// BuildRun is the persisted history row for a build, one per trigger.
type BuildRun struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Trigger               string         `gorm:"column:trigger;not null;index" json:"trigger"`
	Status                string         `gorm:"column:status;not null;index" json:"status"`
	Stage                 string         `gorm:"column:stage" json:"stage,omitempty"`
	ConceptRelationships  int            `gorm:"column:concept_relationships;not null;default:0" json:"concept_relationships"`
	ActivityRelationships int            `gorm:"column:activity_relationships;not null;default:0" json:"activity_relationships"`
	TopicClusters         int            `gorm:"column:topic_clusters;not null;default:0" json:"topic_clusters"`
	Error                 string         `gorm:"column:error" json:"error,omitempty"`
	Params                datatypes.JSON `gorm:"column:params" json:"params,omitempty"`
	StartedAt             time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	FinishedAt            *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt             time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"not null" json:"updated_at"`
}

func (BuildRun) TableName() string { return "graph_build_run" }
