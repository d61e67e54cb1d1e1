package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Node labels used in the knowledge graph.
const (
	LabelConcept  = "Concept"
	LabelActivity = "Activity"
	LabelTopic    = "Topic"
)

// Relationship types. RELATED_TO and CONNECTS carry a similarity score;
// CONTAINS links a Topic to its member Concepts; LEARNED_FROM points from a
// Concept to the Activity it was extracted from.
const (
	EdgeRelatedTo   = "RELATED_TO"
	EdgeConnects    = "CONNECTS"
	EdgeContains    = "CONTAINS"
	EdgeLearnedFrom = "LEARNED_FROM"
)

var conceptIDNamespace = uuid.MustParse("8f9c1e6a-4b2d-4c37-9a70-52be1a3c6f41")

// NormalizeConceptName is the canonical form concept ids are derived from.
func NormalizeConceptName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

// ConceptID derives the deterministic node id for a concept name. The same
// name always maps to the same id, which keeps concept nodes stable across
// ingestion runs and lets lookups work from a bare name.
func ConceptID(name string) string {
	return uuid.NewSHA1(conceptIDNamespace, []byte(NormalizeConceptName(name))).String()
}

type EmbeddingMetadata struct {
	ActivityID string `json:"activityId"`
	Title      string `json:"title"`
	SourceType string `json:"sourceType"`
}

// EmbeddingRecord is a read-only vector produced by the upstream extraction
// pipeline. The primary embedding of an activity uses the activity id as its
// record id.
type EmbeddingRecord struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"vector"`
	Metadata EmbeddingMetadata `json:"metadata"`
}

type ConceptNode struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type ActivityNode struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourceType string `json:"source_type"`
	URL        string `json:"url,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type TopicNode struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ConceptIDs []string `json:"concept_ids"`
}

type GraphStats struct {
	Nodes         int64 `json:"nodes"`
	Relationships int64 `json:"relationships"`
}
