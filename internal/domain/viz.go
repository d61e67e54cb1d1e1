package domain

// VizNode is one node of the visualization payload. Degree counts every edge
// touching the node in the fetched window, before filters are applied.
type VizNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Name   string `json:"name"`
	Degree int    `json:"degree"`
}

type VizEdge struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Type string  `json:"type"`
	Sim  float64 `json:"similarity,omitempty"`
}

type TopicSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Concepts     []string `json:"concepts"`
	ConceptCount int      `json:"concept_count"`
}

type VizStats struct {
	NodeCount  int `json:"node_count"`
	EdgeCount  int `json:"edge_count"`
	TopicCount int `json:"topic_count"`
}

type VizData struct {
	Nodes  []VizNode      `json:"nodes"`
	Edges  []VizEdge      `json:"edges"`
	Topics []TopicSummary `json:"topics"`
	Stats  VizStats       `json:"stats"`
}

// RelatedConcept is a neighbor reached over a RELATED_TO edge.
type RelatedConcept struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity,omitempty"`
}

// ActivitySource is an activity a concept was learned from.
type ActivitySource struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourceType string `json:"source_type"`
}

// ConceptDetails aggregates a concept with its graph neighborhood.
type ConceptDetails struct {
	Concept         ConceptNode      `json:"concept"`
	RelatedConcepts []RelatedConcept `json:"related_concepts"`
	Activities      []ActivitySource `json:"activities"`
}
