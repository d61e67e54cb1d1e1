package services

import (
	"strings"

	"github.com/Tapu45/CurioAi-sub001/internal/data/graph"
	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
)

// VizOptions controls the visualization snapshot fold.
type VizOptions struct {
	Limit             int
	MinNodeDegree     int
	IncludeActivities bool
	IncludeTopics     bool
}

type vizEndpoint struct {
	id    string
	name  string
	label string
}

// foldSnapshot reduces raw relationship rows into the visualization payload.
// Pure: one pass collects nodes (first occurrence wins) and degrees, then
// the filters run against the completed counts. A concurrent build can make
// the row window internally inconsistent; the fold only promises a coherent
// shape, not a transactional view.
func foldSnapshot(rows []graph.Row, opts VizOptions) types.VizData {
	nodes := make(map[string]*types.VizNode, len(rows))
	order := make([]string, 0, len(rows))
	degrees := make(map[string]int, len(rows))
	edges := make([]types.VizEdge, 0, len(rows))
	topics := make(map[string]*types.TopicSummary)
	topicOrder := make([]string, 0)

	for _, row := range rows {
		from := endpointFromRow(row, "from_")
		to := endpointFromRow(row, "to_")
		relType := rowString(row, "rel_type")
		if from.id == "" || to.id == "" || relType == "" {
			continue
		}

		for _, ep := range [2]vizEndpoint{from, to} {
			if _, seen := nodes[ep.id]; !seen {
				nodes[ep.id] = &types.VizNode{ID: ep.id, Label: ep.label, Name: ep.name}
				order = append(order, ep.id)
			}
			degrees[ep.id]++
		}

		edge := types.VizEdge{From: from.id, To: to.id, Type: relType}
		if sim, ok := rowFloat(row, "similarity"); ok {
			edge.Sim = sim
		}
		edges = append(edges, edge)

		if opts.IncludeTopics && relType == types.EdgeContains && from.label == types.LabelTopic {
			summary, seen := topics[from.id]
			if !seen {
				summary = &types.TopicSummary{ID: from.id, Name: from.name, Concepts: []string{}}
				topics[from.id] = summary
				topicOrder = append(topicOrder, from.id)
			}
			member := to.name
			if member == "" {
				member = to.id
			}
			summary.Concepts = append(summary.Concepts, member)
			summary.ConceptCount++
		}
	}

	surviving := make(map[string]struct{}, len(nodes))
	outNodes := make([]types.VizNode, 0, len(nodes))
	for _, id := range order {
		node := nodes[id]
		if !opts.IncludeActivities && node.Label == types.LabelActivity {
			continue
		}
		if degrees[id] < opts.MinNodeDegree {
			continue
		}
		node.Degree = degrees[id]
		surviving[id] = struct{}{}
		outNodes = append(outNodes, *node)
	}

	outEdges := make([]types.VizEdge, 0, len(edges))
	for _, edge := range edges {
		if _, ok := surviving[edge.From]; !ok {
			continue
		}
		if _, ok := surviving[edge.To]; !ok {
			continue
		}
		outEdges = append(outEdges, edge)
	}

	outTopics := make([]types.TopicSummary, 0, len(topicOrder))
	for _, id := range topicOrder {
		outTopics = append(outTopics, *topics[id])
	}

	return types.VizData{
		Nodes:  outNodes,
		Edges:  outEdges,
		Topics: outTopics,
		Stats: types.VizStats{
			NodeCount:  len(outNodes),
			EdgeCount:  len(outEdges),
			TopicCount: len(outTopics),
		},
	}
}

func endpointFromRow(row graph.Row, prefix string) vizEndpoint {
	ep := vizEndpoint{
		id:   rowString(row, prefix+"id"),
		name: rowString(row, prefix+"name"),
	}
	if ep.name == "" {
		ep.name = rowString(row, prefix+"title")
	}
	ep.label = firstLabel(row[prefix+"labels"])
	return ep
}

func firstLabel(raw any) string {
	switch labels := raw.(type) {
	case []string:
		if len(labels) > 0 {
			return labels[0]
		}
	case []any:
		for _, label := range labels {
			if s, ok := label.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func rowString(row graph.Row, key string) string {
	if v, ok := row[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func rowFloat(row graph.Row, key string) (float64, bool) {
	switch v := row[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}
