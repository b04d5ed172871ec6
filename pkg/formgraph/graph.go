// Package formgraph flattens a step's form definition into the field list
// and conditional-dependency graph the state engine works against.
package formgraph

import (
	"sort"

	"github.com/stagedoor/backend/internal/domain/models"
)

// Graph is the resolved view of one form definition: the answer-collecting
// fields, a canonicalization map from both a field's id and its answer key
// to one canonical id, and the directed dependency edges derived from
// conditional rules (source -> target whenever target's rule reads source).
type Graph struct {
	fields    []models.FormField
	canonical map[string]string
	edges     map[string][]string
}

// Resolve builds the graph for a form definition. A nil definition yields an
// empty graph, which downstream code treats as "no fields, nothing allowed".
func Resolve(def *models.FormDefinition) *Graph {
	g := &Graph{
		canonical: make(map[string]string),
		edges:     make(map[string][]string),
	}
	if def == nil {
		return g
	}

	for _, section := range def.Sections {
		for _, field := range section.Fields {
			if field.Type.IsInformational() {
				continue
			}
			g.fields = append(g.fields, field)
			g.canonical[field.ID] = field.ID
			if field.Key != "" {
				g.canonical[field.Key] = field.ID
			}
		}
	}

	// Edges need the full canonical map, so rules are walked second.
	for _, field := range g.fields {
		for _, rule := range field.Rules {
			for _, ref := range rule.Fields {
				source := g.Canonical(ref)
				if source == field.ID {
					continue // self-reference carries no information
				}
				g.edges[source] = append(g.edges[source], field.ID)
			}
		}
	}

	return g
}

// Fields returns the answer-collecting fields in definition order.
func (g *Graph) Fields() []models.FormField {
	return g.fields
}

// Canonical resolves a raw identifier (field id or answer key) to the
// canonical field id. Unknown identifiers pass through unchanged so stored
// references to since-removed fields stay stable.
func (g *Graph) Canonical(ref string) string {
	if id, ok := g.canonical[ref]; ok {
		return id
	}
	return ref
}

// Dependents returns the direct dependents of a field id.
func (g *Graph) Dependents(id string) []string {
	return g.edges[g.Canonical(id)]
}

// Expand returns the closure of the given targets under the dependency
// edges: every field reachable from a target by following source -> target
// edges is included, targets themselves first. Traversal is breadth-first;
// cycles terminate because visited nodes are never re-queued.
func (g *Graph) Expand(targets []string) map[string]bool {
	allowed := make(map[string]bool, len(targets))
	queue := make([]string, 0, len(targets))
	for _, t := range targets {
		id := g.Canonical(t)
		if !allowed[id] {
			allowed[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.edges[current] {
			if !allowed[dep] {
				allowed[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	return allowed
}

// SortedIDs returns the set's canonical ids sorted, for deterministic error
// messages.
func SortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
