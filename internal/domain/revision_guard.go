package domain

import (
	"reflect"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/errors"
	"github.com/stagedoor/backend/pkg/formgraph"
)

// RevisionGuard restricts what an applicant may change while responding to
// field-targeted needs-info requests. It is only engaged when the step is in
// NEEDS_REVISION and at least one open request names target fields; an open
// request with no targets opens the whole step.
type RevisionGuard struct {
	graph   *formgraph.Graph
	allowed map[string]bool
}

// NewRevisionGuard computes the allowed-edit field set: the union of all
// target fields across open requests, canonicalized, then expanded through
// the dependency graph so conditionally-dependent fields stay editable.
// Returns nil when the guard does not apply.
func NewRevisionGuard(requests []*models.NeedsInfoRequest, graph *formgraph.Graph) *RevisionGuard {
	var targets []string
	for _, req := range requests {
		if req.Status != models.InfoRequestOpen {
			continue
		}
		if !req.IsTargeted() {
			return nil // whole-step request lifts the restriction
		}
		targets = append(targets, req.TargetFieldIDs...)
	}
	if len(targets) == 0 {
		return nil
	}

	return &RevisionGuard{
		graph:   graph,
		allowed: graph.Expand(targets),
	}
}

// AllowedFields returns the sorted canonical ids of the editable set.
func (g *RevisionGuard) AllowedFields() []string {
	return formgraph.SortedIDs(g.allowed)
}

// Check compares the resubmission against the prior snapshot and rejects it
// when any field outside the allowed set changed. Fields not submitted, or
// submitted with an unchanged value, never trigger rejection.
func (g *RevisionGuard) Check(prior, submitted models.AnswerMap) error {
	for key, value := range submitted {
		if g.allowed[g.graph.Canonical(key)] {
			continue
		}
		if answersEqual(prior[key], value) {
			continue
		}
		return errors.NewAllowedFieldsError(
			"only the fields named by the open revision request may change",
			g.AllowedFields(),
		)
	}
	return nil
}

// Merge builds the snapshot to persist: allowed fields take the submitted
// value, everything else is carried from the prior snapshot. A disallowed
// field can therefore never drift from its last known-good value, even if a
// client resubmits it unchanged by mistake.
func (g *RevisionGuard) Merge(prior, submitted models.AnswerMap) models.AnswerMap {
	merged := prior.Clone()
	for key, value := range submitted {
		if g.allowed[g.graph.Canonical(key)] {
			merged[key] = value
		}
	}
	return merged
}

// answersEqual deep-compares two answer values. Both sides come from JSON
// decoding, so numbers are float64 and containers are map[string]any/[]any;
// reflect.DeepEqual is exact on that shape.
func answersEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
