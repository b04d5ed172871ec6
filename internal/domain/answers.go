package domain

import (
	"sort"
	"strings"

	"github.com/stagedoor/backend/internal/domain/models"
)

// ComputeEffectiveAnswers merges an immutable submission snapshot with the
// active admin patches, in patch creation order. Pure and deterministic:
// exports, detail views and the review queue all call this and must agree
// byte for byte.
func ComputeEffectiveAnswers(base models.AnswerMap, patches []*models.AdminChangePatch) models.AnswerMap {
	answers := NormalizeAnswers(base)

	ordered := make([]*models.AdminChangePatch, 0, len(patches))
	for _, p := range patches {
		if p != nil && p.IsActive {
			ordered = append(ordered, p)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedDate.Before(ordered[j].CreatedDate)
	})

	for _, patch := range ordered {
		for _, op := range patch.Ops {
			// Unknown verbs are skipped for forward compatibility
			if op.Op != "replace" {
				continue
			}
			answers[strings.TrimPrefix(op.Path, "/")] = op.Value
		}
	}

	return answers
}

// NormalizeAnswers copies the answer map and flattens the legacy
// {data: {...}} envelope: if a nested data sub-object exists, its keys merge
// upward and the envelope key is dropped. Compatibility shim for an older
// client payload shape; do not extend it.
func NormalizeAnswers(raw models.AnswerMap) models.AnswerMap {
	answers := make(models.AnswerMap, len(raw))
	for k, v := range raw {
		answers[k] = v
	}

	nested, ok := answers["data"].(map[string]any)
	if !ok {
		return answers
	}
	delete(answers, "data")
	for k, v := range nested {
		answers[k] = v
	}
	return answers
}
