package domain

import (
	"testing"

	"github.com/stagedoor/backend/internal/domain/models"
	apperrors "github.com/stagedoor/backend/pkg/errors"
	"github.com/stagedoor/backend/pkg/formgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// f1 is targeted, f2 conditionally depends on f1, f3 is unrelated.
func guardGraph() *formgraph.Graph {
	return formgraph.Resolve(&models.FormDefinition{
		Sections: []models.FormSection{{
			Fields: []models.FormField{
				{ID: "f1", Key: "f1", Type: models.FieldTypeText},
				{ID: "f2", Key: "f2", Type: models.FieldTypeText,
					Rules: []models.FieldRule{{Kind: "show", Fields: []string{"f1"}}}},
				{ID: "f3", Key: "f3", Type: models.FieldTypeText},
			},
		}},
	})
}

func openRequest(targets ...string) *models.NeedsInfoRequest {
	return &models.NeedsInfoRequest{
		ID:             "req-1",
		Status:         models.InfoRequestOpen,
		TargetFieldIDs: targets,
	}
}

func TestNewRevisionGuard_NotEngaged(t *testing.T) {
	g := guardGraph()

	assert.Nil(t, NewRevisionGuard(nil, g), "no requests")
	assert.Nil(t, NewRevisionGuard([]*models.NeedsInfoRequest{openRequest()}, g),
		"whole-step request opens everything")

	resolved := openRequest("f1")
	resolved.Status = models.InfoRequestResolved
	assert.Nil(t, NewRevisionGuard([]*models.NeedsInfoRequest{resolved}, g),
		"resolved requests do not restrict")
}

func TestRevisionGuard_AllowedSetIncludesDependents(t *testing.T) {
	guard := NewRevisionGuard([]*models.NeedsInfoRequest{openRequest("f1")}, guardGraph())
	require.NotNil(t, guard)

	assert.Equal(t, []string{"f1", "f2"}, guard.AllowedFields())
}

func TestRevisionGuard_Check(t *testing.T) {
	guard := NewRevisionGuard([]*models.NeedsInfoRequest{openRequest("f1")}, guardGraph())
	require.NotNil(t, guard)

	prior := models.AnswerMap{"f1": "old", "f2": "dep", "f3": "keep"}

	// Changing the target and its dependent passes
	assert.NoError(t, guard.Check(prior, models.AnswerMap{"f1": "new", "f2": "changed"}))

	// Resubmitting an unrelated field unchanged passes
	assert.NoError(t, guard.Check(prior, models.AnswerMap{"f1": "new", "f3": "keep"}))

	// Omitting fields entirely passes
	assert.NoError(t, guard.Check(prior, models.AnswerMap{"f1": "new"}))

	// Any change to an unrelated field is rejected, even alongside valid changes
	err := guard.Check(prior, models.AnswerMap{"f1": "new", "f3": "drifted"})
	require.Error(t, err)

	var validation *apperrors.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, []string{"f1", "f2"}, validation.AllowedFields)
}

func TestRevisionGuard_CheckDeepEquality(t *testing.T) {
	guard := NewRevisionGuard([]*models.NeedsInfoRequest{openRequest("f1")}, guardGraph())
	require.NotNil(t, guard)

	prior := models.AnswerMap{"f3": []any{"a", map[string]any{"k": float64(1)}}}

	// Structurally identical nested value: no change, no rejection
	same := models.AnswerMap{"f3": []any{"a", map[string]any{"k": float64(1)}}}
	assert.NoError(t, guard.Check(prior, same))

	// Nested difference counts as a change
	diff := models.AnswerMap{"f3": []any{"a", map[string]any{"k": float64(2)}}}
	assert.Error(t, guard.Check(prior, diff))
}

func TestRevisionGuard_MergePreservesDisallowedFields(t *testing.T) {
	guard := NewRevisionGuard([]*models.NeedsInfoRequest{openRequest("f1")}, guardGraph())
	require.NotNil(t, guard)

	prior := models.AnswerMap{"f1": "old", "f2": "dep", "f3": "keep"}
	submitted := models.AnswerMap{"f1": "new", "f2": "changed", "f3": "keep"}

	merged := guard.Merge(prior, submitted)

	assert.Equal(t, "new", merged["f1"])
	assert.Equal(t, "changed", merged["f2"])
	assert.Equal(t, "keep", merged["f3"], "disallowed field carries the prior value")

	// A disallowed field missing from the resubmission is also carried over
	partial := guard.Merge(prior, models.AnswerMap{"f1": "newer"})
	assert.Equal(t, "keep", partial["f3"])
	assert.Equal(t, "dep", partial["f2"])
}

func TestRevisionGuard_UnionAcrossRequests(t *testing.T) {
	guard := NewRevisionGuard([]*models.NeedsInfoRequest{
		openRequest("f1"),
		openRequest("f3"),
	}, guardGraph())
	require.NotNil(t, guard)

	assert.Equal(t, []string{"f1", "f2", "f3"}, guard.AllowedFields())
}
