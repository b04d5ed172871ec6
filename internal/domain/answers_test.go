package domain

import (
	"testing"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func patchAt(created time.Time, active bool, ops ...models.PatchOp) *models.AdminChangePatch {
	return &models.AdminChangePatch{
		ID:          "patch-" + created.Format("150405.000"),
		Ops:         ops,
		IsActive:    active,
		CreatedDate: created,
	}
}

func TestComputeEffectiveAnswers_NoPatches(t *testing.T) {
	base := models.AnswerMap{"name": "Ada", "school": "Imperial"}

	effective := ComputeEffectiveAnswers(base, nil)

	assert.Equal(t, models.AnswerMap{"name": "Ada", "school": "Imperial"}, effective)
	// The base snapshot must stay untouched
	assert.Equal(t, "Ada", base["name"])
}

func TestComputeEffectiveAnswers_PatchOrder(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	patches := []*models.AdminChangePatch{
		// Deliberately out of creation order
		patchAt(t0.Add(2*time.Hour), true, models.PatchOp{Op: "replace", Path: "/school", Value: "MIT"}),
		patchAt(t0, true, models.PatchOp{Op: "replace", Path: "school", Value: "Stanford"}),
	}

	effective := ComputeEffectiveAnswers(models.AnswerMap{"school": "Imperial"}, patches)

	// The later patch wins outright, and leading slashes are stripped
	assert.Equal(t, "MIT", effective["school"])
}

func TestComputeEffectiveAnswers_InactiveAndUnknownOps(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	patches := []*models.AdminChangePatch{
		patchAt(t0, false, models.PatchOp{Op: "replace", Path: "name", Value: "Eve"}),
		patchAt(t0.Add(time.Minute), true,
			models.PatchOp{Op: "remove", Path: "name"},
			models.PatchOp{Op: "add", Path: "extra", Value: "x"},
		),
	}

	effective := ComputeEffectiveAnswers(models.AnswerMap{"name": "Ada"}, patches)

	assert.Equal(t, "Ada", effective["name"], "inactive patch and non-replace ops are ignored")
	assert.NotContains(t, effective, "extra")
}

func TestComputeEffectiveAnswers_Deterministic(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	base := models.AnswerMap{"a": float64(1), "b": "x"}
	patches := []*models.AdminChangePatch{
		patchAt(t0, true, models.PatchOp{Op: "replace", Path: "a", Value: float64(2)}),
	}

	first := ComputeEffectiveAnswers(base, patches)
	second := ComputeEffectiveAnswers(base, patches)

	assert.Equal(t, first, second)
}

func TestNormalizeAnswers_LegacyEnvelope(t *testing.T) {
	raw := models.AnswerMap{
		"meta": "kept",
		"data": map[string]any{"name": "Ada", "school": "Imperial"},
	}

	normalized := NormalizeAnswers(raw)

	assert.Equal(t, "Ada", normalized["name"])
	assert.Equal(t, "Imperial", normalized["school"])
	assert.Equal(t, "kept", normalized["meta"])
	assert.NotContains(t, normalized, "data")

	// Original map is untouched
	assert.Contains(t, raw, "data")
}

func TestNormalizeAnswers_DataThatIsNotAnEnvelope(t *testing.T) {
	raw := models.AnswerMap{"data": "a plain answer called data"}

	normalized := NormalizeAnswers(raw)

	assert.Equal(t, "a plain answer called data", normalized["data"])
}
