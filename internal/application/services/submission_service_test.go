package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/errors"
)

// submissionEnv builds a two-step workflow with a simple form on step s0.
func submissionEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv()
	env.addForm("form-1",
		models.FormField{ID: "f1", Key: "name", Label: "Name", Type: models.FieldTypeText, Required: true},
		models.FormField{ID: "f2", Key: "bio", Label: "Bio", Type: models.FieldTypeTextArea},
	)
	env.addStep(&models.WorkflowStep{
		ID: "s0", EventID: "ev-1", StepIndex: 0, Title: "Profile",
		UnlockPolicy: models.UnlockAutoAfterPrevSubmitted,
		FormVersionID: strp("form-1"), ReviewRequired: true,
	})
	env.addStep(&models.WorkflowStep{
		ID: "s1", EventID: "ev-1", StepIndex: 1, Title: "Essay",
		UnlockPolicy: models.UnlockAutoAfterPrevSubmitted, ReviewRequired: true,
		Category: models.StepCategoryInfoOnly,
	})
	env.addApplication(&models.Application{ID: "app-1", EventID: "ev-1", ApplicantID: "user-1"})
	env.setState("app-1", "s0", models.StepStatusUnlocked)
	env.setState("app-1", "s1", models.StepStatusLocked)
	return env
}

func TestSubmitCreatesVersionAndCascades(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	v, err := env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada"}, applicant())
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)
	assert.Equal(t, "form-1", *v.FormVersionID)

	st := env.state("app-1", "s0")
	assert.Equal(t, models.StepStatusSubmitted, st.Status)
	assert.Equal(t, v.ID, *st.LatestSubmissionVersionID)

	// The downstream auto step opened in the same call.
	assert.Equal(t, models.StepStatusUnlocked, env.state("app-1", "s1").Status)
}

func TestSubmitVersionNumbersAreContiguous(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	v1, err := env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada"}, applicant())
	require.NoError(t, err)

	// Reviewer sends it back, applicant resubmits.
	_, err = env.reviews.RequestInfo(ctx, RequestInfoInput{
		ApplicationID: "app-1", StepID: "s0", Message: "look again",
	}, staff())
	require.NoError(t, err)

	v2, err := env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada L."}, applicant())
	require.NoError(t, err)

	assert.Equal(t, 1, v1.VersionNumber)
	assert.Equal(t, 2, v2.VersionNumber)

	versions, err := env.submissions.ListVersions(ctx, "app-1", "s0", applicant())
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, models.AnswerMap{"name": "Ada"}, versions[0].Answers)
}

func TestSubmitWhileSubmittedConflictsWithLatestVersion(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	v, err := env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada"}, applicant())
	require.NoError(t, err)

	_, err = env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada again"}, applicant())
	require.True(t, errors.IsConflict(err))

	var conflict *errors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, v.ID, conflict.LatestVersionID)
}

func TestSubmitLockedStepForbidden(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	_, err := env.submissions.SubmitStep(ctx, "app-1", "s1", nil, applicant())
	assert.True(t, errors.IsForbidden(err))
}

func TestSubmitAfterDeadlineForbidden(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	past := env.now.Add(-time.Minute)
	env.store.steps["s0"].DeadlineAt = &past

	_, err := env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada"}, applicant())
	assert.True(t, errors.IsForbidden(err))
}

func TestSubmitValidatesRequiredFields(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	_, err := env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"bio": "..."}, applicant())
	assert.True(t, errors.IsValidation(err))

	_, err = env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada", "stray": "x"}, applicant())
	assert.True(t, errors.IsValidation(err))
}

func TestSubmitOtherUsersApplicationForbidden(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	intruder := &models.UserSession{ID: "user-2", Name: "Eve", Email: "eve@example.com"}
	_, err := env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Eve"}, intruder)
	assert.True(t, errors.IsForbidden(err))
}

func TestSubmitNormalizesDataEnvelope(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	v, err := env.submissions.SubmitStep(ctx, "app-1", "s0",
		models.AnswerMap{"data": map[string]any{"name": "Ada"}}, applicant())
	require.NoError(t, err)
	assert.Equal(t, models.AnswerMap{"name": "Ada"}, v.Answers)
}

func TestSubmitAutoApprovesWhenReviewNotRequired(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.addStep(&models.WorkflowStep{
		ID: "s0", EventID: "ev-1", StepIndex: 0, Title: "Acknowledge",
		UnlockPolicy: models.UnlockAutoAfterPrevSubmitted, ReviewRequired: false,
		Category: models.StepCategoryInfoOnly,
	})
	env.addStep(&models.WorkflowStep{
		ID: "s1", EventID: "ev-1", StepIndex: 1, Title: "Next",
		UnlockPolicy: models.UnlockAfterPrevApproved, ReviewRequired: true,
		Category: models.StepCategoryInfoOnly,
	})
	env.addApplication(&models.Application{ID: "app-1", EventID: "ev-1", ApplicantID: "user-1"})
	env.setState("app-1", "s0", models.StepStatusUnlocked)
	env.setState("app-1", "s1", models.StepStatusLocked)

	_, err := env.submissions.SubmitStep(ctx, "app-1", "s0", nil, applicant())
	require.NoError(t, err)

	// No review queue: the step settles as APPROVED and the
	// approval-gated successor opens in the same pass.
	assert.Equal(t, models.StepStatusApproved, env.state("app-1", "s0").Status)
	assert.Equal(t, models.StepStatusUnlocked, env.state("app-1", "s1").Status)
}

func TestTargetedRevisionGuardOnResubmit(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	_, err := env.submissions.SubmitStep(ctx, "app-1", "s0",
		models.AnswerMap{"name": "Ada", "bio": "original"}, applicant())
	require.NoError(t, err)

	// Reviewer targets only the name field.
	req, err := env.reviews.RequestInfo(ctx, RequestInfoInput{
		ApplicationID: "app-1", StepID: "s0",
		TargetFieldIDs: []string{"name"}, Message: "full name please",
	}, staff())
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, req.TargetFieldIDs)

	// Changing the untargeted bio is rejected, with the allowed set attached.
	_, err = env.submissions.SubmitStep(ctx, "app-1", "s0",
		models.AnswerMap{"name": "Ada Lovelace", "bio": "rewritten"}, applicant())
	require.True(t, errors.IsValidation(err))
	var validation *errors.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, []string{"f1"}, validation.AllowedFields)

	// Resubmitting the targeted field alone is accepted and resolves the
	// request; the untouched field carries over from the prior version.
	v2, err := env.submissions.SubmitStep(ctx, "app-1", "s0",
		models.AnswerMap{"name": "Ada Lovelace"}, applicant())
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)
	assert.Equal(t, "original", v2.Answers["bio"])

	assert.Equal(t, models.InfoRequestResolved, env.store.requests[req.ID].Status)
}

func TestDraftLifecycle(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	require.NoError(t, env.submissions.SaveDraft(ctx, "app-1", "s0",
		models.AnswerMap{"name": "half-done"}, applicant()))

	draft, err := env.submissions.GetDraft(ctx, "app-1", "s0", applicant())
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, "half-done", draft.Answers["name"])

	// Drafts cannot be saved on a locked step.
	err = env.submissions.SaveDraft(ctx, "app-1", "s1", models.AnswerMap{}, applicant())
	assert.True(t, errors.IsForbidden(err))

	// Submission consumes the draft.
	_, err = env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada"}, applicant())
	require.NoError(t, err)
	draft, err = env.submissions.GetDraft(ctx, "app-1", "s0", applicant())
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestEffectiveAnswersAppliesPatchesInOrder(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	v, err := env.submissions.SubmitStep(ctx, "app-1", "s0",
		models.AnswerMap{"name": "Ada", "bio": "original"}, applicant())
	require.NoError(t, err)

	p1, err := env.submissions.CreatePatch(ctx, "app-1", "s0", v.ID,
		[]models.PatchOp{{Op: "replace", Path: "/name", Value: "Ada L."}})
	require.NoError(t, err)
	env.store.patches[p1.ID].CreatedDate = env.now

	p2, err := env.submissions.CreatePatch(ctx, "app-1", "s0", v.ID,
		[]models.PatchOp{{Op: "replace", Path: "/name", Value: "Ada Lovelace"}})
	require.NoError(t, err)
	env.store.patches[p2.ID].CreatedDate = env.now.Add(time.Minute)

	eff, err := env.submissions.GetEffectiveAnswers(ctx, "app-1", "s0", "", applicant())
	require.NoError(t, err)
	assert.True(t, eff.Patched)
	assert.Equal(t, "Ada Lovelace", eff.Answers["name"])
	assert.Equal(t, "original", eff.Answers["bio"])

	// The stored version never changes.
	assert.Equal(t, "Ada", env.store.submissions[v.ID].Answers["name"])

	// Deactivating the later patch re-exposes the earlier one.
	require.NoError(t, env.submissions.DeactivatePatch(ctx, p2.ID))
	eff, err = env.submissions.GetEffectiveAnswers(ctx, "app-1", "s0", "", applicant())
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", eff.Answers["name"])
}

func TestCreatePatchRejectsUnknownOps(t *testing.T) {
	env := submissionEnv(t)
	ctx := context.Background()

	v, err := env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada"}, applicant())
	require.NoError(t, err)

	_, err = env.submissions.CreatePatch(ctx, "app-1", "s0", v.ID,
		[]models.PatchOp{{Op: "remove", Path: "/name"}})
	assert.True(t, errors.IsValidation(err))

	_, err = env.submissions.CreatePatch(ctx, "app-1", "s0", "missing",
		[]models.PatchOp{{Op: "replace", Path: "/name", Value: "x"}})
	assert.True(t, errors.IsNotFound(err))
}
