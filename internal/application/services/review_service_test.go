package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/errors"
)

// reviewEnv builds a three-step workflow with a submitted first step.
func reviewEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv()
	env.addForm("form-1",
		models.FormField{ID: "f1", Key: "name", Label: "Name", Type: models.FieldTypeText, Required: true},
		models.FormField{ID: "f2", Key: "portfolio", Label: "Portfolio", Type: models.FieldTypeFile},
	)
	env.addStep(&models.WorkflowStep{
		ID: "s0", EventID: "ev-1", StepIndex: 0, Title: "Profile",
		UnlockPolicy: models.UnlockAutoAfterPrevSubmitted,
		FormVersionID: strp("form-1"), ReviewRequired: true,
	})
	env.addStep(&models.WorkflowStep{
		ID: "s1", EventID: "ev-1", StepIndex: 1, Title: "Essay",
		UnlockPolicy: models.UnlockAfterPrevApproved, ReviewRequired: true,
		Category: models.StepCategoryInfoOnly,
	})
	env.addStep(&models.WorkflowStep{
		ID: "s2", EventID: "ev-1", StepIndex: 2, Title: "References",
		UnlockPolicy: models.UnlockAutoAfterPrevSubmitted, ReviewRequired: true,
		Category: models.StepCategoryInfoOnly,
	})
	env.addApplication(&models.Application{ID: "app-1", EventID: "ev-1", ApplicantID: "user-1"})
	env.setState("app-1", "s0", models.StepStatusUnlocked)
	env.setState("app-1", "s1", models.StepStatusLocked)
	env.setState("app-1", "s2", models.StepStatusLocked)
	return env
}

func submitProfile(t *testing.T, env *testEnv, answers models.AnswerMap) *models.StepSubmissionVersion {
	t.Helper()
	if answers == nil {
		answers = models.AnswerMap{"name": "Ada"}
	}
	v, err := env.submissions.SubmitStep(context.Background(), "app-1", "s0", answers, applicant())
	require.NoError(t, err)
	return v
}

func TestApproveOpensApprovalGatedStep(t *testing.T) {
	env := reviewEnv(t)
	ctx := context.Background()
	submitProfile(t, env, nil)

	require.NoError(t, env.reviews.Approve(ctx, "app-1", "s0", staff()))

	assert.Equal(t, models.StepStatusApproved, env.state("app-1", "s0").Status)
	assert.Equal(t, models.StepStatusUnlocked, env.state("app-1", "s1").Status)
}

func TestApproveRequiresSubmittedStatus(t *testing.T) {
	env := reviewEnv(t)
	ctx := context.Background()

	err := env.reviews.Approve(ctx, "app-1", "s0", staff())
	assert.True(t, errors.IsConflict(err))
}

func TestApproveBlockedByUnverifiedFiles(t *testing.T) {
	env := reviewEnv(t)
	ctx := context.Background()
	submitProfile(t, env, models.AnswerMap{"name": "Ada", "portfolio": "file-9"})
	env.verifier.unverified["file-9"] = true

	err := env.reviews.Approve(ctx, "app-1", "s0", staff())
	require.Error(t, err)
	assert.True(t, errors.IsBadRequest(err))
	assert.Equal(t, models.StepStatusSubmitted, env.state("app-1", "s0").Status)

	// Once verified the approval goes through.
	delete(env.verifier.unverified, "file-9")
	require.NoError(t, env.reviews.Approve(ctx, "app-1", "s0", staff()))
}

func TestApproveConfirmationStepRecordsAttendance(t *testing.T) {
	env := reviewEnv(t)
	ctx := context.Background()
	env.store.steps["s0"].IsConfirmationStep = true
	submitProfile(t, env, nil)

	require.NoError(t, env.reviews.Approve(ctx, "app-1", "s0", staff()))
	assert.Equal(t, []string{"app-1"}, env.attendance.recorded)
}

func TestFinalRejectLocksDownstream(t *testing.T) {
	env := reviewEnv(t)
	ctx := context.Background()
	submitProfile(t, env, nil)
	// s2 opened when s0 was submitted.
	require.Equal(t, models.StepStatusUnlocked, env.state("app-1", "s2").Status)

	require.NoError(t, env.reviews.Reject(ctx, "app-1", "s0", "incomplete", staff()))

	assert.Equal(t, models.StepStatusRejectedFinal, env.state("app-1", "s0").Status)
	assert.Equal(t, models.StepStatusLocked, env.state("app-1", "s2").Status)

	// Terminal: the applicant cannot resubmit.
	_, err := env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada"}, applicant())
	assert.True(t, errors.IsForbidden(err))
}

func TestResubmittableRejectBehavesLikeInfoRequest(t *testing.T) {
	env := reviewEnv(t)
	ctx := context.Background()
	env.store.steps["s0"].RejectBehavior = models.RejectResubmitAllowed
	submitProfile(t, env, nil)

	require.NoError(t, env.reviews.Reject(ctx, "app-1", "s0", "try again", staff()))

	st := env.state("app-1", "s0")
	assert.Equal(t, models.StepStatusNeedsRevision, st.Status)
	assert.Equal(t, 1, st.RevisionCycleCount)

	// A whole-step request was filed.
	reqs, err := env.reviews.ListOpenRequests(ctx, "app-1", "s0")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].IsTargeted())
	assert.Equal(t, "try again", reqs[0].Message)

	// Resubmission is allowed and returns the step to review.
	_, err = env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada fixed"}, applicant())
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusSubmitted, env.state("app-1", "s0").Status)
}

func TestRequestInfoRelocksDependentDownstream(t *testing.T) {
	env := reviewEnv(t)
	ctx := context.Background()
	submitProfile(t, env, nil)
	require.Equal(t, models.StepStatusUnlocked, env.state("app-1", "s2").Status)

	_, err := env.reviews.RequestInfo(ctx, RequestInfoInput{
		ApplicationID: "app-1", StepID: "s0", Message: "details please",
	}, staff())
	require.NoError(t, err)

	// s2 unlocked off s0's submission, so it closes again.
	assert.Equal(t, models.StepStatusNeedsRevision, env.state("app-1", "s0").Status)
	assert.Equal(t, models.StepStatusLocked, env.state("app-1", "s2").Status)
}

func TestRequestInfoRejectsUnknownTargetField(t *testing.T) {
	env := reviewEnv(t)
	ctx := context.Background()
	submitProfile(t, env, nil)

	_, err := env.reviews.RequestInfo(ctx, RequestInfoInput{
		ApplicationID: "app-1", StepID: "s0",
		TargetFieldIDs: []string{"no-such-field"}, Message: "x",
	}, staff())
	assert.True(t, errors.IsValidation(err))
}

func TestRequestsResolveAcrossRevisionCycles(t *testing.T) {
	env := reviewEnv(t)
	ctx := context.Background()
	submitProfile(t, env, nil)

	req, err := env.reviews.RequestInfo(ctx, RequestInfoInput{
		ApplicationID: "app-1", StepID: "s0",
		TargetFieldIDs: []string{"name"}, Message: "clarify",
	}, staff())
	require.NoError(t, err)

	// Applicant resubmits, reviewer approves straight away.
	_, err = env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada L."}, applicant())
	require.NoError(t, err)
	assert.Equal(t, models.InfoRequestResolved, env.store.requests[req.ID].Status)

	req2, err := env.reviews.RequestInfo(ctx, RequestInfoInput{
		ApplicationID: "app-1", StepID: "s0", Message: "one more thing",
	}, staff())
	require.NoError(t, err)
	_, err = env.submissions.SubmitStep(ctx, "app-1", "s0", models.AnswerMap{"name": "Ada L."}, applicant())
	require.NoError(t, err)
	require.NoError(t, env.reviews.Approve(ctx, "app-1", "s0", staff()))

	assert.Equal(t, models.InfoRequestResolved, env.store.requests[req2.ID].Status)
}

func TestCancelRequestLeavesStepStatus(t *testing.T) {
	env := reviewEnv(t)
	ctx := context.Background()
	submitProfile(t, env, nil)

	req, err := env.reviews.RequestInfo(ctx, RequestInfoInput{
		ApplicationID: "app-1", StepID: "s0",
		TargetFieldIDs: []string{"name"}, Message: "clarify",
	}, staff())
	require.NoError(t, err)

	require.NoError(t, env.reviews.CancelRequest(ctx, req.ID))
	assert.Equal(t, models.InfoRequestCanceled, env.store.requests[req.ID].Status)
	assert.Equal(t, models.StepStatusNeedsRevision, env.state("app-1", "s0").Status)

	// Cancelling twice is a conflict.
	err = env.reviews.CancelRequest(ctx, req.ID)
	assert.True(t, errors.IsConflict(err))

	// With no open targeted requests left, the whole step is editable again.
	_, err = env.submissions.SubmitStep(ctx, "app-1", "s0",
		models.AnswerMap{"name": "Ada", "portfolio": "file-1"}, applicant())
	require.NoError(t, err)
}
